package replace

import (
	"fmt"
	"regexp"
	"strings"
)

// rule maps a lower-cased label (and, for the insurer rule, the original
// value) to a generator. Rules are tried in order; the first match wins.
type rule struct {
	name  string
	match func(label, value string) bool
	gen   func(c *Context, label, value string) string
}

var rules = []rule{
	{"name", labelHas("name"), (*Context).personName},
	{"doctor", labelHas("doctor", "physician"), (*Context).doctor},
	{"email", labelHas("email"), (*Context).email},
	{"phone", labelHas("phone number", "mobile number"), func(c *Context, _, _ string) string {
		return fmt.Sprintf("+91-%d", c.fake.Number(6000000000, 9999999999))
	}},
	{"ip", labelHas("ip address"), func(c *Context, _, _ string) string {
		return c.fake.IPv4Address()
	}},
	{"address", labelHas("address", "location"), func(c *Context, _, _ string) string {
		return strings.ReplaceAll(c.fake.Address().Address, "\n", ", ")
	}},
	{"hospital id", labelHas("hospital id"), prefixed("HOSP-", 1000000, 9999999)},
	{"patient id", labelHas("patient id"), prefixed("PAT-", 100000, 999999)},
	{"record number", labelHas("medical record number", "mrn"), prefixed("MRN", 100000, 9999999)},
	{"policy", labelHas("insurance id", "policy number"), prefixed("POL-", 10000000, 99999999)},
	{"member", labelHas("member id", "subscriber id"), prefixed("MEM-", 1000000, 9999999)},
	{"provider", labelHas("provider id"), prefixed("PROV-", 1000, 9999)},
	{"npi", labelHas("npi number"), prefixed("", 1000000000, 9999999999)},
	{"license", labelHas("medical license", "license number"), func(c *Context, _, _ string) string {
		return fmt.Sprintf("%sMED%d", c.fake.RandomString(licenseStates), c.fake.Number(10000, 99999))
	}},
	{"dea", labelHas("dea number"), func(c *Context, _, _ string) string {
		return c.upperLetters(2) + fmt.Sprint(c.fake.Number(1000000, 9999999))
	}},
	{"date of birth", labelHas("date of birth", "dob", "birth"), (*Context).dateOfBirth},
	{"card", labelHas("credit card", "card number"), func(c *Context, _, _ string) string {
		return fmt.Sprintf("****-****-****-%d", c.fake.Number(1000, 9999))
	}},
	{"national id", labelHas("ssn", "social security", "aadhaar"), func(c *Context, _, _ string) string {
		return c.digits(12)
	}},
	{"passport", labelHas("passport"), func(c *Context, _, _ string) string {
		return c.upperLetters(1) + fmt.Sprint(c.fake.Number(1000000, 9999999))
	}},
	{"driver license", labelHas("driver license", "driving licence"), func(c *Context, _, _ string) string {
		return fmt.Sprintf("%s%d", c.fake.RandomString(drivingStates), c.fake.Number(10000000000, 99999999999))
	}},
	{"insurer", valueHas("insurance", "assurance", "life", "general", "health", "medical"), func(c *Context, _, _ string) string {
		return c.fake.RandomString(insurers)
	}},
}

func labelHas(subs ...string) func(label, value string) bool {
	return func(label, _ string) bool {
		for _, s := range subs {
			if strings.Contains(label, s) {
				return true
			}
		}
		return false
	}
}

func valueHas(subs ...string) func(label, value string) bool {
	return func(_, value string) bool {
		v := strings.ToLower(value)
		for _, s := range subs {
			if strings.Contains(v, s) {
				return true
			}
		}
		return false
	}
}

func prefixed(prefix string, min, max int) func(c *Context, _, _ string) string {
	return func(c *Context, _, _ string) string {
		return fmt.Sprintf("%s%d", prefix, c.fake.Number(min, max))
	}
}

var nonLabelChar = regexp.MustCompile(`[^A-Z0-9_]`)

// fallback renders an unmatched label as [FAKE_<LABEL>].
func fallback(label string) string {
	safe := nonLabelChar.ReplaceAllString(strings.ReplaceAll(strings.ToUpper(label), " ", "_"), "_")
	return "[FAKE_" + safe + "]"
}

var nonAlpha = regexp.MustCompile(`[^a-z]`)

var honorificSplit = regexp.MustCompile(`[^a-z]+`)

type honorific int

const (
	honorificNone honorific = iota
	honorificDoctor
	honorificMale
	honorificFemale
)

// honorificOf looks at whole tokens, so "Mrs" is never read as "Mr".
func honorificOf(value string) honorific {
	found := honorificNone
	for _, tok := range honorificSplit.Split(strings.ToLower(value), -1) {
		switch tok {
		case "dr":
			return honorificDoctor
		case "mr", "shri", "sri":
			if found == honorificNone {
				found = honorificMale
			}
		case "mrs", "ms", "miss", "smt":
			if found == honorificNone {
				found = honorificFemale
			}
		}
	}
	return found
}

func (c *Context) personName(_, value string) string {
	switch honorificOf(value) {
	case honorificDoctor:
		return "Dr. " + c.anyName()
	case honorificMale:
		return c.fake.RandomString(maleFirstNames) + " " + c.fake.RandomString(lastNames)
	case honorificFemale:
		return c.fake.RandomString(femaleFirstNames) + " " + c.fake.RandomString(lastNames)
	default:
		return c.anyName()
	}
}

func (c *Context) anyName() string {
	first := maleFirstNames
	if c.fake.Bool() {
		first = femaleFirstNames
	}
	return c.fake.RandomString(first) + " " + c.fake.RandomString(lastNames)
}

func (c *Context) doctor(_, _ string) string {
	return fmt.Sprintf("Dr. %s, %s", c.anyName(), c.fake.RandomString(specialties))
}

func (c *Context) email(_, _ string) string {
	if c.anchor == "" {
		return strings.ToLower(c.fake.Email())
	}
	parts := strings.Fields(strings.ReplaceAll(strings.ToLower(c.anchor), "dr. ", ""))
	if len(parts) >= 2 {
		first := nonAlpha.ReplaceAllString(parts[0], "")
		last := nonAlpha.ReplaceAllString(parts[len(parts)-1], "")
		return fmt.Sprintf("%s.%s@%s", first, last, c.fake.RandomString(emailDomains))
	}
	if len(parts) == 1 {
		return fmt.Sprintf("%s@%s", nonAlpha.ReplaceAllString(parts[0], ""), c.fake.RandomString(shortEmailDomains))
	}
	return strings.ToLower(c.fake.Email())
}

// dateOfBirth yields a date for an age between 18 and 75.
func (c *Context) dateOfBirth(_, _ string) string {
	now := c.now()
	age := c.fake.Number(18, 74)
	dob := now.AddDate(-age, 0, -c.fake.Number(0, 364))
	return dob.Format("02 January 2006")
}

func (c *Context) digits(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		d := c.fake.Number(0, 9)
		if i == 0 && d == 0 {
			d = c.fake.Number(1, 9)
		}
		b.WriteByte(byte('0' + d))
	}
	return b.String()
}

func (c *Context) upperLetters(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString(strings.ToUpper(c.fake.Letter()))
	}
	return b.String()
}
