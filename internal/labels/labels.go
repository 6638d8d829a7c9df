// Package labels holds the two disjoint label vocabularies handed to the
// detection oracle. Order is significant: it is the order the oracle
// receives the labels in.
package labels

// Set is a named, ordered label vocabulary.
type Set struct {
	Name   string
	Labels []string
}

// PII labels are replaced with synthetic values.
var PII = Set{
	Name: "PII",
	Labels: []string{
		"Patient Name", "Address", "email", "Emergency Name",
		"Primary Doctor", "Doctor", "Physician",
		"phone number", "mobile number", "date of birth",
		"credit card", "social security number", "ssn",
		"passport number", "driver license", "ip address", "password",
		"Hospital ID", "Medical Record Number", "Patient ID",
		"Insurance ID", "Policy Number", "Member ID", "Subscriber ID",
		"Provider ID", "NPI Number", "Medical License", "DEA Number",
		"nurse", "medical facility", "medical insurance", "health insurance",
	},
}

// PHI labels are detected and carried through unchanged.
var PHI = Set{
	Name: "PHI",
	Labels: []string{
		"medical condition", "disease", "diagnosis", "symptom", "disorder",
		"medication", "drug", "prescription", "treatment", "therapy",
		"procedure", "surgery", "operation", "medical test", "lab test",
		"blood pressure", "heart rate", "temperature", "weight", "height",
		"allergy", "dosage", "medical history", "vital signs", "blood group",
		"Age", "gender",
	},
}

// Contains reports whether label is in the set. Matching is exact.
func (s Set) Contains(label string) bool {
	for _, l := range s.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Clone returns a copy whose label slice can be modified freely.
func (s Set) Clone() Set {
	out := Set{Name: s.Name, Labels: make([]string, len(s.Labels))}
	copy(out.Labels, s.Labels)
	return out
}
