// Package replace substitutes detected PII with synthetic values.
//
// A Context owns the replacement cache and the patient-name anchor. Within
// one Context the same (label, value) pair always maps to the same synthetic
// value. Share a Context across documents only when they should replace
// consistently, such as files of one submission.
package replace

import (
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/NarendraPati1/deIdentifier/internal/detect"
)

type Context struct {
	mu     sync.Mutex
	cache  map[string]string
	anchor string
	fake   *gofakeit.Faker
	now    func() time.Time
}

type Option func(*Context)

// WithSeed makes generated values reproducible.
func WithSeed(seed uint64) Option {
	return func(c *Context) { c.fake = gofakeit.New(seed) }
}

// WithClock sets the reference time for date-of-birth generation.
func WithClock(now func() time.Time) Option {
	return func(c *Context) { c.now = now }
}

func NewContext(opts ...Option) *Context {
	c := &Context{
		cache: make(map[string]string),
		fake:  gofakeit.New(0),
		now:   time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Replace returns the synthetic value for one detected value.
func (c *Context) Replace(label, value string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.replaceLocked(label, value)
}

// ReplaceAll replaces every value of m, keeping label order and the
// scalar/sequence shape. The patient-name label is replaced first so the
// email rule can derive from it.
func (c *Context) ReplaceAll(m detect.Mapping) detect.Mapping {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.anchor = ""
	replaced := make(map[string]detect.Value, m.Len())

	anchorLabel := ""
	for _, label := range m.Labels() {
		if isAnchorLabel(strings.ToLower(label)) {
			anchorLabel = label
			v, _ := m.Get(label)
			rv := c.replaceValueLocked(label, v)
			replaced[label] = rv
			c.anchor = rv.First()
			break
		}
	}

	for _, label := range m.Labels() {
		if label == anchorLabel {
			continue
		}
		v, _ := m.Get(label)
		replaced[label] = c.replaceValueLocked(label, v)
	}

	var out detect.Mapping
	for _, label := range m.Labels() {
		out.Set(label, replaced[label])
	}
	return out
}

// Anchor returns the current patient-name anchor.
func (c *Context) Anchor() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.anchor
}

// CacheSize returns the number of memoized replacements.
func (c *Context) CacheSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}

func (c *Context) replaceValueLocked(label string, v detect.Value) detect.Value {
	items := make([]string, len(v.Items))
	for i, it := range v.Items {
		items[i] = c.replaceLocked(label, it)
	}
	return detect.Value{Items: items, List: v.List}
}

func (c *Context) replaceLocked(label, value string) string {
	key := label + ":" + value
	lower := strings.ToLower(label)

	fake, ok := c.cache[key]
	if !ok {
		fake = c.generate(lower, value)
		c.cache[key] = fake
	}
	if isAnchorLabel(lower) {
		c.anchor = fake
	}
	return fake
}

func (c *Context) generate(lowerLabel, value string) string {
	for _, r := range rules {
		if r.match(lowerLabel, value) {
			return r.gen(c, lowerLabel, value)
		}
	}
	return fallback(lowerLabel)
}

func isAnchorLabel(lowerLabel string) bool {
	return strings.Contains(lowerLabel, "patient name") || lowerLabel == "name"
}

// Pair is one original value and its replacement.
type Pair struct {
	Label     string `json:"label"`
	Original  string `json:"original"`
	Synthetic string `json:"synthetic"`
}

// Compare lines up original and replaced mappings item by item.
func Compare(original, replaced detect.Mapping) []Pair {
	var out []Pair
	for _, label := range original.Labels() {
		ov, _ := original.Get(label)
		rv, _ := replaced.Get(label)
		for i, item := range ov.Items {
			p := Pair{Label: label, Original: item}
			if i < len(rv.Items) {
				p.Synthetic = rv.Items[i]
			}
			out = append(out, p)
		}
	}
	return out
}
