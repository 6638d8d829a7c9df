package detect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Entity is one span the oracle found.
type Entity struct {
	Label string  `json:"label"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Value is a detected label's value: a single string, or a sequence once the
// label was seen more than once.
type Value struct {
	Items []string
	List  bool
}

func Scalar(s string) Value { return Value{Items: []string{s}} }

func List(items ...string) Value { return Value{Items: items, List: true} }

// First returns the first item, or "" for an empty value.
func (v Value) First() string {
	if len(v.Items) == 0 {
		return ""
	}
	return v.Items[0]
}

// String joins sequence items with "; ".
func (v Value) String() string {
	return strings.Join(v.Items, "; ")
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.List {
		items := v.Items
		if items == nil {
			items = []string{}
		}
		return json.Marshal(items)
	}
	return json.Marshal(v.First())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []any
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*v = Value{List: true, Items: make([]string, 0, len(items))}
		for _, it := range items {
			v.Items = append(v.Items, scalarString(it))
		}
		return nil
	}
	var s any
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*v = Scalar(scalarString(s))
	return nil
}

func scalarString(x any) string {
	switch t := x.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// Mapping is an insertion-ordered label -> Value map. The zero value is ready
// to use.
type Mapping struct {
	keys   []string
	values map[string]Value
}

// Add records one detection. The first hit for a label is a scalar; the
// second promotes it to a sequence; later hits append.
func (m *Mapping) Add(label, text string) {
	v, ok := m.Get(label)
	switch {
	case !ok:
		v = Scalar(text)
	case !v.List:
		v = List(append(append([]string{}, v.Items...), text)...)
	default:
		v.Items = append(v.Items, text)
	}
	m.Set(label, v)
}

// Set stores v under label, keeping the label's original position.
func (m *Mapping) Set(label string, v Value) {
	if m.values == nil {
		m.values = make(map[string]Value)
	}
	if _, ok := m.values[label]; !ok {
		m.keys = append(m.keys, label)
	}
	m.values[label] = v
}

func (m Mapping) Get(label string) (Value, bool) {
	v, ok := m.values[label]
	return v, ok
}

// Labels returns labels in first-insertion order.
func (m Mapping) Labels() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

func (m Mapping) Len() int { return len(m.keys) }

// Count returns the total number of detected items across labels.
func (m Mapping) Count() int {
	n := 0
	for _, k := range m.keys {
		n += len(m.values[k].Items)
	}
	return n
}

func (m Mapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (m *Mapping) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("mapping: expected object, got %v", tok)
	}
	*m = Mapping{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("mapping: expected key, got %v", tok)
		}
		var v Value
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("mapping: value for %q: %w", key, err)
		}
		m.Set(key, v)
	}
	_, err = dec.Token()
	return err
}
