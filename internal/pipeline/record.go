package pipeline

import (
	"bytes"
	"encoding/json"

	"github.com/NarendraPati1/deIdentifier/internal/detect"
	"github.com/NarendraPati1/deIdentifier/internal/parser"
)

// Column is one rendered record field and the detection label it reads.
type Column struct {
	Name  string
	Label string
	PHI   bool
}

// Columns is the fixed rendering order after "filename".
var Columns = []Column{
	{Name: "Hospital_ID", Label: "Hospital ID"},
	{Name: "Patient_Name", Label: "Patient Name"},
	{Name: "Policy_Number", Label: "Policy Number"},
	{Name: "date_of_birth", Label: "date of birth"},
	{Name: "email", Label: "email"},
	{Name: "health_insurance", Label: "health insurance"},
	{Name: "phone_number", Label: "phone number"},
	{Name: "Age", Label: "Age", PHI: true},
	{Name: "allergy", Label: "allergy", PHI: true},
	{Name: "blood_group", Label: "blood group", PHI: true},
	{Name: "drug", Label: "medication", PHI: true},
	{Name: "gender", Label: "gender", PHI: true},
	{Name: "medical_condition", Label: "medical condition", PHI: true},
	{Name: "surgery", Label: "surgery", PHI: true},
	{Name: "symptom", Label: "symptom", PHI: true},
}

// Header returns "filename" followed by every column name.
func Header() []string {
	out := make([]string, 0, len(Columns)+1)
	out = append(out, "filename")
	for _, c := range Columns {
		out = append(out, c.Name)
	}
	return out
}

// RecordStatus is the per-file outcome.
type RecordStatus string

const (
	RecordCompleted RecordStatus = "completed"
	RecordFailed    RecordStatus = "failed"
)

// ExtractionInfo summarises how text extraction went.
type ExtractionInfo struct {
	Status    parser.Status `json:"status"`
	Format    parser.Format `json:"format"`
	Truncated bool          `json:"truncated,omitempty"`
	Skipped   int           `json:"skipped,omitempty"`
}

// Record is the de-identified outcome for one document: synthetic PII and
// verbatim PHI.
type Record struct {
	ID       string
	Filename string
	Size     int64

	PII detect.Mapping
	PHI detect.Mapping

	// Original holds the detected PII before replacement. Never rendered.
	Original detect.Mapping

	Status   RecordStatus
	Error    string
	PIIError string
	PHIError string

	Extraction    ExtractionInfo
	DemoDetection bool
}

// Row renders the record in Header order. Sequences join with "; " and
// missing labels render empty.
func (r Record) Row() []string {
	out := make([]string, 0, len(Columns)+1)
	out = append(out, r.Filename)
	for _, c := range Columns {
		src := r.PII
		if c.PHI {
			src = r.PHI
		}
		v, _ := src.Get(c.Label)
		out = append(out, v.String())
	}
	return out
}

// Fields returns the rendered row keyed by column name.
func (r Record) Fields() map[string]string {
	row := r.Row()
	out := make(map[string]string, len(row))
	for i, name := range Header() {
		out[name] = row[i]
	}
	return out
}

// PIIItems counts the replaced PII labels.
func (r Record) PIIItems() int { return r.PII.Len() }

// PHIItems counts the carried PHI labels.
func (r Record) PHIItems() int { return r.PHI.Len() }

// MarshalJSON emits the flat row with keys in column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	row := r.Row()
	for i, name := range Header() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(name)
		v, err := json.Marshal(row[i])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// RowFromFields orders an arbitrary filename/column map into Header order,
// filling missing columns with "".
func RowFromFields(fields map[string]any) []string {
	out := make([]string, 0, len(Columns)+1)
	for _, name := range Header() {
		out = append(out, fieldString(fields[name]))
	}
	return out
}

func fieldString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// FileOutcome summarises one file of a session.
type FileOutcome struct {
	ID         string         `json:"id"`
	Filename   string         `json:"filename"`
	Size       int64          `json:"size"`
	PIIItems   int            `json:"pii_items"`
	PHIItems   int            `json:"phi_items"`
	Status     RecordStatus   `json:"status"`
	Error      string         `json:"error,omitempty"`
	PIIError   string         `json:"pii_error,omitempty"`
	PHIError   string         `json:"phi_error,omitempty"`
	Extraction ExtractionInfo `json:"extraction"`
}

// Outcome summarises the record for session listings.
func (r Record) Outcome() FileOutcome {
	return FileOutcome{
		ID:         r.ID,
		Filename:   r.Filename,
		Size:       r.Size,
		PIIItems:   r.PIIItems(),
		PHIItems:   r.PHIItems(),
		Status:     r.Status,
		Error:      r.Error,
		PIIError:   r.PIIError,
		PHIError:   r.PHIError,
		Extraction: r.Extraction,
	}
}
