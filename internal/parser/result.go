package parser

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupported = errors.New("unsupported file format")
	ErrNotFound    = errors.New("file not found")
	ErrUnsafePath  = errors.New("archive member escapes extraction directory")
	ErrNoOCR       = errors.New("no OCR engine configured")
)

// Status tags the outcome of an extraction.
type Status string

const (
	StatusOK          Status = "ok"
	StatusNoText      Status = "no_text"
	StatusUnsupported Status = "unsupported"
	StatusFailed      Status = "failed"
)

// Result is the outcome of extracting one file. It is always returned, never
// panicked: failures are carried in Status and Err.
type Result struct {
	Path   string
	Ext    string
	Format Format
	Status Status
	Text   string
	Err    error

	// Archive only: more supported members existed than were processed.
	Truncated bool
	Skipped   int
}

// OK reports whether Text holds extracted content.
func (r Result) OK() bool { return r.Status == StatusOK }

// Failed reports whether the result is unsupported or failed.
func (r Result) Failed() bool {
	return r.Status == StatusFailed || r.Status == StatusUnsupported
}

// Message renders the result as a single string. Failures carry an "Error: "
// prefix; an empty extraction renders the per-format notice.
func (r Result) Message() string {
	switch r.Status {
	case StatusOK:
		return r.Text
	case StatusNoText:
		return noTextMessage(r.Format)
	case StatusUnsupported:
		return fmt.Sprintf("Error: Unsupported file format '%s'", r.Ext)
	default:
		if errors.Is(r.Err, ErrNotFound) {
			return fmt.Sprintf("Error: File '%s' not found", r.Path)
		}
		if r.Err == nil {
			return "Error: extraction failed"
		}
		return "Error: " + r.Err.Error()
	}
}

func noTextMessage(f Format) string {
	switch f {
	case FormatImage:
		return "No text found in image"
	case FormatPDF:
		return "No text could be extracted from this PDF"
	case FormatWord:
		return "No text found in Word document"
	case FormatTabular:
		return "No text found in Excel file"
	case FormatArchive:
		return "No text could be extracted from files in ZIP archive"
	default:
		return "No text found"
	}
}

func ok(text string) Result { return Result{Status: StatusOK, Text: text} }

func noText() Result { return Result{Status: StatusNoText} }

func failed(format string, args ...any) Result {
	return Result{Status: StatusFailed, Err: fmt.Errorf(format, args...)}
}

// textOrEmpty returns an OK result for non-blank text, NoText otherwise.
func textOrEmpty(text string) Result {
	if isBlank(text) {
		return noText()
	}
	return ok(text)
}
