package detect

import (
	"strings"

	"github.com/NarendraPati1/deIdentifier/internal/labels"
)

// ValidateEntity reports whether e is usable for set at threshold, trimming
// its text in place.
func ValidateEntity(e *Entity, set labels.Set, threshold float64) bool {
	if e == nil {
		return false
	}
	e.Text = strings.TrimSpace(e.Text)
	if e.Text == "" || len(e.Text) > 500 {
		return false
	}
	if !set.Contains(e.Label) {
		return false
	}
	if e.Score < threshold || e.Score > 1.0 {
		return false
	}
	return true
}
