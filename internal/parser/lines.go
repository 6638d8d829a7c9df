package parser

import "strings"

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }

// cleanLines trims every line and drops the blank ones.
func cleanLines(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// joinCells joins the trimmed non-blank cells with " | ".
func joinCells(cells []string) string {
	var out []string
	for _, c := range cells {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return strings.Join(out, " | ")
}
