package detect

import (
	"strings"
	"unicode/utf8"
)

// splitWindows breaks text into pieces of at most maxChars, preferring
// paragraph then sentence boundaries. maxChars <= 0 disables splitting.
// Windows do not overlap, so each span is reported at most once.
func splitWindows(text string, maxChars int) []string {
	if maxChars <= 0 || len(text) <= maxChars {
		return []string{text}
	}

	var result []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			result = append(result, current.String())
			current.Reset()
		}
	}

	for _, para := range splitByParagraphs(text) {
		if len(para) > maxChars {
			flush()
			result = append(result, splitBySentences(para, maxChars)...)
			continue
		}
		if current.Len() > 0 && current.Len()+2+len(para) > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()
	return result
}

// splitByParagraphs splits on double-newlines.
func splitByParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// splitBySentences packs sentences into windows. A single sentence longer
// than maxChars is cut at whitespace.
func splitBySentences(text string, maxChars int) []string {
	var result []string
	var current strings.Builder

	for _, sent := range splitSentences(text) {
		for len(sent) > maxChars {
			if current.Len() > 0 {
				result = append(result, current.String())
				current.Reset()
			}
			cut := strings.LastIndexByte(sent[:maxChars], ' ')
			if cut <= 0 {
				cut = runeCut(sent, maxChars)
			}
			result = append(result, strings.TrimSpace(sent[:cut]))
			sent = strings.TrimSpace(sent[cut:])
		}
		if sent == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+1+len(sent) > maxChars {
			result = append(result, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sent)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

// runeCut returns the largest rune boundary at or below n, and never less
// than the first rune so the caller always makes progress.
func runeCut(s string, n int) int {
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		_, size := utf8.DecodeRuneInString(s)
		cut = size
	}
	return cut
}

// splitSentences does basic sentence splitting.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && text[i+1] == ' ' {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, strings.TrimSpace(current.String()))
	}
	return sentences
}
