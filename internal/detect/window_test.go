package detect

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitWindows_NoLimit(t *testing.T) {
	got := splitWindows("a\n\nb", 0)
	if len(got) != 1 || got[0] != "a\n\nb" {
		t.Errorf("expected text unchanged, got %q", got)
	}
}

func TestSplitWindows_PacksParagraphs(t *testing.T) {
	got := splitWindows("aaa\n\nbbb\n\nccccccccc", 10)
	want := []string{"aaa\n\nbbb", "ccccccccc"}
	if len(got) != len(want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("window %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestSplitWindows_LongSentence(t *testing.T) {
	text := strings.Repeat("word ", 50)
	for _, w := range splitWindows(text, 32) {
		if len(w) > 32 {
			t.Errorf("window exceeds limit: %d", len(w))
		}
	}
}

func TestSplitWindows_MultiByteCut(t *testing.T) {
	text := strings.Repeat("é", 300)
	got := splitWindows(text, 101)
	if strings.Join(got, "") != text {
		t.Fatalf("windows lost text: %q", got)
	}
	for i, w := range got {
		if !utf8.ValidString(w) {
			t.Errorf("window %d is not valid UTF-8: %q", i, w)
		}
		if len(w) > 101 {
			t.Errorf("window %d exceeds limit: %d", i, len(w))
		}
	}
}

func TestSplitWindows_LimitBelowRuneSize(t *testing.T) {
	got := splitWindows("नमस्ते", 1)
	if strings.Join(got, "") != "नमस्ते" {
		t.Fatalf("expected every rune kept, got %q", got)
	}
	for i, w := range got {
		if !utf8.ValidString(w) {
			t.Errorf("window %d is not valid UTF-8: %q", i, w)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("One. Two! Three")
	if len(got) != 3 || got[1] != "Two!" {
		t.Errorf("unexpected sentences %q", got)
	}
}
