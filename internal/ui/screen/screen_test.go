package screen

import (
	"testing"

	"asmview/internal/listing"
)

func TestFontUnit(t *testing.T) {
	w, h := New().FontUnit()
	if w != 1 || h != 1 {
		t.Errorf("FontUnit() = (%v, %v), want (1, 1)", w, h)
	}
}

func TestLinesPlain(t *testing.T) {
	s := New()
	s.Draw(listing.Command{X: 0, Y: 0, Style: "address_fg", Text: "text:00401000"})
	s.Draw(listing.Command{X: 15, Y: 0, Style: "", Text: "mov "})
	s.Draw(listing.Command{X: 19, Y: 0, Style: "register_fg", Text: "eax"})
	s.Draw(listing.Command{X: 0, Y: 1, Style: "segment_fg", Text: "segment 'text'"})

	lines := s.Lines(false)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0] != "text:00401000  mov eax" {
		t.Errorf("line 0 = %q", lines[0])
	}
	if lines[1] != "segment 'text'" {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestGapRowsStayEmpty(t *testing.T) {
	s := New()
	s.Draw(listing.Command{X: 0, Y: 0, Text: "first"})
	s.Draw(listing.Command{X: 0, Y: 2, Text: "third"})

	lines := s.Lines(false)
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if lines[1] != "" {
		t.Errorf("gap row = %q, want empty", lines[1])
	}
}

func TestLaterDrawsWin(t *testing.T) {
	s := New()
	s.Draw(listing.Command{X: 0, Y: 0, Text: "aaaaaa"})
	s.Draw(listing.Command{X: 2, Y: 0, Text: "bb"})

	if got := s.Lines(false)[0]; got != "aabbaa" {
		t.Errorf("line = %q, want %q", got, "aabbaa")
	}
}

func TestReset(t *testing.T) {
	s := New()
	s.Draw(listing.Command{X: 0, Y: 0, Text: "x"})
	s.Reset()
	if got := s.Lines(false); got != nil {
		t.Errorf("lines after reset = %v, want nil", got)
	}
}

func TestColoredKeepsPlainTextOrder(t *testing.T) {
	s := New()
	s.Draw(listing.Command{X: 0, Y: 0, Style: "comment_fg", Text: "# hint"})

	colored := s.Lines(true)[0]
	if colored == "" {
		t.Fatal("colored line is empty")
	}
	// Styling never changes the visible text, only wraps it.
	if !containsSubsequence(colored, "# hint") {
		t.Errorf("colored line %q lost its text", colored)
	}
}

func containsSubsequence(s, sub string) bool {
	i := 0
	for _, r := range s {
		if i < len(sub) && byte(r) == sub[i] {
			i++
		}
	}
	return i == len(sub)
}
