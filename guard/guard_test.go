package guard

import (
	"fmt"
	"strings"
	"testing"
)

func TestLineRepeatStops(t *testing.T) {
	g := New("tell me a joke")

	// The same 10-character line five times in a row must trip the
	// duplicate-line check long before the hard length cap.
	var reason StopReason
	for i := 0; i < 5; i++ {
		reason = g.Feed("0123456789\n")
		if reason != StopNone {
			break
		}
	}

	if reason != StopLineRepeat {
		t.Fatalf("expected %s, got %q", StopLineRepeat, reason)
	}
	if len(g.Text()) >= 1200 {
		t.Errorf("line repeat fired only at %d chars, far too late", len(g.Text()))
	}
}

func TestShortLinesAreNotRepeatChecked(t *testing.T) {
	g := New("prompt")
	// "ok" is under the 8-character minimum; repeating it is fine.
	for i := 0; i < 10; i++ {
		if reason := g.Feed("ok\n"); reason != StopNone {
			t.Fatalf("short line tripped the guard: %s", reason)
		}
	}
}

func TestLengthLimit(t *testing.T) {
	// Unique, sentence-free prose: nothing but the hard cap applies.
	var b strings.Builder
	for i := 0; b.Len() < 1199; i++ {
		fmt.Fprintf(&b, "w%04d ", i)
	}
	prose := b.String()[:1199]

	g := New("prompt")
	if reason := g.Feed(prose); reason != StopNone {
		t.Fatalf("1199 chars of unique prose must not stop, got %s", reason)
	}
	if reason := g.Feed("x"); reason != StopLengthLimit {
		t.Fatalf("expected %s at 1200 chars, got %q", StopLengthLimit, reason)
	}
}

func TestPromptEchoStops(t *testing.T) {
	g := New("What is the capital of France")

	// Echoed twice: still fine.
	reason := g.Feed("what is the capital of france what is the capital of france ")
	if reason != StopNone {
		t.Fatalf("two echoes must not stop, got %s", reason)
	}
	// Third echo, with different casing and punctuation.
	if reason := g.Feed("What, is the CAPITAL of France"); reason != StopPromptRepeat {
		t.Fatalf("expected %s, got %q", StopPromptRepeat, reason)
	}
}

func TestSentenceLimit(t *testing.T) {
	g := New("prompt")

	short := "One. Two. Three."
	if reason := g.Feed(short); reason != StopNone {
		t.Fatalf("three sentences under 80 chars must not stop, got %s", reason)
	}

	g = New("prompt")
	long := "The first sentence rambles on for quite a while here. Then a second one follows. And a third!"
	if reason := g.Feed(long); reason != StopSentenceLimit {
		t.Fatalf("expected %s, got %q", StopSentenceLimit, reason)
	}
}

func TestStopReasonIsSticky(t *testing.T) {
	g := New("prompt")
	for i := 0; i < 5; i++ {
		g.Feed("abcdefghij\n")
	}
	if g.Stopped() != StopLineRepeat {
		t.Fatalf("setup failed: %q", g.Stopped())
	}
	if reason := g.Feed("more text"); reason != StopLineRepeat {
		t.Errorf("stop reason must be sticky, got %q", reason)
	}
}

func TestTextKeepsOriginalFormatting(t *testing.T) {
	g := New("prompt")
	g.Feed("Hello,  WORLD!\n")
	if g.Text() != "Hello,  WORLD!\n" {
		t.Errorf("Text() must keep original formatting, got %q", g.Text())
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello, World!", "hello world"},
		{"  spaced\t\nout  ", "spaced out"},
		{"MiXeD CaSe", "mixed case"},
		{"...", ""},
	}
	for _, tt := range tests {
		if got := normalize(tt.in); got != tt.want {
			t.Errorf("normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCountSentences(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"no terminator", 0},
		{"One. Two. Three.", 3},
		{"Really?! Yes...", 2},
	}
	for _, tt := range tests {
		if got := countSentences(tt.in); got != tt.want {
			t.Errorf("countSentences(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCustomLimits(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxLength = 10
	g := NewWithLimits("prompt", limits)

	if reason := g.Feed("0123456789"); reason != StopLengthLimit {
		t.Errorf("custom MaxLength not honored, got %q", reason)
	}
}
