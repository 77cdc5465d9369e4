// Package guard implements a streaming-time safety net over generated
// text. Small local models, the container-backed ones especially, will
// happily loop forever or re-echo the prompt when no hard stopping
// criterion exists; the guard watches the stream incrementally and tells
// the caller when to stop consuming.
package guard

import (
	"strings"
	"unicode"
)

// StopReason identifies which check terminated a stream. Empty means the
// stream was not stopped by the guard.
type StopReason string

const (
	StopNone          StopReason = ""
	StopPromptRepeat  StopReason = "promptRepeat"
	StopLineRepeat    StopReason = "lineRepeat"
	StopSentenceLimit StopReason = "sentenceLimit"
	StopLengthLimit   StopReason = "lengthLimit"
)

// Limits are the guard thresholds. They are empirically tuned policy,
// not load-bearing correctness constants.
type Limits struct {
	PromptEchoes   int // normalized prompt occurrences that count as echo looping
	LineRepeats    int // consecutive identical trailing lines
	MinRepeatLine  int // minimum line length considered for repeat detection
	MaxSentences   int // sentence count cap
	SentenceMinLen int // sentence cap only applies past this many characters
	MaxLength      int // hard cap on accumulated characters
}

// DefaultLimits returns the tuned thresholds observed to catch misbehaving
// local models: 3 prompt echoes, 4 duplicate lines, 3 sentences past 80
// characters, 1200 characters hard stop.
func DefaultLimits() Limits {
	return Limits{
		PromptEchoes:   3,
		LineRepeats:    4,
		MinRepeatLine:  8,
		MaxSentences:   3,
		SentenceMinLen: 80,
		MaxLength:      1200,
	}
}

// Guard accumulates streamed chunks and checks stop conditions after each
// increment. Instantiate one per generation request; it is not reusable
// and not safe for concurrent use.
type Guard struct {
	limits  Limits
	prompt  string // normalized
	buf     strings.Builder
	stopped StopReason
}

// New creates a guard for one generation of a reply to prompt.
func New(prompt string) *Guard {
	return NewWithLimits(prompt, DefaultLimits())
}

// NewWithLimits creates a guard with custom thresholds.
func NewWithLimits(prompt string, limits Limits) *Guard {
	return &Guard{
		limits: limits,
		prompt: normalize(prompt),
	}
}

// Feed appends one streamed chunk and returns the stop reason, if any.
// Once a reason is returned every later call returns the same reason;
// the first match wins.
func (g *Guard) Feed(chunk string) StopReason {
	if g.stopped != StopNone {
		return g.stopped
	}
	g.buf.WriteString(chunk)
	g.stopped = g.check()
	return g.stopped
}

// Text returns the accumulated output with its original formatting.
// Normalization is for comparison only; the canonical response text is
// never rewritten.
func (g *Guard) Text() string {
	return g.buf.String()
}

// Stopped returns the recorded stop reason, if any.
func (g *Guard) Stopped() StopReason {
	return g.stopped
}

// check evaluates the stop conditions in priority order.
func (g *Guard) check() StopReason {
	text := g.buf.String()

	if g.prompt != "" && strings.Count(normalize(text), g.prompt) >= g.limits.PromptEchoes {
		return StopPromptRepeat
	}
	if g.lineRepeats(text) {
		return StopLineRepeat
	}
	if len(text) > g.limits.SentenceMinLen && countSentences(text) >= g.limits.MaxSentences {
		return StopSentenceLimit
	}
	if len(text) >= g.limits.MaxLength {
		return StopLengthLimit
	}
	return StopNone
}

// lineRepeats reports whether the last non-empty emitted line repeats
// identically enough times in a row.
func (g *Guard) lineRepeats(text string) bool {
	lines := strings.Split(text, "\n")

	// Walk back past trailing empties to the last non-empty line.
	i := len(lines) - 1
	for i >= 0 && strings.TrimSpace(lines[i]) == "" {
		i--
	}
	if i < 0 {
		return false
	}
	last := lines[i]
	if len(last) < g.limits.MinRepeatLine {
		return false
	}

	run := 0
	for ; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		if lines[i] != last {
			break
		}
		run++
	}
	return run >= g.limits.LineRepeats
}

// normalize lowercases, strips punctuation and collapses whitespace so
// superficially different echoes of the same text compare equal.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true // swallow leading whitespace
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsSpace(r):
			if !space {
				b.WriteRune(' ')
				space = true
			}
		case unicode.IsPunct(r):
			// dropped
		default:
			b.WriteRune(r)
			space = false
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// countSentences splits on terminal punctuation. Consecutive terminators
// ("?!", "...") count once.
func countSentences(s string) int {
	n := 0
	inSentence := false
	for _, r := range s {
		switch r {
		case '.', '!', '?':
			if inSentence {
				n++
				inSentence = false
			}
		default:
			if !unicode.IsSpace(r) {
				inSentence = true
			}
		}
	}
	return n
}
