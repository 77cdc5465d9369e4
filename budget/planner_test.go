package budget

import (
	"fmt"
	"testing"

	"ember/model"
)

func lookupFor(budgets map[string]int) BudgetLookup {
	return func(id string) (int, bool) {
		n, ok := budgets[id]
		return n, ok
	}
}

func userMsg(tokens int) model.Message {
	m := model.NewMessage(model.RoleUser, "x")
	m.TokenCount = tokens
	return m
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 1},
		{"whitespace only", "   \n\t ", 1},
		{"one word", "hello", 1},
		{"ten words", "one two three four five six seven eight nine ten", 13},
		{"collapses runs of whitespace", "a  b\n\nc", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTokens(tt.text); got != tt.want {
				t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestTokenBudgetFallsBackToDefault(t *testing.T) {
	p := NewPlanner(lookupFor(map[string]int{"known": 8192}))

	if got := p.TokenBudget("known"); got != 8192 {
		t.Errorf("known model budget = %d, want 8192", got)
	}
	if got := p.TokenBudget("mystery"); got != DefaultContextLength {
		t.Errorf("unknown model budget = %d, want %d", got, DefaultContextLength)
	}

	nilLookup := NewPlanner(nil)
	if got := nilLookup.TokenBudget("anything"); got != DefaultContextLength {
		t.Errorf("nil lookup budget = %d, want %d", got, DefaultContextLength)
	}
}

func TestResponseTokens(t *testing.T) {
	p := NewPlanner(nil)
	// 30% of 4096
	if got := p.ResponseTokens("anything"); got != 1228 {
		t.Errorf("ResponseTokens = %d, want 1228", got)
	}
}

// With a 4096 budget, history is 4096×0.70 and the archive trigger is 70%
// of that: just over 2007 estimated tokens.
func TestShouldArchiveBoundary(t *testing.T) {
	p := NewPlanner(nil)

	mkConv := func(tokens int) *model.Conversation {
		conv := model.NewConversation("default-model")
		conv.Append(userMsg(tokens))
		return conv
	}

	if p.ShouldArchive(mkConv(2007)) {
		t.Error("usage at the threshold must not trigger archiving")
	}
	if !p.ShouldArchive(mkConv(2008)) {
		t.Error("usage just past the threshold must trigger archiving")
	}
	if p.ShouldArchive(model.NewConversation("default-model")) {
		t.Error("empty conversation must never trigger archiving")
	}
}

func TestSelectMessagesToArchiveKeepsNewest(t *testing.T) {
	// Budget 100: available 70, retain target 35.
	p := NewPlanner(lookupFor(map[string]int{"tiny": 100}))
	conv := model.NewConversation("tiny")
	for i := 0; i < 6; i++ {
		conv.Append(userMsg(20))
	}

	selected := p.SelectMessagesToArchive(conv)

	// Newest-first accumulation: 20 + 20 = 40 ≥ 35, so the newest two stay
	// and the oldest four go.
	if len(selected) != 4 {
		t.Fatalf("expected 4 messages selected, got %d", len(selected))
	}
	for i, m := range selected {
		if m.ID != conv.Active[i].ID {
			t.Errorf("selected[%d] is not the %d-th oldest active message", i, i)
		}
	}
}

func TestSelectMessagesNeverEmptiesActive(t *testing.T) {
	p := NewPlanner(lookupFor(map[string]int{"tiny": 100}))
	conv := model.NewConversation("tiny")
	// A single huge message: still kept, no empty-history state.
	conv.Append(userMsg(500))

	if selected := p.SelectMessagesToArchive(conv); len(selected) != 0 {
		t.Errorf("sole message must never be archived, got %d selected", len(selected))
	}

	conv.Append(userMsg(500))
	selected := p.SelectMessagesToArchive(conv)
	if len(selected) != 1 {
		t.Fatalf("expected only the older message selected, got %d", len(selected))
	}
	if selected[0].ID != conv.Active[0].ID {
		t.Error("the newest message must survive archiving")
	}
}

func TestSelectMessagesSkipsSystemPrompt(t *testing.T) {
	p := NewPlanner(lookupFor(map[string]int{"tiny": 100}))
	conv := model.NewConversation("tiny")
	sys := model.NewMessage(model.RoleSystem, "you are terse")
	sys.TokenCount = 5
	conv.Append(sys)
	for i := 0; i < 6; i++ {
		conv.Append(userMsg(20))
	}

	for _, m := range p.SelectMessagesToArchive(conv) {
		if m.Role == model.RoleSystem {
			t.Fatal("system prompt must never be selected for archival")
		}
	}
}

func TestCustomPolicy(t *testing.T) {
	policy := Policy{ResponseReserve: 0.5, ArchiveTrigger: 0.5, RetainTarget: 0.5}
	p := NewPlannerWithPolicy(lookupFor(map[string]int{"m": 1000}), policy)

	conv := model.NewConversation("m")
	conv.Append(userMsg(251)) // available 500, trigger 250
	if !p.ShouldArchive(conv) {
		t.Error("custom trigger ratio not honored")
	}
}

func TestHistoryTokensEstimatesWhenUnset(t *testing.T) {
	p := NewPlanner(nil)
	conv := model.NewConversation("m")
	conv.Append(model.NewMessage(model.RoleUser, "one two three four")) // no TokenCount

	want := EstimateTokens("one two three four")
	if got := p.HistoryTokens(conv); got != want {
		t.Errorf("HistoryTokens = %d, want %d", got, want)
	}
}

func ExampleEstimateTokens() {
	fmt.Println(EstimateTokens("how tall is the eiffel tower"))
	// Output: 7
}
