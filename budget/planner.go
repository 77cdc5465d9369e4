// Package budget computes per-model token budgets and plans which older
// turns to move out of the active context window.
//
// The planner is pure: it inspects a conversation and returns a plan.
// Applying the plan (actually moving messages into the archive) is the
// conversation manager's job.
package budget

import (
	"strings"

	"ember/model"
)

// DefaultContextLength is assumed for models the catalog does not know.
const DefaultContextLength = 4096

// tokensPerWord is the whitespace-word inflation factor used by
// EstimateTokens. Subword tokenizers emit roughly 1.3 tokens per English
// word; an empirical constant, not a tokenizer.
const tokensPerWord = 1.3

// Policy holds the archiving ratios. The defaults are tuned constants,
// kept as data so callers can adjust them without touching planner logic.
type Policy struct {
	// ResponseReserve is the fraction of the model's context length held
	// back for the reply; the rest is available for history.
	ResponseReserve float64

	// ArchiveTrigger: archiving starts once history usage exceeds this
	// fraction of the available (post-reserve) budget.
	ArchiveTrigger float64

	// RetainTarget: when archiving, keep the newest messages up to this
	// fraction of the available budget and archive everything older.
	RetainTarget float64
}

// DefaultPolicy reserves 30% for the response, triggers at 70% of the
// remainder and retains the newest 50% of it.
func DefaultPolicy() Policy {
	return Policy{
		ResponseReserve: 0.30,
		ArchiveTrigger:  0.70,
		RetainTarget:    0.50,
	}
}

// BudgetLookup resolves a model identifier to its context length. A false
// return means the model is unknown and the default applies.
type BudgetLookup func(modelID string) (int, bool)

// Planner decides when and what to archive for a conversation.
type Planner struct {
	lookup BudgetLookup
	policy Policy
}

// NewPlanner creates a planner backed by the given catalog lookup. A nil
// lookup means every model gets DefaultContextLength.
func NewPlanner(lookup BudgetLookup) *Planner {
	return &Planner{lookup: lookup, policy: DefaultPolicy()}
}

// NewPlannerWithPolicy creates a planner with custom ratios.
func NewPlannerWithPolicy(lookup BudgetLookup, policy Policy) *Planner {
	return &Planner{lookup: lookup, policy: policy}
}

// TokenBudget returns the model's full context length, falling back to
// DefaultContextLength for unknown models.
func (p *Planner) TokenBudget(modelID string) int {
	if p.lookup != nil {
		if n, ok := p.lookup(modelID); ok && n > 0 {
			return n
		}
	}
	return DefaultContextLength
}

// ResponseTokens returns the slice of the budget reserved for the reply.
// This is the token limit handed to the backend for generation.
func (p *Planner) ResponseTokens(modelID string) int {
	return int(float64(p.TokenBudget(modelID)) * p.policy.ResponseReserve)
}

// available returns the history portion of the budget.
func (p *Planner) available(modelID string) float64 {
	return float64(p.TokenBudget(modelID)) * (1 - p.policy.ResponseReserve)
}

// EstimateTokens approximates the token count of text as whitespace word
// count × 1.3, with a floor of 1.
func EstimateTokens(text string) int {
	n := int(float64(len(strings.Fields(text))) * tokensPerWord)
	if n < 1 {
		return 1
	}
	return n
}

// MessageTokens returns the message's recorded token count, estimating it
// when unset.
func MessageTokens(m model.Message) int {
	if m.TokenCount > 0 {
		return m.TokenCount
	}
	return EstimateTokens(m.Content)
}

// HistoryTokens sums the estimated tokens of the active window.
func (p *Planner) HistoryTokens(conv *model.Conversation) int {
	total := 0
	for _, m := range conv.Active {
		total += MessageTokens(m)
	}
	return total
}

// ShouldArchive reports whether the active history has grown past the
// archive trigger for the conversation's model.
func (p *Planner) ShouldArchive(conv *model.Conversation) bool {
	if len(conv.Active) == 0 {
		return false
	}
	threshold := p.available(conv.ModelID) * p.policy.ArchiveTrigger
	return float64(p.HistoryTokens(conv)) > threshold
}

// SelectMessagesToArchive walks the active window newest to oldest,
// keeping messages until the retain target is reached; everything older
// is selected for archival, oldest first.
//
// The newest message is always kept even if it alone exceeds the target,
// so archiving never empties the active window. A leading system message
// is never selected: it must stay pinned at the front of the context.
func (p *Planner) SelectMessagesToArchive(conv *model.Conversation) []model.Message {
	active := conv.Active
	if len(active) == 0 {
		return nil
	}

	oldest := 0
	if active[0].Role == model.RoleSystem {
		oldest = 1
	}
	if len(active) <= oldest+1 {
		return nil
	}

	target := p.available(conv.ModelID) * p.policy.RetainTarget
	acc := 0.0
	cut := len(active) // index of the oldest message that stays active
	for i := len(active) - 1; i >= oldest; i-- {
		acc += float64(MessageTokens(active[i]))
		cut = i
		if acc >= target {
			break
		}
	}

	if cut <= oldest {
		return nil
	}
	selected := make([]model.Message, cut-oldest)
	copy(selected, active[oldest:cut])
	return selected
}
