// internal/agent/state.go
package agent

import (
	"nutrition-agent/internal/models"
)

// TurnInput is what the upstream caller supplies for one turn.
type TurnInput struct {
	UserID    int64
	SessionID string
	History   []models.Message
}

// TurnContext is the per-turn mutable state. It is owned by a single
// Engine.Run invocation, mutated only by applying node patches, and
// returned as-is when the turn reaches the terminal state.
type TurnContext struct {
	SessionID string
	UserID    int64

	// History is append-only; the last entry after a completed turn is
	// the assistant's reply.
	History []models.Message

	Intent        models.Intent
	ExtractedFood string
	ResolvedFood  *models.ResolvedFood
	Record        *models.NutritionRecord
	DailyTotals   *models.DailyTotals
	ErrorNote     string

	// rawLookup carries the lookup service's payload for the selected hit
	// so the ledger row can persist it verbatim.
	rawLookup []byte
}

// Patch is a node's partial update to the turn context. Nil fields leave
// the corresponding context field untouched; the merge is field-wise, so
// nodes stay pure and never hand each other shared mutable state.
type Patch struct {
	Intent        *models.Intent
	ExtractedFood *string
	ResolvedFood  *models.ResolvedFood
	Record        *models.NutritionRecord
	DailyTotals   *models.DailyTotals
	ErrorNote     *string
	RawLookup     []byte

	// Reply, when set, is appended to History as an assistant message.
	Reply *string
}

func (tc *TurnContext) apply(p Patch) {
	// Intent is set once by the classifier and never overwritten.
	if p.Intent != nil && tc.Intent == "" {
		tc.Intent = *p.Intent
	}
	if p.ExtractedFood != nil {
		tc.ExtractedFood = *p.ExtractedFood
	}
	if p.ResolvedFood != nil {
		tc.ResolvedFood = p.ResolvedFood
	}
	if p.Record != nil {
		tc.Record = p.Record
	}
	if p.DailyTotals != nil {
		tc.DailyTotals = p.DailyTotals
	}
	if p.ErrorNote != nil {
		tc.ErrorNote = *p.ErrorNote
	}
	if p.RawLookup != nil {
		tc.rawLookup = p.RawLookup
	}
	if p.Reply != nil {
		tc.History = append(tc.History, models.Message{Role: "assistant", Content: *p.Reply})
	}
}

// lastUserMessage returns the content of the most recent user-role entry.
func (tc *TurnContext) lastUserMessage() string {
	for i := len(tc.History) - 1; i >= 0; i-- {
		if tc.History[i].Role == "user" {
			return tc.History[i].Content
		}
	}
	return ""
}

func intentPtr(i models.Intent) *models.Intent { return &i }

func strPtr(s string) *string { return &s }
