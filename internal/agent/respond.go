// internal/agent/respond.go
package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"nutrition-agent/internal/models"
)

const respondSystemPrompt = `You are a friendly nutrition tracking assistant. Write a short, natural reply to the user based on the outcome summary you are given. One or two sentences, no JSON, no markdown.`

// formatResponse phrases the turn's outcome through the completion
// service and appends the reply to the history. If the completion call
// itself fails, a deterministic fallback keeps the contract that the
// user always gets a reply.
func (e *Engine) formatResponse(ctx context.Context, tc *TurnContext) (Patch, outcome) {
	summary := e.outcomeSummary(tc)

	messages := []models.Message{
		{Role: "system", Content: respondSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("User said: %q\nOutcome: %s\nWrite the reply.", tc.lastUserMessage(), summary)},
	}

	reply, err := e.completer.Complete(ctx, messages)
	if err != nil || strings.TrimSpace(reply) == "" {
		e.logger.Warn("response phrasing failed, using fallback", zap.Error(err))
		reply = e.fallbackReply(tc)
	}

	return Patch{Reply: strPtr(strings.TrimSpace(reply))}, outcomeAdvance
}

// outcomeSummary flattens whichever context fields are populated into a
// prompt-friendly description of what happened this turn.
func (e *Engine) outcomeSummary(tc *TurnContext) string {
	var parts []string

	if tc.ErrorNote != "" {
		parts = append(parts, fmt.Sprintf("something went wrong: %s; apologize briefly", tc.ErrorNote))
	}
	if tc.Record != nil {
		parts = append(parts, fmt.Sprintf(
			"logged %s (%.0f %s): %.0f kcal, %.1f g protein, %.1f g fat, %.1f g carbs (%s data)",
			tc.Record.Description, tc.Record.Quantity, tc.Record.Unit,
			tc.Record.Calories, tc.Record.ProteinG, tc.Record.FatG, tc.Record.CarbsG,
			tc.Record.Source))
	}
	if tc.DailyTotals != nil {
		parts = append(parts, fmt.Sprintf(
			"today's running totals: %.0f kcal over %d entries",
			tc.DailyTotals.TotalCalories, tc.DailyTotals.EntriesCount))
	}
	if len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("general %s conversation, respond helpfully", tc.Intent))
	}

	return strings.Join(parts, "; ")
}

func (e *Engine) fallbackReply(tc *TurnContext) string {
	switch {
	case tc.ErrorNote != "":
		return "Sorry, something went wrong on my end handling that. Please try again."
	case tc.Record != nil && tc.DailyTotals != nil:
		return fmt.Sprintf("Logged %s: %.0f kcal. That puts you at %.0f kcal today across %d entries.",
			tc.Record.Description, tc.Record.Calories,
			tc.DailyTotals.TotalCalories, tc.DailyTotals.EntriesCount)
	case tc.Record != nil:
		return fmt.Sprintf("Logged %s: %.0f kcal.", tc.Record.Description, tc.Record.Calories)
	default:
		return "Got it! Let me know what you eat and I'll keep track of it."
	}
}
