// internal/agent/classify.go
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"nutrition-agent/internal/models"
)

const classifySystemPrompt = `You are a nutrition tracking assistant. Classify the user's message into exactly one intent:

- "log_food": the user mentions eating or drinking something (e.g. "I ate 2 slices of pizza", "had a latte")
- "query_history": the user asks about past consumption (e.g. "how many burgers did I have this week?")
- "get_totals": the user wants daily or weekly totals (e.g. "how many calories today?")
- "chat": greetings or anything else

Respond with ONLY a JSON object in this exact format:
{"intent": "log_food", "extracted_food": "2 large eggs"}

"extracted_food" is the food item with its quantity, only for log_food; use null otherwise.`

type routeDecision struct {
	Intent        string `json:"intent"`
	ExtractedFood string `json:"extracted_food"`
}

// analyzeRequest classifies the last user message. Malformed or
// out-of-enum output downgrades to chat with ErrorNote set; it is never
// guessed as log_food, since mis-routing into the write path is the
// costlier mistake.
func (e *Engine) analyzeRequest(ctx context.Context, tc *TurnContext) (Patch, outcome) {
	messages := []models.Message{
		{Role: "system", Content: classifySystemPrompt},
		{Role: "user", Content: tc.lastUserMessage()},
	}

	raw, err := e.completer.Complete(ctx, messages)
	if err != nil {
		e.logger.Warn("intent classification call failed", zap.Error(err))
		return Patch{
			Intent:    intentPtr(models.IntentChat),
			ErrorNote: strPtr(fmt.Sprintf("intent classification failed: %v", err)),
		}, outcomeIntentOther
	}

	var decision routeDecision
	if err := json.Unmarshal([]byte(extractJSON(raw)), &decision); err != nil {
		e.logger.Warn("intent classification returned malformed output", zap.Error(err))
		return Patch{
			Intent:    intentPtr(models.IntentChat),
			ErrorNote: strPtr("intent classification returned malformed output"),
		}, outcomeIntentOther
	}

	if !models.ValidIntent(decision.Intent) {
		e.logger.Warn("intent outside known enum", zap.String("intent", decision.Intent))
		return Patch{
			Intent:    intentPtr(models.IntentChat),
			ErrorNote: strPtr(fmt.Sprintf("unknown intent %q from classifier", decision.Intent)),
		}, outcomeIntentOther
	}

	intent := models.Intent(decision.Intent)
	patch := Patch{Intent: &intent}
	if intent == models.IntentLogFood {
		patch.ExtractedFood = strPtr(decision.ExtractedFood)
		return patch, outcomeIntentLogFood
	}
	return patch, outcomeIntentOther
}
