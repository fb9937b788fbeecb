// internal/agent/resolve.go
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"nutrition-agent/internal/models"
)

// searchFoodDB queries the composition lookup service for the extracted
// food text and selects the first ranked hit. A transport failure is
// treated like an empty result: the estimation path can still serve the
// turn, so lookup problems never end it.
func (e *Engine) searchFoodDB(ctx context.Context, tc *TurnContext) (Patch, outcome) {
	hits, err := e.searcher.Search(ctx, tc.ExtractedFood)
	if err != nil {
		e.logger.Warn("food lookup failed, falling back to estimation",
			zap.String("query", tc.ExtractedFood),
			zap.Error(err))
		return Patch{}, outcomeLookupMiss
	}
	if len(hits) == 0 {
		e.logger.Debug("food lookup miss", zap.String("query", tc.ExtractedFood))
		return Patch{}, outcomeLookupMiss
	}

	top := hits[0]
	return Patch{
		ResolvedFood: &top.Food,
		RawLookup:    top.Raw,
	}, outcomeLookupHit
}

// calculateNutrition turns the lookup hit into the finalized record on
// the service's canonical 100 g reporting basis.
func (e *Engine) calculateNutrition(tc *TurnContext) (Patch, outcome) {
	food := tc.ResolvedFood
	record := &models.NutritionRecord{
		Description: food.Description,
		Quantity:    100,
		Unit:        "g",
		Calories:    food.CaloriesPer100g,
		ProteinG:    food.ProteinG,
		FatG:        food.FatG,
		CarbsG:      food.CarbsG,
		Source:      models.SourceLookup,
	}
	return Patch{Record: record}, outcomeAdvance
}

const estimateSystemPrompt = `You are a nutrition expert. Estimate the nutritional content of the food the user describes.

Respond with ONLY a JSON object with exactly these keys:
{"food_description": "...", "quantity": 1, "unit": "serving", "calories": 0, "protein_g": 0, "fat_g": 0, "carbs_g": 0}`

type estimationOutput struct {
	FoodDescription *string  `json:"food_description"`
	Quantity        *float64 `json:"quantity"`
	Unit            *string  `json:"unit"`
	Calories        *float64 `json:"calories"`
	ProteinG        *float64 `json:"protein_g"`
	FatG            *float64 `json:"fat_g"`
	CarbsG          *float64 `json:"carbs_g"`
}

func (o *estimationOutput) complete() bool {
	return o.FoodDescription != nil && o.Quantity != nil && o.Unit != nil &&
		o.Calories != nil && o.ProteinG != nil && o.FatG != nil && o.CarbsG != nil
}

// estimateNutrition asks the completion service for a structured guess.
// Unparseable output or missing keys substitute the configured
// placeholder record; logging never hard-fails just because estimation
// text was malformed.
func (e *Engine) estimateNutrition(ctx context.Context, tc *TurnContext) (Patch, outcome) {
	messages := []models.Message{
		{Role: "system", Content: estimateSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Estimate nutrition for: %s", tc.ExtractedFood)},
	}

	raw, err := e.completer.Complete(ctx, messages)
	if err != nil {
		e.logger.Warn("nutrition estimation call failed, using placeholder",
			zap.String("query", tc.ExtractedFood),
			zap.Error(err))
		return Patch{Record: e.placeholderRecord(tc.ExtractedFood)}, outcomeAdvance
	}

	var est estimationOutput
	if err := json.Unmarshal([]byte(extractJSON(raw)), &est); err != nil || !est.complete() {
		e.logger.Warn("nutrition estimation output unparseable, using placeholder",
			zap.String("query", tc.ExtractedFood))
		return Patch{Record: e.placeholderRecord(tc.ExtractedFood)}, outcomeAdvance
	}

	record := &models.NutritionRecord{
		Description: *est.FoodDescription,
		Quantity:    *est.Quantity,
		Unit:        *est.Unit,
		Calories:    *est.Calories,
		ProteinG:    *est.ProteinG,
		FatG:        *est.FatG,
		CarbsG:      *est.CarbsG,
		Source:      models.SourceEstimation,
	}
	return Patch{Record: record, RawLookup: []byte(raw)}, outcomeAdvance
}

func (e *Engine) placeholderRecord(query string) *models.NutritionRecord {
	return &models.NutritionRecord{
		Description: "Estimated " + query,
		Quantity:    e.estimation.Quantity,
		Unit:        e.estimation.Unit,
		Calories:    e.estimation.Calories,
		ProteinG:    e.estimation.ProteinG,
		FatG:        e.estimation.FatG,
		CarbsG:      e.estimation.CarbsG,
		Source:      models.SourceEstimation,
	}
}

// extractJSON pulls the JSON object out of model output that may be
// wrapped in a fenced code block or surrounded by prose. The first fenced
// block wins; otherwise the outermost brace pair is taken.
func extractJSON(s string) string {
	if idx := strings.Index(s, "```"); idx != -1 {
		rest := s[idx+3:]
		// tolerate a language tag after the opening fence
		if nl := strings.Index(rest, "\n"); nl != -1 && !strings.Contains(rest[:nl], "{") {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end != -1 {
			s = rest[:end]
		} else {
			s = rest
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end <= start {
		return s
	}
	return s[start : end+1]
}
