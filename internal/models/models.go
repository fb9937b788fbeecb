// internal/models/models.go
package models

import (
	"time"
)

// Intent is the classified purpose of a single user message.
type Intent string

const (
	IntentLogFood      Intent = "log_food"
	IntentQueryHistory Intent = "query_history"
	IntentGetTotals    Intent = "get_totals"
	IntentChat         Intent = "chat"
)

// ValidIntent reports whether s is one of the four known intents.
func ValidIntent(s string) bool {
	switch Intent(s) {
	case IntentLogFood, IntentQueryHistory, IntentGetTotals, IntentChat:
		return true
	}
	return false
}

// SourceKind distinguishes measured lookup data from model-estimated data.
type SourceKind string

const (
	SourceLookup     SourceKind = "lookup"
	SourceEstimation SourceKind = "estimation"
)

// Message is one role-tagged entry in a conversation history.
type Message struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// ResolvedFood is the first ranked hit from the composition lookup service,
// nutrients normalized to the 100 g reporting basis.
type ResolvedFood struct {
	ExternalID      int     `json:"external_id"`
	Description     string  `json:"description"`
	CaloriesPer100g float64 `json:"calories_per_100g"`
	ProteinG        float64 `json:"protein_g"`
	FatG            float64 `json:"fat_g"`
	CarbsG          float64 `json:"carbs_g"`
}

// NutritionRecord is the finalized outcome of nutrition resolution,
// produced by exactly one of the lookup and estimation paths.
type NutritionRecord struct {
	Description string     `json:"description"`
	Quantity    float64    `json:"quantity"`
	Unit        string     `json:"unit"`
	Calories    float64    `json:"calories"`
	ProteinG    float64    `json:"protein_g"`
	FatG        float64    `json:"fat_g"`
	CarbsG      float64    `json:"carbs_g"`
	Source      SourceKind `json:"source"`
}

// FoodLogEntry is one durable, append-only row in the food log.
type FoodLogEntry struct {
	LogID       string     `json:"log_id"`
	UserID      int64      `json:"user_id"`
	Timestamp   time.Time  `json:"timestamp"`
	Date        string     `json:"date"` // YYYY-MM-DD, UTC
	Description string     `json:"description"`
	ExternalID  *int       `json:"external_id,omitempty"` // nil for estimations
	Quantity    float64    `json:"quantity"`
	Unit        string     `json:"unit"`
	Calories    float64    `json:"calories"`
	ProteinG    float64    `json:"protein_g"`
	FatG        float64    `json:"fat_g"`
	CarbsG      float64    `json:"carbs_g"`
	Source      SourceKind `json:"source"`
	RawPayload  string     `json:"raw_payload,omitempty"`
}

// DailyTotals is the running per-user-per-day aggregate. It always equals
// the sum of the day's FoodLogEntry rows; the two are written in the same
// transaction.
type DailyTotals struct {
	UserID        int64     `json:"user_id"`
	Date          string    `json:"date"`
	TotalCalories float64   `json:"total_calories"`
	TotalProteinG float64   `json:"total_protein_g"`
	TotalFatG     float64   `json:"total_fat_g"`
	TotalCarbsG   float64   `json:"total_carbs_g"`
	EntriesCount  int       `json:"entries_count"`
	LastUpdated   time.Time `json:"last_updated"`
}
