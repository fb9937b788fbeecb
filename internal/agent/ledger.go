// internal/agent/ledger.go
package agent

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nutrition-agent/internal/models"
)

// updateLedger persists the resolved record as an immutable log row plus
// the atomic daily-totals increment. A write failure goes into ErrorNote;
// the turn still reaches the formatter so the user hears about it.
func (e *Engine) updateLedger(tc *TurnContext) (Patch, outcome) {
	record := tc.Record
	now := time.Now().UTC()

	entry := &models.FoodLogEntry{
		LogID:       uuid.New().String(),
		UserID:      tc.UserID,
		Timestamp:   now,
		Date:        now.Format("2006-01-02"),
		Description: record.Description,
		Quantity:    record.Quantity,
		Unit:        record.Unit,
		Calories:    record.Calories,
		ProteinG:    record.ProteinG,
		FatG:        record.FatG,
		CarbsG:      record.CarbsG,
		Source:      record.Source,
		RawPayload:  string(tc.rawLookup),
	}
	if tc.ResolvedFood != nil && record.Source == models.SourceLookup {
		id := tc.ResolvedFood.ExternalID
		entry.ExternalID = &id
	}

	totals, err := e.ledger.WriteEntry(entry)
	if err != nil {
		e.logger.Error("ledger write failed",
			zap.Int64("user_id", tc.UserID),
			zap.Error(err))
		return Patch{
			ErrorNote: strPtr(fmt.Sprintf("could not save the food log: %v", err)),
		}, outcomeAdvance
	}

	e.logger.Info("food logged",
		zap.Int64("user_id", tc.UserID),
		zap.String("log_id", entry.LogID),
		zap.String("source", string(record.Source)),
		zap.Float64("calories", record.Calories))

	return Patch{DailyTotals: totals}, outcomeAdvance
}
