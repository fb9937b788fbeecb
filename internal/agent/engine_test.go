// internal/agent/engine_test.go
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nutrition-agent/internal/config"
	"nutrition-agent/internal/fdc"
	"nutrition-agent/internal/models"
)

// fakeCompleter routes on the system prompt so one fake can serve the
// classifier, the estimator and the formatter in a single turn.
type fakeCompleter struct {
	classifyReply string
	classifyErr   error
	estimateReply string
	estimateErr   error
	formatReply   string
	formatErr     error
}

func (f *fakeCompleter) Complete(_ context.Context, messages []models.Message) (string, error) {
	system := messages[0].Content
	switch {
	case strings.Contains(system, "Classify"):
		return f.classifyReply, f.classifyErr
	case strings.Contains(system, "Estimate"):
		return f.estimateReply, f.estimateErr
	default:
		return f.formatReply, f.formatErr
	}
}

type fakeSearcher struct {
	hits []fdc.Hit
	err  error
}

func (f *fakeSearcher) Search(_ context.Context, _ string) ([]fdc.Hit, error) {
	return f.hits, f.err
}

type fakeLedger struct {
	entries []*models.FoodLogEntry
	totals  *models.DailyTotals
	err     error
}

func (f *fakeLedger) WriteEntry(entry *models.FoodLogEntry) (*models.DailyTotals, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.entries = append(f.entries, entry)
	return f.totals, nil
}

func testEngine(c *fakeCompleter, s *fakeSearcher, l *fakeLedger) *Engine {
	return NewEngine(c, s, l, config.Default().Estimation, zap.NewNop())
}

func turnInput(message string) TurnInput {
	return TurnInput{
		UserID:    1,
		SessionID: "session-001",
		History:   []models.Message{{Role: "user", Content: message}},
	}
}

func eggsHit() fdc.Hit {
	return fdc.Hit{
		Food: models.ResolvedFood{
			ExternalID:      171287,
			Description:     "Egg, whole, cooked, hard-boiled",
			CaloriesPer100g: 155,
			ProteinG:        13,
			FatG:            11,
			CarbsG:          1.1,
		},
		Raw: json.RawMessage(`{"fdcId":171287}`),
	}
}

func TestRunLookupPath(t *testing.T) {
	completer := &fakeCompleter{
		classifyReply: `{"intent": "log_food", "extracted_food": "2 large eggs"}`,
		formatReply:   "Logged your eggs!",
	}
	searcher := &fakeSearcher{hits: []fdc.Hit{eggsHit()}}
	ledger := &fakeLedger{totals: &models.DailyTotals{
		UserID: 1, Date: "2026-08-29", TotalCalories: 155, EntriesCount: 1,
	}}

	tc := testEngine(completer, searcher, ledger).Run(context.Background(), turnInput("I ate 2 large eggs"))

	assert.Equal(t, models.IntentLogFood, tc.Intent)
	assert.Empty(t, tc.ErrorNote)

	require.NotNil(t, tc.Record)
	assert.Equal(t, models.SourceLookup, tc.Record.Source)
	assert.InDelta(t, 155, tc.Record.Calories, 1e-9)
	assert.InDelta(t, 13, tc.Record.ProteinG, 1e-9)
	assert.InDelta(t, 11, tc.Record.FatG, 1e-9)
	assert.InDelta(t, 1.1, tc.Record.CarbsG, 1e-9)
	assert.InDelta(t, 100, tc.Record.Quantity, 1e-9)
	assert.Equal(t, "g", tc.Record.Unit)

	require.Len(t, ledger.entries, 1)
	entry := ledger.entries[0]
	require.NotNil(t, entry.ExternalID)
	assert.Equal(t, 171287, *entry.ExternalID)
	assert.NotEmpty(t, entry.LogID)
	assert.Equal(t, `{"fdcId":171287}`, entry.RawPayload)

	require.NotNil(t, tc.DailyTotals)
	assert.InDelta(t, 155, tc.DailyTotals.TotalCalories, 1e-9)
	assert.Equal(t, 1, tc.DailyTotals.EntriesCount)

	require.NotEmpty(t, tc.History)
	last := tc.History[len(tc.History)-1]
	assert.Equal(t, "assistant", last.Role)
	assert.Equal(t, "Logged your eggs!", last.Content)
}

func TestRunLookupMissFallsBackToEstimation(t *testing.T) {
	completer := &fakeCompleter{
		classifyReply: `{"intent": "log_food", "extracted_food": "dragonfruit smoothie"}`,
		estimateReply: `{"food_description": "Dragonfruit smoothie", "quantity": 1, "unit": "glass", "calories": 180, "protein_g": 3, "fat_g": 1, "carbs_g": 40}`,
		formatReply:   "Logged your smoothie!",
	}
	searcher := &fakeSearcher{hits: nil}
	ledger := &fakeLedger{totals: &models.DailyTotals{UserID: 1, EntriesCount: 1, TotalCalories: 180}}

	tc := testEngine(completer, searcher, ledger).Run(context.Background(), turnInput("I had a dragonfruit smoothie"))

	require.NotNil(t, tc.Record)
	assert.Equal(t, models.SourceEstimation, tc.Record.Source)
	assert.Equal(t, "Dragonfruit smoothie", tc.Record.Description)
	assert.InDelta(t, 180, tc.Record.Calories, 1e-9)
	require.Len(t, ledger.entries, 1)
	assert.Nil(t, ledger.entries[0].ExternalID)
}

func TestRunEstimationFencedOutput(t *testing.T) {
	completer := &fakeCompleter{
		classifyReply: `{"intent": "log_food", "extracted_food": "mystery stew"}`,
		estimateReply: "```json\n{\"food_description\": \"Mystery stew\", \"quantity\": 1, \"unit\": \"bowl\", \"calories\": 320, \"protein_g\": 20, \"fat_g\": 12, \"carbs_g\": 30}\n```",
		formatReply:   "Logged.",
	}
	ledger := &fakeLedger{totals: &models.DailyTotals{EntriesCount: 1}}

	tc := testEngine(completer, &fakeSearcher{}, ledger).Run(context.Background(), turnInput("I had some stew"))

	require.NotNil(t, tc.Record)
	assert.Equal(t, "Mystery stew", tc.Record.Description)
	assert.InDelta(t, 320, tc.Record.Calories, 1e-9)
}

func TestRunEstimationUnparseableUsesPlaceholder(t *testing.T) {
	completer := &fakeCompleter{
		classifyReply: `{"intent": "log_food", "extracted_food": "dragonfruit smoothie"}`,
		estimateReply: "I'd guess that's about 180 calories, give or take.",
		formatReply:   "Logged an estimate.",
	}
	ledger := &fakeLedger{totals: &models.DailyTotals{EntriesCount: 1}}

	tc := testEngine(completer, &fakeSearcher{}, ledger).Run(context.Background(), turnInput("I had a dragonfruit smoothie"))

	require.NotNil(t, tc.Record)
	assert.Equal(t, models.SourceEstimation, tc.Record.Source)
	assert.Equal(t, "Estimated dragonfruit smoothie", tc.Record.Description)
	assert.InDelta(t, 100, tc.Record.Calories, 1e-9)
	assert.InDelta(t, 5, tc.Record.ProteinG, 1e-9)
	assert.InDelta(t, 2, tc.Record.FatG, 1e-9)
	assert.InDelta(t, 10, tc.Record.CarbsG, 1e-9)
	assert.InDelta(t, 1, tc.Record.Quantity, 1e-9)
	assert.Equal(t, "serving", tc.Record.Unit)
	require.Len(t, ledger.entries, 1)
}

func TestRunChatSkipsLedger(t *testing.T) {
	completer := &fakeCompleter{
		classifyReply: `{"intent": "chat"}`,
		formatReply:   "Hi there! Doing great.",
	}
	ledger := &fakeLedger{}

	tc := testEngine(completer, &fakeSearcher{}, ledger).Run(context.Background(), turnInput("Hello! How are you?"))

	assert.Equal(t, models.IntentChat, tc.Intent)
	assert.Empty(t, ledger.entries)
	assert.Nil(t, tc.DailyTotals)
	assert.Nil(t, tc.Record)
	assert.Equal(t, "Hi there! Doing great.", tc.History[len(tc.History)-1].Content)
}

func TestRunClassifierOutOfEnum(t *testing.T) {
	completer := &fakeCompleter{
		classifyReply: `{"intent": "order_pizza"}`,
		formatReply:   "Sorry, I lost track of that.",
	}
	ledger := &fakeLedger{}

	tc := testEngine(completer, &fakeSearcher{}, ledger).Run(context.Background(), turnInput("order_pizza please"))

	assert.Equal(t, models.IntentChat, tc.Intent)
	assert.NotEmpty(t, tc.ErrorNote)
	assert.Empty(t, ledger.entries)
}

func TestRunClassifierMalformed(t *testing.T) {
	completer := &fakeCompleter{
		classifyReply: "definitely not json",
		formatReply:   "Sorry about that.",
	}
	ledger := &fakeLedger{}

	tc := testEngine(completer, &fakeSearcher{}, ledger).Run(context.Background(), turnInput("hm"))

	assert.Equal(t, models.IntentChat, tc.Intent)
	assert.NotEmpty(t, tc.ErrorNote)
	assert.Empty(t, ledger.entries)
}

func TestRunClassifierCallFailure(t *testing.T) {
	completer := &fakeCompleter{
		classifyErr: errors.New("upstream timeout"),
		formatReply: "Sorry, I had trouble with that.",
	}
	ledger := &fakeLedger{}

	tc := testEngine(completer, &fakeSearcher{}, ledger).Run(context.Background(), turnInput("I ate an apple"))

	assert.Equal(t, models.IntentChat, tc.Intent)
	assert.NotEmpty(t, tc.ErrorNote)
	assert.Empty(t, ledger.entries)
	assert.NotEmpty(t, tc.History[len(tc.History)-1].Content)
}

func TestRunMissingUserID(t *testing.T) {
	completer := &fakeCompleter{formatReply: "Sorry, I don't know who you are yet."}
	ledger := &fakeLedger{}

	tc := testEngine(completer, &fakeSearcher{}, ledger).Run(context.Background(), TurnInput{
		SessionID: "session-002",
		History:   []models.Message{{Role: "user", Content: "I ate 2 large eggs"}},
	})

	assert.NotEmpty(t, tc.ErrorNote)
	assert.Empty(t, tc.Intent)
	assert.Empty(t, ledger.entries)
	assert.Equal(t, "assistant", tc.History[len(tc.History)-1].Role)
}

func TestRunLedgerFailureStillReplies(t *testing.T) {
	completer := &fakeCompleter{
		classifyReply: `{"intent": "log_food", "extracted_food": "2 large eggs"}`,
		formatReply:   "Sorry, I couldn't save that.",
	}
	ledger := &fakeLedger{err: errors.New("disk full")}

	tc := testEngine(completer, &fakeSearcher{hits: []fdc.Hit{eggsHit()}}, ledger).Run(context.Background(), turnInput("I ate 2 large eggs"))

	assert.NotEmpty(t, tc.ErrorNote)
	assert.Nil(t, tc.DailyTotals)
	require.NotNil(t, tc.Record)
	assert.Equal(t, "assistant", tc.History[len(tc.History)-1].Role)
}

func TestRunFormatterFailureUsesFallback(t *testing.T) {
	completer := &fakeCompleter{
		classifyReply: `{"intent": "chat"}`,
		formatErr:     errors.New("upstream down"),
	}

	tc := testEngine(completer, &fakeSearcher{}, &fakeLedger{}).Run(context.Background(), turnInput("Hello"))

	last := tc.History[len(tc.History)-1]
	assert.Equal(t, "assistant", last.Role)
	assert.NotEmpty(t, last.Content)
}
