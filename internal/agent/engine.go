// internal/agent/engine.go
//
// The Engine sequences one user turn through intent analysis, nutrition
// resolution and the ledger write as an explicit finite-state machine:
//
//	analyzeRequest -- log_food --> searchFoodDB -- hit  --> calculateNutrition --+
//	      |                              |                                       |
//	      | other intents                +-------- miss --> estimateNutrition ---+
//	      |                                                                      v
//	      |                                                                updateLedger
//	      |                                                                      |
//	      +--------------------------------------------------------------> formatResponse -> terminal
//
// Every node returns a Patch plus a tagged outcome; the transition table
// maps (state, outcome) to the next state. The graph is acyclic and every
// path ends in formatResponse, so the caller always gets a reply.
package agent

import (
	"context"

	"go.uber.org/zap"

	"nutrition-agent/internal/config"
	"nutrition-agent/internal/fdc"
	"nutrition-agent/internal/llm"
	"nutrition-agent/internal/models"
)

// Ledger is the transactional write boundary the engine needs; the full
// read surface lives on storage.Store and is used by the server directly.
type Ledger interface {
	WriteEntry(entry *models.FoodLogEntry) (*models.DailyTotals, error)
}

type nodeState int

const (
	stateAnalyzeRequest nodeState = iota
	stateSearchFoodDB
	stateCalculateNutrition
	stateEstimateNutrition
	stateUpdateLedger
	stateFormatResponse
	stateTerminal
)

func (s nodeState) String() string {
	switch s {
	case stateAnalyzeRequest:
		return "analyze_request"
	case stateSearchFoodDB:
		return "search_food_db"
	case stateCalculateNutrition:
		return "calculate_nutrition"
	case stateEstimateNutrition:
		return "estimate_nutrition"
	case stateUpdateLedger:
		return "update_ledger"
	case stateFormatResponse:
		return "format_response"
	case stateTerminal:
		return "terminal"
	}
	return "unknown"
}

// outcome is a node's discriminated result tag. Linear nodes always emit
// outcomeAdvance; the two branching nodes emit their own pair.
type outcome int

const (
	outcomeAdvance outcome = iota
	outcomeIntentLogFood
	outcomeIntentOther
	outcomeLookupHit
	outcomeLookupMiss
)

var transitions = map[nodeState]map[outcome]nodeState{
	stateAnalyzeRequest: {
		outcomeIntentLogFood: stateSearchFoodDB,
		outcomeIntentOther:   stateFormatResponse,
	},
	stateSearchFoodDB: {
		outcomeLookupHit:  stateCalculateNutrition,
		outcomeLookupMiss: stateEstimateNutrition,
	},
	stateCalculateNutrition: {
		outcomeAdvance: stateUpdateLedger,
	},
	stateEstimateNutrition: {
		outcomeAdvance: stateUpdateLedger,
	},
	stateUpdateLedger: {
		outcomeAdvance: stateFormatResponse,
	},
	stateFormatResponse: {
		outcomeAdvance: stateTerminal,
	},
}

type Engine struct {
	completer  llm.Completer
	searcher   fdc.Searcher
	ledger     Ledger
	estimation config.EstimationConfig
	logger     *zap.Logger
}

func NewEngine(completer llm.Completer, searcher fdc.Searcher, ledger Ledger, estimation config.EstimationConfig, logger *zap.Logger) *Engine {
	return &Engine{
		completer:  completer,
		searcher:   searcher,
		ledger:     ledger,
		estimation: estimation,
		logger:     logger,
	}
}

// Run executes one turn and always returns a terminal context; step
// failures end up in ErrorNote and shape the reply, they never escape
// as errors. Callers wanting bounded latency cancel ctx.
func (e *Engine) Run(ctx context.Context, input TurnInput) *TurnContext {
	tc := &TurnContext{
		SessionID: input.SessionID,
		UserID:    input.UserID,
		History:   append([]models.Message(nil), input.History...),
	}

	cur := stateAnalyzeRequest
	if input.UserID == 0 {
		// No user context: no classification, no ledger attempt. The
		// formatter still produces a reply.
		tc.ErrorNote = "no user id supplied for this turn"
		cur = stateFormatResponse
	}

	for cur != stateTerminal {
		patch, out := e.step(ctx, cur, tc)
		tc.apply(patch)

		next, ok := transitions[cur][out]
		if !ok {
			e.logger.Error("no transition for outcome, forcing reply",
				zap.String("state", cur.String()))
			next = stateFormatResponse
			if cur == stateFormatResponse {
				next = stateTerminal
			}
		}
		cur = next
	}

	return tc
}

func (e *Engine) step(ctx context.Context, s nodeState, tc *TurnContext) (Patch, outcome) {
	switch s {
	case stateAnalyzeRequest:
		return e.analyzeRequest(ctx, tc)
	case stateSearchFoodDB:
		return e.searchFoodDB(ctx, tc)
	case stateCalculateNutrition:
		return e.calculateNutrition(tc)
	case stateEstimateNutrition:
		return e.estimateNutrition(ctx, tc)
	case stateUpdateLedger:
		return e.updateLedger(tc)
	case stateFormatResponse:
		return e.formatResponse(ctx, tc)
	}
	return Patch{}, outcomeAdvance
}
