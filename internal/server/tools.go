// internal/server/tools.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"

	"nutrition-agent/internal/agent"
	"nutrition-agent/internal/models"
)

type ChatTurnParams struct {
	UserID    int64  `json:"user_id" description:"Identifier of the user this turn belongs to"`
	SessionID string `json:"session_id" description:"Opaque conversation session identifier"`
	Message   string `json:"message" description:"The user's natural-language message"`
}

type GetDailyTotalsParams struct {
	UserID int64  `json:"user_id" description:"Identifier of the user"`
	Date   string `json:"date,omitempty" description:"Day to summarize (YYYY-MM-DD, defaults to today UTC)"`
}

type QueryHistoryParams struct {
	UserID     int64  `json:"user_id" description:"Identifier of the user"`
	SearchTerm string `json:"search_term" description:"Substring to match against logged descriptions"`
	DaysBack   int    `json:"days_back,omitempty" description:"Trailing window in days (default 30)"`
}

type GetRangeSummaryParams struct {
	UserID    int64  `json:"user_id" description:"Identifier of the user"`
	StartDate string `json:"start_date" description:"Range start (YYYY-MM-DD, inclusive)"`
	EndDate   string `json:"end_date" description:"Range end (YYYY-MM-DD, inclusive)"`
}

// extractParams safely extracts parameters from the request arguments
func extractParams(req *protocol.CallToolRequest, target interface{}) error {
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Errorf("failed to marshal arguments: %w", err)
	}

	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return fmt.Errorf("failed to unmarshal parameters: %w", err)
	}

	return nil
}

// handleChatTurn runs one engine turn for the user's message.
func (s *Server) handleChatTurn(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params ChatTurnParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	if params.Message == "" {
		return nil, fmt.Errorf("message is required")
	}

	if params.UserID != 0 {
		if err := s.store.EnsureUser(params.UserID, ""); err != nil {
			return nil, fmt.Errorf("failed to bootstrap user: %w", err)
		}
	}

	tc := s.engine.Run(ctx, agent.TurnInput{
		UserID:    params.UserID,
		SessionID: params.SessionID,
		History:   []models.Message{{Role: "user", Content: params.Message}},
	})

	reply := ""
	if len(tc.History) > 0 {
		reply = tc.History[len(tc.History)-1].Content
	}

	result := map[string]interface{}{
		"reply":  reply,
		"intent": tc.Intent,
	}
	if tc.DailyTotals != nil {
		result["daily_totals"] = tc.DailyTotals
	}
	if tc.ErrorNote != "" {
		result["error_note"] = tc.ErrorNote
	}

	return s.createJSONResponse(result)
}

// handleGetDailyTotals returns the day's aggregate plus its entries. The
// two reads are independent point-in-time queries, issued concurrently
// and joined before the response is built.
func (s *Server) handleGetDailyTotals(req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params GetDailyTotalsParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.UserID == 0 {
		return nil, fmt.Errorf("user_id is required")
	}

	date := params.Date
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}

	type totalsResult struct {
		totals *models.DailyTotals
		err    error
	}
	totalsCh := make(chan totalsResult, 1)
	go func() {
		t, err := s.store.DailySummary(params.UserID, date)
		totalsCh <- totalsResult{t, err}
	}()

	entries, entriesErr := s.store.LogsByDate(params.UserID, date)
	tr := <-totalsCh

	if tr.err != nil {
		return nil, fmt.Errorf("failed to fetch daily totals: %w", tr.err)
	}
	if entriesErr != nil {
		return nil, fmt.Errorf("failed to fetch log entries: %w", entriesErr)
	}

	result := map[string]interface{}{
		"date":    date,
		"totals":  tr.totals,
		"entries": entries,
	}
	return s.createJSONResponse(result)
}

// handleQueryHistory searches logged descriptions in a trailing window.
func (s *Server) handleQueryHistory(req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params QueryHistoryParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.UserID == 0 {
		return nil, fmt.Errorf("user_id is required")
	}
	if params.SearchTerm == "" {
		return nil, fmt.Errorf("search_term is required")
	}
	if params.DaysBack <= 0 {
		params.DaysBack = 30
	}

	entries, err := s.store.SearchHistory(params.UserID, params.SearchTerm, params.DaysBack)
	if err != nil {
		return nil, fmt.Errorf("failed to search history: %w", err)
	}

	return s.createJSONResponse(entries)
}

// handleGetRangeSummary returns per-day aggregates for the range plus
// overall sums computed here.
func (s *Server) handleGetRangeSummary(req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params GetRangeSummaryParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if params.UserID == 0 {
		return nil, fmt.Errorf("user_id is required")
	}
	if params.StartDate == "" || params.EndDate == "" {
		return nil, fmt.Errorf("start_date and end_date are required")
	}

	days, err := s.store.RangeSummary(params.UserID, params.StartDate, params.EndDate)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch range summary: %w", err)
	}

	var calories, protein, fat, carbs float64
	for _, d := range days {
		calories += d.TotalCalories
		protein += d.TotalProteinG
		fat += d.TotalFatG
		carbs += d.TotalCarbsG
	}
	overall := map[string]interface{}{
		"calories":     calories,
		"protein_g":    protein,
		"fat_g":        fat,
		"carbs_g":      carbs,
		"days_tracked": len(days),
	}

	result := map[string]interface{}{
		"date_range":      map[string]string{"start": params.StartDate, "end": params.EndDate},
		"overall_totals":  overall,
		"daily_breakdown": days,
	}
	return s.createJSONResponse(result)
}
