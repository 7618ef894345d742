package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/akande-ai/akande/pkg/assistant"
	"github.com/akande-ai/akande/pkg/budget"
)

// Tool argument structs.

type askArgs struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

type historyArgs struct {
	SessionID string `json:"session_id"`
	Limit     int    `json:"limit"`
}

type summaryArgs struct {
	Since string `json:"since"`
}

const defaultHistoryLimit = 20

// toolHandler is a function that handles a tool call.
type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult

// toolHandlers maps tool names to their handlers.
var toolHandlers = map[string]toolHandler{
	"ask":             handleAsk,
	"cache_stats":     handleCacheStats,
	"history":         handleHistory,
	"history_summary": handleSummary,
	"sessions":        handleSessions,
	"budget":          handleBudget,
}

// allTools is the list of tool definitions exposed via tools/list.
var allTools = []ToolDefinition{
	{
		Name:        "ask",
		Description: "Ask Àkàndé a question. Repeated questions are answered from the cache.",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"question"},
			"properties": map[string]any{
				"question": map[string]any{
					"type":        "string",
					"description": "The question to answer",
				},
				"session_id": map[string]any{
					"type":        "string",
					"description": "Session to record the interaction under (optional)",
				},
			},
		},
	},
	{
		Name:        "cache_stats",
		Description: "Show answer cache statistics (entries, hits, misses, evictions, hit rate).",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "history",
		Description: "List recent questions and answers, newest first.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"session_id": map[string]any{
					"type":        "string",
					"description": "Filter by session ID (optional)",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of interactions (optional, defaults to 20)",
				},
			},
		},
	},
	{
		Name:        "history_summary",
		Description: "Show per-day question counts, cache hits, provider calls and failures.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"since": map[string]any{
					"type":        "string",
					"description": "Start date in YYYY-MM-DD format (optional, defaults to start of month)",
				},
			},
		},
	},
	{
		Name:        "sessions",
		Description: "List chat sessions.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Name:        "budget",
		Description: "Show provider call budget usage for all configured policies.",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
}

func handleAsk(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	var args askArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if s.asker == nil {
		return errorResult("Assistant is not configured.")
	}
	ans, err := s.asker.AskInSession(ctx, args.SessionID, args.Question)
	switch {
	case errors.Is(err, assistant.ErrEmptyQuestion):
		return errorResult("question is required")
	case errors.Is(err, budget.ErrBudgetExceeded):
		return errorResult("Budget exhausted: " + err.Error())
	case err != nil:
		return errorResult("Error answering question: " + err.Error())
	}
	return textResult(formatAnswer(ans))
}

func handleCacheStats(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.cache == nil {
		return textResult("Cache is not configured.")
	}
	stats, err := s.cache.Stats(ctx)
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	return textResult(formatCacheStats(stats))
}

func handleHistory(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.history == nil {
		return textResult("History is not configured.")
	}
	var args historyArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}
	if args.Limit <= 0 {
		args.Limit = defaultHistoryLimit
	}
	items, err := s.history.Recent(ctx, args.SessionID, args.Limit)
	if err != nil {
		return errorResult("Error fetching history: " + err.Error())
	}
	return textResult(formatInteractions(items))
}

func handleSummary(ctx context.Context, s *Server, rawArgs json.RawMessage) ToolCallResult {
	if s.history == nil {
		return textResult("History is not configured.")
	}
	var args summaryArgs
	if len(rawArgs) > 0 {
		_ = json.Unmarshal(rawArgs, &args)
	}

	since := beginningOfMonth()
	if args.Since != "" {
		t, err := time.Parse("2006-01-02", args.Since)
		if err != nil {
			return errorResult("Invalid since date (use YYYY-MM-DD): " + err.Error())
		}
		since = t
	}

	rows, err := s.history.Summary(ctx, since)
	if err != nil {
		return errorResult("Error fetching summary: " + err.Error())
	}
	return textResult(formatSummary(rows))
}

func handleSessions(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.history == nil {
		return textResult("History is not configured.")
	}
	sessions, err := s.history.ListSessions(ctx)
	if err != nil {
		return errorResult("Error fetching sessions: " + err.Error())
	}
	return textResult(formatSessions(sessions))
}

func handleBudget(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.budget == nil {
		return textResult("Budget enforcement is not configured.")
	}
	statuses, err := s.budget.Status(ctx)
	if err != nil {
		return errorResult("Error fetching budget status: " + err.Error())
	}
	return textResult(formatBudgetStatus(statuses))
}

func beginningOfMonth() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}
