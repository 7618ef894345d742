package models

import "time"

// AnswerSource tells where an answer came from.
type AnswerSource string

const (
	SourceCache   AnswerSource = "cache"
	SourceGateway AnswerSource = "gateway"
)

// Interaction is one question/answer exchange.
type Interaction struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id,omitempty"`
	Question  string        `json:"question"`
	Key       string        `json:"key"`
	Answer    string        `json:"answer,omitempty"`
	Source    AnswerSource  `json:"source"`
	Provider  string        `json:"provider,omitempty"`
	Model     string        `json:"model,omitempty"`
	Latency   time.Duration `json:"latency"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// HistorySummary aggregates interactions for one day.
type HistorySummary struct {
	Day          string        `json:"day"`
	Questions    int           `json:"questions"`
	CacheHits    int           `json:"cache_hits"`
	GatewayCalls int           `json:"gateway_calls"`
	Failures     int           `json:"failures"`
	AvgLatency   time.Duration `json:"avg_latency"`
}

// Session groups interactions of a single chat run.
type Session struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	LastActivity time.Time `json:"last_activity"`
	Questions    int       `json:"questions"`
}
