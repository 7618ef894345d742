package mcp

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/akande-ai/akande/pkg/assistant"
	"github.com/akande-ai/akande/pkg/models"
)

func formatAnswer(ans assistant.Answer) string {
	var b strings.Builder
	b.WriteString(ans.Text)
	b.WriteString("\n\n")
	if ans.Cached() {
		b.WriteString("(answered from cache)")
	} else {
		fmt.Fprintf(&b, "(answered by %s in %s)", ans.Provider, ans.Latency.Round(time.Millisecond))
	}
	return b.String()
}

// formatCacheStats formats cache stats as text.
func formatCacheStats(stats models.CacheStats) string {
	return fmt.Sprintf("Cache Statistics\n"+
		"  Entries:   %d\n"+
		"  Size:      %s\n"+
		"  Hits:      %d\n"+
		"  Misses:    %d\n"+
		"  Evictions: %d\n"+
		"  Hit Rate:  %.1f%%\n",
		stats.Entries, humanize.Bytes(uint64(stats.SizeBytes)),
		stats.Hits, stats.Misses, stats.Evictions, stats.HitRate())
}

// formatInteractions formats interactions as a text table.
func formatInteractions(items []models.Interaction) string {
	if len(items) == 0 {
		return "No interactions found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-8s %-40s %s\n", "Time", "Source", "Question", "Answer")
	b.WriteString(strings.Repeat("-", 100) + "\n")
	for _, it := range items {
		answer := it.Answer
		if it.Error != "" {
			answer = "error: " + it.Error
		}
		fmt.Fprintf(&b, "%-20s %-8s %-40s %s\n",
			it.CreatedAt.Format("2006-01-02 15:04:05"),
			it.Source, truncate(it.Question, 40), truncate(answer, 60))
	}
	return b.String()
}

// formatSummary formats per-day summaries as a text table.
func formatSummary(rows []models.HistorySummary) string {
	if len(rows) == 0 {
		return "No interactions found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %10s %10s %10s %10s %12s\n",
		"Day", "Questions", "Cache", "Provider", "Failures", "Avg Latency")
	b.WriteString(strings.Repeat("-", 70) + "\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-12s %10d %10d %10d %10d %12s\n",
			r.Day, r.Questions, r.CacheHits, r.GatewayCalls, r.Failures, r.AvgLatency.Round(time.Millisecond))
	}
	return b.String()
}

// formatSessions formats sessions as a text table.
func formatSessions(sessions []models.Session) string {
	if len(sessions) == 0 {
		return "No sessions found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-38s %-20s %-20s %10s\n",
		"Session ID", "Started", "Last Activity", "Questions")
	b.WriteString(strings.Repeat("-", 91) + "\n")
	for _, s := range sessions {
		fmt.Fprintf(&b, "%-38s %-20s %-20s %10d\n",
			s.ID,
			s.StartedAt.Format("2006-01-02 15:04:05"),
			s.LastActivity.Format("2006-01-02 15:04:05"),
			s.Questions)
	}
	return b.String()
}

// formatBudgetStatus formats budget statuses as a text table.
func formatBudgetStatus(statuses []models.BudgetStatus) string {
	if len(statuses) == 0 {
		return "No budget policies found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-8s %10s %10s %10s %6s\n",
		"Provider", "Period", "Max Calls", "Used", "Remaining", "Usage%")
	b.WriteString(strings.Repeat("-", 69) + "\n")
	for _, s := range statuses {
		provider := s.Policy.Provider
		if provider == "" {
			provider = "(all)"
		}
		pct := float64(0)
		if s.Policy.MaxCalls > 0 {
			pct = float64(s.Used) / float64(s.Policy.MaxCalls) * 100
		}
		fmt.Fprintf(&b, "%-20s %-8s %10d %10d %10d %5.1f%%\n",
			provider, s.Policy.Period, s.Policy.MaxCalls, s.Used, s.Remaining, pct)
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
