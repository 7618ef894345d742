package budget

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/akande-ai/akande/pkg/history"
	"github.com/akande-ai/akande/pkg/models"
)

func setup(t *testing.T) (*history.SQLite, context.Context) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "budget_test.db")
	h, err := history.New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { h.Close() })
	return h, context.Background()
}

func recordCalls(t *testing.T, h *history.SQLite, provider string, n int, at time.Time) {
	t.Helper()
	for range n {
		if err := h.Record(context.Background(), models.Interaction{
			Question: "q", Key: "q", Answer: "a",
			Source: models.SourceGateway, Provider: provider, CreatedAt: at,
		}); err != nil {
			t.Fatal(err)
		}
	}
}

func TestCheckUnderBudget(t *testing.T) {
	h, ctx := setup(t)
	recordCalls(t, h, "openai", 2, time.Now().UTC())

	e := New([]models.BudgetPolicy{
		{MaxCalls: 3, Period: models.BudgetDaily},
	}, h)

	if err := e.Check(ctx, "openai"); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestCheckExceeded(t *testing.T) {
	h, ctx := setup(t)
	recordCalls(t, h, "openai", 3, time.Now().UTC())

	e := New([]models.BudgetPolicy{
		{MaxCalls: 3, Period: models.BudgetDaily},
	}, h)

	err := e.Check(ctx, "openai")
	if err == nil {
		t.Fatal("expected budget exceeded error")
	}
	if !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("expected ErrBudgetExceeded, got %v", err)
	}
}

func TestCacheHitsDoNotCount(t *testing.T) {
	h, ctx := setup(t)
	for range 5 {
		_ = h.Record(ctx, models.Interaction{Question: "q", Key: "q", Source: models.SourceCache})
	}

	e := New([]models.BudgetPolicy{{MaxCalls: 1, Period: models.BudgetDaily}}, h)
	if err := e.Check(ctx, "openai"); err != nil {
		t.Errorf("cache hits must not consume budget: %v", err)
	}
}

func TestProviderScopedPolicy(t *testing.T) {
	h, ctx := setup(t)
	recordCalls(t, h, "openai", 2, time.Now().UTC())

	e := New([]models.BudgetPolicy{
		{Provider: "openai", MaxCalls: 2, Period: models.BudgetDaily},
	}, h)

	if err := e.Check(ctx, "ollama"); err != nil {
		t.Errorf("policy for openai should not block ollama: %v", err)
	}
	if err := e.Check(ctx, "openai"); !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("expected openai blocked, got %v", err)
	}
}

func TestReserveCountsInFlightCalls(t *testing.T) {
	h, ctx := setup(t)
	e := New([]models.BudgetPolicy{
		{Provider: "openai", MaxCalls: 2, Period: models.BudgetDaily},
		{MaxCalls: 3, Period: models.BudgetDaily},
	}, h)

	r1, err := e.Reserve(ctx, "openai")
	if err != nil {
		t.Fatal(err)
	}
	r2, err := e.Reserve(ctx, "openai")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Reserve(ctx, "openai"); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected openai blocked by reservations, got %v", err)
	}
	r3, err := e.Reserve(ctx, "local")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Reserve(ctx, "local"); !errors.Is(err, ErrBudgetExceeded) {
		t.Fatalf("expected global policy to count every provider, got %v", err)
	}

	// A failed call frees its slot; releasing twice frees it once.
	r1()
	r1()
	r3()
	if err := e.Check(ctx, "local"); err != nil {
		t.Errorf("expected room after release, got %v", err)
	}
	if _, err := e.Reserve(ctx, "openai"); err != nil {
		t.Errorf("expected openai slot after release, got %v", err)
	}
	if _, err := e.Reserve(ctx, "openai"); !errors.Is(err, ErrBudgetExceeded) {
		t.Errorf("expected double release not to free an extra slot, got %v", err)
	}
	r2()
}

func TestPeriodWindow(t *testing.T) {
	h, ctx := setup(t)
	now := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	recordCalls(t, h, "openai", 2, now.Add(-48*time.Hour))
	recordCalls(t, h, "openai", 1, now)

	e := New([]models.BudgetPolicy{
		{MaxCalls: 2, Period: models.BudgetDaily},
		{MaxCalls: 10, Period: models.BudgetMonthly},
	}, h)
	e.now = func() time.Time { return now }

	if err := e.Check(ctx, "openai"); err != nil {
		t.Errorf("older calls should fall outside the daily window: %v", err)
	}

	statuses, err := e.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0].Used != 1 || statuses[0].Remaining != 1 {
		t.Errorf("daily status: %+v", statuses[0])
	}
	if statuses[1].Used != 3 || statuses[1].Remaining != 7 {
		t.Errorf("monthly status: %+v", statuses[1])
	}
}

func TestPeriodStart(t *testing.T) {
	now := time.Date(2024, 3, 17, 15, 4, 5, 0, time.UTC)
	if got := periodStart(models.BudgetDaily, now); !got.Equal(time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("daily start = %v", got)
	}
	if got := periodStart(models.BudgetMonthly, now); !got.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("monthly start = %v", got)
	}
}
