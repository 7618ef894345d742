package budget

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/akande-ai/akande/pkg/models"
)

// ErrBudgetExceeded is returned when a gateway call would exceed the budget.
var ErrBudgetExceeded = errors.New("budget exceeded")

// Counter reports how many gateway calls were made since a given time.
type Counter interface {
	CountGatewayCalls(ctx context.Context, provider string, since time.Time) (int64, error)
}

// Enforcer checks gateway call counts against budget policies.
type Enforcer struct {
	policies []models.BudgetPolicy
	counter  Counter
	now      func() time.Time

	mu       sync.Mutex
	inflight map[string]int64 // reserved calls per provider
}

// New creates an Enforcer with the given policies and counter.
func New(policies []models.BudgetPolicy, c Counter) *Enforcer {
	return &Enforcer{
		policies: policies,
		counter:  c,
		now:      time.Now,
		inflight: make(map[string]int64),
	}
}

// Check returns ErrBudgetExceeded if another call to provider would exceed
// any applicable policy. An empty provider is checked against provider-less
// policies only. Reserved calls count as used.
func (e *Enforcer) Check(ctx context.Context, provider string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.check(ctx, provider)
}

// Reserve admits one call to provider and holds its slot until release is
// called. Callers release once the call has failed, or once a successful
// call has been recorded with the counter. release is idempotent.
func (e *Enforcer) Reserve(ctx context.Context, provider string) (release func(), err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(ctx, provider); err != nil {
		return nil, err
	}
	e.inflight[provider]++

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if e.inflight[provider]--; e.inflight[provider] <= 0 {
				delete(e.inflight, provider)
			}
		})
	}, nil
}

func (e *Enforcer) check(ctx context.Context, provider string) error {
	for _, p := range e.policies {
		if p.Provider != "" && p.Provider != provider {
			continue
		}
		used, err := e.counter.CountGatewayCalls(ctx, p.Provider, periodStart(p.Period, e.now()))
		if err != nil {
			return fmt.Errorf("budget check: %w", err)
		}
		used += e.reserved(p.Provider)
		if used >= p.MaxCalls {
			return fmt.Errorf("%w: %d of %d %s calls used", ErrBudgetExceeded, used, p.MaxCalls, p.Period)
		}
	}
	return nil
}

// reserved returns the calls in flight for provider, or for every provider
// when it is empty. e.mu must be held.
func (e *Enforcer) reserved(provider string) int64 {
	if provider != "" {
		return e.inflight[provider]
	}
	var n int64
	for _, c := range e.inflight {
		n += c
	}
	return n
}

// Status returns usage for every policy.
func (e *Enforcer) Status(ctx context.Context) ([]models.BudgetStatus, error) {
	statuses := make([]models.BudgetStatus, 0, len(e.policies))
	for _, p := range e.policies {
		used, err := e.counter.CountGatewayCalls(ctx, p.Provider, periodStart(p.Period, e.now()))
		if err != nil {
			return nil, fmt.Errorf("budget status: %w", err)
		}
		remaining := p.MaxCalls - used
		if remaining < 0 {
			remaining = 0
		}
		statuses = append(statuses, models.BudgetStatus{
			Policy:    p,
			Used:      used,
			Remaining: remaining,
		})
	}
	return statuses, nil
}

func periodStart(period models.BudgetPeriod, now time.Time) time.Time {
	now = now.UTC()
	switch period {
	case models.BudgetMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	default: // daily
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
}
