// Package assistant answers questions: it consults the answer cache, calls
// the gateway on a miss, stores the result and records the interaction.
package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/akande-ai/akande/pkg/budget"
	"github.com/akande-ai/akande/pkg/cache"
	"github.com/akande-ai/akande/pkg/config"
	"github.com/akande-ai/akande/pkg/gateway"
	"github.com/akande-ai/akande/pkg/history"
	"github.com/akande-ai/akande/pkg/models"
)

// ErrEmptyQuestion is returned for input that normalizes to nothing.
var ErrEmptyQuestion = errors.New("assistant: empty question")

// BudgetChecker admits gateway calls per provider. See gateway.Guard.
type BudgetChecker = gateway.Guard

// Answer is the result of one question.
type Answer struct {
	Question  string
	Key       string
	Text      string
	Source    models.AnswerSource
	Provider  string
	Model     string
	Latency   time.Duration
	SessionID string
}

// Cached reports whether the answer came from the cache.
func (a Answer) Cached() bool { return a.Source == models.SourceCache }

// Assistant orchestrates one question at a time and is safe for concurrent use.
type Assistant struct {
	store        cache.Store
	gateway      gateway.Gateway
	history      history.Recorder
	budget       BudgetChecker
	logger       *log.Logger
	model        string
	systemPrompt string
	timeout      time.Duration
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithLogger sets the logger. Defaults to log.Default().
func WithLogger(l *log.Logger) Option {
	return func(a *Assistant) { a.logger = l }
}

// WithHistory records every interaction.
func WithHistory(r history.Recorder) Option {
	return func(a *Assistant) { a.history = r }
}

// WithBudget consults b before every provider call, under the name of the
// provider about to be called. In a fallback chain a refused provider is
// skipped in favour of the next one.
func WithBudget(b BudgetChecker) Option {
	return func(a *Assistant) { a.budget = b }
}

// New creates an Assistant. store may be nil to run without a cache.
func New(cfg *config.Config, store cache.Store, gw gateway.Gateway, opts ...Option) *Assistant {
	a := &Assistant{
		store:        store,
		gateway:      gw,
		logger:       log.Default(),
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		timeout:      cfg.Timeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.timeout <= 0 {
		a.timeout = 90 * time.Second
	}
	if a.budget != nil {
		a.gateway = gateway.WithGuard(a.gateway, a.budget)
	}
	return a
}

// Ask answers raw outside any session.
func (a *Assistant) Ask(ctx context.Context, raw string) (Answer, error) {
	return a.AskInSession(ctx, "", raw)
}

// AskInSession answers raw and records the interaction under sessionID.
//
// A cache read failure is treated as a miss and a cache write failure is
// ignored; both are logged. Gateway failures are returned as *gateway.Error
// and nothing is cached for them.
func (a *Assistant) AskInSession(ctx context.Context, sessionID, raw string) (Answer, error) {
	start := time.Now()
	key := cache.Normalize(raw)
	if key == "" {
		return Answer{}, ErrEmptyQuestion
	}
	ans := Answer{
		Question:  strings.TrimSpace(raw),
		Key:       key,
		SessionID: sessionID,
	}

	if a.store != nil {
		value, ok, err := a.store.Get(ctx, key)
		switch {
		case err != nil:
			a.logger.Warn("cache read failed, asking provider", "key", key, "err", err)
		case ok:
			ans.Text = value
			ans.Source = models.SourceCache
			ans.Latency = time.Since(start)
			a.record(ctx, ans, nil)
			return ans, nil
		}
	}

	gctx, cancel := context.WithTimeout(ctx, a.timeout)
	resp, err := a.gateway.Ask(gctx, gateway.Request{
		Question:     ans.Question,
		Model:        a.model,
		SystemPrompt: a.systemPrompt,
	})
	cancel()

	ans.Source = models.SourceGateway
	ans.Latency = time.Since(start)
	if err != nil {
		if errors.Is(err, budget.ErrBudgetExceeded) {
			return Answer{}, err
		}
		var gerr *gateway.Error
		if !errors.As(err, &gerr) {
			err = &gateway.Error{Provider: a.gateway.Name(), Err: err}
		}
		ans.Provider = a.gateway.Name()
		a.record(ctx, ans, err)
		return Answer{}, err
	}

	// The budget slot is held until the call is in the history.
	defer resp.Release()

	ans.Text = resp.Answer
	ans.Provider = resp.Provider
	ans.Model = resp.Model

	if a.store != nil && strings.TrimSpace(ans.Text) != "" {
		if err := a.store.Put(ctx, key, ans.Text); err != nil {
			a.logger.Warn("cache write failed", "key", key, "err", err)
		}
	}
	a.logger.Debug("answered", "key", key, "provider", ans.Provider, "latency", ans.Latency)
	a.record(ctx, ans, nil)
	return ans, nil
}

func (a *Assistant) record(ctx context.Context, ans Answer, askErr error) {
	if a.history == nil {
		return
	}
	it := models.Interaction{
		SessionID: ans.SessionID,
		Question:  ans.Question,
		Key:       ans.Key,
		Answer:    ans.Text,
		Source:    ans.Source,
		Provider:  ans.Provider,
		Model:     ans.Model,
		Latency:   ans.Latency,
		CreatedAt: time.Now().UTC(),
	}
	if askErr != nil {
		it.Error = askErr.Error()
	}
	if err := a.history.Record(ctx, it); err != nil {
		a.logger.Warn("history record failed", "err", err)
	}
}
