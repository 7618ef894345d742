// Package gateway sends questions to a language-model provider and returns
// its answer. Gateways are only consulted on a cache miss.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrEmptyAnswer is returned when a provider replies without content.
	ErrEmptyAnswer = errors.New("gateway: empty answer")
	// ErrNoProviders is returned when no provider is configured.
	ErrNoProviders = errors.New("gateway: no providers configured")
)

// Request is a single question for a provider.
type Request struct {
	Question     string
	Model        string
	SystemPrompt string
}

// Response is a provider's answer.
type Response struct {
	Answer   string
	Provider string
	Model    string
	Latency  time.Duration

	release func()
}

// Release frees the Guard slot held by a guarded call. It is safe to call
// on any Response, more than once.
func (r Response) Release() {
	if r.release != nil {
		r.release()
	}
}

// Gateway answers questions.
type Gateway interface {
	Ask(ctx context.Context, req Request) (Response, error)
	Name() string
}

// Error describes a failed provider call. Status is the HTTP status when the
// provider answered, zero for transport failures.
type Error struct {
	Provider  string
	Status    int
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether err warrants trying the next provider.
func IsRetryable(err error) bool {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Retryable
	}
	return false
}

// newError classifies a provider failure. Transport errors, 429 and 5xx are
// retryable; a cancelled or expired context is not.
func newError(ctx context.Context, provider string, status int, err error) *Error {
	retryable := status == http.StatusTooManyRequests || status >= 500
	if status == 0 {
		retryable = ctx.Err() == nil &&
			!errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return &Error{Provider: provider, Status: status, Retryable: retryable, Err: err}
}
