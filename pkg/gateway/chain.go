package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
)

// Chain tries gateways in order and moves to the next one only when a call
// fails with a retryable error.
type Chain struct {
	gateways []Gateway
	logger   *log.Logger
}

// NewChain creates a fallback chain. A nil logger uses log.Default().
func NewChain(logger *log.Logger, gateways ...Gateway) *Chain {
	if logger == nil {
		logger = log.Default()
	}
	return &Chain{gateways: gateways, logger: logger}
}

func (c *Chain) Name() string {
	names := make([]string, len(c.gateways))
	for i, g := range c.gateways {
		names[i] = g.Name()
	}
	return strings.Join(names, ",")
}

func (c *Chain) Ask(ctx context.Context, req Request) (Response, error) {
	if len(c.gateways) == 0 {
		return Response{}, &Error{Provider: "chain", Err: ErrNoProviders}
	}

	var lastErr error
	for i, g := range c.gateways {
		resp, err := g.Ask(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return Response{}, err
		}
		if i < len(c.gateways)-1 {
			c.logger.Warn("provider failed, trying next", "provider", g.Name(), "err", err)
		}
	}
	return Response{}, fmt.Errorf("all %d providers failed: %w", len(c.gateways), lastErr)
}
