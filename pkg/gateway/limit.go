package gateway

import (
	"context"

	"golang.org/x/time/rate"
)

// Limited throttles calls to a gateway.
type Limited struct {
	Gateway
	limiter *rate.Limiter
}

// NewLimited allows rps calls per second with the given burst.
func NewLimited(g Gateway, rps float64, burst int) *Limited {
	if burst < 1 {
		burst = 1
	}
	return &Limited{Gateway: g, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (l *Limited) Ask(ctx context.Context, req Request) (Response, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return Response{}, &Error{Provider: l.Name(), Err: err}
	}
	return l.Gateway.Ask(ctx, req)
}
