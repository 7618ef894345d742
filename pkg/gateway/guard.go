package gateway

import "context"

// Guard admits or refuses a call to the named provider. An admitted call
// holds its slot until release is called.
type Guard interface {
	Reserve(ctx context.Context, provider string) (release func(), err error)
}

// Guarded consults a Guard before every call to the wrapped gateway.
type Guarded struct {
	Gateway
	guard Guard
}

// WithGuard wraps g so that guard sees the name of the provider actually
// called. Members of a Chain are wrapped one by one, so a refused member
// falls over to the next.
func WithGuard(g Gateway, guard Guard) Gateway {
	if c, ok := g.(*Chain); ok {
		members := make([]Gateway, len(c.gateways))
		for i, m := range c.gateways {
			members[i] = WithGuard(m, guard)
		}
		return &Chain{gateways: members, logger: c.logger}
	}
	return &Guarded{Gateway: g, guard: guard}
}

// Ask reserves a slot and calls the wrapped gateway. On success the slot
// travels with the Response; see Response.Release.
func (g *Guarded) Ask(ctx context.Context, req Request) (Response, error) {
	release, err := g.guard.Reserve(ctx, g.Name())
	if err != nil {
		return Response{}, &Error{Provider: g.Name(), Retryable: true, Err: err}
	}
	resp, err := g.Gateway.Ask(ctx, req)
	if err != nil {
		release()
		return Response{}, err
	}
	resp.release = release
	return resp, nil
}
