package gateway

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/akande-ai/akande/pkg/config"
)

// FromConfig builds the gateway described by cfg.Providers: a single
// provider, or a Chain in configured order when there are several.
func FromConfig(cfg *config.Config, logger *log.Logger) (Gateway, error) {
	if len(cfg.Providers) == 0 {
		return nil, ErrNoProviders
	}

	gateways := make([]Gateway, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		var g Gateway
		switch p.Type {
		case "", "openai":
			g = NewOpenAI(p.Name, p.APIKey, p.URL, p.Model)
		case "ollama":
			g = NewOllama(p.Name, p.URL, p.Model)
		default:
			return nil, fmt.Errorf("provider %q: unknown type %q", p.Name, p.Type)
		}
		if p.RPS > 0 {
			g = NewLimited(g, p.RPS, p.Burst)
		}
		gateways = append(gateways, g)
	}

	if len(gateways) == 1 {
		return gateways[0], nil
	}
	return NewChain(logger, gateways...), nil
}
