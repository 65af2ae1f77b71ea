package backend

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/medibook/internal/domain/providers"
	"github.com/zatekoja/medibook/internal/infrastructure/clients/citasapi"
	"github.com/zatekoja/medibook/internal/infrastructure/observability"
	"github.com/zatekoja/medibook/pkg/config"
)

// Dependencies are the hooks every backend needs from the session layer
type Dependencies struct {
	Tokens         citasapi.TokenSource
	OnUnauthorized citasapi.UnauthorizedHandler
	Metrics        *observability.Metrics
}

// NewBackend creates the backend selected by cfg.Backend.Mode.
func NewBackend(cfg *config.Config, deps Dependencies) (providers.Backend, error) {
	switch cfg.Backend.Mode {
	case "mock":
		log.Debug().Str("state_path", cfg.Backend.StatePath).Msg("Using mock backend")
		opts := []MockOption{
			WithMockTokenSource(deps.Tokens),
			WithMockUnauthorizedHandler(deps.OnUnauthorized),
		}
		if cfg.Backend.StatePath != "" {
			opts = append(opts, WithStatePath(cfg.Backend.StatePath))
		}
		return NewMockBackend(opts...)
	case "remote", "":
		log.Debug().Str("base_url", cfg.API.BaseURL).Msg("Using remote backend")
		opts := []citasapi.Option{
			citasapi.WithTimeout(cfg.API.Timeout),
			citasapi.WithTokenSource(deps.Tokens),
			citasapi.WithUnauthorizedHandler(deps.OnUnauthorized),
		}
		if deps.Metrics != nil {
			opts = append(opts, citasapi.WithMetrics(deps.Metrics))
		}
		return citasapi.NewClient(cfg.API.BaseURL, opts...), nil
	default:
		return nil, fmt.Errorf("unknown backend mode %q", cfg.Backend.Mode)
	}
}
