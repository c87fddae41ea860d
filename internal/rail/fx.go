package rail

import (
	"go.uber.org/fx"

	"github.com/paygrid/disburse/internal/config"
	"github.com/paygrid/disburse/internal/rail/adapters"
	"github.com/paygrid/disburse/internal/rail/adapters/bank"
	"github.com/paygrid/disburse/internal/rail/adapters/sandbox"
	"github.com/paygrid/disburse/internal/rail/domain"
)

var Module = fx.Module("rail",
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(
			bank.NewFactory(),
			sandbox.NewFactory(),
		)
	}),
	fx.Provide(func(cfg config.Config, registry *adapters.Registry) (domain.Executor, error) {
		return registry.NewExecutor(cfg.RailProvider, domain.ExecutorConfig{
			Endpoint: cfg.RailEndpoint,
			APIKey:   cfg.RailAPIKey,
			Timeout:  cfg.RailTimeout,
		})
	}),
)
