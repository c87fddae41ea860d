package tax

import (
	"context"

	"go.uber.org/fx"

	"github.com/paygrid/disburse/internal/tax/domain"
	"github.com/paygrid/disburse/internal/tax/repository"
	"github.com/paygrid/disburse/internal/tax/service"
)

var Module = fx.Module("tax.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Invoke(func(lc fx.Lifecycle, svc domain.Service) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return service.EnsureDefault(ctx, svc)
			},
		})
	}),
)
