package business

import (
	"github.com/paygrid/disburse/internal/business/repository"
	"github.com/paygrid/disburse/internal/business/service"
	"go.uber.org/fx"
)

var Module = fx.Module("business.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
