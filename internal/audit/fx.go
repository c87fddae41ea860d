package audit

import (
	"github.com/paygrid/disburse/internal/audit/repository"
	"github.com/paygrid/disburse/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
