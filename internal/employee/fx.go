package employee

import (
	"github.com/paygrid/disburse/internal/employee/repository"
	"github.com/paygrid/disburse/internal/employee/service"
	"go.uber.org/fx"
)

var Module = fx.Module("employee.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
