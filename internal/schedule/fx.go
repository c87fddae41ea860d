package schedule

import (
	"github.com/paygrid/disburse/internal/schedule/repository"
	"github.com/paygrid/disburse/internal/schedule/service"
	"go.uber.org/fx"
)

var Module = fx.Module("schedule.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
