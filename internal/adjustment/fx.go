package adjustment

import (
	"github.com/paygrid/disburse/internal/adjustment/repository"
	"github.com/paygrid/disburse/internal/adjustment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("adjustment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
