package escrow

import (
	"github.com/paygrid/disburse/internal/escrow/repository"
	"github.com/paygrid/disburse/internal/escrow/service"
	"go.uber.org/fx"
)

var Module = fx.Module("escrow.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(service.NewLedger),
)
