package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/paygrid/disburse/internal/adjustment"
	"github.com/paygrid/disburse/internal/audit"
	"github.com/paygrid/disburse/internal/authorization"
	"github.com/paygrid/disburse/internal/business"
	"github.com/paygrid/disburse/internal/clock"
	"github.com/paygrid/disburse/internal/config"
	"github.com/paygrid/disburse/internal/dispatcher"
	"github.com/paygrid/disburse/internal/employee"
	"github.com/paygrid/disburse/internal/escrow"
	"github.com/paygrid/disburse/internal/job"
	"github.com/paygrid/disburse/internal/migration"
	"github.com/paygrid/disburse/internal/notify"
	"github.com/paygrid/disburse/internal/observability"
	"github.com/paygrid/disburse/internal/rail"
	"github.com/paygrid/disburse/internal/schedule"
	"github.com/paygrid/disburse/internal/server"
	"github.com/paygrid/disburse/internal/tax"
	"github.com/paygrid/disburse/pkg/db"
)

// The monolith: HTTP surface and dispatcher in one process.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		authorization.Module,
		audit.Module,
		business.Module,
		employee.Module,
		tax.Module,
		adjustment.Module,
		escrow.Module,
		job.Module,
		schedule.Module,
		rail.Module,
		notify.Module,

		dispatcher.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
