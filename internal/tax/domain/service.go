package domain

import (
	"context"
)

type CreateTableRequest struct {
	Version                    string    `json:"version"`
	Brackets                   []Bracket `json:"brackets"`
	PrimaryRebateCents         int64     `json:"primary_rebate_cents"`
	UIFEmployeeRate            float64   `json:"uif_employee_rate"`
	UIFEmployerRate            float64   `json:"uif_employer_rate"`
	UIFCeilingCents            int64     `json:"uif_ceiling_cents"`
	SDLRate                    float64   `json:"sdl_rate"`
	SDLExemptionThresholdCents int64     `json:"sdl_exemption_threshold_cents"`
	Activate                   bool      `json:"activate"`
}

type Service interface {
	// Calculate evaluates the active table version.
	Calculate(ctx context.Context, grossSalaryCents int64) (Breakdown, error)
	// ActiveCalculator returns a calculator pinned to the active table,
	// for callers that evaluate many salaries in one run.
	ActiveCalculator(ctx context.Context) (*Calculator, error)
	CreateTable(ctx context.Context, req CreateTableRequest) (*TaxTable, error)
	ListTables(ctx context.Context) ([]*TaxTable, error)
	ActivateTable(ctx context.Context, version string) (*TaxTable, error)
}
