package domain

import (
	"github.com/shopspring/decimal"
)

var (
	twelve  = decimal.NewFromInt(12)
	hundred = decimal.NewFromInt(100)
)

// Calculator evaluates one table version. It holds only decoded,
// immutable table data, so Calculate is a pure function of the gross
// salary: same input and same table version always produce the same
// breakdown.
type Calculator struct {
	version           string
	brackets          []Bracket
	rebate            decimal.Decimal
	uifEmployee       decimal.Decimal
	uifEmployer       decimal.Decimal
	uifCeiling        decimal.Decimal
	sdlRate           decimal.Decimal
	sdlExemptionCents int64
}

func NewCalculator(table *TaxTable) (*Calculator, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	brackets, err := table.DecodeBrackets()
	if err != nil {
		return nil, err
	}
	return &Calculator{
		version:           table.Version,
		brackets:          brackets,
		rebate:            decimal.NewFromInt(table.PrimaryRebateCents),
		uifEmployee:       decimal.NewFromFloat(table.UIFEmployeeRate),
		uifEmployer:       decimal.NewFromFloat(table.UIFEmployerRate),
		uifCeiling:        decimal.NewFromInt(table.UIFCeilingCents),
		sdlRate:           decimal.NewFromFloat(table.SDLRate),
		sdlExemptionCents: table.SDLExemptionThresholdCents,
	}, nil
}

func (c *Calculator) Version() string { return c.version }

// SDLApplies reports whether a business with the given annual payroll
// is above the levy exemption threshold. The caller decides whether to
// charge SDL; Calculate always reports the would-be amount.
func (c *Calculator) SDLApplies(annualPayrollCents int64) bool {
	return annualPayrollCents > c.sdlExemptionCents
}

// Calculate computes the statutory breakdown for a monthly gross
// salary in cents. Each figure is rounded half-up to whole cents once,
// at the end of its own sub-calculation.
func (c *Calculator) Calculate(grossSalaryCents int64) (Breakdown, error) {
	if grossSalaryCents < 0 {
		return Breakdown{}, ErrInvalidGrossSalary
	}

	gross := decimal.NewFromInt(grossSalaryCents)

	paye := c.paye(gross)
	uifEmployee := roundHalfUpCents(decimal.Min(c.uifEmployee.Mul(gross), c.uifCeiling))
	uifEmployer := roundHalfUpCents(decimal.Min(c.uifEmployer.Mul(gross), c.uifCeiling))
	sdl := roundHalfUpCents(c.sdlRate.Mul(gross))

	net := grossSalaryCents - paye - uifEmployee
	if net < 0 {
		net = 0
	}

	return Breakdown{
		GrossCents:       grossSalaryCents,
		PAYECents:        paye,
		UIFEmployeeCents: uifEmployee,
		UIFEmployerCents: uifEmployer,
		SDLCents:         sdl,
		NetCents:         net,
		TableVersion:     c.version,
	}, nil
}

// paye annualizes the monthly gross, walks the cumulative bracket
// table, subtracts the primary rebate and de-annualizes. Never
// negative.
func (c *Calculator) paye(grossMonthly decimal.Decimal) int64 {
	annual := grossMonthly.Mul(twelve)

	bracket := c.brackets[0]
	for _, b := range c.brackets {
		if annual.GreaterThanOrEqual(decimal.NewFromInt(b.LowerCents)) {
			bracket = b
		}
	}

	annualTax := decimal.NewFromInt(bracket.BaseCents).
		Add(decimal.NewFromFloat(bracket.Rate).Mul(annual.Sub(decimal.NewFromInt(bracket.LowerCents))))
	annualTax = annualTax.Sub(c.rebate)
	if annualTax.IsNegative() {
		return 0
	}

	return roundHalfUpCents(annualTax.Div(twelve))
}

// roundHalfUpCents rounds a cents-denominated decimal half-up to a
// whole number of cents, which is round-half-up to 2 decimal places in
// currency units.
func roundHalfUpCents(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
