package domain

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"

	"github.com/paygrid/disburse/internal/recurrence"
)

// ResolvedAdjustment is one applied line: the source adjustment plus
// its resolved cents value against the reference base.
type ResolvedAdjustment struct {
	Adjustment Adjustment
	Cents      int64
}

// Resolution is the outcome of resolving all applicable adjustments
// for one employee (or generic recipient) and period.
type Resolution struct {
	Additions  []ResolvedAdjustment
	Deductions []ResolvedAdjustment
}

// NetCents is Σ additions − Σ deductions; may be negative.
func (r Resolution) NetCents() int64 {
	var net int64
	for _, a := range r.Additions {
		net += a.Cents
	}
	for _, d := range r.Deductions {
		net -= d.Cents
	}
	return net
}

// Resolve applies the candidate set to one period. Candidates must
// already be scoped to the business and filtered to active rows; this
// function handles applicability, override precedence and amount
// resolution.
//
// A once-off that shares scope and name with a recurring candidate
// replaces it for any period it overlaps. Outside that window the
// recurring row applies again on its own.
func Resolve(candidates []Adjustment, employeeID *snowflake.ID, period recurrence.Period, referenceBaseCents int64) Resolution {
	type scopeKey struct {
		employee snowflake.ID
		name     string
	}

	applicable := make([]Adjustment, 0, len(candidates))
	overridden := make(map[scopeKey]bool)

	for _, a := range candidates {
		if !a.IsActive {
			continue
		}
		if !appliesToEmployee(a, employeeID) {
			continue
		}
		if a.IsOnceOff() {
			window := recurrence.Period{Start: *a.PeriodStart, End: *a.PeriodEnd}
			if !window.Overlaps(period) {
				continue
			}
			overridden[scopeKey{employee: scopeEmployee(a), name: a.Name}] = true
		}
		applicable = append(applicable, a)
	}

	var res Resolution
	for _, a := range applicable {
		if !a.IsOnceOff() && overridden[scopeKey{employee: scopeEmployee(a), name: a.Name}] {
			continue
		}
		resolved := ResolvedAdjustment{Adjustment: a, Cents: resolveCents(a, referenceBaseCents)}
		if a.Direction == DirectionAddition {
			res.Additions = append(res.Additions, resolved)
		} else {
			res.Deductions = append(res.Deductions, resolved)
		}
	}
	return res
}

func appliesToEmployee(a Adjustment, employeeID *snowflake.ID) bool {
	if a.EmployeeID == nil {
		return true
	}
	return employeeID != nil && *a.EmployeeID == *employeeID
}

func scopeEmployee(a Adjustment) snowflake.ID {
	if a.EmployeeID == nil {
		return 0
	}
	return *a.EmployeeID
}

// resolveCents turns the stored amount into cents against the
// reference base: the employee's gross salary for payroll, the
// schedule's base amount for generic payments.
func resolveCents(a Adjustment, referenceBaseCents int64) int64 {
	if a.ValueType == ValueTypeFixed {
		return a.Amount
	}
	return decimal.NewFromInt(a.Amount).
		Div(decimal.NewFromInt(10_000)).
		Mul(decimal.NewFromInt(referenceBaseCents)).
		Round(0).
		IntPart()
}
