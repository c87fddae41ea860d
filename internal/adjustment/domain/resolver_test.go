package domain

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paygrid/disburse/internal/recurrence"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func februaryPeriod() recurrence.Period {
	return recurrence.Period{Start: day(2025, 2, 1), End: day(2025, 2, 28)}
}

func TestResolve_MixedFixedAndPercentage(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	empID := node.Generate()

	candidates := []Adjustment{
		{
			Name:      "transport allowance",
			ValueType: ValueTypeFixed,
			Amount:    50_000, // R500.00 company-wide addition
			Direction: DirectionAddition,
			IsActive:  true,
		},
		{
			Name:       "pension",
			EmployeeID: &empID,
			ValueType:  ValueTypePercentage,
			Amount:     500, // 5.00% of gross
			Direction:  DirectionDeduction,
			IsActive:   true,
		},
	}

	// Gross R20,000.00: +500.00 - 1,000.00 = -500.00 net.
	res := Resolve(candidates, &empID, februaryPeriod(), 2_000_000)
	require.Len(t, res.Additions, 1)
	require.Len(t, res.Deductions, 1)
	assert.Equal(t, int64(50_000), res.Additions[0].Cents)
	assert.Equal(t, int64(100_000), res.Deductions[0].Cents)
	assert.Equal(t, int64(-50_000), res.NetCents())
}

func TestResolve_OnceOffOverridesRecurringInsideWindow(t *testing.T) {
	start, end := day(2025, 2, 1), day(2025, 2, 28)
	candidates := []Adjustment{
		{
			Name:      "bonus",
			ValueType: ValueTypeFixed,
			Amount:    50_000,
			Direction: DirectionAddition,
			IsActive:  true,
		},
		{
			Name:        "bonus",
			ValueType:   ValueTypeFixed,
			Amount:      80_000,
			Direction:   DirectionAddition,
			PeriodStart: &start,
			PeriodEnd:   &end,
			IsActive:    true,
		},
	}

	inside := Resolve(candidates, nil, februaryPeriod(), 0)
	require.Len(t, inside.Additions, 1)
	assert.Equal(t, int64(80_000), inside.Additions[0].Cents)

	// Outside the once-off window only the recurring row applies.
	march := recurrence.Period{Start: day(2025, 3, 1), End: day(2025, 3, 31)}
	outside := Resolve(candidates, nil, march, 0)
	require.Len(t, outside.Additions, 1)
	assert.Equal(t, int64(50_000), outside.Additions[0].Cents)
}

func TestResolve_OverrideIsScopeAware(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	empID := node.Generate()

	start, end := day(2025, 2, 1), day(2025, 2, 28)
	candidates := []Adjustment{
		{
			Name:      "bonus",
			ValueType: ValueTypeFixed,
			Amount:    50_000,
			Direction: DirectionAddition,
			IsActive:  true,
		},
		{
			// Employee-scoped once-off with the same name must not
			// displace the company-wide recurring row.
			Name:        "bonus",
			EmployeeID:  &empID,
			ValueType:   ValueTypeFixed,
			Amount:      80_000,
			Direction:   DirectionAddition,
			PeriodStart: &start,
			PeriodEnd:   &end,
			IsActive:    true,
		},
	}

	res := Resolve(candidates, &empID, februaryPeriod(), 0)
	require.Len(t, res.Additions, 2)

	var total int64
	for _, a := range res.Additions {
		total += a.Cents
	}
	assert.Equal(t, int64(130_000), total)
}

func TestResolve_SkipsOtherEmployeesAndInactive(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	mine, theirs := node.Generate(), node.Generate()

	candidates := []Adjustment{
		{Name: "a", EmployeeID: &theirs, ValueType: ValueTypeFixed, Amount: 10_000, Direction: DirectionAddition, IsActive: true},
		{Name: "b", ValueType: ValueTypeFixed, Amount: 20_000, Direction: DirectionAddition, IsActive: false},
		{Name: "c", EmployeeID: &mine, ValueType: ValueTypeFixed, Amount: 30_000, Direction: DirectionAddition, IsActive: true},
	}

	res := Resolve(candidates, &mine, februaryPeriod(), 0)
	require.Len(t, res.Additions, 1)
	assert.Equal(t, int64(30_000), res.Additions[0].Cents)
}

func TestValidate_PercentageBounds(t *testing.T) {
	a := Adjustment{
		Name:      "medical aid",
		ValueType: ValueTypePercentage,
		Direction: DirectionDeduction,
	}

	a.Amount = 10_001
	assert.ErrorIs(t, a.Validate(), ErrInvalidPercentage)

	a.Amount = -1
	assert.ErrorIs(t, a.Validate(), ErrInvalidPercentage)

	for _, amount := range []int64{0, 500, 10_000} {
		a.Amount = amount
		assert.NoError(t, a.Validate(), "amount %d", amount)
	}
}

func TestValidate_PeriodRules(t *testing.T) {
	start, end := day(2025, 2, 10), day(2025, 2, 1)
	a := Adjustment{
		Name:        "once off",
		ValueType:   ValueTypeFixed,
		Amount:      100,
		Direction:   DirectionAddition,
		PeriodStart: &start,
		PeriodEnd:   &end,
	}
	assert.ErrorIs(t, a.Validate(), ErrInvalidPeriod)

	a.PeriodEnd = nil
	assert.ErrorIs(t, a.Validate(), ErrInvalidPeriod)
}
