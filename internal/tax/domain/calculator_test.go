package domain

import (
	"encoding/json"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func defaultCalculator(t *testing.T) *Calculator {
	t.Helper()

	req := DefaultTableZA2025()
	raw, err := json.Marshal(req.Brackets)
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	calc, err := NewCalculator(&TaxTable{
		ID:                         node.Generate(),
		Version:                    req.Version,
		Brackets:                   datatypes.JSON(raw),
		PrimaryRebateCents:         req.PrimaryRebateCents,
		UIFEmployeeRate:            req.UIFEmployeeRate,
		UIFEmployerRate:            req.UIFEmployerRate,
		UIFCeilingCents:            req.UIFCeilingCents,
		SDLRate:                    req.SDLRate,
		SDLExemptionThresholdCents: req.SDLExemptionThresholdCents,
	})
	require.NoError(t, err)
	return calc
}

func TestCalculate_KnownBreakdown(t *testing.T) {
	calc := defaultCalculator(t)

	// R20,000.00 monthly gross, annualized R240,000.00: second bracket,
	// PAYE (4,267,800 + 0.26*289,900 - 1,723,500) / 12 = 218,306.17 -> 218,306.
	got, err := calc.Calculate(2_000_000)
	require.NoError(t, err)

	assert.Equal(t, int64(218_306), got.PAYECents)
	assert.Equal(t, int64(17_712), got.UIFEmployeeCents) // capped
	assert.Equal(t, int64(17_712), got.UIFEmployerCents)
	assert.Equal(t, int64(20_000), got.SDLCents)
	assert.Equal(t, int64(2_000_000-218_306-17_712), got.NetCents)
	assert.Equal(t, "ZA-2024-2025", got.TableVersion)
}

func TestCalculate_RebateZeroesLowIncomes(t *testing.T) {
	calc := defaultCalculator(t)

	// R5,000.00 monthly: annual tax 18% of 60,000 = 10,800 sits below
	// the primary rebate, so PAYE is zero and UIF is under the cap.
	got, err := calc.Calculate(500_000)
	require.NoError(t, err)

	assert.Equal(t, int64(0), got.PAYECents)
	assert.Equal(t, int64(5_000), got.UIFEmployeeCents)
	assert.Equal(t, int64(495_000), got.NetCents)
}

func TestCalculate_Deterministic(t *testing.T) {
	calc := defaultCalculator(t)

	first, err := calc.Calculate(3_456_789)
	require.NoError(t, err)
	second, err := calc.Calculate(3_456_789)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCalculate_NetMonotonicInGross(t *testing.T) {
	calc := defaultCalculator(t)

	var prev int64 = -1
	for gross := int64(0); gross <= 20_000_000; gross += 123_457 {
		got, err := calc.Calculate(gross)
		require.NoError(t, err)
		require.GreaterOrEqual(t, got.NetCents, prev, "gross %d", gross)
		prev = got.NetCents
	}
}

func TestCalculate_UIFCapIndependentOfSalary(t *testing.T) {
	calc := defaultCalculator(t)

	mid, err := calc.Calculate(5_000_000)
	require.NoError(t, err)
	high, err := calc.Calculate(50_000_000)
	require.NoError(t, err)

	assert.Equal(t, int64(17_712), mid.UIFEmployeeCents)
	assert.Equal(t, mid.UIFEmployeeCents, high.UIFEmployeeCents)
	assert.Equal(t, mid.UIFEmployerCents, high.UIFEmployerCents)
}

func TestCalculate_RejectsNegativeGross(t *testing.T) {
	calc := defaultCalculator(t)

	_, err := calc.Calculate(-1)
	assert.ErrorIs(t, err, ErrInvalidGrossSalary)
}

func TestSDLApplies_Threshold(t *testing.T) {
	calc := defaultCalculator(t)

	assert.False(t, calc.SDLApplies(50_000_000))
	assert.True(t, calc.SDLApplies(50_000_001))
}

func TestTaxTableValidate(t *testing.T) {
	raw, err := json.Marshal([]Bracket{
		{LowerCents: 100, Rate: 0.18}, // must start at zero
	})
	require.NoError(t, err)

	table := &TaxTable{Version: "bad", Brackets: datatypes.JSON(raw)}
	assert.ErrorIs(t, table.Validate(), ErrInvalidBrackets)

	table.Brackets = datatypes.JSON(`[]`)
	assert.ErrorIs(t, table.Validate(), ErrInvalidBrackets)

	table.Version = ""
	assert.ErrorIs(t, table.Validate(), ErrInvalidVersion)
}
