package finconfig

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestDerive_ItemizedTotal(t *testing.T) {
	cfg := Config{Arrears: Arrears{
		Present:     true,
		Rent:        dec("200"),
		Deposit:     dec("0"),
		Water:       dec("150"),
		Electricity: dec("50"),
		Garbage:     dec("-10"),
		Total:       dec("1"),
	}}

	out := Derive(cfg)
	require.NotNil(t, out.Arrears.Total)
	assert.True(t, out.Arrears.Total.Equal(decimal.NewFromInt(400)))
	assert.Nil(t, out.Arrears.Deposit)
	assert.Nil(t, out.Arrears.Garbage)

	// The input is left untouched.
	assert.True(t, cfg.Arrears.Total.Equal(decimal.NewFromInt(1)))
	assert.NotNil(t, cfg.Arrears.Deposit)
}

func TestDerive_NoArrearsClearsEverything(t *testing.T) {
	out := Derive(Config{Arrears: Arrears{Cumulative: true, Total: dec("10"), Water: dec("3")}})
	assert.Equal(t, Arrears{}, out.Arrears)
}

func TestDerive_Idempotent(t *testing.T) {
	cfg := Config{
		Taxable:       false,
		TaxPercentage: dec("16"),
		Arrears: Arrears{
			Present: true,
			Rent:    dec("20.5"),
			Water:   dec("4.5"),
		},
		Fine: FinePolicy{
			Mode:            FineModeFixedAmount,
			Criteria:        CriteriaCumulativeBalance,
			CriteriaPercent: dec("5"),
			FixedAmount:     dec("300"),
		},
	}
	once := Derive(cfg)
	twice := Derive(once)

	assert.Nil(t, once.TaxPercentage)
	assert.Empty(t, once.Fine.Criteria)
	assert.Nil(t, once.Fine.CriteriaPercent)
	require.NotNil(t, twice.Arrears.Total)
	assert.True(t, once.Arrears.Total.Equal(*twice.Arrears.Total))
	assert.Equal(t, "25", twice.Arrears.Total.String())
	assert.Equal(t, once.Fine, twice.Fine)
}
