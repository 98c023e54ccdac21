package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	t.Run("creates money with valid amount and currency", func(t *testing.T) {
		m, err := NewMoney(decimal.RequireFromString("100.50"), GBP)
		require.NoError(t, err)
		assert.Equal(t, GBP, m.Currency())
		assert.True(t, m.Amount().Equal(decimal.RequireFromString("100.50")))
	})

	t.Run("returns error for empty currency", func(t *testing.T) {
		_, err := NewMoney(decimal.NewFromInt(100), "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "currency cannot be empty")
	})
}

func TestNewMoneyFromString(t *testing.T) {
	t.Run("valid string", func(t *testing.T) {
		m, err := NewMoneyFromString("123.45", GBP)
		require.NoError(t, err)
		assert.True(t, m.Amount().Equal(decimal.RequireFromString("123.45")))
	})

	t.Run("invalid string", func(t *testing.T) {
		_, err := NewMoneyFromString("not-a-number", GBP)
		assert.Error(t, err)
	})
}

func TestCurrency_MinorUnits(t *testing.T) {
	assert.Equal(t, int32(2), GBP.MinorUnits())
	assert.Equal(t, int32(2), EUR.MinorUnits())
	assert.Equal(t, int32(0), JPY.MinorUnits())
	assert.True(t, GBP.HalfMinorUnit().Equal(decimal.RequireFromString("0.005")))
	assert.True(t, JPY.HalfMinorUnit().Equal(decimal.RequireFromString("0.5")))
}

func TestMoney_MinorUnits(t *testing.T) {
	assert.Equal(t, int64(50250), NewMoneyGBP(decimal.RequireFromString("502.50")).MinorUnits())
	assert.Equal(t, int64(1), NewMoneyGBP(decimal.RequireFromString("0.005")).MinorUnits())
	assert.Equal(t, int64(-250), NewMoneyFromMinor(-250, GBP).MinorUnits())
	assert.True(t, NewMoneyFromMinor(1999, GBP).Amount().Equal(decimal.RequireFromString("19.99")))
}

func TestMoney_Arithmetic(t *testing.T) {
	a := NewMoneyGBP(decimal.RequireFromString("502.50"))
	b := NewMoneyGBP(decimal.RequireFromString("500.00"))

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, "1002.50 GBP", sum.String())

	diff, err := a.Subtract(b)
	require.NoError(t, err)
	assert.True(t, diff.Amount().Equal(decimal.RequireFromString("2.5")))

	_, err = a.Add(Zero(EUR))
	assert.Error(t, err)
	_, err = a.Subtract(Zero(EUR))
	assert.Error(t, err)
}

func TestMoney_IsNegligible(t *testing.T) {
	tests := []struct {
		amount string
		want   bool
	}{
		{"0", true},
		{"0.004", true},
		{"-0.0049", true},
		{"0.005", false},
		{"-0.01", false},
		{"2.50", false},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			m := NewMoneyGBP(decimal.RequireFromString(tt.amount))
			assert.Equal(t, tt.want, m.IsNegligible())
		})
	}
}

func TestMoney_Round(t *testing.T) {
	m := NewMoneyGBP(decimal.RequireFromString("10.005"))
	assert.True(t, m.Round().Amount().Equal(decimal.RequireFromString("10.01")))
	assert.True(t, m.Abs().Equals(m))
}

func TestMoney_JSON(t *testing.T) {
	m := NewMoneyGBP(decimal.RequireFromString("42.10"))
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"42.1","currency":"GBP"}`, string(data))

	var parsed Money
	require.NoError(t, json.Unmarshal([]byte(`{"amount":"7.5"}`), &parsed))
	assert.Equal(t, DefaultCurrency, parsed.Currency())
	assert.True(t, parsed.Amount().Equal(decimal.RequireFromString("7.5")))

	assert.Error(t, json.Unmarshal([]byte(`{"amount":"abc","currency":"GBP"}`), &parsed))
}

func TestMoney_ValueScan(t *testing.T) {
	m := NewMoneyGBP(decimal.RequireFromString("12.34"))
	v, err := m.Value()
	require.NoError(t, err)
	assert.Equal(t, "12.34", v)

	var scanned Money
	require.NoError(t, scanned.Scan([]byte("99.01")))
	assert.Equal(t, GBP, scanned.Currency())
	assert.True(t, scanned.Amount().Equal(decimal.RequireFromString("99.01")))

	require.NoError(t, scanned.Scan(nil))
	assert.True(t, scanned.IsZero())

	assert.Error(t, scanned.Scan(true))
}
