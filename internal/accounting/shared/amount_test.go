package shared

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestBalancedTolerance(t *testing.T) {
	d := decimal.RequireFromString
	require.True(t, Balanced(d("100.00"), d("100.00")))
	require.True(t, Balanced(d("100.004"), d("100.00")))
	require.True(t, Balanced(d("100.00"), d("100.0099")))
	require.False(t, Balanced(d("100.01"), d("100.00")))
	require.False(t, Balanced(d("0"), d("0.01")))
}

func TestTVAAmountRoundsToCents(t *testing.T) {
	d := decimal.RequireFromString
	require.Equal(t, "20.00", Money(TVAAmount(d("100"), 20)))
	require.Equal(t, "1.17", Money(TVAAmount(d("8.33"), 14)))
	require.Equal(t, "0.00", Money(TVAAmount(d("999.99"), 0)))
	require.True(t, ValidTVARate(7))
	require.False(t, ValidTVARate(19))
}

func TestHasCentPrecision(t *testing.T) {
	d := decimal.RequireFromString
	require.True(t, HasCentPrecision(d("12.30")))
	require.True(t, HasCentPrecision(d("12")))
	require.False(t, HasCentPrecision(d("12.301")))
}
