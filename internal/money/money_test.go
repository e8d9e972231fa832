package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	minor, err := ToMinorUnits(decimal.RequireFromString("19.99"))
	require.NoError(t, err)
	assert.Equal(t, int64(1999), minor)
}

func TestToMinorUnits_WholeAmount(t *testing.T) {
	minor, err := ToMinorUnits(decimal.RequireFromString("1000"))
	require.NoError(t, err)
	assert.Equal(t, int64(100000), minor)
}

func TestToMinorUnits_Zero(t *testing.T) {
	minor, err := ToMinorUnits(decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, int64(0), minor)
}

func TestToMinorUnits_Negative(t *testing.T) {
	_, err := ToMinorUnits(decimal.RequireFromString("-0.01"))
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestToMinorUnits_SubMinorPrecision(t *testing.T) {
	_, err := ToMinorUnits(decimal.RequireFromString("19.999"))
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestToMinorUnits_ExceedsInt64(t *testing.T) {
	// 92233720368547758.08 rupees is exactly 2^63 paise, one past the
	// largest representable value. Without an explicit range check the
	// conversion would wrap to a negative amount.
	_, err := ToMinorUnits(decimal.RequireFromString("92233720368547758.08"))
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ToMinorUnits(decimal.RequireFromString("1e30"))
	require.ErrorIs(t, err, ErrInvalidAmount)

	// The largest representable amount still converts exactly.
	minor, err := ToMinorUnits(decimal.RequireFromString("92233720368547758.07"))
	require.NoError(t, err)
	assert.Equal(t, int64(9223372036854775807), minor)
}

func TestFromMinorUnits(t *testing.T) {
	assert.True(t, decimal.RequireFromString("19.99").Equal(FromMinorUnits(1999)))
	assert.True(t, decimal.Zero.Equal(FromMinorUnits(0)))
}

func TestRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "0.01", "19.99", "500", "123456.78", "0.10"} {
		amount := decimal.RequireFromString(s)

		minor, err := ToMinorUnits(amount)
		require.NoError(t, err, s)
		assert.True(t, amount.Equal(FromMinorUnits(minor)), "round-trip of %s", s)
	}
}
