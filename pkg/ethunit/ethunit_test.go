package ethunit

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, "bad fixture %s", s)
	return v
}

func TestParseEther(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"tenth", "0.1", "100000000000000000"},
		{"buy amount", "0.05", "50000000000000000"},
		{"one", "1", "1000000000000000000"},
		{"integer with fraction", "12.345", "12345000000000000000"},
		{"one wei", "0.000000000000000001", "1"},
		{"18 significant fractional digits", "0.123456789012345678", "123456789012345678"},
		{"large with full precision", "98765.432109876543210987", "98765432109876543210987"},
		{"surrounding spaces", "  2.5 ", "2500000000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEther(tt.input)
			require.NoError(t, err)
			assert.Equal(t, 0, got.Cmp(mustBig(t, tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestParseEtherRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
		err   error
	}{
		{"empty", "", ErrEmptyAmount},
		{"zero", "0", ErrNotPositive},
		{"zero fraction", "0.000", ErrNotPositive},
		{"negative", "-1", ErrNotPositive},
		{"garbage", "abc", ErrMalformedInput},
		{"scientific", "1e18", ErrMalformedInput},
		{"19 fractional digits", "0.0000000000000000001", ErrTooManyDigits},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEther(tt.input)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestParseUnitsTokenDecimals(t *testing.T) {
	got, err := ParseUnits("500000", 18)
	require.NoError(t, err)
	assert.Equal(t, "500000000000000000000000", got.String())

	got, err = ParseUnits("1.5", 6)
	require.NoError(t, err)
	assert.Equal(t, "1500000", got.String())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0.1", FormatEther(mustBig(t, "100000000000000000")))
	assert.Equal(t, "0", FormatEther(nil))
	assert.Equal(t, "1.2345", FormatFixed(mustBig(t, "1234567890000000000"), 18, 4))
	assert.Equal(t, "0.000000", FormatFixed(nil, 18, 6))
	assert.Equal(t, "0.001000", FormatFixed(mustBig(t, "1000000000000000"), 18, 6))
}

func TestBufferGas(t *testing.T) {
	assert.Equal(t, uint64(23100), BufferGas(21000))
	assert.Equal(t, uint64(108), BufferGas(99)) // 108.9 向下取整
	assert.Equal(t, uint64(0), BufferGas(0))
	assert.Equal(t, uint64(1), BufferGas(1))
}
