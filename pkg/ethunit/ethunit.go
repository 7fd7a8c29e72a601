// Package ethunit converts between human decimal strings and integer base
// units (wei for ether, 10^-decimals for ERC-20 tokens).
//
// All conversions go through shopspring/decimal; a float never touches an
// on-chain value.
package ethunit

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// EtherDecimals ether 精度
const EtherDecimals = 18

// GasBufferPercent is applied on top of every gas estimate.
const GasBufferPercent = 110

var (
	ErrEmptyAmount    = errors.New("amount is empty")
	ErrNotPositive    = errors.New("amount must be greater than zero")
	ErrTooManyDigits  = errors.New("fractional component exceeds decimals")
	ErrMalformedInput = errors.New("amount is not a plain decimal number")
)

// ParseEther converts an ether amount such as "0.1" to wei.
func ParseEther(amount string) (*big.Int, error) {
	return ParseUnits(amount, EtherDecimals)
}

// ParseUnits converts a positive decimal string into base units. Inputs with
// more fractional digits than decimals are rejected instead of rounded.
func ParseUnits(amount string, decimals int32) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, ErrEmptyAmount
	}
	// decimal.NewFromString 也接受科学计数法 ("1e18")，这里只允许普通十进制
	if strings.ContainsAny(amount, "eE") {
		return nil, ErrMalformedInput
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if !d.IsPositive() {
		return nil, ErrNotPositive
	}

	scaled := d.Shift(decimals)
	if !scaled.IsInteger() {
		return nil, ErrTooManyDigits
	}
	return scaled.BigInt(), nil
}

// FormatUnits renders base units as a decimal string without trailing zeros.
func FormatUnits(value *big.Int, decimals int32) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -decimals).String()
}

// FormatEther renders wei as ether.
func FormatEther(wei *big.Int) string {
	return FormatUnits(wei, EtherDecimals)
}

// FormatFixed renders base units rounded down to places fractional digits,
// e.g. balances shown with 4 places.
func FormatFixed(value *big.Int, decimals int32, places int32) string {
	if value == nil {
		value = new(big.Int)
	}
	return decimal.NewFromBigInt(value, -decimals).Truncate(places).StringFixed(places)
}

// BufferGas returns estimate * 110 / 100, rounded down.
func BufferGas(estimate uint64) uint64 {
	v := new(big.Int).SetUint64(estimate)
	v.Mul(v, big.NewInt(GasBufferPercent))
	v.Div(v, big.NewInt(100))
	if !v.IsUint64() {
		return ^uint64(0)
	}
	return v.Uint64()
}
