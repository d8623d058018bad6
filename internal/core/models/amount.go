package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// MinorUnits is the number of fractional digits an amount may carry.
const MinorUnits = 2

var (
	ErrAmountPrecision = errors.New("amount has more than 2 fractional digits")
	ErrAmountRange     = errors.New("amount out of range")
)

var minorMultiplier = decimal.New(1, MinorUnits)

// MaxAmount bounds a single transaction. In minor units it stays below 2^53,
// so every store represents it exactly.
var MaxAmount = decimal.New(1, 12)

// ValidAmount reports whether amount is strictly positive, at most MaxAmount
// and representable in minor units.
func ValidAmount(amount decimal.Decimal) bool {
	if !amount.IsPositive() || amount.GreaterThan(MaxAmount) {
		return false
	}
	return amount.Equal(amount.Truncate(MinorUnits))
}

// ToMinorUnits converts 12.34 to 1234.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.Equal(amount.Truncate(MinorUnits)) {
		return 0, fmt.Errorf("%w: %s", ErrAmountPrecision, amount)
	}
	scaled := amount.Mul(minorMultiplier)
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: %s", ErrAmountRange, amount)
	}
	return scaled.IntPart(), nil
}

// FromMinorUnits converts 1234 to 12.34.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -MinorUnits)
}
