package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// maxAmountMinor mirrors the DECIMAL(15,2) ceiling of the ledger schema:
// 9,999,999,999,999.99 expressed in cents.
const maxAmountMinor int64 = 999_999_999_999_999

// ParseAmount turns a caller-supplied decimal string ("25.00", "0.01") into
// minor units. It rejects anything that is not a strictly positive amount in
// whole cents: zero, negatives, fractional-cent precision, garbage input, and
// values beyond the schema ceiling all come back as ErrInvalidAmount.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return 0, ErrInvalidAmount
	}

	cents := d.Shift(2)
	if !cents.IsInteger() {
		// More precision than the currency's minor unit.
		return 0, ErrInvalidAmount
	}
	if cents.GreaterThan(decimal.NewFromInt(maxAmountMinor)) {
		return 0, ErrInvalidAmount
	}
	return cents.IntPart(), nil
}

// FormatAmount renders minor units as a two-decimal string for display and
// webhook payloads: 2500 -> "25.00".
func FormatAmount(minor int64) string {
	return decimal.NewFromInt(minor).Shift(-2).StringFixed(2)
}
