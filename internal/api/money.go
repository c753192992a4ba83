package api

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const minorDigits = 2

// parseMinor converts a decimal string with up to 2 fractional digits into
// minor units.
func parseMinor(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("amount required")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, errors.New("invalid amount")
	}

	minor := d.Shift(minorDigits)
	if !minor.IsInteger() {
		return 0, errors.New("amount supports up to 2 decimals")
	}

	if !minor.BigInt().IsInt64() {
		return 0, errors.New("amount out of range")
	}

	return minor.IntPart(), nil
}

func formatMinor(v int64) string {
	return decimal.New(v, -minorDigits).StringFixed(minorDigits)
}
