package service

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// minorUnits converts a decimal price string to round(price*100), rounding
// half away from zero.
func minorUnits(price string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(price))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, price)
	}
	cents := d.Shift(2).Round(0)
	if !cents.IsPositive() || cents.GreaterThan(maxMinor) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, price)
	}
	return cents.IntPart(), nil
}
