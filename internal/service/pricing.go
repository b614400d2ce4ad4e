package service

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const moneyPlaces = 2

var supportedCurrencies = map[string]struct{}{
	"USD": {},
	"EUR": {},
	"GBP": {},
}

// LineSubtotal is unit price times quantity, rounded half away from zero.
func LineSubtotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(moneyPlaces)
}

func OrderTotal(subtotals []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, s := range subtotals {
		total = total.Add(s)
	}
	return total.Round(moneyPlaces)
}

// NormalizeCurrency upper-cases code, falling back to def when empty.
func NormalizeCurrency(code, def string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if c == "" {
		c = strings.ToUpper(def)
	}
	if _, ok := supportedCurrencies[c]; !ok {
		return "", fmt.Errorf("%w: unsupported currency %q", ErrValidation, code)
	}
	return c, nil
}
