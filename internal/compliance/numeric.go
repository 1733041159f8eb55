package compliance

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// amountReplacer removes everything that is formatting rather than value
var amountReplacer = strings.NewReplacer(
	",", "",
	"(", "",
	")", "",
	"£", "",
	"$", "",
	"€", "",
	" ", "",
	"\u00a0", "", // non-breaking space
	"\t", "",
)

// ParseAmount converts a currency-like token such as "1,234.56", "(50.00)" or
// "-£12.30" into a signed decimal. Malformed input yields zero, never an error.
func ParseAmount(token string) decimal.Decimal {
	s := strings.TrimSpace(token)
	if !strings.ContainsAny(s, "0123456789") {
		return decimal.Zero
	}

	negative := strings.HasPrefix(s, "(") || strings.HasSuffix(s, ")")

	s = amountReplacer.Replace(s)
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimPrefix(s, "-")
	}
	s = strings.TrimPrefix(s, "+")

	// exponents and stray letters ("1e3", "12abc") are malformed, not numbers
	if strings.IndexFunc(s, unicode.IsLetter) >= 0 {
		return decimal.Zero
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	if negative {
		return d.Abs().Neg()
	}
	return d
}

// formatMoney renders an amount as pounds with two decimals
func formatMoney(d decimal.Decimal) string {
	return "£" + d.StringFixed(2)
}
