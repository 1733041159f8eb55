package compliance

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/aivs/invoice-compliance/internal/models"
)

// DefaultMaxItems caps the number of line items collected from one table
const DefaultMaxItems = 10

var (
	numericTokenPattern = regexp.MustCompile(`\(?-?[£$€]?\d[\d,]*(?:\.\d+)?\)?%?`)
	vatPercentPattern   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	noVATPattern        = regexp.MustCompile(`(?i)\bno\s+vat\b|\bzero[\s-]rated\b`)
	plainNumberPattern  = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
)

var hundred = decimal.NewFromInt(100)

// numericToken is a standalone number-looking token and its byte offsets
type numericToken struct {
	text       string
	start, end int
	percent    bool
}

// lineDraft accumulates the fields matched by the extraction rules
type lineDraft struct {
	line   string
	tokens []numericToken
	tail   []numericToken // non-percent tokens from the numeric run onward
	next   int            // index into tail of the next unread token

	description string
	quantity    decimal.Decimal
	unitPrice   decimal.Decimal
	lineTotal   decimal.Decimal

	vatRate      decimal.Decimal
	vatRateFound bool
	vatAmount    decimal.Decimal
	vatAmtFound  bool
}

// lineRule is one step of line extraction. A rule reports whether it matched;
// a required rule that does not match causes the line to be skipped.
type lineRule struct {
	name     string
	required bool
	extract  func(d *lineDraft) bool
}

// lineRules run in this order; later rules read what earlier ones recorded
var lineRules = []lineRule{
	{name: "description", extract: extractDescription},
	{name: "quantity", required: true, extract: extractQuantity},
	{name: "unit_price", required: true, extract: extractUnitPrice},
	{name: "vat_rate", extract: extractVATRate},
	{name: "vat_amount", extract: extractVATAmount},
}

// ParseLine extracts a line item from one table row. It returns false when the
// row has no usable quantity or unit price.
func ParseLine(line string, defaultVATRate decimal.Decimal) (models.LineItem, bool) {
	d := &lineDraft{line: line, tokens: findNumericTokens(line)}

	for _, rule := range lineRules {
		if !rule.extract(d) && rule.required {
			return models.LineItem{}, false
		}
	}

	if !d.vatRateFound {
		d.vatRate = defaultVATRate
	}
	if !d.vatAmtFound {
		d.vatAmount = d.lineTotal.Mul(d.vatRate).Div(hundred).Round(2)
	}

	return models.LineItem{
		Description: d.description,
		Quantity:    d.quantity,
		UnitPrice:   d.unitPrice,
		VATRate:     d.vatRate,
		VATAmount:   d.vatAmount,
		LineTotal:   d.lineTotal,
		IsLabour:    IsLabour(d.description),
	}, true
}

// ParseItems parses table rows in order until maxItems items are collected.
// Rows that do not parse are skipped and counted.
func ParseItems(lines []string, defaultVATRate decimal.Decimal, maxItems int) ([]models.LineItem, int) {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}

	items := []models.LineItem{}
	skipped := 0
	for _, line := range lines {
		if len(items) >= maxItems {
			break
		}
		item, ok := ParseLine(line, defaultVATRate)
		if !ok {
			skipped++
			continue
		}
		items = append(items, item)
	}
	return items, skipped
}

// findNumericTokens returns the number-looking tokens that stand on their own,
// so "M10" or "2x4" stay part of the description
func findNumericTokens(line string) []numericToken {
	var tokens []numericToken
	for _, loc := range numericTokenPattern.FindAllStringIndex(line, -1) {
		start, end := loc[0], loc[1]
		if start > 0 && !isSeparator(line[start-1]) {
			continue
		}
		if end < len(line) && !isSeparator(line[end]) {
			continue
		}
		text := line[start:end]
		tokens = append(tokens, numericToken{
			text:    text,
			start:   start,
			end:     end,
			percent: strings.HasSuffix(text, "%"),
		})
	}
	return tokens
}

func isSeparator(b byte) bool {
	return unicode.IsSpace(rune(b)) || b == '|' || b == '@' || b == ':'
}

// extractDescription takes the text before the first run of two adjacent
// numeric tokens, falling back to the text before the first numeric token.
func extractDescription(d *lineDraft) bool {
	var values []numericToken
	for _, t := range d.tokens {
		if !t.percent {
			values = append(values, t)
		}
	}

	runStart := -1
	for i := 0; i+1 < len(values); i++ {
		gap := d.line[values[i].end:values[i+1].start]
		if strings.TrimSpace(gap) == "" {
			runStart = i
			break
		}
	}
	if runStart == -1 && len(values) > 0 {
		runStart = 0
	}

	if runStart == -1 {
		d.description = strings.TrimSpace(d.line)
		return true
	}

	d.tail = values[runStart:]
	d.description = strings.TrimRight(strings.TrimSpace(d.line[:values[runStart].start]), " -:|\t")
	if d.description == "" {
		d.description = strings.TrimSpace(d.line)
	}
	return true
}

// extractQuantity reads the first token of the numeric tail, which must be a
// plain positive number
func extractQuantity(d *lineDraft) bool {
	if d.next >= len(d.tail) {
		return false
	}
	tok := d.tail[d.next].text
	if !plainNumberPattern.MatchString(tok) {
		return false
	}
	qty, err := decimal.NewFromString(tok)
	if err != nil || !qty.IsPositive() {
		return false
	}
	d.quantity = qty
	d.next++
	return true
}

// extractUnitPrice reads the token after the quantity; brackets and minus
// signs make it negative
func extractUnitPrice(d *lineDraft) bool {
	if d.next >= len(d.tail) {
		return false
	}
	d.unitPrice = ParseAmount(d.tail[d.next].text)
	d.lineTotal = d.quantity.Mul(d.unitPrice)
	d.next++
	return true
}

func extractVATRate(d *lineDraft) bool {
	if m := vatPercentPattern.FindStringSubmatch(d.line); m != nil {
		rate, err := decimal.NewFromString(m[1])
		if err == nil {
			d.vatRate = rate
			d.vatRateFound = true
			return true
		}
	}
	if noVATPattern.MatchString(d.line) {
		d.vatRate = decimal.Zero
		d.vatRateFound = true
		return true
	}
	return false
}

// extractVATAmount reads the first decimal token after the unit price that is
// not the line total itself
func extractVATAmount(d *lineDraft) bool {
	for _, t := range d.tail[d.next:] {
		if !strings.Contains(t.text, ".") {
			continue
		}
		amount := ParseAmount(t.text)
		if amount.Equal(d.lineTotal) {
			continue
		}
		d.vatAmount = amount
		d.vatAmtFound = true
		return true
	}
	return false
}
