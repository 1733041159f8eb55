package compliance

import (
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/aivs/invoice-compliance/internal/models"
)

// Statutory VAT rates in percent
var (
	RateZero     = decimal.Zero
	RateReduced  = decimal.NewFromInt(5)
	RateStandard = decimal.NewFromInt(20)
)

// DefaultCISRate is the standard CIS deduction for registered subcontractors
var DefaultCISRate = decimal.NewFromInt(20)

var (
	newBuildPattern = regexp.MustCompile(`(?i)new[\s-]?build|new dwelling|\bplot\s*\d+|\bnhbc\b|completion certificate|\bcml\b`)
	// "5%" only when not part of 15%, 25% or 2.5%
	reducedRatePattern   = regexp.MustCompile(`(?i)reduced[\s-]rate|(?:^|[^\d.])5(?:\.0+)?\s*%`)
	reverseChargePattern = regexp.MustCompile(`(?i)reverse[\s-]?charge|section\s*55a|vat\s+act\s+1994`)
)

// DecideVAT applies the VAT and DRC rules in statutory order: new build first,
// then reduced or standard rate, then the end-user exclusion for DRC.
func DecideVAT(text string, flags models.ComplianceFlags) models.VatDecision {
	if flags.VATCategory == models.VATCategoryNewBuild || newBuildPattern.MatchString(text) {
		return models.VatDecision{
			VATRate:    RateZero,
			VATLabel:   "Zero-rated (new build dwelling)",
			DRCApplies: false,
			NewBuild:   true,
			Reason:     "New build dwelling → zero-rated; DRC excluded.",
		}
	}

	decision := models.VatDecision{
		VATRate:  RateStandard,
		VATLabel: "Standard rate 20%",
	}
	if flags.VATCategory == models.VATCategoryReduced || reducedRatePattern.MatchString(text) {
		decision.VATRate = RateReduced
		decision.VATLabel = "Reduced rate 5%"
	}

	if flags.EndUser() {
		decision.Reason = "End-user/intermediary declared → DRC excluded."
	} else {
		decision.DRCApplies = true
		decision.Reason = "Standard/reduced-rated supply → DRC may apply."
	}
	return decision
}

// DetectReverseChargeWording reports whether the document already carries
// reverse-charge wording. It answers a different question from DecideVAT.
func DetectReverseChargeWording(text string) bool {
	return reverseChargePattern.MatchString(text)
}

// CISResult is the CIS deduction computed over labour lines
type CISResult struct {
	Applies     bool            `json:"applies"` // labour base is positive
	LabourLines int             `json:"labourLines"`
	LabourBase  decimal.Decimal `json:"labourBase"`
	Rate        decimal.Decimal `json:"rate"`
	Amount      decimal.Decimal `json:"amount"`
}

// ComputeCIS sums labour line totals and deducts rate percent, rounded to pence.
// CIS applies only to a positive labour base.
func ComputeCIS(items []models.LineItem, rate decimal.Decimal) CISResult {
	result := CISResult{Rate: rate, LabourBase: decimal.Zero, Amount: decimal.Zero}
	for _, item := range items {
		if !item.IsLabour {
			continue
		}
		result.LabourLines++
		result.LabourBase = result.LabourBase.Add(item.LineTotal)
	}
	// credit notes can push the labour base to zero or below; nothing is deducted then
	result.Applies = result.LabourBase.IsPositive()
	if result.Applies {
		result.Amount = result.LabourBase.Mul(rate).Div(hundred).Round(2)
	}
	return result
}

// ComputeTotals derives invoice totals from the items and the CIS deduction
func ComputeTotals(items []models.LineItem, cis CISResult) models.Totals {
	subtotal := decimal.Zero
	vatTotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal)
		vatTotal = vatTotal.Add(item.VATAmount)
	}
	gross := subtotal.Add(vatTotal)

	return models.Totals{
		Subtotal:   subtotal,
		VATTotal:   vatTotal,
		LabourBase: cis.LabourBase,
		CISAmount:  cis.Amount,
		Gross:      gross,
		TotalDue:   gross.Sub(cis.Amount),
	}
}

// hasMaterials reports whether any item, or failing that the text, mentions materials
func hasMaterials(items []models.LineItem, text string) bool {
	for _, item := range items {
		if IsMaterial(item.Description) {
			return true
		}
	}
	return IsMaterial(text)
}
