package models

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// VAT categories accepted in ComplianceFlags.VATCategory
const (
	VATCategoryNewBuild = "zero-rated-new-build"
	VATCategoryReduced  = "reduced-5"
	VATCategoryStandard = "standard-20"
)

// ComplianceFlags are the caller's answers to the pre-check questions
type ComplianceFlags struct {
	VATCategory      string  `json:"vatCategory"`      // zero-rated-new-build, reduced-5 or anything else
	EndUserConfirmed string  `json:"endUserConfirmed"` // "true" or "false"
	CISRate          float64 `json:"cisRate"`          // percentage declared by the caller
}

// EndUser reports whether the customer declared themselves an end user or intermediary
func (f ComplianceFlags) EndUser() bool {
	return strings.EqualFold(strings.TrimSpace(f.EndUserConfirmed), "true")
}

// ParseFlags builds flags from raw form values, ignoring a malformed CIS rate
func ParseFlags(vatCategory, endUserConfirmed, cisRate string) ComplianceFlags {
	flags := ComplianceFlags{
		VATCategory:      strings.TrimSpace(vatCategory),
		EndUserConfirmed: strings.TrimSpace(endUserConfirmed),
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(cisRate), 64); err == nil {
		flags.CISRate = v
	}
	return flags
}

// LineItem is one parsed row of the invoice table.
// LineTotal is always Quantity * UnitPrice.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit"`
	VATRate     decimal.Decimal `json:"vatRate"`   // percent
	VATAmount   decimal.Decimal `json:"vatAmount"` // read from the line or computed
	LineTotal   decimal.Decimal `json:"lineTotal"`
	IsLabour    bool            `json:"isLabour"`
}

// VatDecision is the VAT/DRC treatment derived from the text and flags
type VatDecision struct {
	VATRate    decimal.Decimal `json:"vatRate"`
	VATLabel   string          `json:"vatLabel"`
	DRCApplies bool            `json:"drcApplies"`
	NewBuild   bool            `json:"newBuild"`
	Reason     string          `json:"reason"`
}

// Totals are the figures derived from the item sequence
type Totals struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	VATTotal   decimal.Decimal `json:"vatTotal"`
	LabourBase decimal.Decimal `json:"labourBase"`
	CISAmount  decimal.Decimal `json:"cisAmount"`
	Gross      decimal.Decimal `json:"gross"`    // Subtotal + VATTotal
	TotalDue   decimal.Decimal `json:"totalDue"` // Gross - CISAmount
}

// ComplianceReport is the externally visible result. The rule engine and the
// narrative (LLM) analysis both produce exactly this shape.
type ComplianceReport struct {
	VATCheck         string  `json:"vat_check"`
	CISCheck         string  `json:"cis_check"`
	RequiredWording  string  `json:"required_wording"`
	Summary          string  `json:"summary"`
	CorrectedInvoice *string `json:"corrected_invoice"`
}
