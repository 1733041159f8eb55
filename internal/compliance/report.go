package compliance

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/aivs/invoice-compliance/internal/models"
)

// Fixed narrative texts
const (
	SummaryIncomplete = "Invoice reviewed. Data incomplete - no corrected invoice preview generated."
	SummaryNoTable    = "Invoice has no identifiable table. Upload a clearer PDF."
	SummaryCrashed    = "Compliance engine crashed"

	wordingReverseCharge = "Reverse Charge: Customer must account for VAT to HMRC (VAT Act 1994 Section 55A)."
	wordingNewBuild      = "Zero-rated supply: construction of a new dwelling (VAT Act 1994 Schedule 8 Group 5)."
	wordingStandard      = "Standard VAT rules apply."
)

// ReportInput is everything the composer reads
type ReportInput struct {
	Items                []models.LineItem
	Totals               models.Totals
	Decision             models.VatDecision
	CIS                  CISResult
	ReverseChargeWording bool
	HasMaterials         bool
	Valid                bool
	DeclaredCISRate      float64
}

// DegradedReport is returned when no line-item table could be found
func DegradedReport() models.ComplianceReport {
	return models.ComplianceReport{
		VATCheck:         "Unable to determine VAT.",
		CISCheck:         "Unable to determine CIS.",
		RequiredWording:  "N/A",
		Summary:          SummaryNoTable,
		CorrectedInvoice: nil,
	}
}

// ErrorReport is returned when the pipeline fails unexpectedly
func ErrorReport() models.ComplianceReport {
	return models.ComplianceReport{
		VATCheck:         "Error",
		CISCheck:         "Error",
		RequiredWording:  "Error",
		Summary:          SummaryCrashed,
		CorrectedInvoice: nil,
	}
}

// Compose builds the compliance report. The narrative fields are always filled;
// the corrected invoice is rendered only for structurally valid input.
func Compose(in ReportInput) (models.ComplianceReport, error) {
	report := models.ComplianceReport{
		VATCheck:        vatCheck(in),
		CISCheck:        cisCheck(in),
		RequiredWording: requiredWording(in),
		Summary:         SummaryIncomplete,
	}
	if !in.Valid {
		return report, nil
	}

	report.Summary = fmt.Sprintf("Corrected: Net %s, VAT %s, CIS %s, Total Due %s",
		formatMoney(in.Totals.Subtotal),
		formatMoney(in.Totals.VATTotal),
		formatMoney(in.Totals.CISAmount),
		formatMoney(in.Totals.TotalDue),
	)

	html, err := renderCorrectedInvoice(in)
	if err != nil {
		return models.ComplianceReport{}, fmt.Errorf("failed to render corrected invoice: %w", err)
	}
	report.CorrectedInvoice = &html
	return report, nil
}

func vatCheck(in ReportInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", in.Decision.VATLabel, in.Decision.Reason)

	switch {
	case in.ReverseChargeWording && in.Decision.DRCApplies:
		b.WriteString(" Reverse-charge wording is present on the invoice.")
	case in.ReverseChargeWording:
		b.WriteString(" The invoice carries reverse-charge wording but DRC is excluded; VAT should be charged normally.")
	case in.Decision.DRCApplies:
		b.WriteString(" No reverse-charge wording found on the invoice.")
	}

	hasLabour := in.CIS.Applies
	switch {
	case hasLabour && in.HasMaterials:
		b.WriteString(" Labour and materials are supplied together and follow the same VAT treatment.")
	case in.HasMaterials:
		b.WriteString(" Materials-only supply.")
	}
	return b.String()
}

func cisCheck(in ReportInput) string {
	if !in.CIS.Applies {
		if in.CIS.LabourLines > 0 {
			return fmt.Sprintf("CIS does not apply to this invoice (labour total %s is not positive).", formatMoney(in.CIS.LabourBase))
		}
		return "CIS does not apply to this invoice (no labour lines identified)."
	}

	msg := fmt.Sprintf("CIS deduction at %s%% applied to labour of %s: %s.",
		in.CIS.Rate.String(), formatMoney(in.CIS.LabourBase), formatMoney(in.CIS.Amount))

	if in.DeclaredCISRate > 0 && !decimal.NewFromFloat(in.DeclaredCISRate).Equal(in.CIS.Rate) {
		msg += fmt.Sprintf(" Declared CIS rate %s%% differs from the rate applied.",
			decimal.NewFromFloat(in.DeclaredCISRate).String())
	}
	return msg
}

func requiredWording(in ReportInput) string {
	switch {
	case in.Decision.NewBuild:
		return wordingNewBuild
	case in.Decision.DRCApplies:
		return wordingReverseCharge
	default:
		return wordingStandard
	}
}

var correctedInvoiceTemplate = template.Must(template.New("corrected").Parse(`<div style="font-family:Arial; font-size:14px;">
<h3 style="color:#4e65ac">Corrected Invoice</h3>
<table style="width:100%; border-collapse:collapse;">
<tr><th>Description</th><th>Qty</th><th>Unit (£)</th><th>VAT Rate</th><th>VAT (£)</th><th>Line Total (£)</th></tr>
{{- range .Rows}}
<tr class="item"><td>{{.Description}}</td><td style="text-align:right">{{.Qty}}</td><td style="text-align:right">{{.Unit}}</td><td style="text-align:right">{{.VATRate}}%</td><td style="text-align:right">{{.VAT}}</td><td style="text-align:right">{{.Total}}</td></tr>
{{- end}}
<tr class="subtotal"><td colspan="5" style="text-align:right"><b>Subtotal</b></td><td style="text-align:right"><b>{{.Subtotal}}</b></td></tr>
<tr class="vat"><td colspan="5" style="text-align:right"><b>VAT</b></td><td style="text-align:right">{{.VATTotal}}</td></tr>
<tr class="cis"><td colspan="5" style="text-align:right"><b>CIS ({{.CISRate}}%)</b></td><td style="text-align:right">-{{.CIS}}</td></tr>
<tr class="total-due"><td colspan="5" style="text-align:right;background:#eef2ff"><b>Total Due</b></td><td style="text-align:right;background:#eef2ff"><b>{{.TotalDue}}</b></td></tr>
</table>
</div>`))

type invoiceRow struct {
	Description string
	Qty         string
	Unit        string
	VATRate     string
	VAT         string
	Total       string
}

func renderCorrectedInvoice(in ReportInput) (string, error) {
	rows := make([]invoiceRow, len(in.Items))
	for i, item := range in.Items {
		rows[i] = invoiceRow{
			Description: item.Description,
			Qty:         item.Quantity.String(),
			Unit:        item.UnitPrice.StringFixed(2),
			VATRate:     item.VATRate.String(),
			VAT:         item.VATAmount.StringFixed(2),
			Total:       item.LineTotal.StringFixed(2),
		}
	}

	data := struct {
		Rows     []invoiceRow
		Subtotal string
		VATTotal string
		CISRate  string
		CIS      string
		TotalDue string
	}{
		Rows:     rows,
		Subtotal: in.Totals.Subtotal.StringFixed(2),
		VATTotal: in.Totals.VATTotal.StringFixed(2),
		CISRate:  in.CIS.Rate.String(),
		CIS:      in.Totals.CISAmount.StringFixed(2),
		TotalDue: in.Totals.TotalDue.StringFixed(2),
	}

	var b strings.Builder
	if err := correctedInvoiceTemplate.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
