package compliance

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aivs/invoice-compliance/internal/models"
)

func TestDecideVAT(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		flags    models.ComplianceFlags
		rate     string
		drc      bool
		newBuild bool
		reason   string
	}{
		{
			name: "nhbc text overrides reduced flag",
			text: "Plot 12, NHBC warranty",
			flags: models.ComplianceFlags{VATCategory: models.VATCategoryReduced},
			rate: "0", newBuild: true,
			reason: "New build dwelling → zero-rated; DRC excluded.",
		},
		{
			name:  "new build flag",
			text:  "Kitchen refit",
			flags: models.ComplianceFlags{VATCategory: models.VATCategoryNewBuild},
			rate:  "0", newBuild: true,
			reason: "New build dwelling → zero-rated; DRC excluded.",
		},
		{
			name:  "reduced flag",
			flags: models.ComplianceFlags{VATCategory: models.VATCategoryReduced, EndUserConfirmed: "false"},
			rate:  "5", drc: true,
			reason: "Standard/reduced-rated supply → DRC may apply.",
		},
		{
			name: "reduced rate in text",
			text: "Energy saving materials, VAT @ 5 %",
			rate: "5", drc: true,
			reason: "Standard/reduced-rated supply → DRC may apply.",
		},
		{
			name: "fifteen percent is not reduced",
			text: "Discount 15% applied",
			rate: "20", drc: true,
			reason: "Standard/reduced-rated supply → DRC may apply.",
		},
		{
			name: "two and a half percent is not reduced",
			text: "Retention 2.5%",
			rate: "20", drc: true,
			reason: "Standard/reduced-rated supply → DRC may apply.",
		},
		{
			name:  "end user excludes drc",
			flags: models.ComplianceFlags{EndUserConfirmed: "TRUE"},
			rate:  "20",
			reason: "End-user/intermediary declared → DRC excluded.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DecideVAT(tt.text, tt.flags)
			assertDecimal(t, tt.rate, d.VATRate)
			assert.Equal(t, tt.drc, d.DRCApplies)
			assert.Equal(t, tt.newBuild, d.NewBuild)
			assert.Equal(t, tt.reason, d.Reason)
			assert.NotEmpty(t, d.VATLabel)
		})
	}
}

func TestDetectReverseChargeWording(t *testing.T) {
	assert.True(t, DetectReverseChargeWording("Domestic Reverse Charge applies"))
	assert.True(t, DetectReverseChargeWording("Customer to account per Section 55A"))
	assert.True(t, DetectReverseChargeWording("see VAT Act 1994"))
	assert.False(t, DetectReverseChargeWording("Standard VAT invoice"))
}

func TestComputeCIS(t *testing.T) {
	items := []models.LineItem{
		{Description: "Labour", LineTotal: dec("333.33"), IsLabour: true},
		{Description: "Timber", LineTotal: dec("80")},
		{Description: "Plumbing", LineTotal: dec("100"), IsLabour: true},
	}

	t.Run("labour lines", func(t *testing.T) {
		cis := ComputeCIS(items, DefaultCISRate)
		assert.True(t, cis.Applies)
		assert.Equal(t, 2, cis.LabourLines)
		assertDecimal(t, "433.33", cis.LabourBase)
		assertDecimal(t, "86.67", cis.Amount)
	})

	t.Run("other rate", func(t *testing.T) {
		cis := ComputeCIS(items, decimal.NewFromInt(30))
		assertDecimal(t, "130", cis.Amount)
	})

	t.Run("no labour", func(t *testing.T) {
		cis := ComputeCIS(items[1:2], DefaultCISRate)
		assert.False(t, cis.Applies)
		assert.True(t, cis.Amount.IsZero())
	})

	t.Run("labour totalling zero does not apply", func(t *testing.T) {
		cis := ComputeCIS([]models.LineItem{{Description: "Labour", LineTotal: decimal.Zero, IsLabour: true}}, DefaultCISRate)
		assert.False(t, cis.Applies)
		assert.Equal(t, 1, cis.LabourLines)
		assert.True(t, cis.Amount.IsZero())
	})

	t.Run("negative labour base does not apply", func(t *testing.T) {
		cis := ComputeCIS([]models.LineItem{{Description: "Labour credit", LineTotal: dec("-100"), IsLabour: true}}, DefaultCISRate)
		assert.False(t, cis.Applies)
		assertDecimal(t, "-100", cis.LabourBase)
		assert.True(t, cis.Amount.IsZero())
	})
}

func TestComputeTotals(t *testing.T) {
	items := []models.LineItem{
		{LineTotal: dec("100"), VATAmount: dec("20")},
		{LineTotal: dec("50.50"), VATAmount: dec("2.53")},
	}
	cis := CISResult{LabourBase: dec("100"), Amount: dec("20")}

	totals := ComputeTotals(items, cis)
	assertDecimal(t, "150.5", totals.Subtotal)
	assertDecimal(t, "22.53", totals.VATTotal)
	assertDecimal(t, "173.03", totals.Gross)
	assertDecimal(t, "153.03", totals.TotalDue)
	assertDecimal(t, "100", totals.LabourBase)
}

func TestValidateStructure(t *testing.T) {
	one := []models.LineItem{{Description: "x"}}

	tests := []struct {
		name     string
		items    []models.LineItem
		subtotal string
		gross    string
		codes    []string
	}{
		{"valid", one, "100", "120", nil},
		{"zero rated valid", one, "100", "100", nil},
		{"no items", nil, "100", "120", []string{"no_items"}},
		{"zero subtotal", one, "0", "0", []string{"subtotal_not_positive", "gross_not_positive"}},
		{"gross below subtotal", one, "100", "90", []string{"gross_below_subtotal"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateStructure(tt.items, dec(tt.subtotal), dec(tt.gross))
			var codes []string
			for _, e := range res.Errors {
				codes = append(codes, e.Code)
			}
			assert.Equal(t, tt.codes, codes)
			assert.Equal(t, len(tt.codes) == 0, res.Valid)
		})
	}
}

func TestComposeNarrative(t *testing.T) {
	base := ReportInput{
		Decision: models.VatDecision{VATRate: RateStandard, VATLabel: "Standard rate 20%", Reason: "End-user/intermediary declared → DRC excluded."},
		CIS:      CISResult{Rate: DefaultCISRate, LabourBase: decimal.Zero, Amount: decimal.Zero},
	}

	t.Run("reverse charge wording without drc", func(t *testing.T) {
		in := base
		in.ReverseChargeWording = true
		report, err := Compose(in)
		require.NoError(t, err)
		assert.Contains(t, report.VATCheck, "reverse-charge wording but DRC is excluded")
		assert.Equal(t, wordingStandard, report.RequiredWording)
		assert.Nil(t, report.CorrectedInvoice)
		assert.Equal(t, SummaryIncomplete, report.Summary)
	})

	t.Run("materials only", func(t *testing.T) {
		in := base
		in.HasMaterials = true
		report, err := Compose(in)
		require.NoError(t, err)
		assert.Contains(t, report.VATCheck, "Materials-only supply.")
	})

	t.Run("declared cis rate differs", func(t *testing.T) {
		in := base
		in.CIS = CISResult{Applies: true, LabourLines: 1, Rate: DefaultCISRate, LabourBase: dec("100"), Amount: dec("20")}
		in.DeclaredCISRate = 30
		report, err := Compose(in)
		require.NoError(t, err)
		assert.Equal(t, "CIS deduction at 20% applied to labour of £100.00: £20.00. Declared CIS rate 30% differs from the rate applied.", report.CISCheck)

		in.DeclaredCISRate = 20
		report, err = Compose(in)
		require.NoError(t, err)
		assert.NotContains(t, report.CISCheck, "Declared")
	})
}

func TestComposeEscapesDescriptions(t *testing.T) {
	item, ok := ParseLine("<script>alert(1)</script> labour 1 10.00", RateStandard)
	require.True(t, ok)

	in := ReportInput{
		Items:    []models.LineItem{item},
		Totals:   ComputeTotals([]models.LineItem{item}, CISResult{}),
		Decision: DecideVAT("", models.ComplianceFlags{}),
		CIS:      CISResult{Rate: DefaultCISRate},
		Valid:    true,
	}
	report, err := Compose(in)
	require.NoError(t, err)
	require.NotNil(t, report.CorrectedInvoice)
	assert.NotContains(t, *report.CorrectedInvoice, "<script>")

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(*report.CorrectedInvoice))
	require.NoError(t, err)
	assert.Zero(t, doc.Find("script").Length())
	assert.Equal(t, "<script>alert(1)</script> labour", doc.Find("tr.item td").First().Text())
}
