package compliance

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/aivs/invoice-compliance/internal/models"
)

// Policy is the tunable part of the engine
type Policy struct {
	DefaultVATRate decimal.Decimal // for lines without a VAT marker under a standard-rate decision
	CISRate        decimal.Decimal
	ScanLimit      int
	MaxItems       int
}

// DefaultPolicy returns the standard-rate, 20% CIS policy
func DefaultPolicy() Policy {
	return Policy{
		DefaultVATRate: RateStandard,
		CISRate:        DefaultCISRate,
		ScanLimit:      DefaultScanLimit,
		MaxItems:       DefaultMaxItems,
	}
}

// PolicyFromConfig fills unset config values from DefaultPolicy
func PolicyFromConfig(cfg models.EngineConfig) Policy {
	p := DefaultPolicy()
	if cfg.DefaultVATRate != nil && *cfg.DefaultVATRate >= 0 {
		p.DefaultVATRate = decimal.NewFromFloat(*cfg.DefaultVATRate)
	}
	if cfg.CISRate > 0 {
		p.CISRate = decimal.NewFromFloat(cfg.CISRate)
	}
	if cfg.ScanLimit > 0 {
		p.ScanLimit = cfg.ScanLimit
	}
	if cfg.MaxItems > 0 {
		p.MaxItems = cfg.MaxItems
	}
	return p
}

// Result is the report plus the intermediate figures it was built from
type Result struct {
	Report               models.ComplianceReport `json:"report"`
	TableFound           bool                    `json:"tableFound"`
	Items                []models.LineItem       `json:"items"`
	ItemsSkipped         int                     `json:"itemsSkipped"`
	Totals               models.Totals           `json:"totals"`
	Decision             models.VatDecision      `json:"decision"`
	CIS                  CISResult               `json:"cis"`
	ReverseChargeWording bool                    `json:"reverseChargeWording"`
	Validation           *ValidationResult       `json:"validation,omitempty"`
	Err                  string                  `json:"error,omitempty"`
}

// Engine runs the compliance pipeline. It holds no mutable state and is safe
// for concurrent use.
type Engine struct {
	policy  Policy
	compose func(ReportInput) (models.ComplianceReport, error)
}

// NewEngine creates an engine with the given policy
func NewEngine(policy Policy) *Engine {
	return &Engine{
		policy:  policy,
		compose: Compose,
	}
}

// Policy returns the engine policy
func (e *Engine) Policy() Policy {
	return e.policy
}

// Check runs the whole pipeline over raw invoice text. It always returns a
// well-formed report: a missing table yields DegradedReport and any internal
// failure yields ErrorReport.
func (e *Engine) Check(rawText string, flags models.ComplianceFlags) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			result = &Result{
				Report: ErrorReport(),
				Items:  []models.LineItem{},
				Err:    fmt.Sprintf("panic: %v", r),
			}
		}
	}()

	res, err := e.check(rawText, flags)
	if err != nil {
		return &Result{
			Report: ErrorReport(),
			Items:  []models.LineItem{},
			Err:    err.Error(),
		}
	}
	return res
}

func (e *Engine) check(rawText string, flags models.ComplianceFlags) (*Result, error) {
	res := &Result{
		Items:                []models.LineItem{},
		Decision:             DecideVAT(rawText, flags),
		ReverseChargeWording: DetectReverseChargeWording(rawText),
	}

	rows, err := LocateTable(rawText, e.policy.ScanLimit)
	if errors.Is(err, ErrNoTable) {
		res.Report = DegradedReport()
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to locate table: %w", err)
	}
	res.TableFound = true

	res.Items, res.ItemsSkipped = ParseItems(rows, e.lineVATRate(res.Decision), e.policy.MaxItems)
	res.CIS = ComputeCIS(res.Items, e.policy.CISRate)
	res.Totals = ComputeTotals(res.Items, res.CIS)
	res.Validation = ValidateStructure(res.Items, res.Totals.Subtotal, res.Totals.Gross)

	report, err := e.compose(ReportInput{
		Items:                res.Items,
		Totals:               res.Totals,
		Decision:             res.Decision,
		CIS:                  res.CIS,
		ReverseChargeWording: res.ReverseChargeWording,
		HasMaterials:         hasMaterials(res.Items, rawText),
		Valid:                res.Validation.Valid,
		DeclaredCISRate:      flags.CISRate,
	})
	if err != nil {
		return nil, err
	}
	res.Report = report
	return res, nil
}

// lineVATRate is the rate for lines without their own marker. A zero-rated or
// reduced decision carries through; otherwise the configured default applies.
func (e *Engine) lineVATRate(decision models.VatDecision) decimal.Decimal {
	if !decision.VATRate.Equal(RateStandard) {
		return decision.VATRate
	}
	return e.policy.DefaultVATRate
}
