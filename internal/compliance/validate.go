package compliance

import (
	"github.com/shopspring/decimal"

	"github.com/aivs/invoice-compliance/internal/models"
)

// ValidationError represents a single structural problem
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// ValidationResult is the outcome of the structural gate
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors"`
}

// ValidateStructure checks that the extracted figures are positive and
// mutually consistent. It says nothing about tax correctness.
func ValidateStructure(items []models.LineItem, subtotal, gross decimal.Decimal) *ValidationResult {
	result := &ValidationResult{
		Errors: []ValidationError{},
	}

	if len(items) == 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "items",
			Code:    "no_items",
			Message: "No line items could be extracted",
		})
	}

	if !subtotal.IsPositive() {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "subtotal",
			Code:    "subtotal_not_positive",
			Message: "Subtotal must be greater than zero",
		})
	}

	if !gross.IsPositive() {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "gross",
			Code:    "gross_not_positive",
			Message: "Gross total must be greater than zero",
		})
	}

	// Negative VAT would pull gross under the net figure
	if gross.LessThan(subtotal) {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "gross",
			Code:    "gross_below_subtotal",
			Message: "Gross total is lower than the subtotal",
		})
	}

	result.Valid = len(result.Errors) == 0
	return result
}
