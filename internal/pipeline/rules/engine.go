// Package rules implements the deterministic, purely functional validation
// engine (C4): every rule is a pure function from an Invoice to zero or more
// Failures, with no shared state and no I/O.
package rules

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/model"
)

// Thresholds configures the tolerances the rules compare against.
type Thresholds struct {
	ArithmeticTolerance   float64
	RoundingDecimalPlaces int
}

// DefaultThresholds mirrors the original's ProcessingThresholds defaults.
var DefaultThresholds = Thresholds{
	ArithmeticTolerance:   0.02,
	RoundingDecimalPlaces: 2,
}

// Engine runs the full rule set against an Invoice.
type Engine struct {
	thresholds Thresholds
}

// NewEngine builds an Engine; a zero-value Thresholds is replaced by the
// package defaults.
func NewEngine(thresholds Thresholds) *Engine {
	if thresholds.ArithmeticTolerance == 0 {
		thresholds.ArithmeticTolerance = DefaultThresholds.ArithmeticTolerance
	}
	if thresholds.RoundingDecimalPlaces == 0 {
		thresholds.RoundingDecimalPlaces = DefaultThresholds.RoundingDecimalPlaces
	}
	return &Engine{thresholds: thresholds}
}

// Evaluate runs every rule and assembles the RuleReport.
func (e *Engine) Evaluate(inv model.Invoice) model.RuleReport {
	var failures []model.Failure
	failures = append(failures, e.validateArithmetic(inv)...)
	failures = append(failures, e.validateLineSum(inv)...)
	failures = append(failures, validateDates(inv)...)
	failures = append(failures, validateCurrency(inv)...)
	failures = append(failures, validateDuplicateHash(inv)...)
	failures = append(failures, e.validateTaxCoherence(inv)...)
	failures = append(failures, e.validateRoundingPolicy(inv)...)

	return model.RuleReport{
		Passed:   len(failures) == 0,
		Failures: failures,
		Warnings: nil,
	}
}

func tolPtr(t float64) *float64 { return &t }

// validateArithmetic checks subtotal + tax + shipping − discount ≈
// grand_total. A missing subtotal is replaced by grand_total itself, so with
// no tax, shipping or discount present the check reduces to identity and
// passes (§4.4's documented exception).
func (e *Engine) validateArithmetic(inv model.Invoice) []model.Failure {
	a := inv.Amounts
	if !a.GrandTotal.Present() {
		return nil
	}
	grandTotal := *a.GrandTotal.Value

	var expected decimal.Decimal
	if a.Subtotal.Present() {
		expected = *a.Subtotal.Value
	} else {
		expected = grandTotal
	}
	if a.TaxAmount.Present() {
		expected = expected.Add(*a.TaxAmount.Value)
	}
	if a.Shipping.Present() {
		expected = expected.Add(*a.Shipping.Value)
	}
	if a.Discount.Present() {
		expected = expected.Sub(*a.Discount.Value)
	}

	if expected.IsZero() {
		return nil
	}
	relError := grandTotal.Sub(expected).Abs().Div(expected.Abs())
	if relError.GreaterThan(decimal.NewFromFloat(e.thresholds.ArithmeticTolerance)) {
		return []model.Failure{{
			Rule:         "arithmetic_balance",
			Path:         "/amounts/grand_total",
			Reason:       fmt.Sprintf("arithmetic balance check failed: expected %s, actual %s", expected.StringFixed(2), grandTotal.StringFixed(2)),
			Expected:     expected.InexactFloat64(),
			Actual:       grandTotal.InexactFloat64(),
			Tolerance:    tolPtr(e.thresholds.ArithmeticTolerance),
			SuggestedFix: fmt.Sprintf("adjust grand total to %s or verify individual amounts", expected.StringFixed(2)),
		}}
	}
	return nil
}

// validateLineSum compares Σ(qty·unit_price) against subtotal and
// Σ(line.tax_amount) against invoice.tax_amount.
func (e *Engine) validateLineSum(inv model.Invoice) []model.Failure {
	lineTotal := decimal.Zero
	lineTaxTotal := decimal.Zero
	for _, li := range inv.LineItems {
		if li.Quantity.Present() && li.UnitPrice.Present() {
			lineTotal = lineTotal.Add(li.Quantity.Value.Mul(*li.UnitPrice.Value))
		}
		if li.TaxAmount.Present() {
			lineTaxTotal = lineTaxTotal.Add(*li.TaxAmount.Value)
		}
	}

	var failures []model.Failure

	invoiceSubtotal := decimal.Zero
	if inv.Amounts.Subtotal.Present() {
		invoiceSubtotal = *inv.Amounts.Subtotal.Value
	}
	if !invoiceSubtotal.IsZero() {
		subtotalError := invoiceSubtotal.Sub(lineTotal).Abs().Div(invoiceSubtotal.Abs())
		if subtotalError.GreaterThan(decimal.NewFromFloat(e.thresholds.ArithmeticTolerance)) {
			failures = append(failures, model.Failure{
				Rule:         "line_sum_subtotal",
				Path:         "/amounts/subtotal",
				Reason:       fmt.Sprintf("line item subtotal mismatch: expected %s, actual %s", lineTotal.StringFixed(2), invoiceSubtotal.StringFixed(2)),
				Expected:     lineTotal.InexactFloat64(),
				Actual:       invoiceSubtotal.InexactFloat64(),
				Tolerance:    tolPtr(e.thresholds.ArithmeticTolerance),
				SuggestedFix: fmt.Sprintf("adjust subtotal to %s or verify line item calculations", lineTotal.StringFixed(2)),
			})
		}
	}

	invoiceTaxTotal := decimal.Zero
	if inv.Amounts.TaxAmount.Present() {
		invoiceTaxTotal = *inv.Amounts.TaxAmount.Value
	}
	if !invoiceTaxTotal.IsZero() {
		taxError := invoiceTaxTotal.Sub(lineTaxTotal).Abs().Div(invoiceTaxTotal.Abs())
		if taxError.GreaterThan(decimal.NewFromFloat(e.thresholds.ArithmeticTolerance)) {
			failures = append(failures, model.Failure{
				Rule:         "line_sum_tax",
				Path:         "/amounts/tax_amount",
				Reason:       fmt.Sprintf("line item tax total mismatch: expected %s, actual %s", lineTaxTotal.StringFixed(2), invoiceTaxTotal.StringFixed(2)),
				Expected:     lineTaxTotal.InexactFloat64(),
				Actual:       invoiceTaxTotal.InexactFloat64(),
				Tolerance:    tolPtr(e.thresholds.ArithmeticTolerance),
				SuggestedFix: fmt.Sprintf("adjust tax amount to %s or verify line item tax calculations", lineTaxTotal.StringFixed(2)),
			})
		}
	}
	return failures
}

// validateDates checks invoice_date presence and due_date ≥ invoice_date.
func validateDates(inv model.Invoice) []model.Failure {
	var failures []model.Failure
	if !inv.InvoiceDate.Present() {
		failures = append(failures, model.Failure{
			Rule:         "required_date",
			Path:         "/invoice_date",
			Reason:       "invoice date is required",
			SuggestedFix: "provide a valid invoice date",
		})
		return failures
	}
	if inv.DueDate.Present() && inv.DueDate.Value.Before(*inv.InvoiceDate.Value) {
		failures = append(failures, model.Failure{
			Rule:         "date_logic",
			Path:         "/due_date",
			Reason:       fmt.Sprintf("due date (%s) cannot be before invoice date (%s)", inv.DueDate.Value.Format("2006-01-02"), inv.InvoiceDate.Value.Format("2006-01-02")),
			SuggestedFix: "adjust due date to be after invoice date",
		})
	}
	return failures
}

// validateCurrency checks currency presence/membership and that every
// monetary field is non-negative.
func validateCurrency(inv model.Invoice) []model.Failure {
	var failures []model.Failure
	a := inv.Amounts

	if !a.Currency.Present() {
		failures = append(failures, model.Failure{
			Rule:         "required_currency",
			Path:         "/amounts/currency",
			Reason:       "currency is required",
			SuggestedFix: "provide a valid ISO 4217 currency code",
		})
	} else if !model.AllowedCurrencies[*a.Currency.Value] {
		failures = append(failures, model.Failure{
			Rule:         "currency_format",
			Path:         "/amounts/currency",
			Reason:       fmt.Sprintf("invalid currency code: %s", *a.Currency.Value),
			SuggestedFix: "use a valid ISO 4217 currency code (EUR, USD, GBP, etc.)",
		})
	}

	amountFields := []struct {
		name string
		fv   model.FieldValue[decimal.Decimal]
	}{
		{"grand_total", a.GrandTotal},
		{"subtotal", a.Subtotal},
		{"tax_amount", a.TaxAmount},
		{"discount", a.Discount},
		{"shipping", a.Shipping},
	}
	for _, f := range amountFields {
		if f.fv.Present() && f.fv.Value.IsNegative() {
			failures = append(failures, model.Failure{
				Rule:         "non_negative_amount",
				Path:         "/amounts/" + f.name,
				Reason:       fmt.Sprintf("%s cannot be negative: %s", f.name, f.fv.Value.String()),
				SuggestedFix: fmt.Sprintf("adjust %s to be non-negative", f.name),
			})
		}
	}
	return failures
}

func validateDuplicateHash(inv model.Invoice) []model.Failure {
	if inv.DuplicateHash == "" {
		return []model.Failure{{
			Rule:         "duplicate_hash",
			Path:         "/duplicate_hash",
			Reason:       "duplicate hash is missing",
			SuggestedFix: "generate a duplicate hash for tracking",
		}}
	}
	return nil
}

// validateTaxCoherence checks tax_amount ≈ subtotal·(tax_rate/100) when both
// tax_rate and tax_amount are present and a subtotal exists to apply the
// rate to.
func (e *Engine) validateTaxCoherence(inv model.Invoice) []model.Failure {
	a := inv.Amounts
	if !a.TaxRate.Present() || !a.TaxAmount.Present() || !a.Subtotal.Present() {
		return nil
	}
	expectedTax := a.Subtotal.Value.Mul(a.TaxRate.Value.Div(decimal.NewFromInt(100)))
	if expectedTax.IsZero() {
		return nil
	}
	taxError := a.TaxAmount.Value.Sub(expectedTax).Abs().Div(expectedTax.Abs())
	if taxError.GreaterThan(decimal.NewFromFloat(e.thresholds.ArithmeticTolerance)) {
		return []model.Failure{{
			Rule:         "tax_coherence",
			Path:         "/amounts/tax_amount",
			Reason:       fmt.Sprintf("tax amount (%s) does not match tax rate (%s%%) applied to subtotal; expected %s", a.TaxAmount.Value.StringFixed(2), a.TaxRate.Value.String(), expectedTax.StringFixed(2)),
			Expected:     expectedTax.InexactFloat64(),
			Actual:       a.TaxAmount.Value.InexactFloat64(),
			Tolerance:    tolPtr(e.thresholds.ArithmeticTolerance),
			SuggestedFix: fmt.Sprintf("adjust tax amount to %s or verify tax rate calculation", expectedTax.StringFixed(2)),
		}}
	}
	return nil
}

// validateRoundingPolicy checks that every present monetary field carries no
// more than RoundingDecimalPlaces decimal digits.
func (e *Engine) validateRoundingPolicy(inv model.Invoice) []model.Failure {
	a := inv.Amounts
	amountFields := []struct {
		name string
		fv   model.FieldValue[decimal.Decimal]
	}{
		{"grand_total", a.GrandTotal},
		{"subtotal", a.Subtotal},
		{"tax_amount", a.TaxAmount},
		{"discount", a.Discount},
		{"shipping", a.Shipping},
	}

	var failures []model.Failure
	for _, f := range amountFields {
		if !f.fv.Present() {
			continue
		}
		places := -f.fv.Value.Exponent()
		if places < 0 {
			places = 0
		}
		if int(places) > e.thresholds.RoundingDecimalPlaces {
			failures = append(failures, model.Failure{
				Rule:         "rounding_policy",
				Path:         "/amounts/" + f.name,
				Reason:       fmt.Sprintf("%s has too many decimal places: %d (max %d)", f.name, places, e.thresholds.RoundingDecimalPlaces),
				SuggestedFix: fmt.Sprintf("round %s to %d decimal places", f.name, e.thresholds.RoundingDecimalPlaces),
			})
		}
	}
	return failures
}
