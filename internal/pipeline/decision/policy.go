// Package decision implements the deterministic decision policy (C5): given
// an extracted Invoice and its RuleReport, decide whether the job auto-posts,
// falls back to the LLM repair gateway, or needs human review.
package decision

import (
	"fmt"
	"time"

	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/model"
)

// Action is the outcome of the decision policy.
type Action string

const (
	ActionAutoPosted  Action = "auto_posted"
	ActionLLMFallback Action = "llm_fallback"
	ActionNeedsReview Action = "needs_review"
)

// Policy holds the confidence thresholds the decision routes against.
type Policy struct {
	FieldConfidenceThreshold    float64
	CategoryConfidenceThreshold float64
}

// DefaultPolicy mirrors §4.5's documented defaults.
var DefaultPolicy = Policy{
	FieldConfidenceThreshold:    0.82,
	CategoryConfidenceThreshold: 0.75,
}

// Validate enforces the thresholds are in (0,1].
func (p Policy) Validate() error {
	if p.FieldConfidenceThreshold <= 0 || p.FieldConfidenceThreshold > 1 {
		return fmt.Errorf("field confidence threshold must be in (0,1], got %.2f", p.FieldConfidenceThreshold)
	}
	if p.CategoryConfidenceThreshold <= 0 || p.CategoryConfidenceThreshold > 1 {
		return fmt.Errorf("category confidence threshold must be in (0,1], got %.2f", p.CategoryConfidenceThreshold)
	}
	return nil
}

// Decision is the routed, immutable outcome of applying a Policy.
type Decision struct {
	Action    Action
	Rationale string
	Timestamp time.Time
	Locked    bool
}

// Decide routes an invoice to auto_posted, llm_fallback, or needs_review.
func (p Policy) Decide(inv model.Invoice, report model.RuleReport) Decision {
	fieldOK, missingPath := p.fieldConfOK(inv)
	categoryOK := p.categoryOK(inv)

	d := Decision{Timestamp: time.Now(), Locked: true}

	switch {
	case fieldOK && report.Passed && categoryOK:
		d.Action = ActionAutoPosted
		d.Rationale = "all required fields meet confidence threshold, rules passed, categories meet threshold"
	case !report.Passed && report.AllRepairable():
		d.Action = ActionLLMFallback
		d.Rationale = "rule failures are all within the repairable set"
	default:
		d.Action = ActionNeedsReview
		if !fieldOK {
			d.Rationale = fmt.Sprintf("required field %s below confidence threshold %.2f", missingPath, p.FieldConfidenceThreshold)
		} else if !report.Passed {
			d.Rationale = "rule failures include at least one non-repairable rule"
		} else {
			d.Rationale = "a classified line item is below the category confidence threshold"
		}
	}
	return d
}

// fieldConfOK reports whether every required field meets the threshold,
// returning the first offending path for the rationale if not.
func (p Policy) fieldConfOK(inv model.Invoice) (bool, string) {
	checks := []struct {
		path string
		ok   bool
		conf float64
	}{
		{"/invoice_number", inv.InvoiceNumber.Present(), inv.InvoiceNumber.Confidence},
		{"/invoice_date", inv.InvoiceDate.Present(), inv.InvoiceDate.Confidence},
		{"/vendor/name", inv.Vendor.Name.Present(), inv.Vendor.Name.Confidence},
		{"/amounts/grand_total", inv.Amounts.GrandTotal.Present(), inv.Amounts.GrandTotal.Confidence},
		{"/amounts/currency", inv.Amounts.Currency.Present(), inv.Amounts.Currency.Confidence},
	}
	for _, c := range checks {
		if !c.ok || c.conf < p.FieldConfidenceThreshold {
			return false, c.path
		}
	}
	return true, ""
}

// categoryOK reports whether every line item carrying a classifier category
// meets the category confidence threshold; an invoice with no line items, or
// none with a category, trivially passes.
func (p Policy) categoryOK(inv model.Invoice) bool {
	for _, li := range inv.LineItems {
		if li.CategoryConfidence != nil && *li.CategoryConfidence < p.CategoryConfidenceThreshold {
			return false
		}
	}
	return true
}
