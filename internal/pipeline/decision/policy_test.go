package decision

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/model"
)

func strField(s string, conf float64) model.FieldValue[string] {
	ev, _ := model.NewEvidence(0, model.SentinelBBox, s, conf)
	return model.MustNewFieldValue(&s, conf, []model.Evidence{ev})
}

func decField(s string, conf float64) model.FieldValue[decimal.Decimal] {
	d, _ := decimal.NewFromString(s)
	ev, _ := model.NewEvidence(0, model.SentinelBBox, s, conf)
	return model.MustNewFieldValue(&d, conf, []model.Evidence{ev})
}

func currField(c model.CurrencyCode, conf float64) model.FieldValue[model.CurrencyCode] {
	ev, _ := model.NewEvidence(0, model.SentinelBBox, string(c), conf)
	return model.MustNewFieldValue(&c, conf, []model.Evidence{ev})
}

func invoiceWithConfidence(t *testing.T, conf float64) model.Invoice {
	t.Helper()
	invDate, err := time.Parse("2006-01-02", "2024-02-15")
	require.NoError(t, err)
	dateEv, _ := model.NewEvidence(0, model.SentinelBBox, "2024-02-15", conf)
	dateFv := model.MustNewFieldValue(&invDate, conf, []model.Evidence{dateEv})

	vendor, err := model.NewVendor(strField("Acme Corporation", conf), model.Empty[string](), model.Empty[string](), model.Empty[string](), model.Empty[string](), "hash")
	require.NoError(t, err)

	amounts, err := model.NewAmounts(
		decField("100.00", conf), decField("19.00", conf), decField("19", conf),
		model.Empty[decimal.Decimal](), model.Empty[decimal.Decimal](),
		decField("119.00", conf), currField(model.EUR, conf),
	)
	require.NoError(t, err)

	inv, err := model.NewInvoice(
		strField("INV-001", conf), dateFv, model.Empty[time.Time](),
		vendor, amounts, nil,
		model.Empty[string](), model.Empty[string](), model.Empty[string](),
		"proc-1", "sample.pdf", "deterministic",
	)
	require.NoError(t, err)
	inv.DuplicateHash = "hash"
	return inv
}

func passingReport() model.RuleReport {
	return model.RuleReport{Passed: true}
}

func TestDecideAutoPostedWhenAllConditionsMet(t *testing.T) {
	inv := invoiceWithConfidence(t, 0.9)
	d := DefaultPolicy.Decide(inv, passingReport())
	assert.Equal(t, ActionAutoPosted, d.Action)
	assert.True(t, d.Locked)
}

func TestDecideNeedsReviewOnLowFieldConfidence(t *testing.T) {
	inv := invoiceWithConfidence(t, 0.5)
	d := DefaultPolicy.Decide(inv, passingReport())
	assert.Equal(t, ActionNeedsReview, d.Action)
}

func TestDecideLLMFallbackWhenAllFailuresRepairable(t *testing.T) {
	inv := invoiceWithConfidence(t, 0.9)
	report := model.RuleReport{
		Passed:   false,
		Failures: []model.Failure{{Rule: "arithmetic_balance"}, {Rule: "rounding_policy"}},
	}
	d := DefaultPolicy.Decide(inv, report)
	assert.Equal(t, ActionLLMFallback, d.Action)
}

func TestDecideNeedsReviewWhenAnyFailureNonRepairable(t *testing.T) {
	inv := invoiceWithConfidence(t, 0.9)
	report := model.RuleReport{
		Passed:   false,
		Failures: []model.Failure{{Rule: "arithmetic_balance"}, {Rule: "required_currency"}},
	}
	d := DefaultPolicy.Decide(inv, report)
	assert.Equal(t, ActionNeedsReview, d.Action)
}

func TestDecideNeedsReviewOnLowCategoryConfidence(t *testing.T) {
	inv := invoiceWithConfidence(t, 0.9)
	li, err := model.NewLineItem(strField("Widget", 0.9), model.Empty[decimal.Decimal](), model.Empty[decimal.Decimal](), model.Empty[decimal.Decimal](), model.Empty[decimal.Decimal](), model.Empty[decimal.Decimal]())
	require.NoError(t, err)
	li = li.WithCategory("office_supplies", 0.5)
	inv.LineItems = []model.LineItem{li}

	d := DefaultPolicy.Decide(inv, passingReport())
	assert.Equal(t, ActionNeedsReview, d.Action)
}

func TestPolicyValidateRejectsOutOfRangeThresholds(t *testing.T) {
	p := Policy{FieldConfidenceThreshold: 1.5, CategoryConfidenceThreshold: 0.75}
	assert.Error(t, p.Validate())
}
