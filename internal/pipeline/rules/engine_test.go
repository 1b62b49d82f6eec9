package rules

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/model"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func amountField(s string) model.FieldValue[decimal.Decimal] {
	d := dec(s)
	ev, _ := model.NewEvidence(0, model.SentinelBBox, s, 0.9)
	return model.MustNewFieldValue(&d, 0.9, []model.Evidence{ev})
}

func stringField(s string) model.FieldValue[string] {
	ev, _ := model.NewEvidence(0, model.SentinelBBox, s, 0.9)
	return model.MustNewFieldValue(&s, 0.9, []model.Evidence{ev})
}

func dateField(t time.Time) model.FieldValue[time.Time] {
	ev, _ := model.NewEvidence(0, model.SentinelBBox, t.Format("2006-01-02"), 0.9)
	return model.MustNewFieldValue(&t, 0.9, []model.Evidence{ev})
}

func currencyField(c model.CurrencyCode) model.FieldValue[model.CurrencyCode] {
	ev, _ := model.NewEvidence(0, model.SentinelBBox, string(c), 0.9)
	return model.MustNewFieldValue(&c, 0.9, []model.Evidence{ev})
}

func baseInvoice(t *testing.T) model.Invoice {
	t.Helper()
	invDate, err := time.Parse("2006-01-02", "2024-02-15")
	require.NoError(t, err)

	vendor, err := model.NewVendor(stringField("Acme Corporation"), model.Empty[string](), model.Empty[string](), model.Empty[string](), model.Empty[string](), "hash123")
	require.NoError(t, err)

	amounts, err := model.NewAmounts(
		amountField("100.00"), amountField("19.00"), amountField("19"),
		model.Empty[decimal.Decimal](), model.Empty[decimal.Decimal](),
		amountField("119.00"), currencyField(model.EUR),
	)
	require.NoError(t, err)

	li, err := model.NewLineItem(stringField("Widget"), amountField("1"), amountField("100.00"), amountField("100.00"), amountField("19.00"), amountField("19"))
	require.NoError(t, err)

	inv, err := model.NewInvoice(
		stringField("INV-001"), dateField(invDate), model.Empty[time.Time](),
		vendor, amounts, []model.LineItem{li},
		model.Empty[string](), model.Empty[string](), model.Empty[string](),
		"proc-1", "sample.pdf", "deterministic",
	)
	require.NoError(t, err)
	inv.DuplicateHash = "dup-hash"
	return inv
}

func TestEvaluateCleanInvoicePasses(t *testing.T) {
	e := NewEngine(DefaultThresholds)
	report := e.Evaluate(baseInvoice(t))
	assert.True(t, report.Passed)
	assert.Empty(t, report.Failures)
}

func TestArithmeticBalanceFailsOutsideTolerance(t *testing.T) {
	inv := baseInvoice(t)
	bad := dec("500.00")
	inv.Amounts.GrandTotal = model.MustNewFieldValue(&bad, 0.9, inv.Amounts.GrandTotal.Evidence)

	e := NewEngine(DefaultThresholds)
	report := e.Evaluate(inv)
	assert.False(t, report.Passed)
	require.NotEmpty(t, report.Failures)
	assert.Equal(t, "arithmetic_balance", report.Failures[0].Rule)
}

func TestDueDateBeforeInvoiceDateFails(t *testing.T) {
	inv := baseInvoice(t)
	due, err := time.Parse("2006-01-02", "2024-01-01")
	require.NoError(t, err)
	inv.DueDate = dateField(due)

	e := NewEngine(DefaultThresholds)
	report := e.Evaluate(inv)
	assert.False(t, report.Passed)

	found := false
	for _, f := range report.Failures {
		if f.Rule == "date_logic" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestNegativeAmountFails(t *testing.T) {
	inv := baseInvoice(t)
	neg := dec("-5.00")
	inv.Amounts.Discount = model.MustNewFieldValue(&neg, 0.9, []model.Evidence{inv.Amounts.GrandTotal.Evidence[0]})

	e := NewEngine(DefaultThresholds)
	report := e.Evaluate(inv)
	assert.False(t, report.Passed)

	found := false
	for _, f := range report.Failures {
		if f.Rule == "non_negative_amount" && f.Path == "/amounts/discount" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestMissingDuplicateHashFails(t *testing.T) {
	inv := baseInvoice(t)
	inv.DuplicateHash = ""

	e := NewEngine(DefaultThresholds)
	report := e.Evaluate(inv)
	assert.False(t, report.Passed)

	found := false
	for _, f := range report.Failures {
		if f.Rule == "duplicate_hash" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRoundingPolicyRejectsExcessDecimals(t *testing.T) {
	inv := baseInvoice(t)
	precise := dec("119.0001")
	inv.Amounts.GrandTotal = model.MustNewFieldValue(&precise, 0.9, inv.Amounts.GrandTotal.Evidence)

	e := NewEngine(DefaultThresholds)
	report := e.Evaluate(inv)
	assert.False(t, report.Passed)

	found := false
	for _, f := range report.Failures {
		if f.Rule == "rounding_policy" && f.Path == "/amounts/grand_total" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestAllRepairableRespectsRuleSet(t *testing.T) {
	report := model.RuleReport{Failures: []model.Failure{{Rule: "arithmetic_balance"}}}
	assert.True(t, report.AllRepairable())

	report.Failures = append(report.Failures, model.Failure{Rule: "required_currency"})
	assert.False(t, report.AllRepairable())
}
