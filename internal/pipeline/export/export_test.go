package export

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/model"
)

func sampleInvoice(t *testing.T) model.Invoice {
	t.Helper()

	num := "INV-1001"
	date := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	due := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	vendorName := "Acme Corporation"
	grand := decimal.RequireFromString("119.00")
	subtotal := decimal.RequireFromString("100.00")
	tax := decimal.RequireFromString("19.00")
	currency := model.EUR

	ev, err := model.NewEvidence(0, model.BBox{X1: 10, Y1: 10, X2: 100, Y2: 30}, "INV-1001", 0.95)
	require.NoError(t, err)

	inv, err := model.NewInvoice(
		model.MustNewFieldValue(&num, 0.95, []model.Evidence{ev}),
		model.MustNewFieldValue(&date, 0.9, []model.Evidence{ev}),
		model.MustNewFieldValue(&due, 0.9, []model.Evidence{ev}),
		model.Vendor{
			Name:    model.MustNewFieldValue(&vendorName, 0.9, []model.Evidence{ev}),
			Address: model.Empty[string](),
			TaxID:   model.Empty[string](),
			Phone:   model.Empty[string](),
			Email:   model.Empty[string](),
		},
		model.Amounts{
			Subtotal:   model.MustNewFieldValue(&subtotal, 0.9, []model.Evidence{ev}),
			TaxAmount:  model.MustNewFieldValue(&tax, 0.9, []model.Evidence{ev}),
			TaxRate:    model.Empty[decimal.Decimal](),
			Discount:   model.Empty[decimal.Decimal](),
			Shipping:   model.Empty[decimal.Decimal](),
			GrandTotal: model.MustNewFieldValue(&grand, 0.9, []model.Evidence{ev}),
			Currency:   model.MustNewFieldValue(&currency, 0.9, []model.Evidence{ev}),
		},
		nil,
		model.Empty[string](), model.Empty[string](), model.Empty[string](),
		"proc-1", "invoice.pdf", "deterministic",
	)
	require.NoError(t, err)

	desc := "Widget Assembly Kit"
	qty := decimal.RequireFromString("3")
	unitPrice := decimal.RequireFromString("10.00")
	lineTotal := decimal.RequireFromString("30.00")
	li, err := model.NewLineItem(
		model.MustNewFieldValue(&desc, 0.85, []model.Evidence{ev}),
		model.MustNewFieldValue(&qty, 0.8, []model.Evidence{ev}),
		model.MustNewFieldValue(&unitPrice, 0.8, []model.Evidence{ev}),
		model.MustNewFieldValue(&lineTotal, 0.8, []model.Evidence{ev}),
		model.Empty[decimal.Decimal](), model.Empty[decimal.Decimal](),
	)
	require.NoError(t, err)
	li = li.WithCategory("office_supplies", 0.7)
	inv.LineItems = []model.LineItem{li}

	return inv
}

func TestRowsFlattensInvoiceAndLineItems(t *testing.T) {
	inv := sampleInvoice(t)
	rows := Rows(inv)

	byName := map[string]Row{}
	for _, r := range rows {
		byName[r.FieldName] = r
	}

	invNum, ok := byName["invoice_number"]
	require.True(t, ok)
	assert.Equal(t, "INV-1001", invNum.FieldValue)
	assert.Equal(t, "deterministic", invNum.ExtractionMethod)
	assert.Equal(t, "0", invNum.EvidencePage)
	assert.NotEmpty(t, invNum.EvidenceBbox)

	date, ok := byName["invoice_date"]
	require.True(t, ok)
	assert.Equal(t, "2026-01-15", date.FieldValue)

	grand, ok := byName["grand_total"]
	require.True(t, ok)
	assert.Equal(t, "119", grand.FieldValue)

	currency, ok := byName["currency"]
	require.True(t, ok)
	assert.Equal(t, "EUR", currency.FieldValue)

	desc, ok := byName["line_item_0_description"]
	require.True(t, ok)
	assert.Equal(t, "Widget Assembly Kit", desc.FieldValue)

	cat, ok := byName["line_item_0_category"]
	require.True(t, ok)
	assert.Equal(t, "office_supplies", cat.FieldValue)
	assert.Equal(t, 0.7, cat.Confidence)
}

func TestRowsEmitsEmptyRowForMissingField(t *testing.T) {
	inv := sampleInvoice(t)
	rows := Rows(inv)

	for _, r := range rows {
		if r.FieldName == "vendor_address" {
			assert.Empty(t, r.FieldValue)
			assert.Equal(t, float64(0), r.Confidence)
			assert.Empty(t, r.EvidencePage)
			return
		}
	}
	t.Fatal("vendor_address row not found")
}

func TestLineItemWithoutCategoryEmitsEmptyCategoryRow(t *testing.T) {
	inv := sampleInvoice(t)
	inv.LineItems[0].Category = nil
	inv.LineItems[0].CategoryConfidence = nil

	rows := Rows(inv)
	for _, r := range rows {
		if r.FieldName == "line_item_0_category" {
			assert.Empty(t, r.FieldValue)
			assert.Equal(t, float64(0), r.Confidence)
			return
		}
	}
	t.Fatal("line_item_0_category row not found")
}
