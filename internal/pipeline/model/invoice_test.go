package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func mustEvidence(t *testing.T, text string) Evidence {
	t.Helper()
	ev, err := NewEvidence(0, BBox{X1: 0, Y1: 0, X2: 10, Y2: 10}, text, 0.9)
	require.NoError(t, err)
	return ev
}

func TestNewInvoiceRequiresInvoiceNumber(t *testing.T) {
	vendorName := "ACME GmbH"
	vendor, err := NewVendor(
		MustNewFieldValue(&vendorName, 0.9, []Evidence{mustEvidence(t, vendorName)}),
		Empty[string](), Empty[string](), Empty[string](), Empty[string](),
		"hash1",
	)
	require.NoError(t, err)

	total := decimal.NewFromFloat(1190.00)
	currency := EUR
	amounts, err := NewAmounts(
		Empty[decimal.Decimal](), Empty[decimal.Decimal](), Empty[decimal.Decimal](),
		Empty[decimal.Decimal](), Empty[decimal.Decimal](),
		MustNewFieldValue(&total, 0.9, []Evidence{mustEvidence(t, "1190.00")}),
		MustNewFieldValue(&currency, 0.9, []Evidence{mustEvidence(t, "EUR")}),
	)
	require.NoError(t, err)

	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	_, err = NewInvoice(
		Empty[string](),
		MustNewFieldValue(&date, 0.9, []Evidence{mustEvidence(t, "15.03.2024")}),
		Empty[time.Time](),
		vendor, amounts, nil,
		Empty[string](), Empty[string](), Empty[string](),
		"job-1", "invoice.pdf", "deterministic",
	)
	var schemaErr SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Equal(t, "/invoice_number", schemaErr.Path)
}

func TestSetAmountsGrandTotalRoundTrips(t *testing.T) {
	vendorName := "ACME GmbH"
	vendor, err := NewVendor(
		MustNewFieldValue(&vendorName, 0.9, []Evidence{mustEvidence(t, vendorName)}),
		Empty[string](), Empty[string](), Empty[string](), Empty[string](),
		"hash1",
	)
	require.NoError(t, err)

	total := decimal.NewFromFloat(1200.00)
	currency := EUR
	amounts, err := NewAmounts(
		Empty[decimal.Decimal](), Empty[decimal.Decimal](), Empty[decimal.Decimal](),
		Empty[decimal.Decimal](), Empty[decimal.Decimal](),
		MustNewFieldValue(&total, 0.9, []Evidence{mustEvidence(t, "1200.00")}),
		MustNewFieldValue(&currency, 0.9, []Evidence{mustEvidence(t, "EUR")}),
	)
	require.NoError(t, err)

	invNumber := "INV-2024-001"
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	inv, err := NewInvoice(
		MustNewFieldValue(&invNumber, 0.9, []Evidence{mustEvidence(t, invNumber)}),
		MustNewFieldValue(&date, 0.9, []Evidence{mustEvidence(t, "15.03.2024")}),
		Empty[time.Time](),
		vendor, amounts, nil,
		Empty[string](), Empty[string](), Empty[string](),
		"job-1", "invoice.pdf", "deterministic",
	)
	require.NoError(t, err)

	require.NoError(t, Set(&inv, "/amounts/grand_total", "1190.00", []Evidence{mustEvidence(t, "1190.00")}))
	got, err := Get(&inv, "/amounts/grand_total")
	require.NoError(t, err)
	gotDec, ok := got.(decimal.Decimal)
	require.True(t, ok)
	require.True(t, gotDec.Equal(decimal.NewFromFloat(1190.00)))
}
