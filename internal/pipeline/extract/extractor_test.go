package extract

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/model"
)

func tok(text string, page int, x1, y1, x2, y2, confidence float64) model.Token {
	t, err := model.NewToken(text, confidence, page, model.BBox{X1: x1, Y1: y1, X2: x2, Y2: y2})
	if err != nil {
		panic(err)
	}
	return t
}

// Token bands are spaced more than the 200-unit proximity cutoff apart so a
// label in one band never picks up a value from another; within a band,
// label-value pairs sit close enough to win on distance.
func sampleTokens() []model.Token {
	return []model.Token{
		tok("Invoice Number", 0, 10, 10, 110, 30, 0.95),
		tok("INV-2024-001", 0, 120, 10, 220, 30, 0.95),
		tok("Invoice Date", 0, 10, 40, 110, 60, 0.95),
		tok("15/02/2024", 0, 120, 40, 220, 60, 0.9),

		tok("From", 0, 10, 500, 60, 520, 0.9),
		tok("Acme Corporation", 0, 70, 500, 260, 520, 0.9),

		tok("Widget Assembly Kit", 0, 10, 900, 210, 920, 0.85),
		tok("3", 0, 220, 900, 240, 920, 0.8),
		tok("10.00", 0, 250, 900, 310, 920, 0.8),
		tok("30.00", 0, 320, 900, 380, 920, 0.8),

		tok("Subtotal", 0, 10, 1300, 110, 1320, 0.9),
		tok("30.00", 0, 120, 1300, 180, 1320, 0.9),

		tok("Tax", 0, 10, 1600, 60, 1620, 0.9),
		tok("5.70", 0, 120, 1600, 180, 1620, 0.9),

		tok("Total", 0, 10, 1900, 60, 1920, 0.9),
		tok("35.70 EUR", 0, 120, 1900, 220, 1920, 0.9),
	}
}

func shuffled(tokens []model.Token) []model.Token {
	out := make([]model.Token, len(tokens))
	copy(out, tokens)
	rand.New(rand.NewSource(1)).Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func TestLayoutFingerprintStableUnderPermutation(t *testing.T) {
	tokens := sampleTokens()
	h1 := layoutFingerprint(tokens)
	h2 := layoutFingerprint(shuffled(tokens))
	assert.Equal(t, h1, h2)
}

func TestDuplicateHashChangesWithGrandTotal(t *testing.T) {
	d, err := time.Parse("2006-01-02", "2024-02-15")
	require.NoError(t, err)
	h1 := duplicateHash("Acme Corporation", "INV-2024-001", d, decimal.NewFromFloat(35.70))
	h2 := duplicateHash("Acme Corporation", "INV-2024-001", d, decimal.NewFromFloat(35.71))
	assert.NotEqual(t, h1, h2)
}

func TestParseAmountBoundaryCases(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1,234.56", "1234.56"},
		{"1.234,56", "1234.56"},
		{"1234.56", "1234.56"},
		{"35,70", "35.70"},
	}
	for _, c := range cases {
		got, ok := ParseAmount(c.in)
		require.True(t, ok, c.in)
		want, _ := decimal.NewFromString(c.want)
		assert.True(t, want.Equal(got), "in=%s want=%s got=%s", c.in, c.want, got)
	}
}

func TestParseDateLocaleAmbiguity(t *testing.T) {
	r1, ok1, amb1 := ParseDate("15/02/2024")
	require.True(t, ok1)
	assert.False(t, amb1)
	assert.Equal(t, "2024-02-15", r1.Format("2006-01-02"))

	r2, ok2, amb2 := ParseDate("02/15/2024")
	require.True(t, ok2)
	assert.False(t, amb2)
	assert.Equal(t, "2024-02-15", r2.Format("2006-01-02"))
}

func TestExtractInvoiceEndToEnd(t *testing.T) {
	ex := NewExtractor(10)
	inv, warnings, err := ex.ExtractInvoice(sampleTokens(), "sample.pdf", "proc-1")
	require.NoError(t, err)

	require.True(t, inv.InvoiceNumber.Present())
	assert.Equal(t, "INV-2024-001", *inv.InvoiceNumber.Value)

	require.True(t, inv.InvoiceDate.Present())
	assert.Equal(t, "2024-02-15", inv.InvoiceDate.Value.Format("2006-01-02"))

	require.True(t, inv.Vendor.Name.Present())
	assert.Equal(t, "Acme Corporation", *inv.Vendor.Name.Value)

	require.True(t, inv.Amounts.GrandTotal.Present())
	want, _ := decimal.NewFromString("35.70")
	assert.True(t, want.Equal(*inv.Amounts.GrandTotal.Value))

	require.True(t, inv.Amounts.Currency.Present())
	assert.Equal(t, model.EUR, *inv.Amounts.Currency.Value)

	assert.NotEmpty(t, inv.Vendor.LayoutHash)
	assert.NotEmpty(t, inv.DuplicateHash)
	assert.Equal(t, "deterministic", inv.ExtractionMethod)

	// The date itself is unambiguous in this fixture (15 can't be a month),
	// so no ambiguity warning should be raised.
	assert.Empty(t, warnings)
}

// Address/tax_id/phone/email have no looksLikeValue case (see predicate.go),
// so they are only ever populated via the vendor layout cache, never from a
// fresh proximity match on the page itself. This exercises that fallback
// path directly against the cache rather than via extraction, since
// extraction alone can never seed it.
func TestVendorCacheFallbackCapsConfidence(t *testing.T) {
	ex := NewExtractor(10)
	layoutHash := layoutFingerprint(sampleTokens())
	ex.vendorCache.PutIfAbsent(layoutHash, VendorZones{
		Address: FieldSnapshot{Value: "123 Market Street", Confidence: 0.9, Present: true},
	})

	inv, _, err := ex.ExtractInvoice(sampleTokens(), "second.pdf", "proc-2")
	require.NoError(t, err)
	require.True(t, inv.Vendor.Address.Present())
	assert.Equal(t, "123 Market Street", *inv.Vendor.Address.Value)
	assert.LessOrEqual(t, inv.Vendor.Address.Confidence, 0.5)
}

func TestExtractLineItemGrouping(t *testing.T) {
	// looksLikeLineItem requires a single token to carry both letters and
	// digits (len>5), so a realistic fixture packs a whole OCR line (desc,
	// quantity, and price together) into one token rather than one token
	// per word.
	tokens := []model.Token{
		tok("Widget Assembly Kit x3 @10.00 = 30.00", 0, 10, 10, 400, 30, 0.85),
		tok("Replacement Bolt x2 @1.50 = 3.00", 0, 10, 40, 400, 60, 0.85),
	}
	groups := groupLineItemTokens(tokens)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 2)

	items := extractLineItems(tokens)
	require.Len(t, items, 1)
	require.True(t, items[0].Description.Present())
}

func TestVendorCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewVendorCache(2)
	c.PutIfAbsent("a", VendorZones{Address: FieldSnapshot{Value: "A", Present: true}})
	c.PutIfAbsent("b", VendorZones{Address: FieldSnapshot{Value: "B", Present: true}})
	c.Get("a")
	c.PutIfAbsent("c", VendorZones{Address: FieldSnapshot{Value: "C", Present: true}})

	assert.Equal(t, 2, c.Len())
	_, okA := c.Get("a")
	_, okB := c.Get("b")
	_, okC := c.Get("c")
	assert.True(t, okA)
	assert.False(t, okB)
	assert.True(t, okC)
}
