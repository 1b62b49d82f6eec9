package model

import "github.com/shopspring/decimal"

// Amounts aggregates the invoice's monetary fields. GrandTotal and Currency
// are required; the rest are best-effort.
type Amounts struct {
	Subtotal   FieldValue[decimal.Decimal] `json:"subtotal"`
	TaxAmount  FieldValue[decimal.Decimal] `json:"tax_amount"`
	TaxRate    FieldValue[decimal.Decimal] `json:"tax_rate"`
	Discount   FieldValue[decimal.Decimal] `json:"discount"`
	Shipping   FieldValue[decimal.Decimal] `json:"shipping"`
	GrandTotal FieldValue[decimal.Decimal] `json:"grand_total"`
	Currency   FieldValue[CurrencyCode]    `json:"currency"`
}

// NewAmounts enforces that grand_total and currency are present, that every
// present monetary value is non-negative, and that tax_rate (when present)
// is a percentage in [0,100].
func NewAmounts(subtotal, taxAmount, taxRate, discount, shipping, grandTotal FieldValue[decimal.Decimal], currency FieldValue[CurrencyCode]) (Amounts, error) {
	if !grandTotal.Present() {
		return Amounts{}, SchemaError{Path: "/amounts/grand_total", Reason: "grand_total is required"}
	}
	if !currency.Present() {
		return Amounts{}, SchemaError{Path: "/amounts/currency", Reason: "currency is required"}
	}
	for path, fv := range map[string]FieldValue[decimal.Decimal]{
		"/amounts/subtotal":    subtotal,
		"/amounts/tax_amount":  taxAmount,
		"/amounts/discount":    discount,
		"/amounts/shipping":    shipping,
		"/amounts/grand_total": grandTotal,
	} {
		if fv.Present() && fv.Value.IsNegative() {
			return Amounts{}, SchemaError{Path: path, Reason: "monetary amount must be non-negative"}
		}
	}
	if taxRate.Present() {
		zero := decimal.NewFromInt(0)
		hundred := decimal.NewFromInt(100)
		if taxRate.Value.LessThan(zero) || taxRate.Value.GreaterThan(hundred) {
			return Amounts{}, SchemaError{Path: "/amounts/tax_rate", Reason: "tax_rate must be a percentage in [0,100]"}
		}
	}
	return Amounts{
		Subtotal:   subtotal,
		TaxAmount:  taxAmount,
		TaxRate:    taxRate,
		Discount:   discount,
		Shipping:   shipping,
		GrandTotal: grandTotal,
		Currency:   currency,
	}, nil
}
