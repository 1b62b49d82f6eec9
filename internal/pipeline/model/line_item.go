package model

import "github.com/shopspring/decimal"

// LineItem is one row of the invoice's itemized table. Description is the
// only required field.
type LineItem struct {
	Description        FieldValue[string]          `json:"description"`
	Quantity           FieldValue[decimal.Decimal] `json:"quantity"`
	UnitPrice          FieldValue[decimal.Decimal] `json:"unit_price"`
	Total              FieldValue[decimal.Decimal] `json:"total"`
	TaxAmount          FieldValue[decimal.Decimal] `json:"tax_amount"`
	TaxRate            FieldValue[decimal.Decimal] `json:"tax_rate"`
	Category           *string                     `json:"category,omitempty"`
	CategoryConfidence *float64                    `json:"category_confidence,omitempty"`
}

// NewLineItem enforces that description is present and non-empty.
func NewLineItem(description FieldValue[string], quantity, unitPrice, total, taxAmount, taxRate FieldValue[decimal.Decimal]) (LineItem, error) {
	if !description.Present() || *description.Value == "" {
		return LineItem{}, SchemaError{Path: "/line_items/-/description", Reason: "line item description is required and must be non-empty"}
	}
	return LineItem{
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Total:       total,
		TaxAmount:   taxAmount,
		TaxRate:     taxRate,
	}, nil
}

// WithCategory attaches a classifier result; no line items means category_ok
// trivially passes, so this is the only place a category gets attached.
func (li LineItem) WithCategory(code string, confidence float64) LineItem {
	li.Category = &code
	li.CategoryConfidence = &confidence
	return li
}
