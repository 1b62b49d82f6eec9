package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// splitPath checks that a JSON-Pointer path starts with "/" and splits it
// into its segments; Get and Set then reject any path they do not know.
func splitPath(path string) ([]string, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, SchemaError{Path: path, Reason: "path must start with /"}
	}
	return strings.Split(strings.TrimPrefix(path, "/"), "/"), nil
}

// Get reads a value out of the Invoice at the given JSON-Pointer path.
// Only the paths rules/patches are allowed to name are supported.
func Get(inv *Invoice, path string) (interface{}, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	switch {
	case path == "/invoice_number":
		return valueOrNil(inv.InvoiceNumber), nil
	case path == "/invoice_date":
		return valueOrNil(inv.InvoiceDate), nil
	case path == "/due_date":
		return valueOrNil(inv.DueDate), nil
	case path == "/vendor/name":
		return valueOrNil(inv.Vendor.Name), nil
	case path == "/amounts/subtotal":
		return valueOrNil(inv.Amounts.Subtotal), nil
	case path == "/amounts/tax_amount":
		return valueOrNil(inv.Amounts.TaxAmount), nil
	case path == "/amounts/tax_rate":
		return valueOrNil(inv.Amounts.TaxRate), nil
	case path == "/amounts/discount":
		return valueOrNil(inv.Amounts.Discount), nil
	case path == "/amounts/shipping":
		return valueOrNil(inv.Amounts.Shipping), nil
	case path == "/amounts/grand_total":
		return valueOrNil(inv.Amounts.GrandTotal), nil
	case path == "/amounts/currency":
		return valueOrNil(inv.Amounts.Currency), nil
	case path == "/duplicate_hash":
		return inv.DuplicateHash, nil
	case len(segs) == 3 && segs[0] == "line_items":
		idx, err := strconv.Atoi(segs[1])
		if err != nil || idx < 0 || idx >= len(inv.LineItems) {
			return nil, SchemaError{Path: path, Reason: "line item index out of range"}
		}
		li := inv.LineItems[idx]
		switch segs[2] {
		case "description":
			return valueOrNil(li.Description), nil
		case "quantity":
			return valueOrNil(li.Quantity), nil
		case "unit_price":
			return valueOrNil(li.UnitPrice), nil
		case "total":
			return valueOrNil(li.Total), nil
		case "tax_amount":
			return valueOrNil(li.TaxAmount), nil
		case "tax_rate":
			return valueOrNil(li.TaxRate), nil
		}
	}
	return nil, SchemaError{Path: path, Reason: "unknown or unsupported path"}
}

func valueOrNil[T any](fv FieldValue[T]) interface{} {
	if !fv.Present() {
		return nil
	}
	return *fv.Value
}

// Set writes a value into the Invoice at the given JSON-Pointer path,
// rejecting unknown paths. A write backed by Evidence carries confidence
// 1.0; a write with no Evidence (e.g. a human reviewer correcting a field
// against the source document directly rather than citing an OCR token)
// is capped at 0.5, same as the "unconfirmed" FieldValue invariant any
// other caller-data path is held to (field_value.go). Errors from the
// FieldValue invariant check are propagated, never panicked — both the
// LLM gateway and a human review patch write caller-controlled data.
func Set(inv *Invoice, path string, value interface{}, evidence []Evidence) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	conf := setConfidence(evidence)
	switch {
	case path == "/invoice_number":
		s, err := toString(value)
		if err != nil {
			return err
		}
		fv, err := NewFieldValue(&s, conf, evidence)
		if err != nil {
			return err
		}
		inv.InvoiceNumber = fv
		return nil
	case path == "/invoice_date":
		d, err := toDate(value)
		if err != nil {
			return err
		}
		fv, err := NewFieldValue(&d, conf, evidence)
		if err != nil {
			return err
		}
		inv.InvoiceDate = fv
		return nil
	case path == "/due_date":
		d, err := toDate(value)
		if err != nil {
			return err
		}
		fv, err := NewFieldValue(&d, conf, evidence)
		if err != nil {
			return err
		}
		inv.DueDate = fv
		return nil
	case path == "/vendor/name":
		s, err := toString(value)
		if err != nil {
			return err
		}
		fv, err := NewFieldValue(&s, conf, evidence)
		if err != nil {
			return err
		}
		inv.Vendor.Name = fv
		return nil
	case path == "/amounts/subtotal":
		return setDecimal(&inv.Amounts.Subtotal, value, conf, evidence)
	case path == "/amounts/tax_amount":
		return setDecimal(&inv.Amounts.TaxAmount, value, conf, evidence)
	case path == "/amounts/tax_rate":
		return setDecimal(&inv.Amounts.TaxRate, value, conf, evidence)
	case path == "/amounts/discount":
		return setDecimal(&inv.Amounts.Discount, value, conf, evidence)
	case path == "/amounts/shipping":
		return setDecimal(&inv.Amounts.Shipping, value, conf, evidence)
	case path == "/amounts/grand_total":
		return setDecimal(&inv.Amounts.GrandTotal, value, conf, evidence)
	case path == "/amounts/currency":
		s, err := toString(value)
		if err != nil {
			return err
		}
		cc := CurrencyCode(strings.ToUpper(s))
		fv, err := NewFieldValue(&cc, conf, evidence)
		if err != nil {
			return err
		}
		inv.Amounts.Currency = fv
		return nil
	case len(segs) == 3 && segs[0] == "line_items":
		idx, err := strconv.Atoi(segs[1])
		if err != nil || idx < 0 || idx >= len(inv.LineItems) {
			return SchemaError{Path: path, Reason: "line item index out of range"}
		}
		li := &inv.LineItems[idx]
		switch segs[2] {
		case "description":
			s, err := toString(value)
			if err != nil {
				return err
			}
			fv, err := NewFieldValue(&s, conf, evidence)
			if err != nil {
				return err
			}
			li.Description = fv
			return nil
		case "quantity":
			return setDecimal(&li.Quantity, value, conf, evidence)
		case "unit_price":
			return setDecimal(&li.UnitPrice, value, conf, evidence)
		case "total":
			return setDecimal(&li.Total, value, conf, evidence)
		case "tax_amount":
			return setDecimal(&li.TaxAmount, value, conf, evidence)
		case "tax_rate":
			return setDecimal(&li.TaxRate, value, conf, evidence)
		}
	}
	return SchemaError{Path: path, Reason: "unknown or unsupported path"}
}

// setConfidence picks the confidence a Set write carries: 1.0 when the
// write cites Evidence, else the "unconfirmed" cap of 0.5 so the
// FieldValue invariant (evidence=∅ ⇒ confidence≤0.5) always holds.
func setConfidence(evidence []Evidence) float64 {
	if len(evidence) == 0 {
		return 0.5
	}
	return 1.0
}

func setDecimal(dst *FieldValue[decimal.Decimal], value interface{}, conf float64, evidence []Evidence) error {
	d, err := toDecimal(value)
	if err != nil {
		return err
	}
	fv, err := NewFieldValue(&d, conf, evidence)
	if err != nil {
		return err
	}
	*dst = fv
	return nil
}

func toString(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string value, got %T", v)
	}
	return s, nil
}

func toDecimal(v interface{}) (decimal.Decimal, error) {
	switch t := v.(type) {
	case string:
		return decimal.NewFromString(t)
	case float64:
		return decimal.NewFromFloat(t), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("expected numeric value, got %T", v)
	}
}

func toDate(v interface{}) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("expected date string, got %T", v)
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}
