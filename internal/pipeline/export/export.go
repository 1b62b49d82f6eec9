// Package export implements the §6 CSV and XLSX emitters (C11): one row
// per FieldValue in the Invoice, with line-item fields prefixed
// line_item_{n}_.
package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/model"
)

// Row is one emitted record, matching the §6 column schema exactly:
// Field Name, Field Value, Confidence, Evidence Page, Evidence Bbox (JSON
// array), Extraction Method, Human Reviewed.
type Row struct {
	FieldName        string
	FieldValue       string
	Confidence       float64
	EvidencePage     string
	EvidenceBbox     string
	ExtractionMethod string
	HumanReviewed    bool
}

// Rows flattens an Invoice into the export row set. Required-but-empty
// fields still emit a row (empty value, zero confidence) so a reviewer can
// see what extraction failed to find.
func Rows(inv model.Invoice) []Row {
	var rows []Row

	rows = append(rows, fieldRow("invoice_number", inv.InvoiceNumber, inv.ExtractionMethod, inv.HumanReviewed, identity))
	rows = append(rows, fieldRow("invoice_date", inv.InvoiceDate, inv.ExtractionMethod, inv.HumanReviewed, formatDate))
	rows = append(rows, fieldRow("due_date", inv.DueDate, inv.ExtractionMethod, inv.HumanReviewed, formatDate))
	rows = append(rows, fieldRow("vendor_name", inv.Vendor.Name, inv.ExtractionMethod, inv.HumanReviewed, identity))
	rows = append(rows, fieldRow("vendor_address", inv.Vendor.Address, inv.ExtractionMethod, inv.HumanReviewed, identity))
	rows = append(rows, fieldRow("vendor_tax_id", inv.Vendor.TaxID, inv.ExtractionMethod, inv.HumanReviewed, identity))
	rows = append(rows, fieldRow("vendor_phone", inv.Vendor.Phone, inv.ExtractionMethod, inv.HumanReviewed, identity))
	rows = append(rows, fieldRow("vendor_email", inv.Vendor.Email, inv.ExtractionMethod, inv.HumanReviewed, identity))

	rows = append(rows, fieldRow("subtotal", inv.Amounts.Subtotal, inv.ExtractionMethod, inv.HumanReviewed, formatDecimal))
	rows = append(rows, fieldRow("tax_amount", inv.Amounts.TaxAmount, inv.ExtractionMethod, inv.HumanReviewed, formatDecimal))
	rows = append(rows, fieldRow("tax_rate", inv.Amounts.TaxRate, inv.ExtractionMethod, inv.HumanReviewed, formatDecimal))
	rows = append(rows, fieldRow("discount", inv.Amounts.Discount, inv.ExtractionMethod, inv.HumanReviewed, formatDecimal))
	rows = append(rows, fieldRow("shipping", inv.Amounts.Shipping, inv.ExtractionMethod, inv.HumanReviewed, formatDecimal))
	rows = append(rows, fieldRow("grand_total", inv.Amounts.GrandTotal, inv.ExtractionMethod, inv.HumanReviewed, formatDecimal))
	rows = append(rows, fieldRow("currency", inv.Amounts.Currency, inv.ExtractionMethod, inv.HumanReviewed, formatCurrency))

	rows = append(rows, fieldRow("notes", inv.Notes, inv.ExtractionMethod, inv.HumanReviewed, identity))
	rows = append(rows, fieldRow("payment_terms", inv.PaymentTerms, inv.ExtractionMethod, inv.HumanReviewed, identity))
	rows = append(rows, fieldRow("po_number", inv.PONumber, inv.ExtractionMethod, inv.HumanReviewed, identity))

	for i, li := range inv.LineItems {
		prefix := fmt.Sprintf("line_item_%d_", i)
		rows = append(rows, fieldRow(prefix+"description", li.Description, inv.ExtractionMethod, inv.HumanReviewed, identity))
		rows = append(rows, fieldRow(prefix+"quantity", li.Quantity, inv.ExtractionMethod, inv.HumanReviewed, formatDecimal))
		rows = append(rows, fieldRow(prefix+"unit_price", li.UnitPrice, inv.ExtractionMethod, inv.HumanReviewed, formatDecimal))
		rows = append(rows, fieldRow(prefix+"total", li.Total, inv.ExtractionMethod, inv.HumanReviewed, formatDecimal))
		rows = append(rows, fieldRow(prefix+"tax_amount", li.TaxAmount, inv.ExtractionMethod, inv.HumanReviewed, formatDecimal))
		rows = append(rows, fieldRow(prefix+"tax_rate", li.TaxRate, inv.ExtractionMethod, inv.HumanReviewed, formatDecimal))

		categoryRow := Row{FieldName: prefix + "category", ExtractionMethod: inv.ExtractionMethod, HumanReviewed: inv.HumanReviewed}
		if li.Category != nil {
			categoryRow.FieldValue = *li.Category
		}
		if li.CategoryConfidence != nil {
			categoryRow.Confidence = *li.CategoryConfidence
		}
		rows = append(rows, categoryRow)
	}

	return rows
}

func fieldRow[T any](name string, fv model.FieldValue[T], method string, humanReviewed bool, format func(T) string) Row {
	r := Row{FieldName: name, Confidence: fv.Confidence, ExtractionMethod: method, HumanReviewed: humanReviewed}
	if fv.Present() {
		r.FieldValue = format(*fv.Value)
	}
	if page, bbox, ok := firstEvidence(fv.Evidence); ok {
		r.EvidencePage = fmt.Sprint(page)
		r.EvidenceBbox = bbox
	}
	return r
}

func firstEvidence(ev []model.Evidence) (int, string, bool) {
	if len(ev) == 0 {
		return 0, "", false
	}
	b, err := json.Marshal([]float64{ev[0].BBox.X1, ev[0].BBox.Y1, ev[0].BBox.X2, ev[0].BBox.Y2})
	if err != nil {
		return ev[0].Page, "", true
	}
	return ev[0].Page, string(b), true
}

func identity(s string) string { return s }

func formatDate(t time.Time) string { return t.Format("2006-01-02") }

func formatDecimal(d decimal.Decimal) string { return d.String() }

func formatCurrency(c model.CurrencyCode) string { return string(c) }
