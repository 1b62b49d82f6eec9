package model

import "time"

// Invoice is the fully-assembled, evidence-backed record the pipeline
// produces. It is immutable once the pipeline completes except through
// JsonPatch application, which touches only the listed paths.
type Invoice struct {
	InvoiceNumber    FieldValue[string]    `json:"invoice_number"`
	InvoiceDate      FieldValue[time.Time] `json:"invoice_date"`
	DueDate          FieldValue[time.Time] `json:"due_date"`
	Vendor           Vendor                `json:"vendor"`
	Amounts          Amounts               `json:"amounts"`
	LineItems        []LineItem            `json:"line_items"`
	Notes            FieldValue[string]    `json:"notes"`
	PaymentTerms     FieldValue[string]    `json:"payment_terms"`
	PONumber         FieldValue[string]    `json:"po_number"`
	ProcessingID     string                `json:"processing_id"`
	SourceFile       string                `json:"source_file"`
	ExtractionMethod string                `json:"extraction_method"`
	LLMPatchApplied  bool                  `json:"llm_patch_applied"`
	HumanReviewed    bool                  `json:"human_reviewed"`
	DuplicateHash    string                `json:"duplicate_hash"`
}

// NewInvoice validates the required Invoice-level fields. Vendor and
// Amounts are assumed already validated by their own constructors; this
// only re-checks the fields owned directly by Invoice.
func NewInvoice(
	invoiceNumber FieldValue[string],
	invoiceDate FieldValue[time.Time],
	dueDate FieldValue[time.Time],
	vendor Vendor,
	amounts Amounts,
	lineItems []LineItem,
	notes, paymentTerms, poNumber FieldValue[string],
	processingID, sourceFile, extractionMethod string,
) (Invoice, error) {
	if !invoiceNumber.Present() || *invoiceNumber.Value == "" {
		return Invoice{}, SchemaError{Path: "/invoice_number", Reason: "invoice_number is required and must be non-empty"}
	}
	if !invoiceDate.Present() {
		return Invoice{}, SchemaError{Path: "/invoice_date", Reason: "invoice_date is required"}
	}
	return Invoice{
		InvoiceNumber:    invoiceNumber,
		InvoiceDate:      invoiceDate,
		DueDate:          dueDate,
		Vendor:           vendor,
		Amounts:          amounts,
		LineItems:        lineItems,
		Notes:            notes,
		PaymentTerms:     paymentTerms,
		PONumber:         poNumber,
		ProcessingID:     processingID,
		SourceFile:       sourceFile,
		ExtractionMethod: extractionMethod,
		LLMPatchApplied:  false,
		HumanReviewed:    false,
	}, nil
}

// RequiredFieldPaths lists the five JSON-Pointer paths the decision policy
// checks for field_conf_ok and which the LLM repair gateway is always
// permitted to touch.
func RequiredFieldPaths() []string {
	return []string{
		"/invoice_number",
		"/invoice_date",
		"/vendor/name",
		"/amounts/grand_total",
		"/amounts/currency",
	}
}
