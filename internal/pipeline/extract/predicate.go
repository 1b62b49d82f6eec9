package extract

import (
	"regexp"
	"strings"
)

var hasDigitsRE = regexp.MustCompile(`[\d.,]+`)
var alnumRE = regexp.MustCompile(`[A-Za-z0-9]`)
var dateShapeRE = regexp.MustCompile(`\d{1,4}[/\-.]\d{1,2}[/\-.]\d{1,4}`)
var percentShapeRE = regexp.MustCompile(`\d+(\.\d+)?\s*%`)

// looksLikeValue has no case for address/tax_id/phone/email, matching the
// original extractor: those vendor sub-fields are only ever populated from
// the layout cache, never from a fresh proximity match on the page itself.
//
// looksLikeValue is the type predicate from §4.3 step 2: a candidate token
// is only accepted for a field if its text shape matches what that field's
// value should look like.
func looksLikeValue(text string, field FieldType) bool {
	text = strings.TrimSpace(text)
	switch field {
	case FieldTotal, FieldTax, FieldDiscount, FieldShipping, FieldSubtotal:
		return hasDigitsRE.MatchString(text) && len(text) < 50
	case FieldInvoiceNumber:
		return alnumRE.MatchString(text) && len(text) < 30
	case FieldDate, FieldDueDate:
		return dateShapeRE.MatchString(text)
	case FieldVendor:
		return len(text) > 2 && len(text) < 100 && !hasDigitsRE.MatchString(text)
	case FieldTaxRate:
		return percentShapeRE.MatchString(text)
	}
	return false
}
