// Package extract implements the deterministic extractor (C3): it turns a
// Token stream into a fully-populated Invoice using label-proximity
// matching and the value parsers in parse.go, without any document-layout
// heuristics beyond token position.
package extract

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/model"
)

// Extractor holds the process-scoped vendor layout cache across jobs.
type Extractor struct {
	vendorCache *VendorCache
}

// NewExtractor builds an Extractor with the given vendor cache ceiling.
func NewExtractor(vendorCacheSize int) *Extractor {
	return &Extractor{vendorCache: NewVendorCache(vendorCacheSize)}
}

// candidate is an internal match between a label token and a value token,
// scored per §4.3 step 3.
type candidate struct {
	label      model.Token
	value      model.Token
	confidence float64
}

// findBestCandidate enumerates every label-token match for field and picks
// the highest-scoring (label, value) pair, ties broken by distance then by
// reading order (token slice order, since callers always pass tokens in
// their original stream order).
func findBestCandidate(tokens []model.Token, field FieldType) (candidate, bool) {
	patterns := labelPatterns[field]
	var best candidate
	found := false

	for _, label := range tokens {
		text := strings.ToLower(label.Text)
		matched := false
		for _, p := range patterns {
			if strings.Contains(text, strings.ToLower(p)) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		value, ok := findValueNearToken(tokens, label, field)
		if !ok {
			continue
		}
		conf := fieldConfidence(label, value, field)
		if !found || conf > best.confidence ||
			(conf == best.confidence && tokenDistance(label, value) < tokenDistance(best.label, best.value)) {
			best = candidate{label: label, value: value, confidence: conf}
			found = true
		}
	}
	return best, found
}

// findValueNearToken gathers same-page tokens within the 200-unit distance
// cutoff, orders them nearest-first, and returns the first whose text
// shape matches the field's type predicate.
func findValueNearToken(tokens []model.Token, label model.Token, field FieldType) (model.Token, bool) {
	type scored struct {
		tok model.Token
		d   float64
	}
	var nearby []scored
	for _, t := range tokens {
		if t.Page != label.Page {
			continue
		}
		d := tokenDistance(label, t)
		if d < 200 {
			nearby = append(nearby, scored{tok: t, d: d})
		}
	}
	sort.SliceStable(nearby, func(i, j int) bool { return nearby[i].d < nearby[j].d })
	for _, s := range nearby {
		if looksLikeValue(s.tok.Text, field) {
			return s.tok, true
		}
	}
	return model.Token{}, false
}

// extractAmount finds a monetary field and returns its FieldValue, or the
// empty FieldValue if required and not found (confidence 0, per §4.1).
func extractAmount(tokens []model.Token, field FieldType, required bool) model.FieldValue[decimal.Decimal] {
	cand, ok := findBestCandidate(tokens, field)
	if !ok {
		return model.Empty[decimal.Decimal]()
	}
	amt, parsed := ParseAmount(cand.value.Text)
	if !parsed {
		if required {
			return model.Empty[decimal.Decimal]()
		}
		return model.Empty[decimal.Decimal]()
	}
	ev := cand.value.ToEvidence()
	return model.MustNewFieldValue(&amt, cand.confidence, []model.Evidence{ev})
}

// extractTaxRate mirrors extractAmount but parses a percentage.
func extractTaxRate(tokens []model.Token) model.FieldValue[decimal.Decimal] {
	cand, ok := findBestCandidate(tokens, FieldTaxRate)
	if !ok {
		return model.Empty[decimal.Decimal]()
	}
	pct, parsed := ParsePercentage(cand.value.Text)
	if !parsed {
		return model.Empty[decimal.Decimal]()
	}
	d := decimal.NewFromFloat(pct)
	ev := cand.value.ToEvidence()
	return model.MustNewFieldValue(&d, cand.confidence, []model.Evidence{ev})
}

// extractString finds a text field (invoice number, vendor name, or the
// fallback-only vendor sub-fields) and returns its FieldValue.
func extractString(tokens []model.Token, field FieldType) model.FieldValue[string] {
	cand, ok := findBestCandidate(tokens, field)
	if !ok {
		return model.Empty[string]()
	}
	text := strings.TrimSpace(cand.value.Text)
	ev := cand.value.ToEvidence()
	return model.MustNewFieldValue(&text, cand.confidence, []model.Evidence{ev})
}

// extractDate finds a date field and reports whether the DD/MM vs MM/DD
// patterns produced conflicting results (ambiguous).
func extractDate(tokens []model.Token, field FieldType) (model.FieldValue[time.Time], bool) {
	cand, ok := findBestCandidate(tokens, field)
	if !ok {
		return model.Empty[time.Time](), false
	}
	d, parsed, ambiguous := ParseDate(cand.value.Text)
	if !parsed {
		return model.Empty[time.Time](), false
	}
	ev := cand.value.ToEvidence()
	return model.MustNewFieldValue(&d, cand.confidence, []model.Evidence{ev}), ambiguous
}

func extractCurrency(tokens []model.Token, required bool) model.FieldValue[model.CurrencyCode] {
	var best model.Token
	var bestCode string
	bestConf := 0.0
	found := false

	for _, tok := range tokens {
		for code, symbols := range currencyPatterns {
			for _, sym := range symbols {
				if strings.Contains(tok.Text, sym) {
					const conf = 0.9
					if conf > bestConf {
						best, bestCode, bestConf, found = tok, code, conf, true
					}
				}
			}
		}
	}

	if !found {
		if !required {
			return model.Empty[model.CurrencyCode]()
		}
		cc := model.DefaultFallbackCurrency
		return model.MustNewFieldValue(&cc, 0.1, nil)
	}

	cc := model.CurrencyCode(bestCode)
	ev := best.ToEvidence()
	return model.MustNewFieldValue(&cc, bestConf, []model.Evidence{ev})
}

// layoutFingerprint hashes the top-15 read-order tokens' text, stable
// across any permutation that preserves that top-15 set (since the sort
// key is deterministic).
func layoutFingerprint(tokens []model.Token) string {
	sorted := make([]model.Token, len(tokens))
	copy(sorted, tokens)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		if a.BBox.Y1 != b.BBox.Y1 {
			return a.BBox.Y1 < b.BBox.Y1
		}
		return a.BBox.X1 < b.BBox.X1
	})
	n := 15
	if len(sorted) < n {
		n = len(sorted)
	}
	texts := make([]string, n)
	for i := 0; i < n; i++ {
		texts[i] = sorted[i].Text
	}
	return model.StableHash(strings.Join(texts, "|"))
}

func duplicateHash(vendorName, invoiceNumber string, invoiceDate time.Time, grandTotal decimal.Decimal) string {
	return model.StableHash(strings.Join([]string{
		vendorName, invoiceNumber, invoiceDate.Format("2006-01-02"), grandTotal.StringFixed(2),
	}, "|"))
}

// looksLikeLineItem is the run-detection heuristic from §4.3: text with
// both letters and digits, longer than 5 characters.
func looksLikeLineItem(text string) bool {
	hasLetter, hasDigit := false, false
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			hasLetter = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	return hasLetter && hasDigit && len(text) > 5
}

// groupLineItemTokens splits the token stream into contiguous runs of
// line-item-shaped tokens, the same simplified grouping the original
// extractor uses rather than real table layout analysis.
func groupLineItemTokens(tokens []model.Token) [][]model.Token {
	var groups [][]model.Token
	var current []model.Token
	for _, t := range tokens {
		if looksLikeLineItem(t.Text) {
			current = append(current, t)
		} else if len(current) > 0 {
			groups = append(groups, current)
			current = nil
		}
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

func extractLineItem(group []model.Token) (model.LineItem, bool) {
	// Description: the longest token by text length.
	longest := group[0]
	for _, t := range group {
		if len(t.Text) > len(longest.Text) {
			longest = t
		}
	}
	descText := longest.Text
	if descText == "" {
		return model.LineItem{}, false
	}
	desc := model.MustNewFieldValue(&descText, longest.Confidence, []model.Evidence{longest.ToEvidence()})

	var quantity, unitPrice, total, taxAmount, taxRate model.FieldValue[decimal.Decimal]
	quantity = model.Empty[decimal.Decimal]()
	unitPrice = model.Empty[decimal.Decimal]()
	total = model.Empty[decimal.Decimal]()
	taxAmount = model.Empty[decimal.Decimal]()
	taxRate = model.Empty[decimal.Decimal]()

	// Quantity: first pure integer/decimal token.
	for _, t := range group {
		trimmed := strings.TrimSpace(t.Text)
		if _, err := strconv.ParseFloat(trimmed, 64); err == nil {
			qty := decimal.NewFromFloat(mustFloat(trimmed))
			quantity = model.MustNewFieldValue(&qty, t.Confidence, []model.Evidence{t.ToEvidence()})
			break
		}
	}

	// Unit price: first monetary parse.
	var amounts []struct {
		amt decimal.Decimal
		tok model.Token
	}
	for _, t := range group {
		if amt, ok := ParseAmount(t.Text); ok {
			amounts = append(amounts, struct {
				amt decimal.Decimal
				tok model.Token
			}{amt, t})
		}
	}
	if len(amounts) > 0 {
		first := amounts[0]
		unitPrice = model.MustNewFieldValue(&first.amt, first.tok.Confidence, []model.Evidence{first.tok.ToEvidence()})
		last := amounts[len(amounts)-1]
		total = model.MustNewFieldValue(&last.amt, last.tok.Confidence, []model.Evidence{last.tok.ToEvidence()})
	}

	// Tax amount: monetary value near a tax keyword.
	for _, t := range group {
		lower := strings.ToLower(t.Text)
		if strings.Contains(lower, "tax") || strings.Contains(lower, "vat") || strings.Contains(t.Text, "ضريبة") {
			if amt, ok := ParseAmount(t.Text); ok {
				taxAmount = model.MustNewFieldValue(&amt, t.Confidence, []model.Evidence{t.ToEvidence()})
				break
			}
		}
	}

	// Tax rate: reuses the percentage regex on the same tokens as
	// unit_price (known limitation, §9 — may double-count).
	for _, t := range group {
		if pct, ok := ParsePercentage(t.Text); ok {
			d := decimal.NewFromFloat(pct)
			taxRate = model.MustNewFieldValue(&d, t.Confidence, []model.Evidence{t.ToEvidence()})
			break
		}
	}

	li, err := model.NewLineItem(desc, quantity, unitPrice, total, taxAmount, taxRate)
	if err != nil {
		return model.LineItem{}, false
	}
	return li, true
}

func mustFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// ExtractInvoice is the extractor's sole public entry point: tokens plus
// source filename and processing id in, a fully-populated Invoice out,
// with extraction_method="deterministic" and duplicate_hash set.
func (e *Extractor) ExtractInvoice(tokens []model.Token, filename, processingID string) (model.Invoice, []model.Warning, error) {
	layoutHash := layoutFingerprint(tokens)

	vendorName := extractString(tokens, FieldVendor)
	cached, hadCache := e.vendorCache.Get(layoutHash)

	address := fallbackString(extractString(tokens, FieldAddress), cached.Address, hadCache)
	taxID := fallbackString(extractString(tokens, FieldTaxID), cached.TaxID, hadCache)
	phone := fallbackString(extractString(tokens, FieldPhone), cached.Phone, hadCache)
	email := fallbackString(extractString(tokens, FieldEmail), cached.Email, hadCache)

	vendor, err := model.NewVendor(vendorName, address, taxID, phone, email, layoutHash)
	if err != nil {
		return model.Invoice{}, nil, err
	}

	if !hadCache {
		e.vendorCache.PutIfAbsent(layoutHash, VendorZones{
			Address: snapshot(address),
			TaxID:   snapshot(taxID),
			Phone:   snapshot(phone),
			Email:   snapshot(email),
		})
	}

	subtotal := extractAmount(tokens, FieldSubtotal, false)
	taxAmount := extractAmount(tokens, FieldTax, false)
	taxRate := extractTaxRate(tokens)
	discount := extractAmount(tokens, FieldDiscount, false)
	shipping := extractAmount(tokens, FieldShipping, false)
	grandTotal := extractAmount(tokens, FieldTotal, true)
	currency := extractCurrency(tokens, true)

	amounts, err := model.NewAmounts(subtotal, taxAmount, taxRate, discount, shipping, grandTotal, currency)
	if err != nil {
		return model.Invoice{}, nil, err
	}

	invoiceNumber := extractString(tokens, FieldInvoiceNumber)
	invoiceDate, dateAmbiguous := extractDate(tokens, FieldDate)
	dueDate, _ := extractDate(tokens, FieldDueDate)

	var warnings []model.Warning
	if dateAmbiguous {
		warnings = append(warnings, model.Warning{
			Rule:   "date_locale_ambiguous",
			Path:   "/invoice_date",
			Reason: "both DD/MM/YYYY and MM/DD/YYYY parse successfully to different dates; first match wins",
		})
	}

	lineItems := extractLineItems(tokens)

	notes := extractNotes(tokens)
	paymentTerms := extractKeywordField(tokens, []string{"payment", "terms", "due", "net", "days"})
	poNumber := extractKeywordField(tokens, []string{"po", "purchase order", "order no", "order number"})

	var dupHash string
	if invoiceNumber.Present() && invoiceDate.Present() && grandTotal.Present() {
		dupHash = duplicateHash(safeStr(vendor.Name), safeStr(invoiceNumber), *invoiceDate.Value, *grandTotal.Value)
	}

	inv, err := model.NewInvoice(
		invoiceNumber, invoiceDate, dueDate, vendor, amounts, lineItems,
		notes, paymentTerms, poNumber,
		processingID, filename, "deterministic",
	)
	if err != nil {
		return model.Invoice{}, warnings, err
	}
	inv.DuplicateHash = dupHash
	return inv, warnings, nil
}

func safeStr(fv model.FieldValue[string]) string {
	if !fv.Present() {
		return ""
	}
	return *fv.Value
}

func snapshot(fv model.FieldValue[string]) FieldSnapshot {
	if !fv.Present() {
		return FieldSnapshot{}
	}
	return FieldSnapshot{Value: *fv.Value, Confidence: fv.Confidence, Present: true}
}

func fallbackString(fresh model.FieldValue[string], cached FieldSnapshot, hadCache bool) model.FieldValue[string] {
	if fresh.Present() {
		return fresh
	}
	if hadCache && cached.Present {
		v := cached.Value
		conf := cached.Confidence
		if conf > 0.5 {
			// No evidence on this page to back a carried-over value, so
			// it stays unconfirmed regardless of its original confidence.
			conf = 0.5
		}
		return model.MustNewFieldValue(&v, conf, nil)
	}
	return fresh
}

func extractLineItems(tokens []model.Token) []model.LineItem {
	var items []model.LineItem
	for _, group := range groupLineItemTokens(tokens) {
		if li, ok := extractLineItem(group); ok {
			items = append(items, li)
		}
	}
	return items
}

func extractNotes(tokens []model.Token) model.FieldValue[string] {
	var noteTokens []model.Token
	for _, t := range tokens {
		if len(t.Text) > 20 && !looksLikeValue(t.Text, FieldTotal) {
			noteTokens = append(noteTokens, t)
		}
	}
	if len(noteTokens) == 0 {
		return model.Empty[string]()
	}
	texts := make([]string, len(noteTokens))
	minConf := noteTokens[0].Confidence
	evidence := make([]model.Evidence, len(noteTokens))
	for i, t := range noteTokens {
		texts[i] = t.Text
		if t.Confidence < minConf {
			minConf = t.Confidence
		}
		evidence[i] = t.ToEvidence()
	}
	combined := strings.Join(texts, " ")
	return model.MustNewFieldValue(&combined, minConf, evidence)
}

func extractKeywordField(tokens []model.Token, keywords []string) model.FieldValue[string] {
	for _, t := range tokens {
		lower := strings.ToLower(t.Text)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				text := t.Text
				return model.MustNewFieldValue(&text, t.Confidence, []model.Evidence{t.ToEvidence()})
			}
		}
	}
	return model.Empty[string]()
}
