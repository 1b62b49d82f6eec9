// Package repair implements the bounded LLM repair gateway (C6): it curates
// evidence snippets around a RuleReport's failures, makes at most one LLM
// call per job, strictly validates whatever patches come back, and applies
// the survivors through the C1 JSON-Pointer accessor.
package repair

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"

	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/model"
)

// SystemPrompt is sent as the system message on every repair call. It
// mirrors the original prototype's instruction set: fix only from the
// provided snippets, only touch failed or required-null fields, abstain
// rather than guess, and justify every edit with a cited bbox.
const SystemPrompt = `You are an auditor for invoice JSON. Input: a strict JSON schema instance (fields may be null), a RULE REPORT with failed rules, and OCR evidence snippets with bbox ids.
TASK: Only if you can fix a field with high confidence from the snippets, output a JSON Patch array. Otherwise, output an empty array.
RULES:
- Do not re-extract from raw text beyond the provided snippets.
- Only edit fields listed in failed rules or null required fields.
- If uncertain, abstain.
- For each operation, include a "rationale" string and a "cites_bbox" array of evidence ids.
OUTPUT: an object {"patches": [...]} where each element carries op, path, value, rationale, cites_bbox.`

// EvidenceSnippet is one curated token offered to the LLM as grounding.
type EvidenceSnippet struct {
	BBoxID  string      `json:"bbox_id"`
	Text    string      `json:"text"`
	Context string      `json:"context"`
	Page    int         `json:"page"`
	BBox    model.BBox  `json:"bbox"`
}

// Request is the full payload handed to a Fixer.
type Request struct {
	SystemPrompt        string            `json:"system_prompt"`
	Invoice             model.Invoice     `json:"invoice"`
	RuleReport          model.RuleReport  `json:"rule_report"`
	EvidenceSnippets    []EvidenceSnippet `json:"evidence_snippets"`
	MaxPatches          int               `json:"max_patches"`
	ConfidenceThreshold float64           `json:"confidence_threshold"`
	AllowedOperations   []string          `json:"allowed_operations"`
	RequiredFields      []string          `json:"required_fields"`
}

// Fixer is the LLM collaborator the gateway calls at most once per job.
type Fixer interface {
	ProposePatch(ctx context.Context, req Request) ([]model.JsonPatch, error)
}

// Gateway curates evidence, calls the Fixer once, and validates/applies the
// result.
type Gateway struct {
	fixer               Fixer
	maxPatches          int
	maxSnippets         int
	confidenceThreshold float64
}

// NewGateway builds a Gateway with the §4.6 defaults (max 5 patches,
// confidence threshold 0.8) unless overridden.
func NewGateway(fixer Fixer, maxPatches, maxSnippets int) *Gateway {
	if maxPatches <= 0 {
		maxPatches = 5
	}
	if maxSnippets <= 0 {
		maxSnippets = 20
	}
	return &Gateway{fixer: fixer, maxPatches: maxPatches, maxSnippets: maxSnippets, confidenceThreshold: 0.8}
}

// pathKeywords maps a failing JSON-Pointer path to the label substrings used
// to pull relevant tokens into the evidence snippet set.
var pathKeywords = map[string][]string{
	"/amounts/grand_total": {"total", "amount", "sum", "الإجمالي", "المجموع"},
	"/amounts/subtotal":    {"subtotal", "sub total", "المجموع الفرعي"},
	"/amounts/tax_amount":  {"tax", "vat", "ضريبة"},
	"/amounts/tax_rate":    {"tax", "%", "ضريبة"},
	"/amounts/currency":    {"€", "$", "£", "eur", "usd", "gbp"},
	"/invoice_date":        {"date", "تاريخ"},
	"/due_date":            {"due", "تاريخ الاستحقاق"},
	"/invoice_number":      {"invoice", "فاتورة"},
	"/vendor/name":         {"from", "vendor", "supplier", "المورد"},
	"/duplicate_hash":      {},
}

// BuildEvidenceSnippets curates up to maxSnippets tokens relevant to the
// report's failures (falling back to every required-field keyword if there
// are no failures at all, e.g. a null-required-field-only repair), each
// carrying its own nearby-token context. It also returns a bbox_id→Token
// index so a later patch's cites_bbox can be turned back into Evidence at
// apply time.
func (g *Gateway) BuildEvidenceSnippets(tokens []model.Token, report model.RuleReport) ([]EvidenceSnippet, map[string]model.Token) {
	keywords := map[string]bool{}
	paths := make([]string, 0, len(report.Failures))
	for _, f := range report.Failures {
		paths = append(paths, f.Path)
		for _, kw := range pathKeywords[f.Path] {
			keywords[kw] = true
		}
	}
	if len(keywords) == 0 {
		for _, path := range model.RequiredFieldPaths() {
			for _, kw := range pathKeywords[path] {
				keywords[kw] = true
			}
		}
	}

	var relevant []model.Token
	for _, t := range tokens {
		if tokenMatchesAnyKeyword(t.Text, keywords) {
			relevant = append(relevant, t)
		}
	}
	if len(relevant) == 0 {
		relevant = tokens
	}

	byID := make(map[string]model.Token, len(relevant))
	snippets := make([]EvidenceSnippet, 0, len(relevant))
	for _, t := range relevant {
		if len(snippets) >= g.maxSnippets {
			break
		}
		id := bboxID(t)
		byID[id] = t
		snippets = append(snippets, EvidenceSnippet{
			BBoxID:  id,
			Text:    t.Text,
			Context: tokenContext(tokens, t),
			Page:    t.Page,
			BBox:    t.BBox,
		})
	}
	_ = paths
	return snippets, byID
}

func tokenMatchesAnyKeyword(text string, keywords map[string]bool) bool {
	lower := lowerASCII(text)
	for kw := range keywords {
		if kw == "" {
			continue
		}
		if contains(lower, lowerASCII(kw)) {
			return true
		}
	}
	return false
}

// tokenContext joins the closest same-page tokens (within 40 units of
// vertical distance, nearest five) into a single context string, the way
// the original route handler builds a reading-context window around a
// candidate token.
func tokenContext(tokens []model.Token, target model.Token) string {
	type scored struct {
		tok model.Token
		d   float64
	}
	var nearby []scored
	for _, t := range tokens {
		if t.Page != target.Page {
			continue
		}
		d := math.Abs(t.BBox.Y1 - target.BBox.Y1)
		if d < 40 {
			nearby = append(nearby, scored{tok: t, d: d})
		}
	}
	sort.SliceStable(nearby, func(i, j int) bool { return nearby[i].d < nearby[j].d })
	limit := 5
	if len(nearby) < limit {
		limit = len(nearby)
	}
	out := ""
	for i := 0; i < limit; i++ {
		if i > 0 {
			out += " "
		}
		out += nearby[i].tok.Text
	}
	return out
}

// bboxID reproduces the original's `p{page}#bx_{hash%10000}` scheme using
// fnv32 instead of Python's builtin hash() (which is unstable across
// processes), so the id is reproducible across runs.
func bboxID(t model.Token) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(t.Text))
	return fmt.Sprintf("p%d#bx_%04d", t.Page, h.Sum32()%10000)
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func contains(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	n, m := len(haystack), len(needle)
	if m > n {
		return -1
	}
	for i := 0; i+m <= n; i++ {
		if haystack[i:i+m] == needle {
			return i
		}
	}
	return -1
}

// allowedPatchPath reports whether a patch may touch path: either a
// required-field path, or a path named by one of the report's failures.
func allowedPatchPath(path string, report model.RuleReport) bool {
	for _, p := range model.RequiredFieldPaths() {
		if p == path {
			return true
		}
	}
	for _, f := range report.Failures {
		if f.Path == path {
			return true
		}
	}
	return false
}

// Repair makes at most one call to the Fixer and returns the subset of
// returned patches that pass the §4.6 contract: op∈{replace,add}; path
// required or failure-named; rationale≥10 chars; cites_bbox nonempty.
// Anything that fails validation is dropped silently, never retried.
func (g *Gateway) Repair(ctx context.Context, inv model.Invoice, report model.RuleReport, tokens []model.Token) ([]model.JsonPatch, map[string]model.Token, error) {
	snippets, byID := g.BuildEvidenceSnippets(tokens, report)

	req := Request{
		SystemPrompt:        SystemPrompt,
		Invoice:             inv,
		RuleReport:          report,
		EvidenceSnippets:    snippets,
		MaxPatches:          g.maxPatches,
		ConfidenceThreshold: g.confidenceThreshold,
		AllowedOperations:   []string{"replace", "add"},
		RequiredFields:      model.RequiredFieldPaths(),
	}

	proposed, err := g.fixer.ProposePatch(ctx, req)
	if err != nil {
		return nil, byID, err
	}

	var valid []model.JsonPatch
	for _, p := range proposed {
		if len(valid) >= g.maxPatches {
			break
		}
		if err := p.Validate(); err != nil {
			continue
		}
		if !allowedPatchPath(p.Path, report) {
			continue
		}
		valid = append(valid, p)
	}
	return valid, byID, nil
}

// Apply writes each validated patch into the invoice in order via the C1
// accessor, skipping (not aborting on) any individual patch that fails to
// apply — a malformed value for one field should not block the rest.
func Apply(inv *model.Invoice, patches []model.JsonPatch, byID map[string]model.Token) {
	for _, p := range patches {
		evidence := evidenceForBBoxIDs(p.CitesBBox, byID)
		_ = model.Set(inv, p.Path, p.Value, evidence)
	}
	if len(patches) > 0 {
		inv.LLMPatchApplied = true
	}
}

func evidenceForBBoxIDs(ids []string, byID map[string]model.Token) []model.Evidence {
	var out []model.Evidence
	for _, id := range ids {
		tok, ok := byID[id]
		if !ok {
			continue
		}
		out = append(out, tok.ToEvidence())
	}
	return out
}
