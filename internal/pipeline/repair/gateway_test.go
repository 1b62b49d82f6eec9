package repair

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/model"
)

type stubFixer struct {
	patches []model.JsonPatch
	err     error
	calls   int
}

func (s *stubFixer) ProposePatch(ctx context.Context, req Request) ([]model.JsonPatch, error) {
	s.calls++
	return s.patches, s.err
}

func sampleTokens() []model.Token {
	bbox := func(x1, y1 float64) model.BBox { return model.BBox{X1: x1, Y1: y1, X2: x1 + 50, Y2: y1 + 10} }
	mk := func(text string, page int, x, y float64) model.Token {
		tok, err := model.NewToken(text, 0.9, page, bbox(x, y))
		if err != nil {
			panic(err)
		}
		return tok
	}
	return []model.Token{
		mk("Total", 0, 100, 500),
		mk("35.70 EUR", 0, 100, 520),
		mk("Subtotal", 0, 100, 300),
		mk("30.00", 0, 100, 320),
		mk("Invoice Date:", 0, 10, 10),
		mk("15/02/2024", 0, 10, 30),
	}
}

func failingReport() model.RuleReport {
	return model.RuleReport{
		Passed: false,
		Failures: []model.Failure{
			{Rule: "arithmetic_balance", Path: "/amounts/grand_total"},
		},
	}
}

func TestBuildEvidenceSnippetsCuratesAroundFailure(t *testing.T) {
	g := NewGateway(&stubFixer{}, 5, 20)
	snippets, byID := g.BuildEvidenceSnippets(sampleTokens(), failingReport())

	require.NotEmpty(t, snippets)
	found := false
	for _, s := range snippets {
		if s.Text == "Total" || s.Text == "35.70 EUR" {
			found = true
		}
	}
	assert.True(t, found, "expected snippets to include tokens near the failing grand_total field")
	assert.NotEmpty(t, byID)
}

func TestRepairDropsPatchMissingRationale(t *testing.T) {
	fixer := &stubFixer{patches: []model.JsonPatch{
		{Op: model.PatchOpReplace, Path: "/amounts/grand_total", Value: "35.70", Rationale: "too short", CitesBBox: []string{"p0#bx_0001"}},
	}}
	g := NewGateway(fixer, 5, 20)
	valid, _, err := g.Repair(context.Background(), model.Invoice{}, failingReport(), sampleTokens())
	require.NoError(t, err)
	assert.Empty(t, valid)
	assert.Equal(t, 1, fixer.calls)
}

func TestRepairDropsPatchOutsideAllowedPaths(t *testing.T) {
	fixer := &stubFixer{patches: []model.JsonPatch{
		{Op: model.PatchOpReplace, Path: "/vendor/address", Value: "123 Main St", Rationale: "matches evidence snippet", CitesBBox: []string{"p0#bx_0001"}},
	}}
	g := NewGateway(fixer, 5, 20)
	valid, _, err := g.Repair(context.Background(), model.Invoice{}, failingReport(), sampleTokens())
	require.NoError(t, err)
	assert.Empty(t, valid)
}

func TestRepairAcceptsWellFormedPatch(t *testing.T) {
	fixer := &stubFixer{patches: []model.JsonPatch{
		{Op: model.PatchOpReplace, Path: "/amounts/grand_total", Value: "35.70", Rationale: "matches total line evidence", CitesBBox: []string{"p0#bx_0001"}},
	}}
	g := NewGateway(fixer, 5, 20)
	valid, _, err := g.Repair(context.Background(), model.Invoice{}, failingReport(), sampleTokens())
	require.NoError(t, err)
	require.Len(t, valid, 1)
	assert.Equal(t, "/amounts/grand_total", valid[0].Path)
}

func TestRepairCapsAtMaxPatches(t *testing.T) {
	var patches []model.JsonPatch
	for i := 0; i < 10; i++ {
		patches = append(patches, model.JsonPatch{
			Op: model.PatchOpReplace, Path: "/amounts/grand_total", Value: "35.70",
			Rationale: "matches total line evidence", CitesBBox: []string{"p0#bx_0001"},
		})
	}
	fixer := &stubFixer{patches: patches}
	g := NewGateway(fixer, 3, 20)
	valid, _, err := g.Repair(context.Background(), model.Invoice{}, failingReport(), sampleTokens())
	require.NoError(t, err)
	assert.Len(t, valid, 3)
}

func TestRepairPropagatesFixerError(t *testing.T) {
	fixer := &stubFixer{err: assertAnError{}}
	g := NewGateway(fixer, 5, 20)
	_, _, err := g.Repair(context.Background(), model.Invoice{}, failingReport(), sampleTokens())
	assert.Error(t, err)
}

type assertAnError struct{}

func (assertAnError) Error() string { return "llm transport failure" }

func TestApplySetsLLMPatchAppliedFlag(t *testing.T) {
	inv := model.Invoice{}
	byID := map[string]model.Token{}
	patches := []model.JsonPatch{
		{Op: model.PatchOpReplace, Path: "/duplicate_hash", Value: "ignored", Rationale: "n/a", CitesBBox: []string{"missing"}},
	}
	// duplicate_hash isn't a settable path via Set, so this patch fails to
	// apply; Apply must still flip the flag because at least one patch was
	// attempted, and must not panic on an unresolvable bbox id.
	Apply(&inv, patches, byID)
	assert.True(t, inv.LLMPatchApplied)
}

func TestApplyHandlesHallucinatedBBoxOnSettablePath(t *testing.T) {
	inv := model.Invoice{}
	byID := map[string]model.Token{
		"p0#bx_0001": {Text: "35.70", Page: 0, Confidence: 0.9},
	}
	patches := []model.JsonPatch{
		{
			Op: model.PatchOpReplace, Path: "/amounts/grand_total", Value: "35.70",
			Rationale: "matches total line evidence", CitesBBox: []string{"p9#bx_9999"},
		},
	}
	// p9#bx_9999 resolves against no token in byID (a hallucinated bbox
	// id), so evidenceForBBoxIDs yields an empty evidence slice for a
	// path Set otherwise accepts. Apply must not panic and must write the
	// field at the unconfirmed (no-evidence) confidence cap of 0.5, not
	// crash inside the FieldValue invariant check.
	require.NotPanics(t, func() { Apply(&inv, patches, byID) })
	assert.True(t, inv.LLMPatchApplied)
	require.True(t, inv.Amounts.GrandTotal.Present())
	assert.Equal(t, "35.70", inv.Amounts.GrandTotal.Value.StringFixed(2))
	assert.Equal(t, 0.5, inv.Amounts.GrandTotal.Confidence)
	assert.Empty(t, inv.Amounts.GrandTotal.Evidence)
}
