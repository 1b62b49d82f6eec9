package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetWithEvidenceWritesFullConfidence(t *testing.T) {
	inv := Invoice{}
	ev := mustEvidence(t, "Acme Corp")
	require.NoError(t, Set(&inv, "/vendor/name", "Acme Corp", []Evidence{ev}))

	require.True(t, inv.Vendor.Name.Present())
	assert.Equal(t, "Acme Corp", *inv.Vendor.Name.Value)
	assert.Equal(t, 1.0, inv.Vendor.Name.Confidence)
	assert.Len(t, inv.Vendor.Name.Evidence, 1)
}

func TestSetWithNoEvidenceCapsConfidenceAtHalf(t *testing.T) {
	inv := Invoice{}
	// A human reviewer citing the "human_review" sentinel never resolves to
	// a real Evidence, so the caller passes nil here just as the gateway's
	// evidenceForBBoxIDs does for a hallucinated bbox id.
	require.NotPanics(t, func() {
		require.NoError(t, Set(&inv, "/vendor/name", "Acme Corp", nil))
	})

	require.True(t, inv.Vendor.Name.Present())
	assert.Equal(t, 0.5, inv.Vendor.Name.Confidence)
	assert.Empty(t, inv.Vendor.Name.Evidence)
}

func TestSetDecimalWithNoEvidenceCapsConfidenceAtHalf(t *testing.T) {
	inv := Invoice{}
	require.NotPanics(t, func() {
		require.NoError(t, Set(&inv, "/amounts/grand_total", "35.70", nil))
	})

	require.True(t, inv.Amounts.GrandTotal.Present())
	assert.Equal(t, 0.5, inv.Amounts.GrandTotal.Confidence)
	assert.Empty(t, inv.Amounts.GrandTotal.Evidence)
}

func TestSetRejectsUnknownPath(t *testing.T) {
	inv := Invoice{}
	err := Set(&inv, "/nonsense", "x", nil)
	assert.Error(t, err)
}

func TestGetRoundTripsSetValue(t *testing.T) {
	inv := Invoice{}
	require.NoError(t, Set(&inv, "/invoice_number", "INV-1", nil))

	v, err := Get(&inv, "/invoice_number")
	require.NoError(t, err)
	assert.Equal(t, "INV-1", v)
}
