package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSVIncludesHeaderAndFieldRows(t *testing.T) {
	inv := sampleInvoice(t)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, inv))

	reader := csv.NewReader(&buf)
	records, err := reader.ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, records)

	assert.Equal(t, Header, records[0])

	found := false
	for _, rec := range records[1:] {
		if rec[0] == "invoice_number" {
			found = true
			assert.Equal(t, "INV-1001", rec[1])
			assert.Equal(t, "deterministic", rec[5])
			assert.Equal(t, "false", rec[6])
		}
	}
	assert.True(t, found, "invoice_number row not found in CSV output")
}

func TestWriteCSVMarksHumanReviewed(t *testing.T) {
	inv := sampleInvoice(t)
	inv.HumanReviewed = true

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, inv))

	reader := csv.NewReader(&buf)
	records, err := reader.ReadAll()
	require.NoError(t, err)

	for _, rec := range records[1:] {
		assert.Equal(t, "true", rec[6])
	}
}
