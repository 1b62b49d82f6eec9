package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/model"
)

// Header is the §6 CSV/XLSX column set, in order.
var Header = []string{
	"Field Name", "Field Value", "Confidence", "Evidence Page",
	"Evidence Bbox (JSON array)", "Extraction Method", "Human Reviewed",
}

// WriteCSV emits the Invoice's field rows as CSV, header first. No pack
// repo imports a third-party CSV library — encoding/csv is what the donor
// itself reaches for, and JSON-Patch/struct-tag round-tripping needs
// nothing fancier than a flat delimited table here.
func WriteCSV(w io.Writer, inv model.Invoice) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range Rows(inv) {
		if err := cw.Write(record(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func record(r Row) []string {
	reviewed := "false"
	if r.HumanReviewed {
		reviewed = "true"
	}
	return []string{
		r.FieldName,
		r.FieldValue,
		formatConfidence(r.Confidence),
		r.EvidencePage,
		r.EvidenceBbox,
		r.ExtractionMethod,
		reviewed,
	}
}

func formatConfidence(c float64) string {
	return strconv.FormatFloat(c, 'f', -1, 64)
}
