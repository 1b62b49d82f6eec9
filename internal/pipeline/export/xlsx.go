package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/model"
)

// XLSXWriter emits the same field-row schema as WriteCSV into an .xlsx
// workbook, header row bolded, following the donor's warn-on-error
// setCell pattern rather than aborting the export on a single bad cell.
type XLSXWriter struct {
	logger *zap.Logger
}

// NewXLSXWriter builds a writer; logger may be nil.
func NewXLSXWriter(logger *zap.Logger) *XLSXWriter {
	return &XLSXWriter{logger: logger}
}

// WriteTo writes inv's export rows to a new workbook and saves it to w.
func (x *XLSXWriter) WriteTo(w io.Writer, inv model.Invoice) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	for col, title := range Header {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		x.setCell(f, sheet, cell, title)
	}
	if err := f.SetRowStyle(sheet, 1, 1, boldStyle); err != nil {
		x.warn("set header style", err)
	}

	for rowIdx, r := range Rows(inv) {
		row := rowIdx + 2
		x.setCellAt(f, sheet, 1, row, r.FieldName)
		x.setCellAt(f, sheet, 2, row, r.FieldValue)
		x.setCellAt(f, sheet, 3, row, r.Confidence)
		x.setCellAt(f, sheet, 4, row, r.EvidencePage)
		x.setCellAt(f, sheet, 5, row, r.EvidenceBbox)
		x.setCellAt(f, sheet, 6, row, r.ExtractionMethod)
		x.setCellAt(f, sheet, 7, row, r.HumanReviewed)
	}

	return f.Write(w)
}

func (x *XLSXWriter) setCell(f *excelize.File, sheet, cell string, value interface{}) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		x.warn(fmt.Sprintf("set cell %s", cell), err)
	}
}

func (x *XLSXWriter) setCellAt(f *excelize.File, sheet string, col, row int, value interface{}) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		x.warn("coordinates to cell name", err)
		return
	}
	x.setCell(f, sheet, cell, value)
}

func (x *XLSXWriter) warn(msg string, err error) {
	if x.logger != nil {
		x.logger.Warn("xlsx export: "+msg, zap.Error(err))
	}
}
