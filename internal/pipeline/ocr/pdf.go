package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/gen2brain/go-fitz"
)

// RasterizePDF renders every page of a PDF to a PNG-encoded image, so a
// vision/image OCR Engine can process it page by page. The donor codebase
// carried the go-fitz dependency for exactly this but never implemented
// it (internal/invoice/extractor.go: "TODO: Implement actual PDF reading
// and OCR"); this completes that wiring.
func RasterizePDF(pdfBytes []byte) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(pdfBytes)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	pages := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		img, err := doc.Image(i)
		if err != nil {
			return nil, fmt.Errorf("rendering page %d: %w", i, err)
		}
		png, err := encodePNG(img)
		if err != nil {
			return nil, fmt.Errorf("encoding page %d: %w", i, err)
		}
		pages = append(pages, png)
	}
	return pages, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
