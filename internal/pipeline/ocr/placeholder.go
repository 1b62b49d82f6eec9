package ocr

import (
	"context"

	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/perr"
)

// PlaceholderEngine satisfies Engine without calling out to any real OCR
// service. It exists so cmd/server and cmd/pipeline can wire a complete
// Orchestrator without binding this core to one specific external OCR
// vendor (Google Cloud Vision, Tesseract, ...), matching §1's "OCR engines
// are external collaborators, out of scope" boundary. A deployment swaps
// this for a real Engine implementation at wiring time; every job run
// through it fails with a clearly-labeled OcrError rather than silently
// fabricating tokens.
type PlaceholderEngine struct{}

// NewPlaceholderEngine builds the no-op Engine.
func NewPlaceholderEngine() *PlaceholderEngine { return &PlaceholderEngine{} }

// ExtractImage always fails: no OCR engine is configured.
func (PlaceholderEngine) ExtractImage(ctx context.Context, imageBytes []byte) ([]RawToken, error) {
	return nil, perr.OcrError{Message: "no OCR engine configured; wire a real Engine implementation at startup"}
}
