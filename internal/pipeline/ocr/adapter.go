package ocr

import (
	"context"
	"fmt"

	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/model"
	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/perr"
)

// RawToken is what an OCR engine collaborator hands back before
// normalization: raw text, a 0-100 or 0-1 confidence (EngineConfidenceScale
// tells the adapter which), a page number, and an optional bounding box.
type RawToken struct {
	Text       string
	Confidence float64
	Page       int
	BBox       *model.BBox // nil when the engine has no box for this token
}

// Engine is the external OCR collaborator interface (out of scope per
// spec §1): it returns a RawToken stream for image or PDF-page bytes.
type Engine interface {
	ExtractImage(ctx context.Context, imageBytes []byte) ([]RawToken, error)
}

// ConfidenceScale tells the adapter whether an engine's RawToken
// confidences are already in [0,1] or need dividing by 100.
type ConfidenceScale int

const (
	ScaleUnit    ConfidenceScale = iota // already 0..1
	ScalePercent                       // 0..100
)

// Adapter normalizes one engine's RawToken stream into the pipeline's
// Token type (C2).
type Adapter struct {
	engine Engine
	scale  ConfidenceScale
}

// NewAdapter builds an Adapter around an OCR engine collaborator.
func NewAdapter(engine Engine, scale ConfidenceScale) *Adapter {
	return &Adapter{engine: engine, scale: scale}
}

// Extract runs the engine over image bytes and returns normalized Tokens.
// An engine producing zero tokens is an OcrError, not a silently empty
// success — the orchestrator needs to distinguish "no text on the page"
// (valid, rare) from "OCR is broken" at the call site, so it treats empty
// results from Extract as a failure per §7's OcrError definition.
func (a *Adapter) Extract(ctx context.Context, imageBytes []byte) ([]model.Token, error) {
	raw, err := a.engine.ExtractImage(ctx, imageBytes)
	if err != nil {
		return nil, perr.OcrError{Message: fmt.Sprintf("engine extraction failed: %v", err)}
	}
	if len(raw) == 0 {
		return nil, perr.OcrError{Message: "ocr engine produced no tokens"}
	}

	tokens := make([]model.Token, 0, len(raw))
	for i, rt := range raw {
		text := Normalize(rt.Text)
		if text == "" {
			continue
		}

		conf := rt.Confidence
		if a.scale == ScalePercent {
			conf = conf / 100.0
		}
		if conf < 0 {
			conf = 0
		}
		if conf > 1 {
			conf = 1
		}

		bbox := model.SentinelBBox
		if rt.BBox != nil {
			bbox = *rt.BBox
		} else {
			bbox = SentinelBBoxForLine(i)
			if conf > SentinelConfidenceCap {
				conf = SentinelConfidenceCap
			}
		}

		tok, err := model.NewToken(text, conf, rt.Page, bbox)
		if err != nil {
			// A malformed bbox from an engine should not abort the whole
			// document; drop the one token and keep going.
			continue
		}
		tokens = append(tokens, tok)
	}

	if len(tokens) == 0 {
		return nil, perr.OcrError{Message: "ocr engine produced no usable tokens after normalization"}
	}
	return tokens, nil
}
