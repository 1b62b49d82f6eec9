// Package model holds the typed invoice data model: evidence-backed field
// values, tokens, and the invoice aggregate, plus the schema guard that
// enforces their invariants at construction time.
package model

import "fmt"

// Evidence binds a parsed value to the OCR output it was read from. It is
// immutable once created; callers never get a pointer that lets them mutate
// a field after the fact.
type Evidence struct {
	Page       int     `json:"page"`
	BBox       BBox    `json:"bbox"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// BBox is a rectangle in document coordinates, x1<x2 and y1<y2.
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Center returns the rectangle's center point, used by the extractor's
// proximity scoring.
func (b BBox) Center() (float64, float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

func (b BBox) validate() error {
	if b.X1 >= b.X2 || b.Y1 >= b.Y2 {
		return fmt.Errorf("bbox invariant violated: (%v,%v,%v,%v)", b.X1, b.Y1, b.X2, b.Y2)
	}
	return nil
}

// NewEvidence validates and constructs an Evidence record.
func NewEvidence(page int, bbox BBox, text string, confidence float64) (Evidence, error) {
	if page < 0 {
		return Evidence{}, fmt.Errorf("evidence page must be >= 0, got %d", page)
	}
	if err := bbox.validate(); err != nil {
		return Evidence{}, err
	}
	if confidence < 0 || confidence > 1 {
		return Evidence{}, fmt.Errorf("evidence confidence out of range [0,1]: %v", confidence)
	}
	return Evidence{Page: page, BBox: bbox, Text: text, Confidence: confidence}, nil
}

// SentinelBBox is recorded when the OCR source provides no bounding box.
var SentinelBBox = BBox{X1: 0, Y1: 0, X2: 1, Y2: 1}
