package model

import "fmt"

// Token is one piece of OCR output: text plus its location and the OCR
// engine's own confidence. Order within a page is not semantically
// meaningful; proximity is what the extractor uses.
type Token struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Page       int     `json:"page"`
	BBox       BBox    `json:"bbox"`
}

// NewToken validates a Token's invariants (same bbox rule as Evidence).
func NewToken(text string, confidence float64, page int, bbox BBox) (Token, error) {
	if page < 0 {
		return Token{}, fmt.Errorf("token page must be >= 0, got %d", page)
	}
	if err := bbox.validate(); err != nil {
		return Token{}, err
	}
	if confidence < 0 || confidence > 1 {
		return Token{}, fmt.Errorf("token confidence out of range [0,1]: %v", confidence)
	}
	return Token{Text: text, Confidence: confidence, Page: page, BBox: bbox}, nil
}

// ToEvidence slices a single-token Evidence record out of the token. Every
// Evidence embedded in an Invoice is a copy made this way.
func (t Token) ToEvidence() Evidence {
	ev, err := NewEvidence(t.Page, t.BBox, t.Text, t.Confidence)
	if err != nil {
		// A Token that passed NewToken always has a valid bbox/page/confidence,
		// so this can only happen if the caller hand-built an invalid Token.
		panic(err)
	}
	return ev
}
