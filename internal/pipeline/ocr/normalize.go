// Package ocr adapts raw OCR engine output into the pipeline's normalized
// Token stream (C2). The adapter itself never talks to an OCR service; it
// normalizes whatever an Engine collaborator hands back.
package ocr

import (
	"regexp"
	"strings"

	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/model"
)

var digitMap = map[rune]rune{
	// Arabic-Indic digits
	'٠': '0', '١': '1', '٢': '2', '٣': '3', '٤': '4',
	'٥': '5', '٦': '6', '٧': '7', '٨': '8', '٩': '9',
	// Persian digits
	'۰': '0', '۱': '1', '۲': '2', '۳': '3', '۴': '4',
	'۵': '5', '۶': '6', '۷': '7', '۸': '8', '۹': '9',
}

var whitespaceRE = regexp.MustCompile(`\s+`)
var spaceBeforePunctRE = regexp.MustCompile(`\s+([.,:;!?])`)
var spaceBetweenPunctRE = regexp.MustCompile(`([.,:;!?])\s*([.,:;!?])`)

// NormalizeDigits maps Arabic-Indic and Persian digits to ASCII, maps the
// Arabic comma/decimal-point variants to their ASCII equivalents, and
// collapses whitespace. It is idempotent: NormalizeDigits(NormalizeDigits(s))
// == NormalizeDigits(s).
func NormalizeDigits(text string) string {
	if text == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if mapped, ok := digitMap[r]; ok {
			b.WriteRune(mapped)
			continue
		}
		switch r {
		case '٬', '،': // Arabic comma, Arabic comma variant
			b.WriteRune(',')
		case '٫': // Arabic decimal point
			b.WriteRune('.')
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(b.String(), " "))
}

// NormalizeSpacing collapses whitespace and removes spaces before
// punctuation and between adjacent punctuation marks.
func NormalizeSpacing(text string) string {
	if text == "" {
		return ""
	}
	text = whitespaceRE.ReplaceAllString(text, " ")
	text = spaceBeforePunctRE.ReplaceAllString(text, "$1")
	text = spaceBetweenPunctRE.ReplaceAllString(text, "$1$2")
	return strings.TrimSpace(text)
}

// Normalize applies both normalization passes, matching the order the
// original OCR wrapper applies them when building a Token from a raw line.
func Normalize(text string) string {
	return NormalizeSpacing(NormalizeDigits(text))
}

// SentinelBBoxForLine builds the placeholder bbox used when a source has no
// bounding boxes: a fixed-height horizontal band per line index, the same
// scheme as the original OCR wrapper ([0, i*20, 1000, (i+1)*20]).
func SentinelBBoxForLine(i int) model.BBox {
	return model.BBox{X1: 0, Y1: float64(i * 20), X2: 1000, Y2: float64((i + 1) * 20)}
}

// SentinelConfidenceCap is the maximum confidence a token may carry when its
// bounding box is a sentinel rather than a real detection.
const SentinelConfidenceCap = 0.5
