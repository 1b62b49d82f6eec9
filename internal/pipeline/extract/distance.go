package extract

import (
	"math"

	"github.com/layan-haddad/invoice-pipeline/internal/pipeline/model"
)

// tokenDistance is the Euclidean distance between two tokens' bbox centers.
func tokenDistance(a, b model.Token) float64 {
	ax, ay := a.BBox.Center()
	bx, by := b.BBox.Center()
	return math.Hypot(ax-bx, ay-by)
}

// fieldConfidence implements the §4.3 step 3 scoring formula:
// score = min(conf_label,conf_cand) · max(0.1, 1 − d/500) · 0.8 · (1 or 0.3),
// clamped to [0,1].
func fieldConfidence(label, value model.Token, field FieldType) float64 {
	base := math.Min(label.Confidence, value.Confidence)
	d := tokenDistance(label, value)
	distanceFactor := math.Max(0.1, 1.0-(d/500.0))
	const patternFactor = 0.8
	textQuality := 0.3
	if looksLikeValue(value.Text, field) {
		textQuality = 1.0
	}
	score := base * distanceFactor * patternFactor * textQuality
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}
