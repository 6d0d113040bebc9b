package classifier

import (
	"cmp"
	"fmt"
	"slices"
)

// Dequantize maps a raw model output onto a probability with n.
// With the 8-bit constants {0, 255}: 0 -> 0, 255 -> 1, 128 -> 0.50196.
func Dequantize(raw float32, n Normalization) float32 {
	return n.Apply(raw)
}

// DequantizeTensor dequantizes every value of t.
func DequantizeTensor(t *Tensor, n Normalization) []float32 {
	if t == nil {
		return nil
	}
	scores := make([]float32, t.Len())
	for i := range scores {
		scores[i] = Dequantize(t.At(i), n)
	}
	return scores
}

// PairLabels pairs labels with scores by position.
func PairLabels(labels []string, scores []float32) ([]Recognition, error) {
	if len(labels) != len(scores) {
		return nil, fmt.Errorf("%w: %d labels for %d scores", ErrShapeMismatch, len(labels), len(scores))
	}
	recs := make([]Recognition, len(labels))
	for i, label := range labels {
		recs[i] = NewRecognition(label, scores[i])
	}
	return recs, nil
}

// Rank returns recs sorted by confidence, highest first, truncated to
// maxResults. Equal confidences keep their input order. maxResults <= 0
// returns every result. recs is not modified.
func Rank(recs []Recognition, maxResults int) []Recognition {
	ranked := slices.Clone(recs)
	slices.SortStableFunc(ranked, func(a, b Recognition) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	if maxResults > 0 && maxResults < len(ranked) {
		ranked = ranked[:maxResults]
	}
	return ranked
}

// CheckTopK reports ErrInsufficientLabels when fewer than k labels exist.
// Rank clamps in that case so this is informational.
func CheckTopK(labelCount, k int) error {
	if labelCount < k {
		return fmt.Errorf("%w: %d labels, %d results requested", ErrInsufficientLabels, labelCount, k)
	}
	return nil
}
