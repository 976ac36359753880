package embedding

import (
	"fmt"
	"math"
)

// DimensionError reports two vectors that cannot be compared.
type DimensionError struct {
	LenA, LenB int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("vector dimensions do not match: %d vs %d", e.LenA, e.LenB)
}

// Similarity is the outcome of comparing two vectors against a threshold.
type Similarity struct {
	Score       float64
	IsDuplicate bool
	Threshold   float64
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// A zero-magnitude vector yields 0 rather than NaN.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionError{LenA: len(a), LenB: len(b)}
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}

// CheckSimilarity compares two vectors using the client's configured
// threshold. A score exactly at the threshold counts as a duplicate.
func (c *Client) CheckSimilarity(a, b []float32) (Similarity, error) {
	return Compare(a, b, c.cfg.Threshold)
}

// Compare is CheckSimilarity with an explicit threshold.
func Compare(a, b []float32, threshold float64) (Similarity, error) {
	score, err := CosineSimilarity(a, b)
	if err != nil {
		return Similarity{}, err
	}
	return Similarity{
		Score:       score,
		IsDuplicate: isDuplicate(score, threshold),
		Threshold:   threshold,
	}, nil
}

func isDuplicate(score, threshold float64) bool {
	return score >= threshold
}
