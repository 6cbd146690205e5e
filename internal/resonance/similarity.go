package resonance

import (
	"errors"
	"fmt"
	"math"
)

var (
	errDimension  = errors.New("vector dimensions differ")
	errZeroVector = errors.New("zero length vector")
)

func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", errDimension, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, errZeroVector
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, errZeroVector
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
