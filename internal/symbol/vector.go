package symbol

import (
	"hash/fnv"
	"math"
	"math/rand"
)

// Vector is a fixed-length sparse concept vector. It is allocated exactly
// once per concept and afterwards only mutated in place.
type Vector []float64

// maxJitter bounds the magnitude of in-place noise applied on re-encounter.
const maxJitter = 0.01

// newVector generates a deterministic sparse vector for a concept:
// `sparsity` components chosen by an FNV-seeded generator, values in (0,1].
func newVector(concept string, dimension, sparsity int) Vector {
	h := fnv.New64a()
	h.Write([]byte(concept))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	v := make(Vector, dimension)
	for i := 0; i < sparsity; i++ {
		idx := rng.Intn(dimension)
		for v[idx] != 0 {
			idx = (idx + 1) % dimension
		}
		v[idx] = 0.2 + 0.8*rng.Float64()
	}
	return v
}

// jitter applies bounded-magnitude noise to the non-zero components,
// keeping the vector's sparsity structure and [0,1] range intact.
func (v Vector) jitter(rng *rand.Rand) {
	for i, x := range v {
		if x == 0 {
			continue
		}
		x += (rng.Float64()*2 - 1) * maxJitter
		v[i] = math.Min(1, math.Max(0.01, x))
	}
}

// Cosine returns the cosine similarity between two vectors of equal length.
func Cosine(a, b Vector) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
