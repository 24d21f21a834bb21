package symbol

import (
	"strings"
	"time"
)

// Symbol is the sparse vector representation of a single concept.
// Symbols are immutable once created except for Strength, which only decays,
// and the in-place bounded jitter applied to the vector on re-encounter.
type Symbol struct {
	Concept   string    `json:"concept"`
	Vector    Vector    `json:"vector"`
	Strength  float64   `json:"strength"`
	FirstSeen time.Time `json:"first_seen"`
}

// Binding is the learned association between two co-occurring concepts.
type Binding struct {
	A        string  `json:"a"`
	B        string  `json:"b"`
	Strength float64 `json:"strength"`
}

// pairKey builds an order-independent key for a concept pair.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "\x00" + b
}

// splitPairKey is the inverse of pairKey.
func splitPairKey(key string) (string, string) {
	i := strings.IndexByte(key, '\x00')
	if i < 0 {
		return key, ""
	}
	return key[:i], key[i+1:]
}
