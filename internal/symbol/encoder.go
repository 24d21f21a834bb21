package symbol

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/nidhogg/noema/internal/config"
	"go.uber.org/zap"
)

// Encoder turns raw interaction events into symbols and maintains the
// co-occurrence binding table. Not safe for concurrent use: all access is
// serialized by the mind.
type Encoder struct {
	cfg      config.CognitionConfig
	symbols  map[string]*Symbol // concept -> symbol, vectors cached forever
	bindings map[string]float64 // pairKey -> strength
	rng      *rand.Rand
	logger   *zap.Logger
}

// NewEncoder creates a symbol encoder.
func NewEncoder(cfg config.CognitionConfig, rng *rand.Rand, logger *zap.Logger) *Encoder {
	return &Encoder{
		cfg:      cfg,
		symbols:  make(map[string]*Symbol),
		bindings: make(map[string]float64),
		rng:      rng,
		logger:   logger,
	}
}

// Encode converts an input into an ordered set of symbols and strengthens
// the pairwise bindings between them. It never fails: unknown input shapes
// degrade to a single synthetic symbol so the pipeline always advances.
func (e *Encoder) Encode(input any) []*Symbol {
	concepts := e.concepts(input)
	if len(concepts) == 0 {
		concepts = []string{fmt.Sprintf("unique:%d", time.Now().UnixNano())}
	}

	seen := make(map[string]bool, len(concepts))
	out := make([]*Symbol, 0, len(concepts))
	for _, c := range concepts {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, e.symbol(c))
	}

	// Co-occurrence strengthens every pair produced by this call.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			e.bind(out[i].Concept, out[j].Concept)
		}
	}

	return out
}

// concepts extracts concept strings from the supported input shapes.
func (e *Encoder) concepts(input any) []string {
	switch v := input.(type) {
	case string:
		return tokenize(v)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]string, 0, len(keys))
		for _, k := range keys {
			out = append(out, fmt.Sprintf("%s:%v", k, v[k]))
		}
		return out
	case map[string]string:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]string, 0, len(keys))
		for _, k := range keys {
			out = append(out, k+":"+v[k])
		}
		return out
	case []string:
		return v
	case []any:
		// Decoded JSON arrays arrive as []any.
		out := make([]string, 0, len(v))
		for i, x := range v {
			switch item := x.(type) {
			case string:
				out = append(out, tokenize(item)...)
			case float64:
				out = append(out, fmt.Sprintf("num:%d:%.1f", i, item))
			default:
				out = append(out, fmt.Sprintf("%v", item))
			}
		}
		return out
	case []float64:
		out := make([]string, 0, len(v))
		for i, x := range v {
			out = append(out, fmt.Sprintf("num:%d:%.1f", i, x))
		}
		return out
	case float64:
		return []string{fmt.Sprintf("num:%.1f", v)}
	case int:
		return []string{fmt.Sprintf("num:%d", v)}
	default:
		return nil
	}
}

// symbol returns the cached symbol for a concept, creating it on first sight.
// Re-encounter jitters the existing vector in place.
func (e *Encoder) symbol(concept string) *Symbol {
	if s, ok := e.symbols[concept]; ok {
		s.Vector.jitter(e.rng)
		return s
	}
	s := &Symbol{
		Concept:   concept,
		Vector:    newVector(concept, e.cfg.VectorDimension, e.cfg.VectorSparsity),
		Strength:  1.0,
		FirstSeen: time.Now(),
	}
	e.symbols[concept] = s
	return s
}

// bind strengthens (or creates) the binding between two concepts.
func (e *Encoder) bind(a, b string) {
	key := pairKey(a, b)
	s := e.bindings[key] + e.cfg.BindingIncrement
	if s > 1.0 {
		s = 1.0
	}
	e.bindings[key] = s
}

// BindingStrength returns the current binding strength for a concept pair,
// or 0 when no binding exists.
func (e *Encoder) BindingStrength(a, b string) float64 {
	return e.bindings[pairKey(a, b)]
}

// BoundConcepts returns the concepts bound to the given one, strongest first.
func (e *Encoder) BoundConcepts(concept string) []Binding {
	var out []Binding
	for key, s := range e.bindings {
		a, b := splitPairKey(key)
		switch concept {
		case a:
			out = append(out, Binding{A: a, B: b, Strength: s})
		case b:
			out = append(out, Binding{A: b, B: a, Strength: s})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strength > out[j].Strength })
	return out
}

// Bindings returns a snapshot of all bindings, for mirroring.
func (e *Encoder) Bindings() []Binding {
	out := make([]Binding, 0, len(e.bindings))
	for key, s := range e.bindings {
		a, b := splitPairKey(key)
		out = append(out, Binding{A: a, B: b, Strength: s})
	}
	return out
}

// DecaySweep decays symbol strengths and binding strengths, removing
// bindings that fall below the floor. Strengths never increase here.
func (e *Encoder) DecaySweep() (pruned int) {
	for _, s := range e.symbols {
		s.Strength *= e.cfg.SymbolDecay
	}
	for key, s := range e.bindings {
		s *= e.cfg.SymbolDecay
		if s < e.cfg.BindingFloor {
			delete(e.bindings, key)
			pruned++
			continue
		}
		e.bindings[key] = s
	}
	if pruned > 0 {
		e.logger.Debug("binding decay sweep",
			zap.Int("pruned", pruned),
			zap.Int("remaining", len(e.bindings)))
	}
	return pruned
}

// Counts returns the number of known symbols and bindings.
func (e *Encoder) Counts() (symbols, bindings int) {
	return len(e.symbols), len(e.bindings)
}

// tokenize splits text into lowercase word tokens.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !((r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') ||
			r == '_' || r == '-' ||
			r > 127) // keep unicode chars
	})
	result := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.ToLower(f)
		if len(w) > 1 { // skip single chars
			result = append(result, w)
		}
	}
	return result
}
