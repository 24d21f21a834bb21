package pattern

import (
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/noema/internal/config"
	"go.uber.org/zap"
)

// Engine matches incoming feature sets against known patterns by resonance,
// reinforcing a match or learning a new pattern in a single shot. A small
// hierarchy of coarser abstraction levels lets very different low-level
// inputs still resonate higher up.
// Not safe for concurrent use: all access is serialized by the mind.
type Engine struct {
	cfg    config.CognitionConfig
	levels []map[string]*Pattern // level -> patternID -> pattern
	now    func() time.Time
	logger *zap.Logger
}

// Result reports what Learn did with an input.
type Result struct {
	Matched    *Pattern `json:"matched,omitempty"`
	Resonance  float64  `json:"resonance"`
	IsNovel    bool     `json:"is_novel"`
	SingleShot bool     `json:"single_shot"`
}

// NewEngine creates a pattern engine with the configured hierarchy depth.
func NewEngine(cfg config.CognitionConfig, logger *zap.Logger) *Engine {
	levels := make([]map[string]*Pattern, cfg.HierarchyLevels)
	for i := range levels {
		levels[i] = make(map[string]*Pattern)
	}
	return &Engine{
		cfg:    cfg,
		levels: levels,
		now:    time.Now,
		logger: logger,
	}
}

// Learn folds a feature set into the pattern space. The returned resonance
// is the raw overlap with the matched pattern's template; match selection
// weighs that overlap by the pattern's confidence.
func (e *Engine) Learn(features []string) *Result {
	if len(features) == 0 {
		return &Result{IsNovel: false}
	}

	res := e.learnAt(0, features, true)

	// Fold into progressively coarser abstraction levels.
	for level := 1; level < len(e.levels); level++ {
		e.learnAt(level, coarsen(features, level, len(e.levels)), false)
	}

	return res
}

// learnAt runs the match/reinforce/create cycle at one hierarchy level.
// Links and single-shot signaling only apply at the base level.
func (e *Engine) learnAt(level int, features []string, base bool) *Result {
	patterns := e.levels[level]

	var best *Pattern
	var bestRaw, bestWeighted float64
	for _, p := range patterns {
		raw := overlap(features, p.Template)
		weighted := raw * p.Confidence
		if weighted > bestWeighted {
			best, bestRaw, bestWeighted = p, raw, weighted
		}
	}

	if best != nil && bestWeighted >= e.cfg.ResonanceThreshold {
		singleShot := base && len(best.Instances) == 1 && bestRaw > e.cfg.SingleShotBar
		e.reinforce(best, features)
		if base {
			e.propagate(best)
			e.logger.Debug("pattern reinforced",
				zap.String("pattern", best.ID),
				zap.Float64("resonance", bestRaw),
				zap.Float64("strength", best.Strength))
		}
		return &Result{Matched: best, Resonance: bestRaw, SingleShot: singleShot}
	}

	created := e.create(level, features, base)
	if base {
		e.logger.Debug("pattern learned",
			zap.String("pattern", created.ID),
			zap.Int("features", len(features)))
	}
	return &Result{Matched: created, Resonance: bestRaw, IsNovel: true}
}

// reinforce appends the instance, recomputes template and confidence, and
// bumps strength multiplicatively.
func (e *Engine) reinforce(p *Pattern, features []string) {
	p.addInstance(features)
	p.recomputeTemplate()
	p.Strength *= e.cfg.ReinforcementFactor
	if p.Strength > 1 {
		p.Strength = 1
	}
	p.recomputeConfidence()
	p.LastMatched = e.now()
}

// propagate passes a small reinforcement along resonance links.
func (e *Engine) propagate(p *Pattern) {
	for id, link := range p.Links {
		linked, ok := e.levels[p.HierarchyLevel][id]
		if !ok {
			delete(p.Links, id)
			continue
		}
		linked.Strength += 0.02 * link
		if linked.Strength > 1 {
			linked.Strength = 1
		}
	}
}

// create seeds a new pattern from a single instance and, at the base level,
// links it to resonant existing patterns above the link floor.
func (e *Engine) create(level int, features []string, base bool) *Pattern {
	p := &Pattern{
		ID:             uuid.New().String(),
		Strength:       e.cfg.BaseStrength + e.cfg.NoveltyBonus,
		Confidence:     0.5,
		HierarchyLevel: level,
		CreatedAt:      e.now(),
		LastMatched:    e.now(),
	}
	p.addInstance(features)
	p.recomputeTemplate()

	if base {
		p.Links = make(map[string]float64)
		for id, other := range e.levels[level] {
			if sim := overlap(features, other.Template); sim >= e.cfg.LinkFloor {
				p.Links[id] = sim
			}
		}
	}

	e.levels[level][p.ID] = p
	return p
}

// DecaySweep multiplies every pattern's strength by the decay factor and
// deletes patterns below the floor. Strengths never increase here.
func (e *Engine) DecaySweep() (removed int) {
	for _, patterns := range e.levels {
		for id, p := range patterns {
			p.Strength *= e.cfg.PatternDecay
			if p.Strength < e.cfg.PatternFloor {
				delete(patterns, id)
				removed++
			}
		}
	}
	if removed > 0 {
		e.logger.Debug("pattern decay sweep", zap.Int("removed", removed))
	}
	return removed
}

// Counts returns the pattern count per hierarchy level.
func (e *Engine) Counts() []int {
	out := make([]int, len(e.levels))
	for i, patterns := range e.levels {
		out[i] = len(patterns)
	}
	return out
}

// Base returns the base-level patterns.
func (e *Engine) Base() []*Pattern {
	out := make([]*Pattern, 0, len(e.levels[0]))
	for _, p := range e.levels[0] {
		out = append(out, p)
	}
	return out
}
