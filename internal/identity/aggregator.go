package identity

import (
	"sort"
	"strings"
	"time"

	"github.com/nidhogg/noema/internal/config"
	"go.uber.org/zap"
)

// Aggregator rolls experiences up into per-owner self-models.
// Not safe for concurrent use: all access is serialized by the mind.
type Aggregator struct {
	cfg    config.CognitionConfig
	models map[string]*SelfModel
	now    func() time.Time
	logger *zap.Logger
}

// NewAggregator creates an identity aggregator.
func NewAggregator(cfg config.CognitionConfig, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		cfg:    cfg,
		models: make(map[string]*SelfModel),
		now:    time.Now,
		logger: logger,
	}
}

// model returns the owner's self-model, creating a neutral one on first use.
func (a *Aggregator) model(ownerID string) *SelfModel {
	m, ok := a.models[ownerID]
	if !ok {
		m = &SelfModel{
			OwnerID:       ownerID,
			Name:          "noema",
			SelfConcepts:  make(map[string]float64),
			Personality:   make(map[string]*Trait),
			Values:        make(map[string]float64),
			Relationships: make(map[string]*Relationship),
		}
		for _, dim := range dimensions {
			m.Personality[dim] = &Trait{Value: traitBaseline, Stability: 0.1}
		}
		for _, profile := range categoryProfile {
			m.Values[profile.value] = 0.5
		}
		a.models[ownerID] = m
	}
	return m
}

// Integrate folds one experience into the owner's self-model.
func (a *Aggregator) Integrate(exp Experience) {
	m := a.model(exp.OwnerID)
	now := a.now()

	category := categorize(exp.Features)
	profile := categoryProfile[category]

	// Nudge the matching personality dimension.
	trait := m.Personality[profile.dimension]
	trait.Value = clamp01(trait.Value + 0.02)
	trait.LastReinforce = now

	// Reinforce the matching core value, decay the rest.
	for name := range m.Values {
		if name == profile.value {
			m.Values[name] = clamp01(m.Values[name] + 0.05)
		} else {
			m.Values[name] *= 0.99
		}
	}

	if exp.EntityID != "" {
		rel, ok := m.Relationships[exp.EntityID]
		if !ok {
			rel = &Relationship{Bond: 0.1, Trust: 0.1}
			m.Relationships[exp.EntityID] = rel
		}
		rel.Bond = clamp01(rel.Bond + 0.02)
		rel.Trust = clamp01(rel.Trust + 0.01*exp.Emotion)
		rel.InteractionCount++
		rel.LastSeen = now
	}

	significance := clamp01(exp.Novelty*0.3 + exp.Emotion*0.3 + profile.significance*0.4)
	if significance > a.cfg.SignificanceBar {
		m.Narrative = append(m.Narrative, &NarrativeEntry{
			Description:  exp.Description,
			Category:     category,
			Significance: significance,
			At:           now,
		})
		if len(m.Narrative) > a.cfg.NarrativeCap {
			a.pruneNarrative(m)
		}
	}
}

// pruneNarrative drops the least significant entry, oldest first on ties.
func (a *Aggregator) pruneNarrative(m *SelfModel) {
	drop := 0
	for i, e := range m.Narrative {
		if e.Significance < m.Narrative[drop].Significance {
			drop = i
		}
	}
	m.Narrative = append(m.Narrative[:drop], m.Narrative[drop+1:]...)
}

// Reflect integrates pending narrative into the self-concept map, drifts
// unreinforced personality toward baseline, folds top values into the
// self-concept, and recomputes coherence.
func (a *Aggregator) Reflect(ownerID string) float64 {
	m, ok := a.models[ownerID]
	if !ok {
		return 0
	}
	now := a.now()
	staleness := time.Duration(a.cfg.StalenessWindowSecs) * time.Second

	for _, e := range m.Narrative {
		if e.Integrated {
			continue
		}
		key := "self:" + e.Category
		m.SelfConcepts[key] = clamp01(m.SelfConcepts[key] + e.Significance*0.1)
		e.Integrated = true
	}

	for _, trait := range m.Personality {
		if trait.LastReinforce.IsZero() || now.Sub(trait.LastReinforce) > staleness {
			trait.Value += (traitBaseline - trait.Value) * 0.1
		}
		trait.Stability = clamp01(trait.Stability + 0.01)
	}

	for _, name := range a.topValues(m, 3) {
		key := "value:" + name
		if v := m.Values[name] * 0.5; v > m.SelfConcepts[key] {
			m.SelfConcepts[key] = v
		}
	}

	m.Reflections++
	m.SelfAwareness = clamp01(float64(m.Reflections) * 0.02)
	m.Coherence = a.coherence(m)

	a.logger.Debug("reflection completed",
		zap.String("owner", ownerID),
		zap.Float64("coherence", m.Coherence))
	return m.Coherence
}

// coherence blends self-concept strength, personality stability, value
// importance, and narrative-theme consistency.
func (a *Aggregator) coherence(m *SelfModel) float64 {
	conceptAvg := 0.0
	if len(m.SelfConcepts) > 0 {
		for _, v := range m.SelfConcepts {
			conceptAvg += v
		}
		conceptAvg /= float64(len(m.SelfConcepts))
	}

	stabilityAvg := 0.0
	for _, trait := range m.Personality {
		stabilityAvg += trait.Stability
	}
	stabilityAvg /= float64(len(m.Personality))

	valueAvg := 0.0
	for _, v := range m.Values {
		valueAvg += v
	}
	valueAvg /= float64(len(m.Values))

	consistency := 0.0
	if len(m.Narrative) > 0 {
		byCategory := make(map[string]int)
		dominant := 0
		for _, e := range m.Narrative {
			byCategory[e.Category]++
			if byCategory[e.Category] > dominant {
				dominant = byCategory[e.Category]
			}
		}
		consistency = float64(dominant) / float64(len(m.Narrative))
	}

	return clamp01(conceptAvg*0.3 + stabilityAvg*0.3 + valueAvg*0.2 + consistency*0.2)
}

// topValues returns the n most important value names, strongest first.
func (a *Aggregator) topValues(m *SelfModel, n int) []string {
	names := make([]string, 0, len(m.Values))
	for name := range m.Values {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if m.Values[names[i]] != m.Values[names[j]] {
			return m.Values[names[i]] > m.Values[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > n {
		names = names[:n]
	}
	return names
}

// SelfDescription summarizes the owner's self-model. Unknown owners get a
// zero description rather than an error.
func (a *Aggregator) SelfDescription(ownerID string) Description {
	m, ok := a.models[ownerID]
	if !ok {
		return Description{}
	}
	personality := make(map[string]float64, len(m.Personality))
	for dim, trait := range m.Personality {
		personality[dim] = trait.Value
	}
	return Description{
		Name:          m.Name,
		Personality:   personality,
		TopValues:     a.topValues(m, 3),
		Relationships: len(m.Relationships),
		Coherence:     m.Coherence,
		SelfAwareness: m.SelfAwareness,
	}
}

// Owners lists the owners with a self-model.
func (a *Aggregator) Owners() []string {
	out := make([]string, 0, len(a.models))
	for owner := range a.models {
		out = append(out, owner)
	}
	sort.Strings(out)
	return out
}

// categorize picks an experience category from its features by keyword.
func categorize(features []string) string {
	checks := []struct {
		category string
		keywords []string
	}{
		{categorySocial, []string{"speak", "chat", "friend", "social", "greet"}},
		{categoryLearning, []string{"teach", "learn", "study", "discover"}},
		{categoryAchieve, []string{"achieve", "success", "win", "master"}},
		{categoryEmotional, []string{"feel", "emotion", "happy", "sad", "fear"}},
		{categoryPlay, []string{"play", "game", "toy", "feed", "fun"}},
	}
	for _, check := range checks {
		for _, f := range features {
			for _, kw := range check.keywords {
				if strings.Contains(f, kw) {
					return check.category
				}
			}
		}
	}
	return categoryGeneral
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
