package curiosity

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/noema/internal/config"
	"go.uber.org/zap"
)

// Discovery tracks one concept the scheduler has met, its growing
// familiarity and the concepts it was encountered with.
type Discovery struct {
	Concept        string          `json:"concept"`
	FirstSeenAt    time.Time       `json:"first_seen_at"`
	Encounters     int             `json:"encounters"`
	Familiarity    float64         `json:"familiarity"`
	Associations   map[string]bool `json:"associations,omitempty"`
	EmotionalValue float64         `json:"emotional_value"`
}

// Exploration is one act of exploring a set of concepts. FollowUps lists the
// associated concepts worth a deferred exploration; they are queued as
// pending work and popped with Dequeue after a short delay.
type Exploration struct {
	ID        string    `json:"id"`
	Concepts  []string  `json:"concepts"`
	Depth     int       `json:"depth"`
	FollowUps []string  `json:"follow_ups,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// SweepResult reports what a background sweep did.
type SweepResult struct {
	Level     float64
	Spiked    bool
	Synthetic string // non-empty when stagnation produced a self-generated concept
}

// Scheduler decides what is novel and drives exploration of it.
// Not safe for concurrent use: all access is serialized by the mind.
type Scheduler struct {
	cfg         config.CognitionConfig
	discoveries map[string]*Discovery
	queue       []*Exploration
	interests   map[string]float64
	level       float64
	lastExplore time.Time
	rng         *rand.Rand
	now         func() time.Time
	logger      *zap.Logger
}

// NewScheduler creates a curiosity scheduler starting at a mid curiosity level.
func NewScheduler(cfg config.CognitionConfig, rng *rand.Rand, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cfg:         cfg,
		discoveries: make(map[string]*Discovery),
		interests:   make(map[string]float64),
		level:       0.5,
		rng:         rng,
		now:         time.Now,
		logger:      logger,
	}
}

// IsNovel reports whether the aggregate unfamiliarity of the concepts,
// multiplied across them, clears the novelty threshold. A concept never
// seen before counts as fully unfamiliar.
func (s *Scheduler) IsNovel(concepts []string) bool {
	if len(concepts) == 0 {
		return false
	}
	unfamiliar := 1.0
	for _, c := range concepts {
		if d, ok := s.discoveries[c]; ok {
			unfamiliar *= 1 - d.Familiarity
		}
	}
	return unfamiliar > s.cfg.NoveltyThreshold
}

// Explore starts an exploration of the concepts. Depth 0 explorations are
// refused within the cooldown window since the last one; recursive
// explorations skip the cooldown but are refused past the recursion cap or
// once curiosity has sagged to the floor.
func (s *Scheduler) Explore(concepts []string, depth int) *Exploration {
	if len(concepts) == 0 {
		return nil
	}
	now := s.now()
	if depth == 0 {
		cooldown := time.Duration(s.cfg.CooldownSecs) * time.Second
		if !s.lastExplore.IsZero() && now.Sub(s.lastExplore) < cooldown {
			return nil
		}
		s.lastExplore = now
	} else {
		if depth >= s.cfg.RecursionCap || s.level <= s.cfg.CuriosityFloor {
			return nil
		}
	}

	exp := &Exploration{
		ID:        uuid.New().String(),
		Concepts:  append([]string(nil), concepts...),
		Depth:     depth,
		StartedAt: now,
	}

	s.level += s.cfg.CuriosityBoost
	if s.level > 1 {
		s.level = 1
	}

	followSet := make(map[string]bool)
	for _, c := range concepts {
		d := s.discover(c, now)
		for assoc := range d.Associations {
			followSet[assoc] = true
		}
	}
	// Cross-associate every pair seen together.
	for _, a := range concepts {
		for _, b := range concepts {
			if a != b {
				s.discoveries[a].Associations[b] = true
			}
		}
	}
	for _, c := range concepts {
		delete(followSet, c)
	}
	for assoc := range followSet {
		exp.FollowUps = append(exp.FollowUps, assoc)
	}
	sort.Strings(exp.FollowUps)

	// Follow-ups become pending work: queued FIFO, oldest dropped over cap.
	if len(exp.FollowUps) > 0 && depth+1 < s.cfg.RecursionCap {
		s.queue = append(s.queue, &Exploration{
			ID:        uuid.New().String(),
			Concepts:  append([]string(nil), exp.FollowUps...),
			Depth:     depth + 1,
			StartedAt: now,
		})
		if len(s.queue) > s.cfg.QueueCap {
			s.queue = s.queue[1:]
		}
	}

	s.logger.Debug("exploration started",
		zap.Int("concepts", len(concepts)),
		zap.Int("depth", depth),
		zap.Float64("curiosity", s.level))
	return exp
}

// Dequeue pops the oldest pending follow-up exploration, or nil when none
// is waiting. The caller runs it through Explore.
func (s *Scheduler) Dequeue() *Exploration {
	if len(s.queue) == 0 {
		return nil
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	return next
}

// discover records a first sighting or a re-encounter of a concept.
func (s *Scheduler) discover(concept string, now time.Time) *Discovery {
	d, ok := s.discoveries[concept]
	if !ok {
		d = &Discovery{
			Concept:        concept,
			FirstSeenAt:    now,
			Familiarity:    0.1,
			Associations:   make(map[string]bool),
			EmotionalValue: clamp01(0.3 + s.level*0.4),
		}
		s.discoveries[concept] = d
		s.bumpInterest(concept)
	} else {
		d.Familiarity = clamp01(d.Familiarity + 0.1)
	}
	d.Encounters++
	return d
}

func (s *Scheduler) bumpInterest(concept string) {
	category := concept
	if i := strings.IndexByte(concept, ':'); i > 0 {
		category = concept[:i]
	}
	s.interests[category] += 0.1
}

// DecaySweep relaxes curiosity toward the floor, with a small chance of a
// spontaneous spike. When curiosity has bottomed out and no follow-up work
// is pending, it self-generates a synthetic concept so exploration never
// fully stalls.
func (s *Scheduler) DecaySweep() SweepResult {
	s.level = s.cfg.CuriosityFloor + (s.level-s.cfg.CuriosityFloor)*s.cfg.CuriosityDecay
	if s.level < s.cfg.CuriosityFloor {
		s.level = s.cfg.CuriosityFloor
	}

	res := SweepResult{}
	if s.level-s.cfg.CuriosityFloor < 0.01 && len(s.queue) == 0 {
		res.Synthetic = fmt.Sprintf("wonder:%d", s.now().UnixNano())
	}
	if s.rng.Float64() < 0.05 {
		s.level = clamp01(s.level + s.cfg.CuriosityBoost)
		res.Spiked = true
	}
	res.Level = s.level
	return res
}

// Suggest returns the strongest interest category with a text hint, or
// empty strings when nothing has been discovered yet.
func (s *Scheduler) Suggest() (category, hint string) {
	best := -1.0
	for cat, w := range s.interests {
		if w > best || (w == best && cat < category) {
			best, category = w, cat
		}
	}
	if category == "" {
		return "", ""
	}
	return category, fmt.Sprintf("show me something new about %s", category)
}

// Level returns the current curiosity level.
func (s *Scheduler) Level() float64 { return s.level }

// Counts returns the discovery count and the pending follow-up count.
func (s *Scheduler) Counts() (discoveries, pending int) {
	return len(s.discoveries), len(s.queue)
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
