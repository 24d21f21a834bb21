package behavior

import (
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/noema/internal/config"
	"go.uber.org/zap"
)

// activeWindow is how long a triggered loop stays in the active set before
// demotion back to dormant.
const activeWindow = time.Minute

// Crystallizer promotes reliable patterns into behavior loops and matches
// incoming stimuli against them.
// Not safe for concurrent use: all access is serialized by the mind.
type Crystallizer struct {
	cfg         config.CognitionConfig
	loops       map[string]*Loop  // by ID
	bySignature map[string]string // signature -> loop ID
	active      []string          // loop IDs, oldest first
	rng         *rand.Rand
	now         func() time.Time
	logger      *zap.Logger
}

// Match pairs a loop with its resonance score against an input.
type Match struct {
	Loop  *Loop   `json:"loop"`
	Score float64 `json:"score"`
}

// Response describes what a triggered loop wants to do. Variation grows as
// strength shrinks: weak loops improvise, strong loops repeat themselves.
type Response struct {
	LoopID    string   `json:"loop_id"`
	Features  []string `json:"features"`
	Variation float64  `json:"variation"`
}

// NewCrystallizer creates a behavior crystallizer with the given RNG for
// creative variation.
func NewCrystallizer(cfg config.CognitionConfig, rng *rand.Rand, logger *zap.Logger) *Crystallizer {
	return &Crystallizer{
		cfg:         cfg,
		loops:       make(map[string]*Loop),
		bySignature: make(map[string]string),
		rng:         rng,
		now:         time.Now,
		logger:      logger,
	}
}

// Crystallize records a trigger/response pair as a loop. Below the
// crystallization threshold the loop is only a candidate: tracked and
// updated, but unable to resonate or fire. A seed at or above the threshold
// creates it crystallized, or promotes an existing candidate. The returned
// flag reports that this call crystallized the loop. A repeated signature
// updates the existing loop instead of creating a duplicate.
func (c *Crystallizer) Crystallize(trigger, response []string, seed float64, observations int, category string) (*Loop, bool) {
	sig := signature(trigger, response)
	if id, ok := c.bySignature[sig]; ok {
		existing := c.loops[id]
		if observations > existing.SuccessCount {
			existing.SuccessCount = observations
		}
		if seed > existing.Strength {
			existing.Strength = clamp01(seed)
		}
		if existing.State == StateCandidate && existing.Strength >= c.cfg.CrystallizeThreshold {
			existing.State = StateCrystallized
			c.logger.Info("behavior crystallized",
				zap.String("loop", existing.ID),
				zap.Strings("trigger", existing.Trigger),
				zap.Float64("strength", existing.Strength))
			return existing, true
		}
		return existing, false
	}

	state := StateCandidate
	if seed >= c.cfg.CrystallizeThreshold {
		state = StateCrystallized
	}
	loop := &Loop{
		ID:           uuid.New().String(),
		Trigger:      append([]string(nil), trigger...),
		Response:     append([]string(nil), response...),
		Category:     category,
		State:        state,
		Strength:     clamp01(seed),
		SuccessCount: observations,
		Signature:    sig,
		CreatedAt:    c.now(),
	}
	c.loops[loop.ID] = loop
	c.bySignature[sig] = loop.ID

	if state == StateCrystallized {
		c.logger.Info("behavior crystallized",
			zap.String("loop", loop.ID),
			zap.Strings("trigger", loop.Trigger),
			zap.Float64("strength", loop.Strength))
	} else {
		c.logger.Debug("behavior candidate tracked",
			zap.String("loop", loop.ID),
			zap.Float64("strength", loop.Strength))
	}
	return loop, state == StateCrystallized
}

// Resonate scores every live loop against the input, strongest match first.
// Trigger overlap is primary; when context features are present they
// contribute a secondary share. Loops triggered within the last minute get
// a small recency boost.
func (c *Crystallizer) Resonate(features, contextFeatures []string) []Match {
	now := c.now()
	matches := make([]Match, 0, len(c.loops))
	for _, loop := range c.loops {
		if loop.State == StateRemoved || loop.State == StateCandidate {
			continue
		}
		score := featureOverlap(features, loop.Trigger)
		if len(contextFeatures) > 0 {
			score = score*0.7 + featureOverlap(contextFeatures, loop.Trigger)*0.3
		}
		score *= loop.Strength
		if !loop.LastTriggered.IsZero() && now.Sub(loop.LastTriggered) < activeWindow {
			score *= 1.2
		}
		if score > 1 {
			score = 1
		}
		if score > 0 {
			matches = append(matches, Match{Loop: loop, Score: score})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return matches
}

// Trigger fires a loop: it joins the active set (evicting the oldest active
// loop at capacity) and returns a response descriptor. Unknown IDs and
// candidates return nil; decay may have removed the loop already.
func (c *Crystallizer) Trigger(loopID string) *Response {
	loop, ok := c.loops[loopID]
	if !ok || loop.State == StateRemoved || loop.State == StateCandidate {
		return nil
	}

	if loop.State != StateActive {
		loop.State = StateActive
		c.active = append(c.active, loop.ID)
		if len(c.active) > c.cfg.ActiveLoopCap {
			oldest := c.loops[c.active[0]]
			c.active = c.active[1:]
			if oldest != nil && oldest.State == StateActive {
				oldest.State = StateDormant
			}
		}
	}
	loop.LastTriggered = c.now()

	// Low strength means larger creative variation in the response.
	variation := c.rng.Float64() * (1 - loop.Strength)
	resp := &Response{
		LoopID:    loop.ID,
		Features:  append([]string(nil), loop.Response...),
		Variation: variation,
	}
	c.logger.Debug("behavior triggered",
		zap.String("loop", loop.ID),
		zap.Float64("variation", variation))
	return resp
}

// Reinforce applies outcome feedback. Success adds the bonus capped at 1,
// failure subtracts half the bonus floored at the loop floor. Unknown IDs
// report false without error.
func (c *Crystallizer) Reinforce(loopID string, success bool) bool {
	loop, ok := c.loops[loopID]
	if !ok || loop.State == StateRemoved {
		return false
	}
	if success {
		loop.Strength += c.cfg.ReinforceBonus
		if loop.Strength > 1 {
			loop.Strength = 1
		}
		loop.SuccessCount++
	} else {
		loop.Strength -= c.cfg.ReinforceBonus / 2
		if loop.Strength < c.cfg.LoopFloor {
			loop.Strength = c.cfg.LoopFloor
		}
		loop.FailureCount++
	}
	return true
}

// Merge combines two loops into one: union of features, averaged strength,
// summed counters. Both originals are removed.
func (c *Crystallizer) Merge(aID, bID string) *Loop {
	a, okA := c.loops[aID]
	b, okB := c.loops[bID]
	if !okA || !okB || aID == bID {
		return nil
	}

	merged := &Loop{
		ID:           uuid.New().String(),
		Trigger:      unionFeatures(a.Trigger, b.Trigger),
		Response:     unionFeatures(a.Response, b.Response),
		Category:     a.Category,
		State:        StateCrystallized,
		Strength:     (a.Strength + b.Strength) / 2,
		SuccessCount: a.SuccessCount + b.SuccessCount,
		FailureCount: a.FailureCount + b.FailureCount,
		CreatedAt:    c.now(),
	}
	merged.Signature = signature(merged.Trigger, merged.Response)

	c.remove(a)
	c.remove(b)
	c.loops[merged.ID] = merged
	c.bySignature[merged.Signature] = merged.ID

	c.logger.Info("behaviors merged",
		zap.String("a", aID), zap.String("b", bID), zap.String("into", merged.ID))
	return merged
}

// DecaySweep expires stale active loops and decays dormant ones, removing
// loops that fall below the strength floor.
func (c *Crystallizer) DecaySweep() (removed int) {
	now := c.now()

	kept := c.active[:0]
	for _, id := range c.active {
		loop, ok := c.loops[id]
		if !ok {
			continue
		}
		if now.Sub(loop.LastTriggered) >= activeWindow {
			loop.State = StateDormant
			continue
		}
		kept = append(kept, id)
	}
	c.active = kept

	for _, loop := range c.loops {
		if loop.State == StateActive {
			continue
		}
		loop.Strength *= c.cfg.LoopDecay
		if loop.Strength < c.cfg.LoopFloor {
			c.remove(loop)
			removed++
		}
	}
	if removed > 0 {
		c.logger.Debug("behavior decay sweep", zap.Int("removed", removed))
	}
	return removed
}

func (c *Crystallizer) remove(loop *Loop) {
	loop.State = StateRemoved
	delete(c.loops, loop.ID)
	delete(c.bySignature, loop.Signature)
}

// Loop returns a live loop by ID, or nil.
func (c *Crystallizer) Loop(loopID string) *Loop {
	loop, ok := c.loops[loopID]
	if !ok || loop.State == StateRemoved {
		return nil
	}
	return loop
}

// Loops returns a snapshot of all live loops, strongest first.
func (c *Crystallizer) Loops() []*Loop {
	out := make([]*Loop, 0, len(c.loops))
	for _, loop := range c.loops {
		out = append(out, loop)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strength > out[j].Strength })
	return out
}

// Counts returns the live loop count and the active set size.
func (c *Crystallizer) Counts() (total, active int) {
	return len(c.loops), len(c.active)
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
