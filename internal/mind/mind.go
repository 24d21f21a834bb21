package mind

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/nidhogg/noema/internal/behavior"
	"github.com/nidhogg/noema/internal/config"
	"github.com/nidhogg/noema/internal/curiosity"
	"github.com/nidhogg/noema/internal/identity"
	"github.com/nidhogg/noema/internal/memory"
	"github.com/nidhogg/noema/internal/pattern"
	"github.com/nidhogg/noema/internal/symbol"
	"github.com/nidhogg/noema/internal/telemetry"
	"go.uber.org/zap"
)

// followUpDelay is how long a recursive exploration waits before it runs.
const followUpDelay = 2 * time.Second

// Archiver receives records purged by the forgetting sweep.
type Archiver interface {
	Archive(records []*memory.Record)
}

// RecallIndex mirrors stored records into a vector index.
type RecallIndex interface {
	Mirror(rec *memory.Record, vec []float32)
}

// BindingMirror receives snapshots of the symbol binding table.
type BindingMirror interface {
	Sync(bindings []symbol.Binding)
}

// Mind is the single-consumer actor in front of the whole cognition
// pipeline. Every mutation of the components below runs on the actor
// goroutine, so the components themselves carry no locks. External callers
// submit closures through the command channel and wait for completion.
type Mind struct {
	cfg config.CognitionConfig

	encoder   *symbol.Encoder
	memories  *memory.Store
	patterns  *pattern.Engine
	behaviors *behavior.Crystallizer
	curiosity *curiosity.Scheduler
	identity  *identity.Aggregator

	hub     *telemetry.Hub
	archive Archiver
	recall  RecallIndex
	graph   BindingMirror

	dataDir   string
	commands  chan func()
	quit      chan struct{}
	stopped   chan struct{}
	rng       *rand.Rand
	lastSweep map[string]time.Time
	events    int
	started   time.Time
	now       func() time.Time
	logger    *zap.Logger
}

// Options carries the optional external backends. Any of them may be nil;
// the mind degrades to in-memory-only operation.
type Options struct {
	DataDir string
	Archive Archiver
	Recall  RecallIndex
	Graph   BindingMirror
}

// EventResult is what a submitted event came to.
type EventResult struct {
	Symbols    []string           `json:"symbols"`
	MemoryID   string             `json:"memory_id"`
	Resonance  float64            `json:"resonance"`
	Learned    bool               `json:"learned"`
	SingleShot bool               `json:"single_shot"`
	Response   *behavior.Response `json:"response,omitempty"`
}

// Metrics is a point-in-time snapshot of pipeline counters.
type Metrics struct {
	Symbols        int                 `json:"symbols"`
	Bindings       int                 `json:"bindings"`
	Memories       map[memory.Kind]int `json:"memories"`
	PatternLevels  []int               `json:"pattern_levels"`
	Loops          int                 `json:"loops"`
	ActiveLoops    int                 `json:"active_loops"`
	Discoveries    int                 `json:"discoveries"`
	QueueDepth     int                 `json:"queue_depth"`
	CuriosityLevel float64             `json:"curiosity_level"`
	Coherence      float64             `json:"coherence"`
	Owners         []string            `json:"owners"`
	Events         int                 `json:"events"`
	UptimeSecs     float64             `json:"uptime_secs"`
}

// ErrClosed is returned for calls after Close.
var ErrClosed = errors.New("mind: closed")

// New assembles the pipeline and loads memory snapshots from the data
// directory. Call Run to start the actor loop.
func New(cfg config.CognitionConfig, hub *telemetry.Hub, opts Options, logger *zap.Logger) *Mind {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	m := &Mind{
		cfg:       cfg,
		encoder:   symbol.NewEncoder(cfg, rng, logger),
		memories:  memory.NewStore(cfg, logger),
		patterns:  pattern.NewEngine(cfg, logger),
		behaviors: behavior.NewCrystallizer(cfg, rng, logger),
		curiosity: curiosity.NewScheduler(cfg, rng, logger),
		identity:  identity.NewAggregator(cfg, logger),
		hub:       hub,
		archive:   opts.Archive,
		recall:    opts.Recall,
		graph:     opts.Graph,
		dataDir:   opts.DataDir,
		commands:  make(chan func(), 64),
		quit:      make(chan struct{}),
		stopped:   make(chan struct{}),
		rng:       rng,
		lastSweep: make(map[string]time.Time),
		started:   time.Now(),
		now:       time.Now,
		logger:    logger,
	}
	m.memories.LoadAll(opts.DataDir)
	return m
}

// Run consumes commands until Close. It is the only goroutine that touches
// the pipeline components.
func (m *Mind) Run() {
	defer close(m.stopped)
	for {
		select {
		case cmd := <-m.commands:
			cmd()
		case <-m.quit:
			// Drain what was already queued, then flush snapshots.
			for {
				select {
				case cmd := <-m.commands:
					cmd()
				default:
					m.memories.SaveAll(m.dataDir)
					m.logger.Info("mind stopped")
					return
				}
			}
		}
	}
}

// Close stops the actor loop after draining queued commands and flushes
// memory snapshots.
func (m *Mind) Close() {
	select {
	case <-m.quit:
	default:
		close(m.quit)
	}
	<-m.stopped
}

// do runs fn on the actor goroutine and waits for it.
func (m *Mind) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		fn()
		close(done)
	}
	select {
	case m.commands <- wrapped:
	case <-m.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-m.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// submitAsync queues fn without waiting. Used by tick and timer callbacks;
// drops when the queue is full, since sweeps and follow-ups are best-effort.
func (m *Mind) submitAsync(fn func()) {
	select {
	case m.commands <- fn:
	case <-m.quit:
	default:
		m.logger.Debug("command queue full, dropping background work")
	}
}

// SubmitEvent pushes one interaction event through the full pipeline:
// encode, remember, pattern-learn, maybe crystallize, maybe trigger a
// behavior, maybe explore, and integrate into identity.
func (m *Mind) SubmitEvent(ctx context.Context, ownerID string, payload any) (*EventResult, error) {
	var res *EventResult
	err := m.do(ctx, func() {
		res = m.processEvent(ownerID, payload)
	})
	return res, err
}

func (m *Mind) processEvent(ownerID string, payload any) *EventResult {
	m.events++
	symbols := m.encoder.Encode(payload)
	concepts := make([]string, 0, len(symbols))
	for _, s := range symbols {
		concepts = append(concepts, s.Concept)
	}

	novel := m.curiosity.IsNovel(concepts)
	importance := 0.4
	if novel {
		importance = 0.7
	}

	rec := m.memories.Store(&memory.Record{
		Kind:       memory.KindEpisodic,
		OwnerID:    ownerID,
		Content:    fmt.Sprint(payload),
		Features:   concepts,
		Importance: importance,
	})
	if m.recall != nil {
		vec := vectorOf(symbols)
		go m.recall.Mirror(rec, vec)
	}

	learned := m.patterns.Learn(concepts)
	if learned.IsNovel {
		m.hub.Emit(&telemetry.Event{
			Type:    telemetry.EventPatternLearned,
			OwnerID: ownerID,
			Detail:  strings.Join(learned.Matched.Template, " "),
		})
	}
	if learned.SingleShot {
		m.hub.Emit(&telemetry.Event{
			Type:    telemetry.EventSingleShot,
			OwnerID: ownerID,
			Fields:  map[string]any{"resonance": learned.Resonance},
		})
	}

	result := &EventResult{
		Symbols:    concepts,
		MemoryID:   rec.ID,
		Resonance:  learned.Resonance,
		Learned:    learned.IsNovel,
		SingleShot: learned.SingleShot,
	}

	// Repeated patterns become candidate loops; candidates crystallize once
	// their strength clears the bar.
	if p := learned.Matched; p != nil && len(p.Instances) >= 2 {
		loop, crystallized := m.behaviors.Crystallize(p.Template, responseFor(p.Template), p.Strength, len(p.Instances), categoryFor(p.Template))
		if crystallized {
			m.hub.Emit(&telemetry.Event{
				Type:    telemetry.EventLoopCrystallized,
				OwnerID: ownerID,
				Detail:  loop.ID,
			})
		}
	}

	// Fire the best-matching loop when it clears the trigger bar.
	if matches := m.behaviors.Resonate(concepts, nil); len(matches) > 0 && matches[0].Score >= m.cfg.TriggerBar {
		if resp := m.behaviors.Trigger(matches[0].Loop.ID); resp != nil {
			result.Response = resp
			m.hub.Emit(&telemetry.Event{
				Type:    telemetry.EventLoopTriggered,
				OwnerID: ownerID,
				Detail:  resp.LoopID,
				Fields:  map[string]any{"score": matches[0].Score},
			})
		}
	}

	if novel {
		if exp := m.curiosity.Explore(concepts, 0); exp != nil {
			m.hub.Emit(&telemetry.Event{
				Type:    telemetry.EventDiscoveryMade,
				OwnerID: ownerID,
				Detail:  strings.Join(exp.Concepts, " "),
			})
			m.scheduleFollowUp()
		}
	}

	m.identity.Integrate(identity.Experience{
		OwnerID:     ownerID,
		EntityID:    ownerID,
		Features:    concepts,
		Description: rec.Content,
		Novelty:     noveltyScore(novel),
		Emotion:     learned.Resonance,
	})

	return result
}

// scheduleFollowUp arranges for the oldest pending follow-up exploration to
// run after a short delay. The exploration itself still runs on the actor
// goroutine, and reschedules while pending work remains.
func (m *Mind) scheduleFollowUp() {
	if _, pending := m.curiosity.Counts(); pending == 0 {
		return
	}
	time.AfterFunc(followUpDelay, func() {
		m.submitAsync(func() {
			next := m.curiosity.Dequeue()
			if next == nil {
				return
			}
			if exp := m.curiosity.Explore(next.Concepts, next.Depth); exp != nil {
				m.hub.Emit(&telemetry.Event{
					Type:   telemetry.EventDiscoveryMade,
					Detail: strings.Join(exp.Concepts, " "),
				})
			}
			m.scheduleFollowUp()
		})
	})
}

// ReportOutcome applies feedback to a behavior loop. Unknown loop IDs
// report false without error; decay may have removed the loop already.
func (m *Mind) ReportOutcome(ctx context.Context, ownerID, loopID string, success bool) (bool, error) {
	var applied bool
	err := m.do(ctx, func() {
		loop := m.behaviors.Loop(loopID)
		if loop == nil {
			return
		}
		applied = m.behaviors.Reinforce(loopID, success)
		action := loop.Category
		if action == "" && len(loop.Trigger) > 0 {
			action = loop.Trigger[0]
		}
		m.memories.RecordOutcome(ownerID, action, success)
	})
	return applied, err
}

// RecentMemories returns the newest episodic records for an owner.
func (m *Mind) RecentMemories(ctx context.Context, ownerID string, limit int) ([]*memory.Record, error) {
	var out []*memory.Record
	err := m.do(ctx, func() {
		out = m.memories.Recent(ownerID, limit)
	})
	return out, err
}

// QueryMemories runs a feature-overlap retrieval. Retrieval bookkeeping is
// updated on the returned records.
func (m *Mind) QueryMemories(ctx context.Context, q memory.Query) ([]*memory.Record, error) {
	var out []*memory.Record
	err := m.do(ctx, func() {
		out = m.memories.Retrieve(q)
	})
	return out, err
}

// SelfDescription returns the owner's identity summary.
func (m *Mind) SelfDescription(ctx context.Context, ownerID string) (identity.Description, error) {
	var out identity.Description
	err := m.do(ctx, func() {
		out = m.identity.SelfDescription(ownerID)
	})
	return out, err
}

// Suggestion returns what the creature is currently most curious about.
func (m *Mind) Suggestion(ctx context.Context) (category, hint string, err error) {
	err = m.do(ctx, func() {
		category, hint = m.curiosity.Suggest()
	})
	return category, hint, err
}

// Behaviors returns a snapshot of the live behavior loops.
func (m *Mind) Behaviors(ctx context.Context) ([]*behavior.Loop, error) {
	var out []*behavior.Loop
	err := m.do(ctx, func() {
		out = m.behaviors.Loops()
	})
	return out, err
}

// Metrics returns pipeline counters for dashboards.
func (m *Mind) Metrics(ctx context.Context) (Metrics, error) {
	var out Metrics
	err := m.do(ctx, func() {
		out.Symbols, out.Bindings = m.encoder.Counts()
		out.Memories = m.memories.Counts()
		out.PatternLevels = m.patterns.Counts()
		out.Loops, out.ActiveLoops = m.behaviors.Counts()
		out.Discoveries, out.QueueDepth = m.curiosity.Counts()
		out.CuriosityLevel = m.curiosity.Level()
		out.Owners = m.identity.Owners()
		for _, owner := range out.Owners {
			out.Coherence += m.identity.SelfDescription(owner).Coherence
		}
		if len(out.Owners) > 0 {
			out.Coherence /= float64(len(out.Owners))
		}
		out.Events = m.events
		out.UptimeSecs = m.now().Sub(m.started).Seconds()
	})
	return out, err
}

// responseFor derives response features for a crystallized trigger: one
// "respond:" feature per trigger key.
func responseFor(template []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(template))
	for _, f := range template {
		key := f
		if i := strings.IndexByte(f, ':'); i > 0 {
			key = f[:i]
		}
		r := "respond:" + key
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

// categoryFor picks a loop category from the first keyed trigger feature.
func categoryFor(template []string) string {
	for _, f := range template {
		if i := strings.IndexByte(f, ':'); i > 0 {
			return f[:i]
		}
	}
	return "general"
}

func noveltyScore(novel bool) float64 {
	if novel {
		return 0.9
	}
	return 0.3
}

// vectorOf averages the symbol vectors into one float32 vector for the
// recall index.
func vectorOf(symbols []*symbol.Symbol) []float32 {
	if len(symbols) == 0 {
		return nil
	}
	dim := len(symbols[0].Vector)
	out := make([]float32, dim)
	for _, s := range symbols {
		for i, v := range s.Vector {
			out[i] += float32(v)
		}
	}
	n := float32(len(symbols))
	for i := range out {
		out[i] /= n
	}
	return out
}
