package mind

import (
	"time"

	"github.com/nidhogg/noema/internal/config"
	"github.com/nidhogg/noema/internal/telemetry"
	"go.uber.org/zap"
)

// OnTick implements clock.Listener. The tick itself only queues work; the
// sweeps run serialized on the actor goroutine like every other mutation.
func (m *Mind) OnTick(now time.Time) {
	m.submitAsync(func() { m.sweep(now) })
}

// due reports whether the named sweep's interval has elapsed and stamps it.
func (m *Mind) due(name string, every config.Duration, now time.Time) bool {
	last, ok := m.lastSweep[name]
	if ok && now.Sub(last) < time.Duration(every) {
		return false
	}
	m.lastSweep[name] = now
	return true
}

// sweep runs every background maintenance task whose interval has elapsed.
func (m *Mind) sweep(now time.Time) {
	if m.due("symbols", m.cfg.SymbolSweepEvery, now) {
		m.encoder.DecaySweep()
		if m.graph != nil {
			bindings := m.encoder.Bindings()
			go m.graph.Sync(bindings)
		}
	}

	if m.due("consolidate", m.cfg.ConsolidateEvery, now) {
		if written := m.memories.Consolidate(); written > 0 {
			m.hub.Emit(&telemetry.Event{
				Type:   telemetry.EventMemoryConsolidated,
				Fields: map[string]any{"written": written},
			})
		}
	}

	if m.due("forget", m.cfg.ForgetEvery, now) {
		if purged := m.memories.ForgetSweep(); len(purged) > 0 && m.archive != nil {
			go m.archive.Archive(purged)
		}
	}

	if m.due("patterns", m.cfg.PatternSweepEvery, now) {
		m.patterns.DecaySweep()
	}

	if m.due("loops", m.cfg.LoopSweepEvery, now) {
		m.behaviors.DecaySweep()
	}

	if m.due("curiosity", m.cfg.CuriositySweepEvery, now) {
		res := m.curiosity.DecaySweep()
		if res.Spiked {
			m.hub.Emit(&telemetry.Event{
				Type:   telemetry.EventCuriositySpike,
				Fields: map[string]any{"level": res.Level},
			})
		}
		if res.Synthetic != "" {
			// Stagnation: wonder about something self-generated.
			if exp := m.curiosity.Explore([]string{res.Synthetic}, 0); exp != nil {
				m.logger.Debug("synthetic exploration", zap.String("concept", res.Synthetic))
				m.scheduleFollowUp()
			}
		}
	}

	if m.due("reflect", m.cfg.ReflectEvery, now) {
		for _, owner := range m.identity.Owners() {
			coherence := m.identity.Reflect(owner)
			m.hub.Emit(&telemetry.Event{
				Type:    telemetry.EventReflectionCompleted,
				OwnerID: owner,
				Fields:  map[string]any{"coherence": coherence},
			})
		}
	}
}
