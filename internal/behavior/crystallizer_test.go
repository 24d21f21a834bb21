package behavior

import (
	"math/rand"
	"testing"
	"time"

	"github.com/nidhogg/noema/internal/config"
	"go.uber.org/zap"
)

func newTestCrystallizer() *Crystallizer {
	return NewCrystallizer(config.DefaultCognition(), rand.New(rand.NewSource(1)), zap.NewNop())
}

func TestCrystallizeDedupesBySignature(t *testing.T) {
	c := newTestCrystallizer()

	first, _ := c.Crystallize([]string{"action:feed"}, []string{"respond:eat"}, 0.73, 5, "play")
	second, _ := c.Crystallize([]string{"action:feed"}, []string{"respond:eat"}, 0.9, 7, "play")

	if first.ID != second.ID {
		t.Fatal("same signature should return the existing loop")
	}
	if total, _ := c.Counts(); total != 1 {
		t.Fatalf("loop count = %d, want 1", total)
	}
	if second.SuccessCount != 7 {
		t.Fatalf("success count = %d, want observations carried forward", second.SuccessCount)
	}
	if second.Strength != 0.9 {
		t.Fatalf("strength = %v, want raised to the stronger seed", second.Strength)
	}
}

func TestCandidateBelowThresholdCannotFire(t *testing.T) {
	c := newTestCrystallizer()

	loop, crystallized := c.Crystallize([]string{"action:feed"}, []string{"respond:eat"}, 0.55, 2, "play")
	if crystallized {
		t.Fatal("weak seed should not crystallize immediately")
	}
	if loop.State != StateCandidate {
		t.Fatalf("state = %s, want candidate", loop.State)
	}
	if matches := c.Resonate([]string{"action:feed"}, nil); len(matches) != 0 {
		t.Fatalf("candidate resonated: %v", matches)
	}
	if resp := c.Trigger(loop.ID); resp != nil {
		t.Fatal("candidate should refuse to fire")
	}
}

func TestCandidatePromotesWhenEvidenceGrows(t *testing.T) {
	c := newTestCrystallizer()

	loop, _ := c.Crystallize([]string{"action:feed"}, []string{"respond:eat"}, 0.55, 2, "play")
	promoted, crystallized := c.Crystallize([]string{"action:feed"}, []string{"respond:eat"}, 0.73, 5, "play")

	if !crystallized {
		t.Fatal("stronger evidence should crystallize the candidate")
	}
	if promoted.ID != loop.ID {
		t.Fatal("promotion should reuse the candidate, not create a new loop")
	}
	if promoted.State != StateCrystallized {
		t.Fatalf("state = %s, want crystallized", promoted.State)
	}
	if promoted.SuccessCount != 5 {
		t.Fatalf("success count = %d, want carried forward", promoted.SuccessCount)
	}

	matches := c.Resonate([]string{"action:feed"}, nil)
	if len(matches) == 0 || matches[0].Score <= 0.6 {
		t.Fatalf("promoted loop should resonate strongly, got %v", matches)
	}
}

func TestResonateRanksByTriggerOverlap(t *testing.T) {
	c := newTestCrystallizer()
	feed, _ := c.Crystallize([]string{"action:feed"}, []string{"respond:eat"}, 0.73, 5, "play")
	c.Crystallize([]string{"action:sleep"}, []string{"respond:rest"}, 0.9, 3, "general")

	matches := c.Resonate([]string{"action:feed"}, nil)
	if len(matches) == 0 {
		t.Fatal("expected at least one match")
	}
	if matches[0].Loop.ID != feed.ID {
		t.Fatal("full trigger overlap should rank first")
	}
	if matches[0].Score <= 0.6 {
		t.Fatalf("score = %v, want > 0.6 for a strong full-overlap loop", matches[0].Score)
	}
}

func TestTriggerActivatesAndEvictsOldest(t *testing.T) {
	c := newTestCrystallizer()

	var first *Loop
	for i := 0; i < c.cfg.ActiveLoopCap+1; i++ {
		loop, _ := c.Crystallize(
			[]string{"t", string(rune('a' + i))},
			[]string{"r", string(rune('a' + i))},
			0.8, 1, "")
		if i == 0 {
			first = loop
		}
		if resp := c.Trigger(loop.ID); resp == nil {
			t.Fatalf("trigger %d returned nil", i)
		}
	}

	if _, active := c.Counts(); active != c.cfg.ActiveLoopCap {
		t.Fatalf("active set = %d, want capped at %d", active, c.cfg.ActiveLoopCap)
	}
	if first.State != StateDormant {
		t.Fatalf("oldest active loop state = %s, want dormant after eviction", first.State)
	}
}

func TestTriggerUnknownLoopReturnsNil(t *testing.T) {
	c := newTestCrystallizer()
	if resp := c.Trigger("no-such-loop"); resp != nil {
		t.Fatal("unknown loop should return nil, not error")
	}
}

func TestTriggerVariationShrinksWithStrength(t *testing.T) {
	c := newTestCrystallizer()
	strong, _ := c.Crystallize([]string{"a"}, []string{"b"}, 1.0, 1, "")

	resp := c.Trigger(strong.ID)
	if resp.Variation != 0 {
		t.Fatalf("variation = %v, want 0 at full strength", resp.Variation)
	}
}

func TestReinforceStaysBounded(t *testing.T) {
	c := newTestCrystallizer()
	loop, _ := c.Crystallize([]string{"a"}, []string{"b"}, 0.9, 0, "")

	for i := 0; i < 10; i++ {
		c.Reinforce(loop.ID, true)
	}
	if loop.Strength != 1 {
		t.Fatalf("strength = %v, want capped at 1", loop.Strength)
	}
	if loop.SuccessCount != 10 {
		t.Fatalf("success count = %d, want 10", loop.SuccessCount)
	}

	for i := 0; i < 100; i++ {
		c.Reinforce(loop.ID, false)
	}
	if loop.Strength != c.cfg.LoopFloor {
		t.Fatalf("strength = %v, want floored at %v", loop.Strength, c.cfg.LoopFloor)
	}
	if loop.FailureCount != 100 {
		t.Fatalf("failure count = %d, want 100", loop.FailureCount)
	}

	if c.Reinforce("no-such-loop", true) {
		t.Fatal("unknown loop should report false")
	}
}

func TestMergeCombinesAndRemovesOriginals(t *testing.T) {
	c := newTestCrystallizer()
	a, _ := c.Crystallize([]string{"x"}, []string{"r1"}, 0.6, 2, "")
	b, _ := c.Crystallize([]string{"y"}, []string{"r2"}, 0.8, 3, "")

	merged := c.Merge(a.ID, b.ID)
	if merged == nil {
		t.Fatal("merge returned nil")
	}
	if len(merged.Trigger) != 2 || len(merged.Response) != 2 {
		t.Fatalf("merged features = %v / %v, want unions", merged.Trigger, merged.Response)
	}
	if merged.Strength != 0.7 {
		t.Fatalf("merged strength = %v, want averaged 0.7", merged.Strength)
	}
	if merged.SuccessCount != 5 {
		t.Fatalf("merged success count = %d, want summed 5", merged.SuccessCount)
	}
	if total, _ := c.Counts(); total != 1 {
		t.Fatalf("loop count = %d, want originals removed", total)
	}
}

func TestDecaySweepExpiresAndRemoves(t *testing.T) {
	c := newTestCrystallizer()
	base := time.Now()
	c.now = func() time.Time { return base }

	loop, _ := c.Crystallize([]string{"a"}, []string{"b"}, 0.72, 1, "")
	c.Trigger(loop.ID)

	// Past the active window the loop demotes to dormant.
	base = base.Add(2 * time.Minute)
	c.DecaySweep()
	if loop.State != StateDormant {
		t.Fatalf("state = %s, want dormant after active window", loop.State)
	}

	prev := loop.Strength
	removed := 0
	for i := 0; i < 400 && removed == 0; i++ {
		removed += c.DecaySweep()
		if loop.State != StateRemoved && loop.Strength > prev {
			t.Fatalf("strength increased during decay: %v -> %v", prev, loop.Strength)
		}
		prev = loop.Strength
	}
	if removed != 1 {
		t.Fatal("weak dormant loop should eventually be removed")
	}
	if total, _ := c.Counts(); total != 0 {
		t.Fatalf("loop count = %d, want 0", total)
	}
}
