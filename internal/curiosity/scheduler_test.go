package curiosity

import (
	"math/rand"
	"testing"
	"time"

	"github.com/nidhogg/noema/internal/config"
	"go.uber.org/zap"
)

func newTestScheduler() *Scheduler {
	return NewScheduler(config.DefaultCognition(), rand.New(rand.NewSource(1)), zap.NewNop())
}

func TestIsNovelForUnknownConcepts(t *testing.T) {
	s := newTestScheduler()
	if !s.IsNovel([]string{"color:purple"}) {
		t.Fatal("never-seen concept should be novel")
	}

	// Repeated exploration builds familiarity until novelty wears off.
	base := time.Now()
	s.now = func() time.Time { return base }
	for i := 0; i < 10; i++ {
		base = base.Add(time.Minute)
		s.Explore([]string{"color:purple"}, 0)
	}
	if s.IsNovel([]string{"color:purple"}) {
		t.Fatal("fully familiar concept should not be novel")
	}
}

func TestExploreRespectsCooldown(t *testing.T) {
	s := newTestScheduler()
	base := time.Now()
	s.now = func() time.Time { return base }

	if exp := s.Explore([]string{"thing:ball"}, 0); exp == nil {
		t.Fatal("first exploration should start")
	}
	if exp := s.Explore([]string{"thing:ball"}, 0); exp != nil {
		t.Fatal("second exploration within cooldown should return nil")
	}

	base = base.Add(time.Duration(s.cfg.CooldownSecs+1) * time.Second)
	if exp := s.Explore([]string{"thing:ball"}, 0); exp == nil {
		t.Fatal("exploration after cooldown should start")
	}
}

func TestPendingQueueIsBounded(t *testing.T) {
	s := newTestScheduler()
	base := time.Now()
	s.now = func() time.Time { return base }

	// Associate the ball with a second concept so later explorations of the
	// ball alone produce a pending follow-up each time.
	s.Explore([]string{"thing:ball", "spot:garden"}, 0)

	for i := 0; i < s.cfg.QueueCap*2; i++ {
		base = base.Add(time.Duration(s.cfg.CooldownSecs+1) * time.Second)
		if exp := s.Explore([]string{"thing:ball"}, 0); exp == nil {
			t.Fatalf("exploration %d refused", i)
		}
		if _, pending := s.Counts(); pending > s.cfg.QueueCap {
			t.Fatalf("pending = %d, want capped at %d", pending, s.cfg.QueueCap)
		}
	}
	if _, pending := s.Counts(); pending != s.cfg.QueueCap {
		t.Fatalf("pending = %d, want full queue of %d", pending, s.cfg.QueueCap)
	}
}

func TestDequeueDrainsPendingFollowUps(t *testing.T) {
	s := newTestScheduler()
	base := time.Now()
	s.now = func() time.Time { return base }

	s.Explore([]string{"thing:ball", "spot:garden"}, 0)
	base = base.Add(time.Duration(s.cfg.CooldownSecs+1) * time.Second)
	s.Explore([]string{"thing:ball"}, 0)

	next := s.Dequeue()
	if next == nil {
		t.Fatal("expected a pending follow-up exploration")
	}
	if next.Depth != 1 {
		t.Fatalf("pending depth = %d, want 1", next.Depth)
	}
	if len(next.Concepts) != 1 || next.Concepts[0] != "spot:garden" {
		t.Fatalf("pending concepts = %v, want the prior association", next.Concepts)
	}
	if s.Dequeue() != nil {
		t.Fatal("queue should be empty after the only entry is popped")
	}
}

func TestExploreRecursionCapAndFollowUps(t *testing.T) {
	s := newTestScheduler()
	base := time.Now()
	s.now = func() time.Time { return base }

	// Seed an association: ball and bounce explored together.
	s.Explore([]string{"thing:ball", "motion:bounce"}, 0)

	base = base.Add(time.Duration(s.cfg.CooldownSecs+1) * time.Second)
	exp := s.Explore([]string{"thing:ball"}, 0)
	if exp == nil {
		t.Fatal("exploration refused")
	}
	if len(exp.FollowUps) != 1 || exp.FollowUps[0] != "motion:bounce" {
		t.Fatalf("follow-ups = %v, want the prior association", exp.FollowUps)
	}

	if exp := s.Explore([]string{"motion:bounce"}, s.cfg.RecursionCap); exp != nil {
		t.Fatal("exploration at the recursion cap should be refused")
	}
	if exp := s.Explore([]string{"motion:bounce"}, 1); exp == nil {
		t.Fatal("recursive exploration below the cap should start")
	}
}

func TestDecaySweepRelaxesTowardFloorAndSelfGenerates(t *testing.T) {
	s := newTestScheduler()

	for i := 0; i < 100; i++ {
		res := s.DecaySweep()
		if res.Level < s.cfg.CuriosityFloor || res.Level > 1 {
			t.Fatalf("level = %v, want within [floor, 1]", res.Level)
		}
	}

	// Bottomed out with nothing pending, a sweep self-generates a concept.
	s.level = s.cfg.CuriosityFloor
	if res := s.DecaySweep(); res.Synthetic == "" {
		t.Fatal("bottomed-out curiosity with an empty queue should self-generate a concept")
	}
}

func TestStagnationFiresAfterPastExplorations(t *testing.T) {
	s := newTestScheduler()
	base := time.Now()
	s.now = func() time.Time { return base }

	// A completed exploration with no follow-ups leaves no pending work, so
	// it must not suppress the anti-stagnation safeguard.
	if exp := s.Explore([]string{"thing:ball", "spot:garden"}, 0); exp == nil {
		t.Fatal("exploration refused")
	}
	s.level = s.cfg.CuriosityFloor
	if res := s.DecaySweep(); res.Synthetic == "" {
		t.Fatal("completed exploration should not block the synthetic concept")
	}

	// Pending follow-up work does suppress it until drained.
	base = base.Add(time.Duration(s.cfg.CooldownSecs+1) * time.Second)
	s.Explore([]string{"thing:ball"}, 0)
	s.level = s.cfg.CuriosityFloor
	if res := s.DecaySweep(); res.Synthetic != "" {
		t.Fatal("pending follow-up work should block the synthetic concept")
	}

	if s.Dequeue() == nil {
		t.Fatal("expected pending work to drain")
	}
	s.level = s.cfg.CuriosityFloor
	if res := s.DecaySweep(); res.Synthetic == "" {
		t.Fatal("drained queue should re-enable the synthetic concept")
	}
}

func TestSuggestTracksStrongestInterest(t *testing.T) {
	s := newTestScheduler()
	if cat, _ := s.Suggest(); cat != "" {
		t.Fatalf("suggestion before any discovery = %q, want empty", cat)
	}

	base := time.Now()
	s.now = func() time.Time { return base }
	s.Explore([]string{"food:apple", "food:pear", "toy:cube"}, 0)

	cat, hint := s.Suggest()
	if cat != "food" {
		t.Fatalf("category = %q, want food", cat)
	}
	if hint == "" {
		t.Fatal("hint should not be empty")
	}
}
