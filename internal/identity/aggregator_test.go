package identity

import (
	"fmt"
	"testing"

	"github.com/nidhogg/noema/internal/config"
	"go.uber.org/zap"
)

func newTestAggregator() *Aggregator {
	return NewAggregator(config.DefaultCognition(), zap.NewNop())
}

func TestIntegrateCategorizesAndNudgesPersonality(t *testing.T) {
	a := newTestAggregator()
	a.Integrate(Experience{
		OwnerID:  "owner-1",
		Features: []string{"action:play", "toy:ball"},
		Novelty:  0.8,
		Emotion:  0.6,
	})

	m := a.models["owner-1"]
	if m.Personality[dimPlayfulness].Value <= traitBaseline {
		t.Fatal("play experience should nudge playfulness above baseline")
	}
	if m.Values["joy"] <= 0.5 {
		t.Fatal("play experience should reinforce the joy value")
	}
	if m.Values["mastery"] >= 0.5 {
		t.Fatal("unrelated values should decay")
	}
}

func TestIntegrateTracksRelationships(t *testing.T) {
	a := newTestAggregator()
	for i := 0; i < 3; i++ {
		a.Integrate(Experience{
			OwnerID:  "owner-1",
			EntityID: "user-42",
			Features: []string{"action:speak"},
			Emotion:  0.5,
		})
	}

	rel := a.models["owner-1"].Relationships["user-42"]
	if rel == nil {
		t.Fatal("relationship entry missing")
	}
	if rel.InteractionCount != 3 {
		t.Fatalf("interaction count = %d, want 3", rel.InteractionCount)
	}
	if rel.Bond <= 0.1 {
		t.Fatal("bond should grow with interactions")
	}
}

func TestNarrativeIsCapped(t *testing.T) {
	a := newTestAggregator()
	limit := a.cfg.NarrativeCap
	for i := 0; i < limit*2; i++ {
		a.Integrate(Experience{
			OwnerID:     "owner-1",
			Features:    []string{"achieve:trick"},
			Description: fmt.Sprintf("learned trick %d", i),
			Novelty:     1,
			Emotion:     1,
		})
		if n := len(a.models["owner-1"].Narrative); n > limit {
			t.Fatalf("narrative length = %d, want capped at %d", n, limit)
		}
	}
}

func TestCoherenceStaysBounded(t *testing.T) {
	a := newTestAggregator()
	features := [][]string{
		{"action:play"}, {"action:speak"}, {"teach:word"},
		{"feel:happy"}, {"achieve:goal"}, {"unmatched:thing"},
	}
	for i := 0; i < 200; i++ {
		a.Integrate(Experience{
			OwnerID:  "owner-1",
			Features: features[i%len(features)],
			Novelty:  float64(i%10) / 10,
			Emotion:  float64(i%7) / 7,
		})
		if i%10 == 0 {
			c := a.Reflect("owner-1")
			if c < 0 || c > 1 {
				t.Fatalf("coherence = %v, want within [0,1]", c)
			}
		}
	}
}

func TestCoherenceDoesNotDropOnConsistentReflection(t *testing.T) {
	a := newTestAggregator()
	for i := 0; i < 5; i++ {
		a.Integrate(Experience{
			OwnerID:     "owner-1",
			Features:    []string{"action:play"},
			Description: "played fetch",
			Novelty:     0.9,
			Emotion:     0.8,
		})
	}
	first := a.Reflect("owner-1")

	// Same-category entries keep narrative consistency; everything else
	// reflection touches only grows.
	a.Integrate(Experience{
		OwnerID:     "owner-1",
		Features:    []string{"action:play"},
		Description: "played fetch again",
		Novelty:     0.9,
		Emotion:     0.8,
	})
	second := a.Reflect("owner-1")
	if second < first {
		t.Fatalf("coherence dropped after consistent reflection: %v -> %v", first, second)
	}
}

func TestSelfDescriptionForUnknownOwner(t *testing.T) {
	a := newTestAggregator()
	desc := a.SelfDescription("nobody")
	if desc.Name != "" || desc.Coherence != 0 {
		t.Fatal("unknown owner should get a zero description")
	}
}

func TestSelfDescriptionSummarizesModel(t *testing.T) {
	a := newTestAggregator()
	a.Integrate(Experience{
		OwnerID:  "owner-1",
		EntityID: "user-42",
		Features: []string{"teach:fetch"},
		Novelty:  0.9,
		Emotion:  0.5,
	})
	a.Reflect("owner-1")

	desc := a.SelfDescription("owner-1")
	if desc.Name == "" {
		t.Fatal("description should carry a name")
	}
	if len(desc.TopValues) != 3 {
		t.Fatalf("top values = %v, want 3 entries", desc.TopValues)
	}
	if desc.TopValues[0] != "growth" {
		t.Fatalf("top value = %q, want growth after a learning experience", desc.TopValues[0])
	}
	if desc.Relationships != 1 {
		t.Fatalf("relationships = %d, want 1", desc.Relationships)
	}
}
