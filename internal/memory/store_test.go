package memory

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nidhogg/noema/internal/config"
	"go.uber.org/zap"
)

func newTestStore() *Store {
	cfg := config.DefaultCognition()
	cfg.EpisodicCap = 10
	return NewStore(cfg, zap.NewNop())
}

func TestStoreRoutesByKind(t *testing.T) {
	s := newTestStore()
	s.Store(&Record{Kind: KindEpisodic, OwnerID: "o1", Features: []string{"a"}, Importance: 0.5})
	s.Store(&Record{Kind: KindSemantic, OwnerID: "o1", Concept: "food", Importance: 0.5})
	s.Store(&Record{Kind: KindProcedural, OwnerID: "o1", Action: "fetch", Importance: 0.5})
	s.Store(&Record{Kind: "bogus", OwnerID: "o1", Importance: 0.5})

	counts := s.Counts()
	if counts[KindEpisodic] != 1 || counts[KindSemantic] != 1 || counts[KindProcedural] != 1 || counts[KindGeneral] != 1 {
		t.Fatalf("unexpected partition counts: %v", counts)
	}
}

func TestSemanticMergeAccumulates(t *testing.T) {
	s := newTestStore()
	s.Store(&Record{Kind: KindSemantic, Concept: "food", Strength: 0.3, Importance: 0.4, Associations: []string{"apple"}})
	merged := s.Store(&Record{Kind: KindSemantic, Concept: "food", Strength: 0.3, Importance: 0.6, Associations: []string{"berry"}})

	if s.Counts()[KindSemantic] != 1 {
		t.Fatalf("expected single merged record, got %d", s.Counts()[KindSemantic])
	}
	if merged.Strength != 0.6 {
		t.Errorf("expected accumulated strength 0.6, got %v", merged.Strength)
	}
	if merged.Importance != 0.6 {
		t.Errorf("expected max importance 0.6, got %v", merged.Importance)
	}
	if len(merged.Associations) != 2 {
		t.Errorf("expected association union of 2, got %v", merged.Associations)
	}
}

func TestEpisodicCapNeverExceeded(t *testing.T) {
	s := newTestStore()
	base := time.Now()
	for i := 0; i < 50; i++ {
		s.Store(&Record{
			Kind:       KindEpisodic,
			OwnerID:    "o1",
			Features:   []string{fmt.Sprintf("f%d", i)},
			Importance: float64(i%10) / 10,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		})
		if got := s.Counts()[KindEpisodic]; got > 10 {
			t.Fatalf("episodic partition exceeded cap after store %d: %d", i, got)
		}
	}

	// Survivors must be back in chronological order.
	for i := 1; i < len(s.episodic); i++ {
		if s.episodic[i].CreatedAt.Before(s.episodic[i-1].CreatedAt) {
			t.Fatal("episodic records not chronological after eviction")
		}
	}
}

func TestImportanceClampedAlways(t *testing.T) {
	s := newTestStore()
	s.Store(&Record{Kind: KindEpisodic, Features: []string{"a"}, Importance: 3.5})
	s.Store(&Record{Kind: KindEpisodic, Features: []string{"b"}, Importance: -2})

	check := func() {
		for _, r := range s.episodic {
			if r.Importance < 0 || r.Importance > 1 {
				t.Fatalf("importance out of range: %v", r.Importance)
			}
		}
	}
	check()
	for i := 0; i < 20; i++ {
		s.ForgetSweep()
		check()
	}
}

func TestRetrieveRanksAndBookkeeps(t *testing.T) {
	s := newTestStore()
	s.Store(&Record{Kind: KindEpisodic, OwnerID: "o1", Features: []string{"food"}, Importance: 0.3})
	high := s.Store(&Record{Kind: KindEpisodic, OwnerID: "o1", Features: []string{"food"}, Importance: 0.9})

	got := s.Retrieve(Query{OwnerID: "o1", Features: []string{"food"}})
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].ID != high.ID {
		t.Error("expected highest-importance record ranked first")
	}
	if got[0].RetrievalCount != 1 || got[0].LastRetrievedAt.IsZero() {
		t.Error("retrieval bookkeeping not updated")
	}

	// Repeated retrieval boosts rank multiplicatively.
	if rank(got[0]) <= got[0].Importance {
		t.Error("rank should exceed raw importance after retrieval")
	}
}

func TestRetrieveUnknownOwnerEmpty(t *testing.T) {
	s := newTestStore()
	s.Store(&Record{Kind: KindEpisodic, OwnerID: "o1", Features: []string{"a"}, Importance: 0.5})
	if got := s.Retrieve(Query{OwnerID: "nobody", Features: []string{"a"}}); len(got) != 0 {
		t.Fatalf("expected empty result for unknown owner, got %d", len(got))
	}
}

func TestForgetSweepPurgesStaleOnly(t *testing.T) {
	s := newTestStore()
	now := time.Now()
	s.now = func() time.Time { return now }

	old := s.Store(&Record{
		Kind: KindEpisodic, OwnerID: "o1",
		Features: []string{"old"}, Importance: 0.06,
		CreatedAt: now.Add(-time.Hour),
	})
	fresh := s.Store(&Record{
		Kind: KindEpisodic, OwnerID: "o1",
		Features: []string{"fresh"}, Importance: 0.06,
		CreatedAt: now,
	})

	// A few sweeps take both below the floor, but only the stale one may
	// be purged.
	var purged []*Record
	for i := 0; i < 6; i++ {
		purged = append(purged, s.ForgetSweep()...)
	}

	foundOld := false
	for _, r := range purged {
		if r.ID == fresh.ID {
			t.Error("fresh record purged despite staleness window")
		}
		if r.ID == old.ID {
			foundOld = true
		}
	}
	if !foundOld {
		t.Error("stale low-importance record not purged")
	}
}

func TestForgetSweepMonotonic(t *testing.T) {
	s := newTestStore()
	r := s.Store(&Record{Kind: KindEpisodic, Features: []string{"a"}, Importance: 0.9})
	last := r.Importance
	for i := 0; i < 10; i++ {
		s.ForgetSweep()
		if r.Importance > last {
			t.Fatalf("importance increased during decay: %v -> %v", last, r.Importance)
		}
		last = r.Importance
	}
}

func TestConsolidateWritesSemanticSummary(t *testing.T) {
	s := newTestStore()
	for i := 0; i < 8; i++ {
		s.Store(&Record{Kind: KindEpisodic, OwnerID: "o1", Features: []string{"action:feed"}, Importance: 0.5})
	}
	s.Store(&Record{Kind: KindEpisodic, OwnerID: "o1", Features: []string{"action:play"}, Importance: 0.5})

	written := s.Consolidate()
	if written != 1 {
		t.Fatalf("expected 1 consolidated group, got %d", written)
	}
	sem := s.semantic["action:feed"]
	if sem == nil {
		t.Fatal("expected semantic record keyed by pattern")
	}
	if sem.Strength <= s.cfg.ConsolidationShare {
		t.Errorf("expected strength above share threshold, got %v", sem.Strength)
	}
}

func TestProceduralSuccessRate(t *testing.T) {
	s := newTestStore()
	s.RecordOutcome("o1", "fetch", true)
	s.RecordOutcome("o1", "fetch", true)
	s.RecordOutcome("o1", "fetch", false)

	r := s.Procedural("fetch")
	if r == nil {
		t.Fatal("expected procedural record")
	}
	if r.Attempts != 3 || r.Successes != 2 {
		t.Fatalf("expected 2/3, got %d/%d", r.Successes, r.Attempts)
	}
	if rate := r.SuccessRate(); rate < 0.66 || rate > 0.67 {
		t.Errorf("unexpected success rate %v", rate)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore()
	s.Store(&Record{Kind: KindEpisodic, OwnerID: "o1", Features: []string{"a"}, Importance: 0.5})
	s.Store(&Record{Kind: KindSemantic, OwnerID: "o1", Concept: "food", Importance: 0.7})
	s.SaveAll(dir)

	restored := newTestStore()
	restored.LoadAll(dir)
	counts := restored.Counts()
	if counts[KindEpisodic] != 1 || counts[KindSemantic] != 1 {
		t.Fatalf("unexpected restored counts: %v", counts)
	}

	// Per-owner document exists and is valid JSON.
	var owned []*Record
	ok := restored.readJSON(filepath.Join(dir, "o1.json"), &owned)
	if !ok || len(owned) != 2 {
		t.Fatalf("expected 2 records in owner snapshot, got %d (ok=%v)", len(owned), ok)
	}
}

func TestSaveAllRejectsUnsafeOwnerIDs(t *testing.T) {
	parent := t.TempDir()
	dir := filepath.Join(parent, "data")
	s := newTestStore()
	s.Store(&Record{Kind: KindEpisodic, OwnerID: "../escaped", Features: []string{"a"}, Importance: 0.5})
	s.SaveAll(dir)

	if _, err := os.Stat(filepath.Join(parent, "escaped.json")); err == nil {
		t.Fatal("owner snapshot written outside the data directory")
	}
	// The global documents are still written normally.
	if _, err := os.Stat(filepath.Join(dir, "episodic.json")); err != nil {
		t.Fatalf("episodic snapshot missing: %v", err)
	}
}

func TestLoadAllMissingDirIsEmptyStart(t *testing.T) {
	s := newTestStore()
	s.LoadAll(filepath.Join(t.TempDir(), "nope"))
	for _, n := range s.Counts() {
		if n != 0 {
			t.Fatal("expected empty store when snapshots absent")
		}
	}
}
