package memory

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/noema/internal/config"
	"go.uber.org/zap"
)

// Store is the partitioned, importance-ranked record store. Capacity is
// enforced by evicting the lowest-ranked entries, never by erroring.
// Not safe for concurrent use: all access is serialized by the mind.
type Store struct {
	cfg config.CognitionConfig

	episodic   []*Record
	semantic   map[string]*Record // concept -> record
	procedural map[string]*Record // action -> record
	general    []*Record

	now    func() time.Time
	logger *zap.Logger
}

// NewStore creates an empty memory store.
func NewStore(cfg config.CognitionConfig, logger *zap.Logger) *Store {
	return &Store{
		cfg:        cfg,
		semantic:   make(map[string]*Record),
		procedural: make(map[string]*Record),
		now:        time.Now,
		logger:     logger,
	}
}

// Store routes a record to its partition by kind and returns the stored
// record with its id assigned. Semantic records merge with an existing
// same-concept record instead of duplicating.
func (s *Store) Store(rec *Record) *Record {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	rec.Importance = clamp01(rec.Importance)

	switch rec.Kind {
	case KindSemantic:
		return s.storeSemantic(rec)
	case KindProcedural:
		return s.storeProcedural(rec)
	case KindEpisodic:
		s.episodic = append(s.episodic, rec)
		s.evictEpisodic()
	default:
		rec.Kind = KindGeneral
		s.general = append(s.general, rec)
		if len(s.general) > s.cfg.GeneralCap {
			s.evictRanked(&s.general, s.cfg.GeneralCap)
		}
	}
	return rec
}

// storeSemantic merges into an existing record with the same concept:
// strength accumulates, associations union, importance keeps the max.
func (s *Store) storeSemantic(rec *Record) *Record {
	if rec.Concept == "" && len(rec.Features) > 0 {
		rec.Concept = rec.Features[0]
	}
	existing, ok := s.semantic[rec.Concept]
	if !ok {
		if rec.Strength == 0 {
			rec.Strength = rec.Importance
		}
		s.semantic[rec.Concept] = rec
		s.evictSemantic()
		return rec
	}

	existing.Strength = clamp01(existing.Strength + rec.Strength)
	if rec.Importance > existing.Importance {
		existing.Importance = rec.Importance
	}
	existing.Features = unionStrings(existing.Features, rec.Features)
	existing.Associations = unionStrings(existing.Associations, rec.Associations)
	return existing
}

// storeProcedural keeps one record per named action with a running
// success rate.
func (s *Store) storeProcedural(rec *Record) *Record {
	existing, ok := s.procedural[rec.Action]
	if !ok {
		if rec.Attempts == 0 {
			rec.Attempts = 1
		}
		s.procedural[rec.Action] = rec
		return rec
	}
	existing.Attempts++
	existing.Successes += rec.Successes
	existing.Importance = clamp01(existing.Importance*0.9 + rec.Importance*0.1)
	existing.Features = unionStrings(existing.Features, rec.Features)
	return existing
}

// RecordOutcome folds an action outcome into the procedural partition.
func (s *Store) RecordOutcome(ownerID, action string, success bool) *Record {
	successes := 0
	if success {
		successes = 1
	}
	return s.storeProcedural(&Record{
		ID:         uuid.New().String(),
		Kind:       KindProcedural,
		OwnerID:    ownerID,
		Action:     action,
		Attempts:   1,
		Successes:  successes,
		Importance: 0.5,
		CreatedAt:  s.now(),
	})
}

// Retrieve matches against the episodic and semantic partitions by feature
// overlap and ranks by importance × (1 + retrievalCount × 0.1), descending.
// Retrieval is not read-only: returned records get their retrieval
// bookkeeping updated.
func (s *Store) Retrieve(q Query) []*Record {
	var candidates []*Record
	if q.Kind == "" || q.Kind == KindEpisodic {
		candidates = append(candidates, s.episodic...)
	}
	if q.Kind == "" || q.Kind == KindSemantic {
		for _, r := range s.semantic {
			candidates = append(candidates, r)
		}
	}

	var matched []*Record
	for _, r := range candidates {
		if q.OwnerID != "" && r.OwnerID != q.OwnerID {
			continue
		}
		if len(q.Features) > 0 && overlapCount(q.Features, r.Features) == 0 {
			continue
		}
		matched = append(matched, r)
	}

	sort.Slice(matched, func(i, j int) bool {
		return rank(matched[i]) > rank(matched[j])
	})

	limit := q.Limit
	if limit <= 0 || limit > len(matched) {
		limit = len(matched)
	}
	matched = matched[:limit]

	now := s.now()
	for _, r := range matched {
		r.RetrievalCount++
		r.LastRetrievedAt = now
	}
	return matched
}

// Recent returns the newest episodic records for an owner, newest first.
func (s *Store) Recent(ownerID string, limit int) []*Record {
	var out []*Record
	for i := len(s.episodic) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		r := s.episodic[i]
		if ownerID == "" || r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	return out
}

// Procedural returns the procedural record for an action, or nil.
func (s *Store) Procedural(action string) *Record {
	return s.procedural[action]
}

// Counts returns per-partition record counts.
func (s *Store) Counts() map[Kind]int {
	return map[Kind]int{
		KindEpisodic:   len(s.episodic),
		KindSemantic:   len(s.semantic),
		KindProcedural: len(s.procedural),
		KindGeneral:    len(s.general),
	}
}

func rank(r *Record) float64 {
	return r.Importance * (1 + float64(r.RetrievalCount)*0.1)
}

// evictEpisodic keeps the highest-importance records when over capacity,
// then restores chronological order.
func (s *Store) evictEpisodic() {
	if len(s.episodic) <= s.cfg.EpisodicCap {
		return
	}
	sort.Slice(s.episodic, func(i, j int) bool {
		return s.episodic[i].Importance > s.episodic[j].Importance
	})
	dropped := len(s.episodic) - s.cfg.EpisodicCap
	s.episodic = s.episodic[:s.cfg.EpisodicCap]
	sort.Slice(s.episodic, func(i, j int) bool {
		return s.episodic[i].CreatedAt.Before(s.episodic[j].CreatedAt)
	})
	s.logger.Debug("episodic eviction", zap.Int("dropped", dropped))
}

func (s *Store) evictSemantic() {
	if len(s.semantic) <= s.cfg.SemanticCap {
		return
	}
	type kv struct {
		key string
		imp float64
	}
	all := make([]kv, 0, len(s.semantic))
	for k, r := range s.semantic {
		all = append(all, kv{k, rank(r)})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].imp < all[j].imp })
	for i := 0; i < len(s.semantic)-s.cfg.SemanticCap; i++ {
		delete(s.semantic, all[i].key)
	}
}

func (s *Store) evictRanked(part *[]*Record, limit int) {
	recs := *part
	sort.Slice(recs, func(i, j int) bool { return rank(recs[i]) > rank(recs[j]) })
	*part = recs[:limit]
}

func overlapCount(a, b []string) int {
	set := make(map[string]bool, len(a))
	for _, x := range a {
		set[x] = true
	}
	n := 0
	for _, x := range b {
		if set[x] {
			n++
		}
	}
	return n
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, x := range a {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	for _, x := range b {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	return out
}

// patternKey derives a stable grouping key from a record's features.
func patternKey(features []string) string {
	sorted := append([]string(nil), features...)
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}
