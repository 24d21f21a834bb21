package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Consolidate scans the most recent episodic records, groups them by a
// derived pattern key, and writes a semantic summary for any group whose
// share of the batch exceeds the consolidation threshold. Returns the
// number of semantic records written.
func (s *Store) Consolidate() int {
	batch := s.episodic
	if len(batch) > s.cfg.ConsolidationBatch {
		batch = batch[len(batch)-s.cfg.ConsolidationBatch:]
	}
	if len(batch) == 0 {
		return 0
	}

	groups := make(map[string][]*Record)
	for _, r := range batch {
		groups[patternKey(r.Features)] = append(groups[patternKey(r.Features)], r)
	}

	written := 0
	for key, group := range groups {
		share := float64(len(group)) / float64(len(batch))
		if share <= s.cfg.ConsolidationShare {
			continue
		}

		var maxImp float64
		for _, r := range group {
			if r.Importance > maxImp {
				maxImp = r.Importance
			}
		}

		s.storeSemantic(&Record{
			ID:         uuid.New().String(),
			Kind:       KindSemantic,
			OwnerID:    group[0].OwnerID,
			Concept:    key,
			Content:    fmt.Sprintf("recurring episode (%d of %d recent)", len(group), len(batch)),
			Features:   strings.Split(key, "|"),
			Strength:   share,
			Importance: clamp01(maxImp + 0.1),
			CreatedAt:  s.now(),
		})
		written++
	}

	if written > 0 {
		s.logger.Debug("consolidation sweep",
			zap.Int("batch", len(batch)),
			zap.Int("written", written))
	}
	return written
}

// ForgetSweep applies the forgetting curve: every record's importance is
// multiplied by the decay factor, and records below the floor that were not
// retrieved within the staleness window are purged. Purged episodic records
// are returned so the caller can archive them.
func (s *Store) ForgetSweep() []*Record {
	staleness := time.Duration(s.cfg.StalenessWindowSecs) * time.Second
	now := s.now()

	stale := func(r *Record) bool {
		last := r.LastRetrievedAt
		if last.IsZero() {
			last = r.CreatedAt
		}
		return now.Sub(last) > staleness
	}

	var purged []*Record

	kept := s.episodic[:0]
	for _, r := range s.episodic {
		r.Importance = clamp01(r.Importance * s.cfg.ForgettingDecay)
		if r.Importance < s.cfg.ForgettingFloor && stale(r) {
			purged = append(purged, r)
			continue
		}
		kept = append(kept, r)
	}
	s.episodic = kept

	for key, r := range s.semantic {
		r.Importance = clamp01(r.Importance * s.cfg.ForgettingDecay)
		if r.Importance < s.cfg.ForgettingFloor && stale(r) {
			purged = append(purged, r)
			delete(s.semantic, key)
		}
	}

	kept = s.general[:0]
	for _, r := range s.general {
		r.Importance = clamp01(r.Importance * s.cfg.ForgettingDecay)
		if r.Importance < s.cfg.ForgettingFloor && stale(r) {
			purged = append(purged, r)
			continue
		}
		kept = append(kept, r)
	}
	s.general = kept

	if len(purged) > 0 {
		s.logger.Debug("forgetting sweep", zap.Int("purged", len(purged)))
	}
	return purged
}
