package memory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
)

// Snapshot persistence: one JSON document per owner (<ownerId>.json, records
// sorted by importance descending, capped) plus two global documents,
// episodic.json and semantic.json. Absent files mean "start empty".
// All writes are best-effort: failures are logged, never propagated, and
// the in-memory store stays authoritative.

// SaveAll writes every snapshot document under dir.
func (s *Store) SaveAll(dir string) {
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.logger.Warn("snapshot dir create failed", zap.String("dir", dir), zap.Error(err))
		return
	}

	s.writeJSON(filepath.Join(dir, "episodic.json"), s.episodic)

	semantic := make([]*Record, 0, len(s.semantic))
	for _, r := range s.semantic {
		semantic = append(semantic, r)
	}
	sort.Slice(semantic, func(i, j int) bool { return semantic[i].Concept < semantic[j].Concept })
	s.writeJSON(filepath.Join(dir, "semantic.json"), semantic)

	for owner, recs := range s.byOwner() {
		// Owner IDs come from external callers; one containing a path
		// separator must not escape the data directory.
		if filepath.Base(owner) != owner || owner == "." || owner == ".." {
			s.logger.Warn("owner id not usable as a snapshot name", zap.String("owner", owner))
			continue
		}
		sort.Slice(recs, func(i, j int) bool { return recs[i].Importance > recs[j].Importance })
		if len(recs) > s.cfg.SnapshotRecordsLimit {
			recs = recs[:s.cfg.SnapshotRecordsLimit]
		}
		s.writeJSON(filepath.Join(dir, owner+".json"), recs)
	}
}

// LoadAll restores the global snapshot documents from dir. Missing files
// are not errors.
func (s *Store) LoadAll(dir string) {
	if dir == "" {
		return
	}

	var episodic []*Record
	if s.readJSON(filepath.Join(dir, "episodic.json"), &episodic) {
		s.episodic = episodic
		s.evictEpisodic()
	}

	var semantic []*Record
	if s.readJSON(filepath.Join(dir, "semantic.json"), &semantic) {
		for _, r := range semantic {
			if r.Concept != "" {
				s.semantic[r.Concept] = r
			}
		}
	}

	s.logger.Info("memory snapshots loaded",
		zap.Int("episodic", len(s.episodic)),
		zap.Int("semantic", len(s.semantic)))
}

func (s *Store) byOwner() map[string][]*Record {
	owners := make(map[string][]*Record)
	add := func(r *Record) {
		if r.OwnerID != "" {
			owners[r.OwnerID] = append(owners[r.OwnerID], r)
		}
	}
	for _, r := range s.episodic {
		add(r)
	}
	for _, r := range s.semantic {
		add(r)
	}
	for _, r := range s.procedural {
		add(r)
	}
	for _, r := range s.general {
		add(r)
	}
	return owners
}

func (s *Store) writeJSON(path string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.logger.Warn("snapshot marshal failed", zap.String("path", path), zap.Error(err))
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.logger.Warn("snapshot write failed", zap.String("path", path), zap.Error(err))
	}
}

func (s *Store) readJSON(path string, v any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("snapshot read failed", zap.String("path", path), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.logger.Warn("snapshot parse failed", zap.String("path", path), zap.Error(err))
		return false
	}
	return true
}
