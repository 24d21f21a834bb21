package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nidhogg/noema/internal/memory"
	"go.uber.org/zap"
)

// Store archives forgotten memory records to PostgreSQL so they survive the
// forgetting curve for offline analysis. The archive is write-mostly and
// strictly optional: the in-memory store never depends on it.
type Store struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// New creates an archive store with a pgx connection pool.
func New(dsn string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("PostgreSQL archive connected")
	return &Store{db: pool, logger: logger}, nil
}

// Migrate reads and executes all .up.sql files from the migrations directory.
func (s *Store) Migrate(ctx context.Context, migrationsDir string) error {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(migrationsDir, f))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := s.db.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
		s.logger.Info("Migration applied", zap.String("file", f))
	}
	return nil
}

// Archive inserts purged records. Failures are logged and swallowed; the
// in-memory store is authoritative.
func (s *Store) Archive(records []*memory.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, r := range records {
		_, err := s.db.Exec(ctx,
			`INSERT INTO forgotten_memories
			   (id, owner_id, kind, content, features, importance, retrieval_count, created_at, forgotten_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
			 ON CONFLICT (id) DO NOTHING`,
			r.ID, r.OwnerID, string(r.Kind), r.Content,
			strings.Join(r.Features, "|"), r.Importance, r.RetrievalCount, r.CreatedAt)
		if err != nil {
			s.logger.Warn("archive insert failed",
				zap.String("record", r.ID), zap.Error(err))
			return
		}
	}
	s.logger.Debug("archived forgotten records", zap.Int("count", len(records)))
}

// Close shuts down the connection pool.
func (s *Store) Close() {
	s.db.Close()
}
