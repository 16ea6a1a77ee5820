// Package history persists executed queries into a relational log.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	pq "github.com/lib/pq"

	"websearch-mcp/internal/config"
)

// Record captures one executed query for the audit log.
type Record struct {
	AgentID     string
	Query       string
	MaxResults  int
	ResultCount int
	CacheHit    bool
	Duration    time.Duration
	ExecutedAt  time.Time
}

// Store writes query records into a SQL database.
type Store struct {
	db            *sql.DB
	autoMigrate   bool
	retentionDays int
	logger        *slog.Logger
}

// NewStore opens the query log database from configuration.
func NewStore(cfg config.HistoryConfig) (*Store, error) {
	if cfg.Driver == "" || cfg.DSN == "" {
		return nil, errors.New("history config missing driver or dsn")
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sql connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sql connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime.Duration > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime.Duration)
	}

	store := &Store{
		db:            db,
		autoMigrate:   cfg.AutoMigrate,
		retentionDays: cfg.RetentionDays,
		logger:        slog.Default().With("component", "history"),
	}
	if cfg.AutoMigrate {
		if err := store.ensureSchema(context.Background()); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return store, nil
}

// SaveQuery inserts one record, retrying once after schema creation when the
// queries table is missing and auto-migration is enabled.
func (s *Store) SaveQuery(ctx context.Context, rec Record) error {
	if s == nil || s.db == nil {
		return nil
	}
	if rec.ExecutedAt.IsZero() {
		rec.ExecutedAt = time.Now()
	}
	if err := s.insertQuery(ctx, rec); err != nil {
		if s.autoMigrate && isUndefinedTableErr(err) {
			if schemaErr := s.ensureSchema(ctx); schemaErr != nil {
				return fmt.Errorf("ensure schema: %w", schemaErr)
			}
			if retryErr := s.insertQuery(ctx, rec); retryErr != nil {
				return fmt.Errorf("insert query record: %w", retryErr)
			}
		} else {
			return fmt.Errorf("insert query record: %w", err)
		}
	}
	s.pruneExpired(ctx)
	return nil
}

func (s *Store) insertQuery(ctx context.Context, rec Record) error {
	query := `
        INSERT INTO queries (agent_id, query, max_results, result_count, cache_hit, duration_ms, executed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
    `
	_, err := s.db.ExecContext(ctx, query,
		rec.AgentID,
		rec.Query,
		rec.MaxResults,
		rec.ResultCount,
		rec.CacheHit,
		rec.Duration.Milliseconds(),
		rec.ExecutedAt,
	)
	return err
}

// pruneExpired removes records older than the retention horizon. Failures
// are logged rather than surfaced so the query path never depends on it.
func (s *Store) pruneExpired(ctx context.Context) {
	if s.retentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM queries WHERE executed_at < $1`, cutoff); err != nil {
		s.logger.Warn("prune expired query records", "error", err)
	}
}

// Close closes the underlying DB connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil || !s.autoMigrate {
		return nil
	}
	schemaCtx := ctx
	if schemaCtx == nil || schemaCtx.Err() != nil {
		schemaCtx = context.Background()
	}
	schemaCtx, cancel := context.WithTimeout(schemaCtx, 10*time.Second)
	defer cancel()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS queries (
		    id BIGSERIAL PRIMARY KEY,
		    agent_id TEXT NOT NULL,
		    query TEXT NOT NULL,
		    max_results INT,
		    result_count INT,
		    cache_hit BOOLEAN,
		    duration_ms BIGINT,
		    executed_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_queries_executed_at ON queries (executed_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_queries_agent_id ON queries (agent_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(schemaCtx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func isUndefinedTableErr(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "42P01"
	}
	return false
}
