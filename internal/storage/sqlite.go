package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/questweaver-ai/questweaver/internal/model"
)

// SQLite is a single-file durable sink for local and embedded deployments.
// It implements both EventSink and MemorySink.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLite opens (or creates) the database at path and ensures the sink
// tables exist. Use ":memory:" for an ephemeral database.
func NewSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	// The sink is written from short-lived goroutines; a single connection
	// sidesteps SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) ensureSchema(ctx context.Context) error {
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS agent_events (
			id          TEXT PRIMARY KEY,
			session_id  TEXT NOT NULL,
			kind        TEXT NOT NULL,
			source      TEXT NOT NULL DEFAULT '',
			payload     TEXT,
			tags        TEXT,
			occurred_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS agent_events_session_idx
			ON agent_events (session_id, occurred_at)`,
		`CREATE TABLE IF NOT EXISTS agent_memories (
			id                  TEXT PRIMARY KEY,
			session_id          TEXT NOT NULL,
			type                TEXT NOT NULL,
			content             TEXT NOT NULL,
			confidence          REAL NOT NULL,
			reinforcement_count INTEGER NOT NULL DEFAULT 0,
			learned_at          TIMESTAMP NOT NULL,
			last_accessed_at    TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS agent_memories_session_idx
			ON agent_memories (session_id, confidence DESC)`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("storage: ensure schema: %w", err)
		}
	}
	return nil
}

// WriteEvents inserts events in one transaction.
func (s *SQLite) WriteEvents(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO agent_events (id, session_id, kind, source, payload, tags, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage: prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("storage: marshal payload: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			e.ID.String(), e.SessionID.String(), string(e.Kind), e.Source,
			string(payload), strings.Join(e.Tags, ","), e.OccurredAt,
		); err != nil {
			return fmt.Errorf("storage: insert event: %w", err)
		}
	}
	return tx.Commit()
}

// WriteMemories upserts memory entries by id.
func (s *SQLite) WriteMemories(ctx context.Context, entries []model.MemoryEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO agent_memories
			(id, session_id, type, content, confidence, reinforcement_count, learned_at, last_accessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			confidence          = excluded.confidence,
			reinforcement_count = excluded.reinforcement_count,
			last_accessed_at    = excluded.last_accessed_at`)
	if err != nil {
		return fmt.Errorf("storage: prepare: %w", err)
	}
	defer stmt.Close()

	for _, m := range entries {
		if _, err := stmt.ExecContext(ctx,
			m.ID.String(), m.SessionID.String(), string(m.Type), m.Content,
			m.Confidence, m.ReinforcementCount, m.LearnedAt, m.LastAccessedAt,
		); err != nil {
			return fmt.Errorf("storage: upsert memory: %w", err)
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
