package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/questweaver-ai/questweaver/internal/model"
)

// Postgres is a durable sink backed by a pgx connection pool. It implements
// both EventSink and MemorySink.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres connects a pool, verifies it, and ensures the sink tables
// exist.
func NewPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: parse DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping pool: %w", err)
	}

	p := &Postgres{pool: pool, logger: logger}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS agent_events (
			id          UUID PRIMARY KEY,
			session_id  UUID NOT NULL,
			kind        TEXT NOT NULL,
			source      TEXT NOT NULL DEFAULT '',
			payload     JSONB,
			tags        TEXT[],
			occurred_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS agent_events_session_idx
			ON agent_events (session_id, occurred_at)`,
		`CREATE TABLE IF NOT EXISTS agent_memories (
			id                  UUID PRIMARY KEY,
			session_id          UUID NOT NULL,
			type                TEXT NOT NULL,
			content             TEXT NOT NULL,
			confidence          DOUBLE PRECISION NOT NULL,
			reinforcement_count INT NOT NULL DEFAULT 0,
			learned_at          TIMESTAMPTZ NOT NULL,
			last_accessed_at    TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS agent_memories_session_idx
			ON agent_memories (session_id, confidence DESC)`,
	} {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("storage: ensure schema: %w", err)
		}
	}
	return nil
}

// WriteEvents inserts events using the COPY protocol.
func (p *Postgres) WriteEvents(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([][]any, len(events))
	for i, e := range events {
		rows[i] = []any{e.ID, e.SessionID, string(e.Kind), e.Source, e.Payload, e.Tags, e.OccurredAt}
	}

	_, err := p.pool.CopyFrom(
		ctx,
		pgx.Identifier{"agent_events"},
		[]string{"id", "session_id", "kind", "source", "payload", "tags", "occurred_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("storage: copy events: %w", err)
	}
	return nil
}

// WriteMemories upserts memory entries. Reinforced entries keep their id, so
// a conflict means an update to confidence and counters.
func (p *Postgres) WriteMemories(ctx context.Context, entries []model.MemoryEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range entries {
		batch.Queue(`
			INSERT INTO agent_memories
				(id, session_id, type, content, confidence, reinforcement_count, learned_at, last_accessed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				confidence          = EXCLUDED.confidence,
				reinforcement_count = EXCLUDED.reinforcement_count,
				last_accessed_at    = EXCLUDED.last_accessed_at`,
			m.ID, m.SessionID, string(m.Type), m.Content, m.Confidence,
			m.ReinforcementCount, m.LearnedAt, m.LastAccessedAt,
		)
	}

	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range entries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("storage: upsert memory: %w", err)
		}
	}
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
