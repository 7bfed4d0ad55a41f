package memory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// entryCols is the standard SELECT column list for scanEntries.
const entryCols = `id, session_id, role, content, created_at`

// PostgresBackend stores memory entries in PostgreSQL with pgvector.
// Safe for concurrent use.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

var _ vectorBackend = (*PostgresBackend)(nil)

// NewPostgresBackend wraps an existing connection pool. The caller owns
// the pool; Close here only drops the reference, matching the app
// lifecycle where one pool is shared with migrations.
func NewPostgresBackend(pool *pgxpool.Pool) (*PostgresBackend, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &PostgresBackend{pool: pool}, nil
}

// ConnectPostgres is a Retriever Connect function: it opens a pool,
// verifies connectivity, and returns the backend. Used for lazy
// connection when the app does not hold a pool up front. prepare runs
// before the pool opens (schema migration hook); it may be nil.
func ConnectPostgres(url string, prepare func() error) func(ctx context.Context) (vectorBackend, error) {
	return func(ctx context.Context) (vectorBackend, error) {
		if prepare != nil {
			if err := prepare(); err != nil {
				return nil, fmt.Errorf("preparing schema: %w", err)
			}
		}
		pool, err := pgxpool.New(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("creating connection pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("pinging database: %w", err)
		}
		return &ownedPoolBackend{PostgresBackend{pool: pool}}, nil
	}
}

// ownedPoolBackend closes the pool it created, unlike the shared-pool
// PostgresBackend.
type ownedPoolBackend struct {
	PostgresBackend
}

func (b *ownedPoolBackend) Close() {
	b.pool.Close()
}

// Insert stores an entry with its embedding. Duplicate IDs are ignored:
// the ID already encodes session, role, timestamp, and content prefix,
// so a conflict means the same message stored twice.
func (b *PostgresBackend) Insert(ctx context.Context, entry Entry, vec pgvector.Vector) error {
	_, err := b.pool.Exec(ctx,
		`INSERT INTO memories (id, session_id, role, content, embedding, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		entry.ID, entry.SessionID, entry.Role, entry.Content, vec, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting memory: %w", err)
	}
	return nil
}

// Nearest returns up to k entries for the session ordered by cosine
// similarity to vec, most similar first.
func (b *PostgresBackend) Nearest(ctx context.Context, sessionID string, vec pgvector.Vector, k int) ([]Entry, error) {
	rows, err := b.pool.Query(ctx,
		`SELECT `+entryCols+`, 1 - (embedding <=> $2) AS similarity
		 FROM memories
		 WHERE session_id = $1
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		sessionID, vec, k,
	)
	if err != nil {
		return nil, fmt.Errorf("querying nearest memories: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Role, &e.Content, &e.CreatedAt, &e.Score); err != nil {
			return nil, fmt.Errorf("scanning memory row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating memory rows: %w", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// DeleteSession removes every entry for the session and reports how
// many rows were deleted.
func (b *PostgresBackend) DeleteSession(ctx context.Context, sessionID string) (int64, error) {
	tag, err := b.pool.Exec(ctx, `DELETE FROM memories WHERE session_id = $1`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("deleting session memories: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close drops the pool reference. The pool itself is owned by the caller.
func (b *PostgresBackend) Close() {
	b.pool = nil
}
