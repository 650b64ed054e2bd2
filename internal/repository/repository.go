// Package repository persists the registry: to files through a codec, and
// optionally as snapshot rows in PostgreSQL.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/event-registry/internal/codec"
	"github.com/Shivanand-hulikatti/event-registry/internal/model"
)

// Kind names what a snapshot holds.
type Kind string

const (
	KindEvents Kind = "events"
	KindUsers  Kind = "users"
)

// Snapshot is one saved payload.
type Snapshot struct {
	ID        string
	Kind      Kind
	Format    codec.Format
	Payload   []byte
	CreatedAt time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS registry_snapshots (
	id         UUID PRIMARY KEY,
	kind       TEXT        NOT NULL,
	format     TEXT        NOT NULL,
	payload    BYTEA       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS registry_snapshots_latest
	ON registry_snapshots (kind, format, created_at DESC);
`

// SnapshotRepository mirrors every saved payload into PostgreSQL. Rows are
// append-only; Latest returns the newest row of a kind and format.
type SnapshotRepository struct {
	db *pgxpool.Pool
}

// NewSnapshotRepository constructs a SnapshotRepository.
func NewSnapshotRepository(db *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// EnsureSchema creates the snapshot table if it is missing.
func (r *SnapshotRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create snapshot schema: %w", err)
	}
	return nil
}

// Save inserts a new snapshot row and returns it with a generated UUID.
func (r *SnapshotRepository) Save(ctx context.Context, kind Kind, format codec.Format, payload []byte) (*Snapshot, error) {
	snap := &Snapshot{
		ID:        uuid.New().String(),
		Kind:      kind,
		Format:    format,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO registry_snapshots (id, kind, format, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		snap.ID, string(snap.Kind), string(snap.Format), snap.Payload, snap.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}
	return snap, nil
}

// Latest returns the most recent snapshot of kind in format, or
// model.ErrNotFound.
func (r *SnapshotRepository) Latest(ctx context.Context, kind Kind, format codec.Format) (*Snapshot, error) {
	var (
		s                  Snapshot
		kindStr, formatStr string
	)
	err := r.db.QueryRow(ctx,
		`SELECT id::text, kind, format, payload, created_at
		 FROM registry_snapshots
		 WHERE kind = $1 AND format = $2
		 ORDER BY created_at DESC
		 LIMIT 1`,
		string(kind), string(format),
	).Scan(&s.ID, &kindStr, &formatStr, &s.Payload, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	s.Kind = Kind(kindStr)
	s.Format = codec.Format(formatStr)
	return &s, nil
}

// Count returns how many snapshots of kind are stored.
func (r *SnapshotRepository) Count(ctx context.Context, kind Kind) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM registry_snapshots WHERE kind = $1`, string(kind),
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}
