package postgres

// Package postgres provides a pgx-backed snapshot persister. State is written
// wholesale as a single JSONB document: the engine serves all reads from
// memory, so the database only needs durable load-on-start and save-on-write.

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prrrssa/sarsabz/internal/storage"
)

// Store holds a pgx connection pool and implements storage.Persister.
// All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string and
// ensures the state table exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		create table if not exists engine_state (
			id int primary key check (id = 1),
			payload jsonb not null,
			saved_at timestamptz not null default now()
		)
	`)
	return err
}

// Load returns the stored snapshot. ok is false when no state has been
// saved yet.
func (s *Store) Load(ctx context.Context) (storage.Snapshot, bool, error) {
	var snap storage.Snapshot
	var payload []byte
	err := s.pool.QueryRow(ctx, `select payload from engine_state where id = 1`).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return snap, false, nil
	}
	if err != nil {
		return snap, false, err
	}
	if err := json.Unmarshal(payload, &snap); err != nil {
		return snap, false, err
	}
	return snap, true, nil
}

// Save replaces the stored state with snap.
func (s *Store) Save(ctx context.Context, snap storage.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		insert into engine_state (id, payload, saved_at)
		values (1, $1, now())
		on conflict (id) do update set payload = excluded.payload, saved_at = now()
	`, payload)
	return err
}
