// Package postgres provides a Postgres-backed gateway that mirrors the
// in-memory semantics, snapshotting the full state as JSONB buckets after
// every mutation.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"examcore/internal/infra/persistence/memory"
	"examcore/pkg/domain"
)

var (
	_ domain.Gateway    = (*Store)(nil)
	_ domain.EventStore = (*Store)(nil)
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/examcore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists state to Postgres while reusing the in-memory implementation
// for reads and business semantics.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back to
// defaultDSN), ensures the snapshot table exists, and hydrates the in-memory
// store from any existing snapshot.
func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("ensure state table: %w", err)
	}

	s := &Store{Store: memory.NewStore(), db: db}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	buckets := make(map[string]json.RawMessage)
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan state: %w", err)
		}
		buckets[bucket] = payload
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if len(buckets) == 0 {
		return nil
	}
	if err := s.Store.ImportState(buckets); err != nil {
		return fmt.Errorf("hydrate snapshot: %w", err)
	}
	return nil
}

// Flush snapshots the current state. Call it after seeding fixtures through
// the embedded memory store.
func (s *Store) Flush(ctx context.Context) error { return s.persist(ctx) }

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buckets, err := s.Store.ExportState()
	if err != nil {
		return fmt.Errorf("export state: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range memory.Buckets() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`,
			bucket, []byte(buckets[bucket])); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// SetSessionRoom commits the room reference and snapshots.
func (s *Store) SetSessionRoom(ctx context.Context, sessionID, roomID string) error {
	if err := s.Store.SetSessionRoom(ctx, sessionID, roomID); err != nil {
		return err
	}
	return s.persist(ctx)
}

// InsertRegistration stores the registration and snapshots.
func (s *Store) InsertRegistration(ctx context.Context, reg domain.Registration) (domain.Registration, error) {
	out, err := s.Store.InsertRegistration(ctx, reg)
	if err != nil {
		return out, err
	}
	return out, s.persist(ctx)
}

// InsertReservation stores the reservation and snapshots.
func (s *Store) InsertReservation(ctx context.Context, res domain.Reservation) (domain.Reservation, error) {
	out, err := s.Store.InsertReservation(ctx, res)
	if err != nil {
		return out, err
	}
	return out, s.persist(ctx)
}

// InsertSupervisorAssignment stores the assignment and snapshots.
func (s *Store) InsertSupervisorAssignment(ctx context.Context, a domain.SupervisorAssignment) (domain.SupervisorAssignment, error) {
	out, err := s.Store.InsertSupervisorAssignment(ctx, a)
	if err != nil {
		return out, err
	}
	return out, s.persist(ctx)
}

// AppendEvent appends to the in-memory log and snapshots the events bucket.
func (s *Store) AppendEvent(ctx context.Context, event domain.SyncEvent) error {
	if err := s.Store.AppendEvent(ctx, event); err != nil {
		return err
	}
	return s.persist(ctx)
}

// UpdateEventStatus updates the logged event and snapshots the events bucket.
func (s *Store) UpdateEventStatus(ctx context.Context, id string, status domain.SyncEventStatus, retryCount int, errMsg string) error {
	if err := s.Store.UpdateEventStatus(ctx, id, status, retryCount, errMsg); err != nil {
		return err
	}
	return s.persist(ctx)
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
