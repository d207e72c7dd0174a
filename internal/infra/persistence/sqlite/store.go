// Package sqlite provides a SQLite-backed gateway that mirrors the in-memory
// semantics. Entity state is snapshotted to a single bucket table after every
// mutation; the sync event log lives in its own table so events survive
// restarts independently of snapshots.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"examcore/internal/infra/persistence/memory"
	"examcore/pkg/domain"
)

var (
	_ domain.Gateway    = (*Store)(nil)
	_ domain.EventStore = (*Store)(nil)
)

// Store persists the in-memory state to SQLite as JSON bucket blobs.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens a snapshotting SQLite-backed store at the given path (empty
// for the default file) and hydrates it from any existing snapshot.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "examcore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS sync_events (
		id TEXT PRIMARY KEY,
		module TEXT NOT NULL,
		action TEXT NOT NULL,
		payload BLOB,
		ts TEXT NOT NULL,
		status TEXT NOT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	)`); err != nil {
		return nil, fmt.Errorf("create sync_events table: %w", err)
	}

	s := &Store{Store: memory.NewStore(), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying handle for integration tests.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
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
	// The event log has its own table; never hydrate it from a snapshot.
	delete(buckets, memory.BucketEvents)
	if err := s.Store.ImportState(buckets); err != nil {
		return fmt.Errorf("hydrate snapshot: %w", err)
	}
	return nil
}

// Flush snapshots the current entity state. Call it after seeding fixtures
// through the embedded memory store.
func (s *Store) Flush(ctx context.Context) error { return s.persist(ctx) }

func (s *Store) persist(ctx context.Context) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buckets, err := s.Store.ExportState()
	if err != nil {
		return fmt.Errorf("export state: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range memory.Buckets() {
		if bucket == memory.BucketEvents {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`,
			bucket, []byte(buckets[bucket])); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", bucket, err)
			return retErr
		}
	}
	if err := tx.Commit(); err != nil {
		retErr = fmt.Errorf("commit: %w", err)
	}
	return retErr
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

// AppendEvent writes the event to the durable log.
func (s *Store) AppendEvent(ctx context.Context, event domain.SyncEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_events(id,module,action,payload,ts,status,retry_count,error) VALUES(?,?,?,?,?,?,?,?)`,
		event.ID, string(event.Module), event.Action, []byte(event.Data),
		event.Timestamp.UTC().Format(time.RFC3339Nano), string(event.Status), event.RetryCount, event.Error)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// UpdateEventStatus mutates the dispatch-owned fields of a logged event.
func (s *Store) UpdateEventStatus(ctx context.Context, id string, status domain.SyncEventStatus, retryCount int, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_events SET status=?, retry_count=?, error=? WHERE id=?`,
		string(status), retryCount, errMsg, id)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListRecentEvents returns up to limit events, newest first.
func (s *Store) ListRecentEvents(ctx context.Context, limit int) ([]domain.SyncEvent, error) {
	query := `SELECT id,module,action,payload,ts,status,retry_count,error FROM sync_events ORDER BY ts DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.SyncEvent
	for rows.Next() {
		var event domain.SyncEvent
		var module, status, ts string
		var payload []byte
		if err := rows.Scan(&event.ID, &module, &event.Action, &payload, &ts, &status, &event.RetryCount, &event.Error); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.Module = domain.Module(module)
		event.Status = domain.SyncEventStatus(status)
		event.Data = payload
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			event.Timestamp = parsed
		}
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}
