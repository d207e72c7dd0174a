package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// SyncRecorder retains per-exam synchronization records as JSON in an archive
// Store. Each record is keyed by exam, kind and archive time; the recorder
// never overwrites, so the archive is an append-only history per exam.
type SyncRecorder struct {
	store Store
	nowFn func() time.Time
}

// NewSyncRecorder returns a recorder writing into store.
func NewSyncRecorder(store Store) *SyncRecorder {
	return &SyncRecorder{store: store, nowFn: time.Now}
}

// SetNow overrides the clock used for record timestamps. Intended for tests.
func (r *SyncRecorder) SetNow(fn func() time.Time) { r.nowFn = fn }

// ArchiveSyncRecord serializes record and stores it under the exam's prefix.
func (r *SyncRecorder) ArchiveSyncRecord(ctx context.Context, examID, kind string, record any) error {
	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s record: %w", kind, err)
	}
	ref := RecordRef{ExamID: examID, Kind: kind, At: r.nowFn().UTC()}
	if _, err := r.store.Write(ctx, ref, payload); err != nil {
		return fmt.Errorf("archive %s record for exam %s: %w", kind, examID, err)
	}
	return nil
}

// Records lists the archived records for an exam, oldest first.
func (r *SyncRecorder) Records(ctx context.Context, examID string) ([]Record, error) {
	return r.store.List(ctx, examID)
}

// ReadRecord decodes the archived record stored at key into out.
func (r *SyncRecorder) ReadRecord(ctx context.Context, key string, out any) error {
	payload, err := r.store.Read(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, out)
}

// ShareRecord returns a time-limited link to an archived record, for handing
// a sync report to an integrated module.
func (r *SyncRecorder) ShareRecord(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return r.store.ShareURL(ctx, key, expiry)
}
