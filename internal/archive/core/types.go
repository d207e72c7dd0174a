// Package core defines the contract shared by sync-record archive backends.
// The archive holds immutable per-exam JSON records; backends only need the
// narrow surface those records require, not a general object store.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Driver identifies a concrete archive backend implementation.
type Driver string

const (
	// DriverFilesystem represents the local filesystem implementation.
	DriverFilesystem Driver = "fs" // local filesystem (default, dev)
	// DriverS3 represents an S3 / MinIO compatible implementation.
	DriverS3 Driver = "s3" // S3 / MinIO compatible
	// DriverMemory represents an in-memory implementation typically used in tests.
	DriverMemory Driver = "memory" // in-memory (tests)
)

// ContentType is the media type of every archived record.
const ContentType = "application/json"

// keyTimeFormat keeps record keys lexically sortable and collision-free for
// records written within the same second.
const keyTimeFormat = "20060102T150405.000000000Z"

// RecordRef identifies one sync record before it is written.
type RecordRef struct {
	ExamID string
	Kind   string
	At     time.Time
}

// Validate rejects refs that would produce unsafe or ambiguous keys. Both
// segments become path components, so separators and traversal sequences are
// refused here rather than trusted to each backend.
func (r RecordRef) Validate() error {
	if err := validateSegment("exam id", r.ExamID); err != nil {
		return err
	}
	if err := validateSegment("record kind", r.Kind); err != nil {
		return err
	}
	if r.At.IsZero() {
		return errors.New("archive: record time required")
	}
	return nil
}

// Key returns the storage key, exams/<examID>/<kind>-<timestamp>.json.
func (r RecordRef) Key() string {
	return fmt.Sprintf("exams/%s/%s-%s.json", r.ExamID, r.Kind, r.At.UTC().Format(keyTimeFormat))
}

// ParseKey recovers the ref encoded in a storage key. Keys of any other shape
// are rejected, which also keeps traversal attempts out of the backends.
func ParseKey(key string) (RecordRef, error) {
	rest, ok := strings.CutPrefix(key, "exams/")
	if !ok {
		return RecordRef{}, fmt.Errorf("archive: key %q lacks the exams/ prefix", key)
	}
	examID, name, ok := strings.Cut(rest, "/")
	if !ok || strings.Contains(name, "/") {
		return RecordRef{}, fmt.Errorf("archive: key %q is not exam-scoped", key)
	}
	base, ok := strings.CutSuffix(name, ".json")
	if !ok {
		return RecordRef{}, fmt.Errorf("archive: key %q is not a JSON record", key)
	}
	sep := strings.LastIndex(base, "-")
	if sep < 1 {
		return RecordRef{}, fmt.Errorf("archive: key %q lacks a record kind", key)
	}
	at, err := time.Parse(keyTimeFormat, base[sep+1:])
	if err != nil {
		return RecordRef{}, fmt.Errorf("archive: key %q has a malformed timestamp: %v", key, err)
	}
	ref := RecordRef{ExamID: examID, Kind: base[:sep], At: at}
	if err := ref.Validate(); err != nil {
		return RecordRef{}, err
	}
	return ref, nil
}

// ValidateExamID checks an exam identifier before it is used as a key prefix.
func ValidateExamID(examID string) error {
	return validateSegment("exam id", examID)
}

func validateSegment(what, s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("archive: %s required", what)
	}
	if strings.ContainsAny(s, `/\`) || strings.Contains(s, "..") {
		return fmt.Errorf("archive: invalid %s %q", what, s)
	}
	return nil
}

// Record describes one stored sync record.
type Record struct {
	Key        string    `json:"key"`
	ExamID     string    `json:"exam_id"`
	Kind       string    `json:"kind"`
	Size       int64     `json:"size_bytes"`
	Checksum   string    `json:"checksum,omitempty"`
	ArchivedAt time.Time `json:"archived_at"`
}

// Store is the surface sync-record archiving needs from a backend. Write is
// create-only; a record is never overwritten in place.
type Store interface {
	// Write stores payload under the ref's key and returns the stored record.
	Write(ctx context.Context, ref RecordRef, payload []byte) (Record, error)
	// Read returns the payload stored at key.
	Read(ctx context.Context, key string) ([]byte, error)
	// List returns the exam's records, oldest key first.
	List(ctx context.Context, examID string) ([]Record, error)
	// Delete removes a record, reporting whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// ShareURL returns a time-limited link for handing a record to another
	// module without archive credentials.
	ShareURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Driver() Driver
}

// ErrUnsupported is returned when an optional capability is not available.
var ErrUnsupported = errors.New("archive: unsupported operation")

// ErrNotFound is returned when no record exists at a key.
var ErrNotFound = errors.New("archive: record not found")

// ErrExists is returned when a write would overwrite an archived record.
var ErrExists = errors.New("archive: record already archived")
