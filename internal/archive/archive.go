// Package archive re-exports the core archive abstractions and wires the
// concrete backend drivers.
package archive

import (
	"context"

	"examcore/internal/archive/core"
	fsstore "examcore/internal/infra/archive/fs"
	memorystore "examcore/internal/infra/archive/memory"
	s3store "examcore/internal/infra/archive/s3"
)

type (
	// Driver identifies an archive backend driver.
	Driver = core.Driver
	// RecordRef identifies a sync record before it is written.
	RecordRef = core.RecordRef
	// Record describes a stored sync record.
	Record = core.Record
	// Store is the interface for archive storage backends.
	Store = core.Store
)

const (
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverMemory is the in-memory test driver.
	DriverMemory = core.DriverMemory
)

var (
	// ErrUnsupported indicates an operation isn't supported by a driver.
	ErrUnsupported = core.ErrUnsupported
	// ErrNotFound indicates no record exists at a key.
	ErrNotFound = core.ErrNotFound
	// ErrExists indicates a write would overwrite an archived record.
	ErrExists = core.ErrExists
)

// ParseKey recovers the ref encoded in a storage key.
func ParseKey(key string) (RecordRef, error) { return core.ParseKey(key) }

// NewMemory returns an in-memory archive Store suitable for tests.
func NewMemory() Store { return memorystore.New() }

// NewFilesystem returns a filesystem archive Store rooted at root.
func NewFilesystem(root string) (Store, error) { return fsstore.New(root) }

// S3Config re-exports the infra S3 configuration type.
type S3Config = s3store.Config

// NewS3 constructs an S3-backed archive Store from the provided configuration.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return s3store.New(ctx, cfg)
}

// NewMockS3ForTests exposes the lightweight in-memory S3 mock for cross-package tests.
func NewMockS3ForTests() Store { return s3store.NewMockForTests() }
