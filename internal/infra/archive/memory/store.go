// Package memory implements an in-memory archive Store for tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"examcore/internal/archive/core"
)

type entry struct {
	record  core.Record
	payload []byte
}

// Store implements core.Store backed by process memory.
type Store struct {
	mu      sync.RWMutex
	records map[string]entry
}

// New returns an in-memory archive store.
func New() *Store { return &Store{records: make(map[string]entry)} }

// Driver returns the archive driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverMemory }

// Write stores a new record; an existing key fails.
func (s *Store) Write(_ context.Context, ref core.RecordRef, payload []byte) (core.Record, error) {
	if err := ref.Validate(); err != nil {
		return core.Record{}, err
	}
	key := ref.Key()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[key]; exists {
		return core.Record{}, fmt.Errorf("%w: %s", core.ErrExists, key)
	}
	record := core.Record{
		Key:        key,
		ExamID:     ref.ExamID,
		Kind:       ref.Kind,
		Size:       int64(len(payload)),
		ArchivedAt: ref.At.UTC(),
	}
	s.records[key] = entry{record: record, payload: append([]byte(nil), payload...)}
	return record, nil
}

// Read returns the payload stored at key.
func (s *Store) Read(_ context.Context, key string) ([]byte, error) {
	if _, err := core.ParseKey(key); err != nil {
		return nil, err
	}
	s.mu.RLock()
	e, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrNotFound, key)
	}
	return append([]byte(nil), e.payload...), nil
}

// List returns the exam's records sorted by key, so oldest first.
func (s *Store) List(_ context.Context, examID string) ([]core.Record, error) {
	if err := core.ValidateExamID(examID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Record
	for _, e := range s.records {
		if e.record.ExamID == examID {
			out = append(out, e.record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Delete removes the record, reporting whether it existed.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	if _, err := core.ParseKey(key); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[key]
	delete(s.records, key)
	return ok, nil
}

// ShareURL is unsupported; nothing outside the process can reach the store.
func (s *Store) ShareURL(context.Context, string, time.Duration) (string, error) {
	return "", core.ErrUnsupported
}
