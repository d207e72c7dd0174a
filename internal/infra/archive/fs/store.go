// Package fs implements a filesystem-backed archive Store. Each exam gets a
// directory under <root>/exams; every record is a JSON file plus a `.rec`
// sidecar holding the stored core.Record, checksum included.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"examcore/internal/archive/core"
)

const sidecarExt = ".rec"

// Store implements core.Store on the local filesystem. Keys validated by
// core.ParseKey cannot escape the root, so no further path checks are needed.
type Store struct {
	root string
}

// New returns a filesystem archive store rooted at path, creating it if needed.
func New(root string) (*Store, error) {
	if root == "" {
		root = "./archivedata"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

// Driver returns the archive driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

func (s *Store) recordPath(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Write stores payload as <root>/<key>, sidecar alongside. The payload lands
// via rename so a crash cannot leave a half-written record behind.
func (s *Store) Write(_ context.Context, ref core.RecordRef, payload []byte) (core.Record, error) {
	if err := ref.Validate(); err != nil {
		return core.Record{}, err
	}
	key := ref.Key()
	path := s.recordPath(key)
	if _, err := os.Stat(path); err == nil {
		return core.Record{}, fmt.Errorf("%w: %s", core.ErrExists, key)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return core.Record{}, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".pending-*")
	if err != nil {
		return core.Record{}, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return core.Record{}, err
	}
	if err := tmp.Close(); err != nil {
		return core.Record{}, err
	}
	sum := sha256.Sum256(payload)
	record := core.Record{
		Key:        key,
		ExamID:     ref.ExamID,
		Kind:       ref.Kind,
		Size:       int64(len(payload)),
		Checksum:   hex.EncodeToString(sum[:]),
		ArchivedAt: ref.At.UTC(),
	}
	sidecar, err := json.Marshal(record)
	if err != nil {
		return core.Record{}, err
	}
	if err := os.WriteFile(path+sidecarExt, sidecar, 0o644); err != nil {
		return core.Record{}, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(path + sidecarExt)
		return core.Record{}, err
	}
	return record, nil
}

// Read returns the payload stored at key.
func (s *Store) Read(_ context.Context, key string) ([]byte, error) {
	if _, err := core.ParseKey(key); err != nil {
		return nil, err
	}
	payload, err := os.ReadFile(s.recordPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", core.ErrNotFound, key)
	}
	return payload, err
}

// List reads the exam's directory; a missing directory means no records yet.
func (s *Store) List(_ context.Context, examID string) ([]core.Record, error) {
	if err := core.ValidateExamID(examID); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.root, "exams", examID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []core.Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), sidecarExt) {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(s.root, "exams", examID, entry.Name()))
		if err != nil {
			return nil, err
		}
		var record core.Record
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("archive: corrupt sidecar %s: %w", entry.Name(), err)
		}
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Delete removes the record and its sidecar, reporting whether it existed.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	if _, err := core.ParseKey(key); err != nil {
		return false, err
	}
	path := s.recordPath(key)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	_ = os.Remove(path + sidecarExt)
	return true, nil
}

// ShareURL returns a file URL for the record. There is no auth to scope on a
// local filesystem, so the expiry is advisory only.
func (s *Store) ShareURL(_ context.Context, key string, _ time.Duration) (string, error) {
	if _, err := core.ParseKey(key); err != nil {
		return "", err
	}
	path := s.recordPath(key)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", core.ErrNotFound, key)
		}
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}
