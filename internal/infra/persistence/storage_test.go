package persistence

import (
	"path/filepath"
	"testing"
)

func TestOpenMemoryDriver(t *testing.T) {
	t.Setenv("EXAMCORE_STORAGE_DRIVER", "memory")
	store, err := Open()
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	if store == nil {
		t.Fatalf("expected store")
	}
}

func TestOpenSQLiteDriver(t *testing.T) {
	t.Setenv("EXAMCORE_STORAGE_DRIVER", "sqlite")
	t.Setenv("EXAMCORE_SQLITE_PATH", filepath.Join(t.TempDir(), "examcore.db"))
	store, err := Open()
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if store == nil {
		t.Fatalf("expected store")
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Setenv("EXAMCORE_STORAGE_DRIVER", "oracle")
	if _, err := Open(); err == nil {
		t.Fatalf("expected unknown driver to fail")
	}
}
