// Package persistence selects a concrete gateway backend for a deployment.
package persistence

import (
	"fmt"
	"os"

	"examcore/internal/infra/persistence/memory"
	"examcore/internal/infra/persistence/postgres"
	"examcore/internal/infra/persistence/sqlite"
	"examcore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// Store joins the read/write gateway with the durable sync-event log. All
// backends implement both.
type Store interface {
	domain.Gateway
	domain.EventStore
}

// Open selects a backend using environment variables. Defaults to sqlite
// when unset.
//
//	EXAMCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	EXAMCORE_SQLITE_PATH: path to sqlite file (default ./examcore.db)
//	EXAMCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func Open() (Store, error) {
	driver := os.Getenv("EXAMCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		path := os.Getenv("EXAMCORE_SQLITE_PATH")
		return sqlite.NewStore(path)
	case StoragePostgres:
		dsn := os.Getenv("EXAMCORE_POSTGRES_DSN")
		return postgres.NewStore(dsn)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
