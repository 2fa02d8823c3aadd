package store

import (
	"context"
	"fmt"
	"path/filepath"
)

// New creates a Store based on the backend name.
//
// Supported backends:
//
//	"json"     - a JSON file in dataDir (default)
//	"sqlite"   - SQLite database at dataDir/boxes.db
//	"postgres" - Postgres at dsn
//	"memory"   - In-memory (ephemeral, for testing)
func New(ctx context.Context, backend, dataDir, dsn string) (Store, error) {
	switch backend {
	case "json", "":
		return NewJsonFileStore(dataDir)
	case "sqlite":
		dbPath := filepath.Join(dataDir, "boxes.db")
		return NewSqliteStore(dbPath)
	case "postgres":
		return NewPostgresStore(ctx, dsn)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: json, sqlite, postgres, memory)", backend)
	}
}
