package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/stevemurr/boxgrid/grid"
)

// sqliteTime is fixed width so that text order equals time order.
const sqliteTime = "2006-01-02T15:04:05.000000000Z"

// SqliteStore stores boxes in a single SQLite table.
//
// Tables:
//
//	boxes(id, name, rows, cols, description, cells, created_at, updated_at)  PRIMARY KEY (id)
type SqliteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewSqliteStore opens (creating if needed) the database at dbPath. The
// caller must have registered the "sqlite3" driver.
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS boxes (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		"rows" INTEGER NOT NULL,
		cols INTEGER NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		cells TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS boxes_created_at ON boxes (created_at)`); err != nil {
		db.Close()
		return nil, err
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying sql.DB for tests.
func (s *SqliteStore) DB() *sql.DB { return s.db }

func (s *SqliteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SqliteStore) List(ctx context.Context) ([]grid.Box, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, "rows", cols, description, cells, created_at, updated_at
		FROM boxes ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []grid.Box{}
	for rows.Next() {
		var (
			b                grid.Box
			cells            string
			created, updated string
		)
		if err := rows.Scan(&b.ID, &b.Name, &b.Rows, &b.Cols, &b.Description, &cells, &created, &updated); err != nil {
			return nil, err
		}
		if b.Cells, err = decodeCells(cells); err != nil {
			return nil, fmt.Errorf("decode cells of box %s: %w", b.ID, err)
		}
		b.CreatedAt, _ = time.Parse(sqliteTime, created)
		b.UpdatedAt, _ = time.Parse(sqliteTime, updated)
		result = append(result, b)
	}
	return result, rows.Err()
}

func (s *SqliteStore) Upsert(ctx context.Context, box grid.Box) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cells, err := encodeCells(box.Cells)
	if err != nil {
		return err
	}
	// created_at is left alone on conflict, so the stored value wins.
	box = stamp(box, time.Time{})
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO boxes (id, name, "rows", cols, description, cells, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			"rows" = excluded."rows",
			cols = excluded.cols,
			description = excluded.description,
			cells = excluded.cells,
			updated_at = excluded.updated_at`,
		box.ID, box.Name, box.Rows, box.Cols, box.Description, cells,
		box.CreatedAt.UTC().Format(sqliteTime), box.UpdatedAt.UTC().Format(sqliteTime),
	)
	if err != nil {
		return fmt.Errorf("upsert box %s: %w", box.ID, err)
	}
	return nil
}

func (s *SqliteStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, "DELETE FROM boxes WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
