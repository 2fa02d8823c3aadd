package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"github.com/stevemurr/boxgrid/grid"
)

const defaultPostgresDSN = "postgres://localhost/boxgrid?sslmode=disable"

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// PostgresStore keeps boxes in a Postgres table. cells is a JSON (not
// JSONB) column so the slot map keeps its member order.
type PostgresStore struct {
	db *sql.DB
}

const postgresDDL = `CREATE TABLE IF NOT EXISTS boxes (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	"rows" INTEGER NOT NULL,
	cols INTEGER NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	cells JSON NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewPostgresStore connects with dsn (defaultPostgresDSN when empty),
// verifies the connection and ensures the boxes table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		dsn = defaultPostgresDSN
	}
	openMu.Lock()
	db, err := sqlOpen("pgx", dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure boxes table: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS boxes_created_at ON boxes (created_at DESC)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure boxes index: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration tests.
func (s *PostgresStore) DB() *sql.DB { return s.db }

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) List(ctx context.Context) ([]grid.Box, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, "rows", cols, description, cells::text, created_at, updated_at
		FROM boxes ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("select boxes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := []grid.Box{}
	for rows.Next() {
		var (
			b     grid.Box
			cells string
		)
		if err := rows.Scan(&b.ID, &b.Name, &b.Rows, &b.Cols, &b.Description, &cells, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan box: %w", err)
		}
		if b.Cells, err = decodeCells(cells); err != nil {
			return nil, fmt.Errorf("decode cells of box %s: %w", b.ID, err)
		}
		b.CreatedAt = b.CreatedAt.UTC()
		b.UpdatedAt = b.UpdatedAt.UTC()
		result = append(result, b)
	}
	return result, rows.Err()
}

func (s *PostgresStore) Upsert(ctx context.Context, box grid.Box) error {
	cells, err := encodeCells(box.Cells)
	if err != nil {
		return err
	}
	box = stamp(box, time.Time{})
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO boxes (id, name, "rows", cols, description, cells, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6::json, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			"rows" = EXCLUDED."rows",
			cols = EXCLUDED.cols,
			description = EXCLUDED.description,
			cells = EXCLUDED.cells,
			updated_at = EXCLUDED.updated_at`,
		box.ID, box.Name, box.Rows, box.Cols, box.Description, cells, box.CreatedAt, box.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert box %s: %w", box.ID, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM boxes WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete box %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
