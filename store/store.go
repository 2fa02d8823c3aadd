// Package store defines the box row-store interface and implementations.
package store

import (
	"context"

	"github.com/stevemurr/boxgrid/grid"
)

// Store is the interface that all backing stores must implement. It holds
// one record per box keyed by id; the slot map travels as a single blob
// and is always replaced in full.
type Store interface {
	// List returns every box, most recently created first. Ties are
	// broken by id so the order is stable.
	List(ctx context.Context) ([]grid.Box, error)

	// Upsert inserts or replaces a box. On replace the stored CreatedAt is
	// kept; UpdatedAt is stamped by the store on every write. A zero
	// CreatedAt on insert is stamped too.
	Upsert(ctx context.Context, box grid.Box) error

	// Delete removes a box and its slots. Returns true if it existed.
	Delete(ctx context.Context, id string) (bool, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	Close() error
}
