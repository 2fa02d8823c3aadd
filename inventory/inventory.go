// Package inventory is the box entity store: every read and write of box
// records goes through a Service, which applies the read/write error
// policy on top of a store.Store.
//
// Reads degrade: a failed List is logged and reported as no boxes. Writes
// propagate: Upsert and Remove return the failure so the caller can tell
// the user the change did not persist.
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stevemurr/boxgrid/grid"
	"github.com/stevemurr/boxgrid/legacy"
	"github.com/stevemurr/boxgrid/store"
)

// LegacySource yields boxes from the pre-migration storage format.
type LegacySource interface {
	Load() []legacy.Box
	Clear() error
}

type Service struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

func New(s store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, logger: logger, now: time.Now}
}

// List returns all boxes, newest first. Errors are logged and yield an
// empty slice.
func (s *Service) List(ctx context.Context) []grid.Box {
	start := time.Now()
	boxes, err := s.store.List(ctx)
	observe("list", start, err)
	if err != nil {
		s.logger.Error("error fetching boxes", "error", err)
		return []grid.Box{}
	}
	return boxes
}

// Upsert creates or fully replaces box. The local value must not be
// treated as durable unless this returns nil.
func (s *Service) Upsert(ctx context.Context, box grid.Box) error {
	start := time.Now()
	err := s.store.Upsert(ctx, box)
	observe("upsert", start, err)
	if err != nil {
		s.logger.Error("error saving box", "box", box.ID, "error", err)
		return fmt.Errorf("save box %q: %w", box.Name, err)
	}
	s.logger.Debug("box saved", "box", box.ID, "slots", box.Occupied())
	return nil
}

// Remove deletes a box and every slot in it. Removing an unknown id is
// not an error.
func (s *Service) Remove(ctx context.Context, id string) error {
	start := time.Now()
	existed, err := s.store.Delete(ctx, id)
	observe("delete", start, err)
	if err != nil {
		s.logger.Error("error deleting box", "box", id, "error", err)
		return fmt.Errorf("delete box %s: %w", id, err)
	}
	s.logger.Debug("box deleted", "box", id, "existed", existed)
	return nil
}

// MigrateLegacyIfPresent copies every legacy box into the store, then
// clears the legacy source. It returns the number of boxes written.
//
// An unreachable store is not an error: the migration is skipped and
// will be retried on the next start. Boxes are written one by one with
// Upsert; the first failure stops the run and leaves the legacy source
// untouched, so already-written boxes are simply rewritten next time.
func (s *Service) MigrateLegacyIfPresent(ctx context.Context, src LegacySource) (int, error) {
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("row-store not reachable yet, skipping migration check", "error", err)
		return 0, nil
	}

	boxes := src.Load()
	if len(boxes) == 0 {
		return 0, nil
	}

	s.logger.Info("migrating legacy boxes", "count", len(boxes))
	at := s.now().UTC()
	for i, lb := range boxes {
		if err := s.Upsert(ctx, lb.Convert(at)); err != nil {
			return i, fmt.Errorf("migrate legacy boxes: %w", err)
		}
		legacyMigratedTotal.Inc()
	}
	if err := src.Clear(); err != nil {
		return len(boxes), fmt.Errorf("clear legacy boxes: %w", err)
	}
	s.logger.Info("legacy migration complete", "count", len(boxes))
	return len(boxes), nil
}
