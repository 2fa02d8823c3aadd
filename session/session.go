// Package session holds the application state of the tracker: the
// current snapshot of boxes, and one transition per user action.
//
// Every mutation follows the same sequence: derive the new box value from
// the snapshot, persist it, then reload the full snapshot from the store.
// Mutations are serialised, so a refresh always observes the write that
// preceded it and never a concurrent one.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stevemurr/boxgrid/grid"
	"github.com/stevemurr/boxgrid/inventory"
	"github.com/stevemurr/boxgrid/search"
)

var ErrNotFound = errors.New("box not found")

// WriteError reports a mutation that did not reach the row-store. The
// snapshot is unchanged when it is returned.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s was not saved: %v; check the storage backend and try again", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// NewBox is the input of CreateBox.
type NewBox struct {
	Name        string
	Rows        int
	Cols        int
	Description string
}

type Session struct {
	inv    *inventory.Service
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	writeMu sync.Mutex

	mu    sync.RWMutex
	boxes []grid.Box
}

type Option func(*Session)

// WithClock overrides the clock used to stamp slot edits and new boxes.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithIDs overrides box id generation.
func WithIDs(newID func() string) Option {
	return func(s *Session) { s.newID = newID }
}

func New(inv *inventory.Service, logger *slog.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		inv:    inv,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		boxes:  []grid.Box{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Refresh reloads the snapshot from the store. A failed read leaves an
// empty snapshot, matching the read-path policy of inventory.Service.
func (s *Session) Refresh(ctx context.Context) []grid.Box {
	boxes := s.inv.List(ctx)
	s.mu.Lock()
	s.boxes = boxes
	s.mu.Unlock()
	return boxes
}

// Boxes returns the current snapshot, newest first.
func (s *Session) Boxes() []grid.Box {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.boxes)
}

// Box returns one box from the snapshot.
func (s *Session) Box(id string) (grid.Box, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.boxes {
		if b.ID == id {
			return b, nil
		}
	}
	return grid.Box{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *Session) CreateBox(ctx context.Context, in NewBox) (grid.Box, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	b := grid.NewBox(s.newID(), in.Name, in.Rows, in.Cols, in.Description, s.now())
	return s.commit(ctx, "new box", b)
}

// UpdateBox changes a box's name and description.
func (s *Session) UpdateBox(ctx context.Context, id, name, description string) (grid.Box, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	b, err := s.Box(id)
	if err != nil {
		return grid.Box{}, err
	}
	return s.commit(ctx, "box details", grid.Edit(b, name, description))
}

func (s *Session) DeleteBox(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.Box(id); err != nil {
		return err
	}
	if err := s.inv.Remove(ctx, id); err != nil {
		return &WriteError{Op: "box deletion", Err: err}
	}
	s.Refresh(ctx)
	return nil
}

func (s *Session) SetSlot(ctx context.Context, id string, row, col int, cell grid.Cell) (grid.Box, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	b, err := s.Box(id)
	if err != nil {
		return grid.Box{}, err
	}
	next, err := grid.SetSlot(b, row, col, cell, s.now())
	if err != nil {
		return grid.Box{}, err
	}
	return s.commit(ctx, "slot "+grid.DisplayLabel(row, col), next)
}

func (s *Session) ClearSlot(ctx context.Context, id string, row, col int) (grid.Box, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	b, err := s.Box(id)
	if err != nil {
		return grid.Box{}, err
	}
	next, err := grid.ClearSlot(b, row, col)
	if err != nil {
		return grid.Box{}, err
	}
	return s.commit(ctx, "cleared slot "+grid.DisplayLabel(row, col), next)
}

// Resize applies new dimensions and returns the keys of the records it
// dropped. With dryRun nothing is written and the box comes back as it
// would look after the resize.
func (s *Session) Resize(ctx context.Context, id string, rows, cols int, dryRun bool) (grid.Box, []string, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	b, err := s.Box(id)
	if err != nil {
		return grid.Box{}, nil, err
	}
	evicted := grid.Evicted(b, rows, cols)
	next := grid.Resize(b, rows, cols)
	if dryRun {
		return next, evicted, nil
	}
	if len(evicted) > 0 {
		s.logger.Info("resize drops slots", "box", id, "rows", next.Rows, "cols", next.Cols, "dropped", len(evicted))
	}
	saved, err := s.commit(ctx, "resize", next)
	return saved, evicted, err
}

// Search runs a free-text query over the snapshot.
func (s *Session) Search(q string) []search.Result {
	return search.Search(s.Boxes(), q)
}

// Filter narrows the snapshot to boxes whose name contains q.
func (s *Session) Filter(q string) []grid.Box {
	return search.Filter(s.Boxes(), q)
}

// commit persists b and refreshes the snapshot. It returns the stored
// version of b, or b itself if the refresh could not see it.
func (s *Session) commit(ctx context.Context, op string, b grid.Box) (grid.Box, error) {
	if err := s.inv.Upsert(ctx, b); err != nil {
		return grid.Box{}, &WriteError{Op: op, Err: err}
	}
	s.Refresh(ctx)
	if stored, err := s.Box(b.ID); err == nil {
		return stored, nil
	}
	return b, nil
}
