package session_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/boxgrid/grid"
	"github.com/stevemurr/boxgrid/inventory"
	"github.com/stevemurr/boxgrid/search"
	"github.com/stevemurr/boxgrid/session"
	"github.com/stevemurr/boxgrid/store"
)

var (
	quiet   = slog.New(slog.NewTextHandler(io.Discard, nil))
	errDown = errors.New("backend unavailable")
)

type brokenWrites struct {
	*store.MemoryStore
	broken bool
}

func (b *brokenWrites) Upsert(ctx context.Context, box grid.Box) error {
	if b.broken {
		return errDown
	}
	return b.MemoryStore.Upsert(ctx, box)
}

func (b *brokenWrites) Delete(ctx context.Context, id string) (bool, error) {
	if b.broken {
		return false, errDown
	}
	return b.MemoryStore.Delete(ctx, id)
}

func newSession(t *testing.T) (*session.Session, *brokenWrites) {
	t.Helper()
	st := &brokenWrites{MemoryStore: store.NewMemoryStore()}
	clock := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	n := 0
	s := session.New(inventory.New(st, quiet), quiet,
		session.WithClock(func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		}),
		session.WithIDs(func() string {
			n++
			return fmt.Sprintf("box-%d", n)
		}),
	)
	return s, st
}

func TestCreateBoxRefreshesSnapshot(t *testing.T) {
	s, _ := newSession(t)
	ctx := context.Background()

	b, err := s.CreateBox(ctx, session.NewBox{Name: "Cryo-A1", Rows: 9, Cols: 90, Description: "rack 2"})
	require.NoError(t, err)
	assert.Equal(t, "box-1", b.ID)
	assert.Equal(t, 9, b.Rows)
	assert.Equal(t, 50, b.Cols)

	_, err = s.CreateBox(ctx, session.NewBox{Name: "Cryo-A2", Rows: 2, Cols: 2})
	require.NoError(t, err)

	boxes := s.Boxes()
	require.Len(t, boxes, 2)
	assert.Equal(t, "box-2", boxes[0].ID, "newest first")
}

func TestSlotLifecycle(t *testing.T) {
	s, _ := newSession(t)
	ctx := context.Background()
	b, err := s.CreateBox(ctx, session.NewBox{Name: "Box", Rows: 2, Cols: 2})
	require.NoError(t, err)

	b, err = s.SetSlot(ctx, b.ID, 1, 0, grid.Cell{Name: "GFP-1", Type: grid.TypeSample})
	require.NoError(t, err)
	cell, ok := b.Cells.Get("1-0")
	require.True(t, ok)
	assert.Equal(t, "1-0", cell.ID)
	assert.NotZero(t, cell.UpdatedAt)

	fromSnapshot, err := s.Box(b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fromSnapshot.Occupied())

	_, err = s.SetSlot(ctx, b.ID, 2, 0, grid.Cell{})
	require.ErrorIs(t, err, grid.ErrOutOfBounds)

	b, err = s.ClearSlot(ctx, b.ID, 1, 0)
	require.NoError(t, err)
	assert.Zero(t, b.Occupied())
}

func TestResizeDryRunAndApply(t *testing.T) {
	s, _ := newSession(t)
	ctx := context.Background()
	b, err := s.CreateBox(ctx, session.NewBox{Name: "Box", Rows: 2, Cols: 2})
	require.NoError(t, err)
	_, err = s.SetSlot(ctx, b.ID, 0, 0, grid.Cell{Name: "GFP-1"})
	require.NoError(t, err)
	_, err = s.SetSlot(ctx, b.ID, 1, 1, grid.Cell{Name: "Ctrl", Type: grid.TypeControl})
	require.NoError(t, err)

	preview, evicted, err := s.Resize(ctx, b.ID, 1, 2, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"1-1"}, evicted)
	assert.Equal(t, 1, preview.Rows)
	stored, _ := s.Box(b.ID)
	assert.Equal(t, 2, stored.Rows, "dry run writes nothing")
	assert.Equal(t, 2, stored.Occupied())

	resized, evicted, err := s.Resize(ctx, b.ID, 1, 2, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"1-1"}, evicted)
	assert.Equal(t, []string{"0-0"}, resized.Cells.Keys())
	stored, _ = s.Box(b.ID)
	assert.Equal(t, 1, stored.Rows)
}

func TestUpdateAndDeleteBox(t *testing.T) {
	s, _ := newSession(t)
	ctx := context.Background()
	b, err := s.CreateBox(ctx, session.NewBox{Name: "old", Rows: 3, Cols: 3})
	require.NoError(t, err)

	b, err = s.UpdateBox(ctx, b.ID, "new", "shelf 4")
	require.NoError(t, err)
	assert.Equal(t, "new", b.Name)
	assert.Equal(t, "shelf 4", b.Description)

	require.NoError(t, s.DeleteBox(ctx, b.ID))
	_, err = s.Box(b.ID)
	require.ErrorIs(t, err, session.ErrNotFound)
	require.ErrorIs(t, s.DeleteBox(ctx, b.ID), session.ErrNotFound)
}

func TestUnknownBox(t *testing.T) {
	s, _ := newSession(t)
	ctx := context.Background()
	_, err := s.SetSlot(ctx, "nope", 0, 0, grid.Cell{})
	require.ErrorIs(t, err, session.ErrNotFound)
	_, err = s.ClearSlot(ctx, "nope", 0, 0)
	require.ErrorIs(t, err, session.ErrNotFound)
	_, _, err = s.Resize(ctx, "nope", 1, 1, false)
	require.ErrorIs(t, err, session.ErrNotFound)
	_, err = s.UpdateBox(ctx, "nope", "x", "")
	require.ErrorIs(t, err, session.ErrNotFound)
}

func TestWriteFailuresSurface(t *testing.T) {
	s, st := newSession(t)
	ctx := context.Background()
	b, err := s.CreateBox(ctx, session.NewBox{Name: "Box", Rows: 2, Cols: 2})
	require.NoError(t, err)

	st.broken = true
	_, err = s.SetSlot(ctx, b.ID, 0, 0, grid.Cell{Name: "lost"})
	var we *session.WriteError
	require.ErrorAs(t, err, &we)
	require.ErrorIs(t, err, errDown)
	assert.Contains(t, err.Error(), "slot A1 was not saved")

	stored, _ := s.Box(b.ID)
	assert.Zero(t, stored.Occupied(), "snapshot unchanged after a failed write")

	require.ErrorAs(t, s.DeleteBox(ctx, b.ID), &we)
	_, err = s.CreateBox(ctx, session.NewBox{Name: "x", Rows: 1, Cols: 1})
	require.ErrorAs(t, err, &we)
	assert.Len(t, s.Boxes(), 1)
}

func TestSearchFilterAndStats(t *testing.T) {
	s, _ := newSession(t)
	ctx := context.Background()
	a, err := s.CreateBox(ctx, session.NewBox{Name: "Freezer A", Rows: 2, Cols: 2})
	require.NoError(t, err)
	_, err = s.SetSlot(ctx, a.ID, 0, 0, grid.Cell{Name: "GFP-1"})
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err := s.CreateBox(ctx, session.NewBox{Name: fmt.Sprintf("Shelf %d", i), Rows: 3, Cols: 3})
		require.NoError(t, err)
	}

	res := s.Search("gfp")
	require.Len(t, res, 1)
	assert.Equal(t, search.KindSlot, res[0].Kind)
	assert.Equal(t, "A1", res[0].Coordinate)

	assert.Len(t, s.Filter("shelf"), 4)

	st := s.Stats()
	assert.Equal(t, 5, st.Boxes)
	assert.Equal(t, 4+4*9, st.TotalSlots)
	assert.Equal(t, 1, st.ActiveSamples)
	require.Len(t, st.Recent, session.RecentCount)
	assert.Equal(t, "Shelf 3", st.Recent[0].Name)
}

// Run with -race. Each write sees exactly the writes committed before it,
// so the occupancy counts returned to the writers are 1..n with no repeats.
func TestConcurrentSlotEditsAreSerialised(t *testing.T) {
	s, _ := newSession(t)
	ctx := context.Background()
	b, err := s.CreateBox(ctx, session.NewBox{Name: "Busy", Rows: 5, Cols: 8})
	require.NoError(t, err)

	const n = 40
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		counts []int
	)
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(row, col int) {
			defer wg.Done()
			got, err := s.SetSlot(ctx, b.ID, row, col, grid.Cell{Name: grid.DisplayLabel(row, col)})
			if !assert.NoError(t, err) {
				return
			}
			_, ok := got.Cells.Get(grid.Encode(row, col))
			assert.True(t, ok, "refresh after a write must include it")
			mu.Lock()
			counts = append(counts, got.Occupied())
			mu.Unlock()
		}(i/8, i%8)
		go func() {
			defer wg.Done()
			s.Search("busy")
			s.Stats()
		}()
	}
	wg.Wait()

	stored, err := s.Box(b.ID)
	require.NoError(t, err)
	assert.Equal(t, n, stored.Occupied())

	slices.Sort(counts)
	want := make([]int, n)
	for i := range want {
		want[i] = i + 1
	}
	assert.Equal(t, want, counts)
}

func TestStatsEmpty(t *testing.T) {
	s, _ := newSession(t)
	st := s.Stats()
	assert.Zero(t, st.Boxes)
	assert.Empty(t, st.Recent)
}
