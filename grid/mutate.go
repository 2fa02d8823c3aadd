package grid

import (
	"errors"
	"fmt"
	"time"
)

var ErrOutOfBounds = errors.New("grid: slot out of bounds")

// The functions below never modify their input. Each returns a new Box
// whose Cells do not share storage with the argument, so the caller can
// persist the result and discard it if the write fails.

// SetSlot stores cell at (row, col), replacing any previous record
// wholesale. The cell's ID is set to the slot key, and both the cell's and
// the box's UpdatedAt are set to at.
func SetSlot(b Box, row, col int, cell Cell, at time.Time) (Box, error) {
	if !b.Contains(row, col) {
		return b, outOfBounds(b, row, col)
	}
	key := Encode(row, col)
	cell.ID = key
	cell.UpdatedAt = MillisOf(at)

	out := b
	out.UpdatedAt = at
	out.Cells = b.Cells.Clone()
	out.Cells.Set(key, cell)
	return out, nil
}

// ClearSlot removes the record at (row, col). Clearing an unoccupied slot
// returns an identical box.
func ClearSlot(b Box, row, col int) (Box, error) {
	if !b.Contains(row, col) {
		return b, outOfBounds(b, row, col)
	}
	out := b
	out.Cells = b.Cells.Clone()
	out.Cells.Delete(Encode(row, col))
	return out, nil
}

// Resize clamps rows and cols to [MinDim, MaxDim] and drops every record
// that falls outside the new grid. Surviving records keep their keys; no
// re-indexing happens. Keys that do not decode are dropped as well.
func Resize(b Box, rows, cols int) Box {
	rows, cols = Clamp(rows), Clamp(cols)
	out := b
	out.Rows, out.Cols = rows, cols
	out.Cells = Cells{}
	for key, cell := range b.Cells.All() {
		if fits(key, rows, cols) {
			out.Cells.Set(key, cell)
		}
	}
	return out
}

// Evicted lists, in slot-map order, the keys Resize(b, rows, cols) would drop.
func Evicted(b Box, rows, cols int) []string {
	rows, cols = Clamp(rows), Clamp(cols)
	var keys []string
	for key := range b.Cells.All() {
		if !fits(key, rows, cols) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Edit replaces the box's display name and description.
func Edit(b Box, name, description string) Box {
	out := b
	out.Name = name
	out.Description = description
	out.Cells = b.Cells.Clone()
	return out
}

func fits(key string, rows, cols int) bool {
	r, c, err := Decode(key)
	return err == nil && r < rows && c < cols
}

func outOfBounds(b Box, row, col int) error {
	return fmt.Errorf("%w: (%d, %d) outside %dx%d grid", ErrOutOfBounds, row, col, b.Rows, b.Cols)
}
