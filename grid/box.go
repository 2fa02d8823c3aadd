// Package grid models storage boxes as 2-D grids of addressable slots and
// implements slot addressing and the box mutation rules.
package grid

import "time"

const (
	MinDim = 1
	MaxDim = 50

	// DefaultDim is the edge length offered for a newly registered box.
	DefaultDim = 24
)

// Millis is a timestamp in Unix milliseconds, the encoding used for slot
// timestamps inside the stored cells blob.
type Millis int64

func MillisOf(t time.Time) Millis { return Millis(t.UnixMilli()) }

func (m Millis) Time() time.Time { return time.UnixMilli(int64(m)) }

// Cell is the record stored at an occupied slot. An unoccupied slot has no
// Cell at all; TypeEmpty is a label a user may pick, not the absence marker.
type Cell struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Content   string   `json:"content"`
	Type      CellType `json:"type"`
	UpdatedAt Millis   `json:"updatedAt"`
}

// Box is a named storage container with a Rows x Cols grid of slots.
type Box struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Rows        int       `json:"rows"`
	Cols        int       `json:"cols"`
	Description string    `json:"description,omitempty"`
	Cells       Cells     `json:"cells"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Capacity is the number of addressable slots.
func (b Box) Capacity() int { return b.Rows * b.Cols }

// Occupied is the number of slots holding a record.
func (b Box) Occupied() int { return b.Cells.Len() }

// Contains reports whether (row, col) lies inside the grid.
func (b Box) Contains(row, col int) bool {
	return row >= 0 && col >= 0 && row < b.Rows && col < b.Cols
}

// Clamp bounds a requested dimension to [MinDim, MaxDim].
func Clamp(n int) int {
	return max(MinDim, min(MaxDim, n))
}

// NewBox returns an empty box with clamped dimensions.
func NewBox(id, name string, rows, cols int, description string, at time.Time) Box {
	return Box{
		ID:          id,
		Name:        name,
		Rows:        Clamp(rows),
		Cols:        Clamp(cols),
		Description: description,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}
