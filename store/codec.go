package store

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/stevemurr/boxgrid/grid"
)

// now is the clock every backend stamps timestamps with.
var now = func() time.Time { return time.Now().UTC() }

func encodeCells(c grid.Cells) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode cells: %w", err)
	}
	return string(b), nil
}

func decodeCells(raw string) (grid.Cells, error) {
	var c grid.Cells
	if raw == "" {
		return c, nil
	}
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return grid.Cells{}, fmt.Errorf("decode cells: %w", err)
	}
	return c, nil
}

// stamp applies the upsert timestamp rules to a box about to be written.
// existing is the stored CreatedAt, zero if the box is new.
func stamp(b grid.Box, existing time.Time) grid.Box {
	t := now()
	switch {
	case !existing.IsZero():
		b.CreatedAt = existing
	case b.CreatedAt.IsZero():
		b.CreatedAt = t
	}
	b.UpdatedAt = t
	return b
}

// sortNewestFirst orders boxes by CreatedAt descending, then id.
func sortNewestFirst(boxes []grid.Box) {
	slices.SortFunc(boxes, func(a, b grid.Box) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func cloneBox(b grid.Box) grid.Box {
	b.Cells = b.Cells.Clone()
	return b
}
