// Package legacy reads boxes left behind by the browser-only version of
// the tracker, which kept them in local storage.
//
// The expected file is a dump of that local storage, i.e. the output of
// JSON.stringify(localStorage): a JSON object mapping storage keys to
// string values. The boxes live under Key as a JSON-encoded array.
package legacy

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/stevemurr/boxgrid/grid"
)

// Key is the local-storage key the browser-only version wrote to.
const Key = "biolab_boxes"

// Box is the pre-migration shape: timestamps are optional Unix
// milliseconds rather than server-side columns.
type Box struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Rows        int          `json:"rows"`
	Cols        int          `json:"cols"`
	Description string       `json:"description,omitempty"`
	Cells       grid.Cells   `json:"cells"`
	CreatedAt   *grid.Millis `json:"createdAt,omitempty"`
	UpdatedAt   *grid.Millis `json:"updatedAt,omitempty"`
}

// Convert maps a legacy box onto the current model. Missing timestamps
// take fallback.
func (b Box) Convert(fallback time.Time) grid.Box {
	out := grid.Box{
		ID:          b.ID,
		Name:        b.Name,
		Rows:        b.Rows,
		Cols:        b.Cols,
		Description: b.Description,
		Cells:       b.Cells.Clone(),
		CreatedAt:   fallback,
		UpdatedAt:   fallback,
	}
	if b.CreatedAt != nil {
		out.CreatedAt = b.CreatedAt.Time().UTC()
	}
	if b.UpdatedAt != nil {
		out.UpdatedAt = b.UpdatedAt.Time().UTC()
	}
	return out
}

// File is a local-storage dump on disk.
type File struct {
	path   string
	logger *slog.Logger
}

func NewFile(path string, logger *slog.Logger) *File {
	if logger == nil {
		logger = slog.Default()
	}
	return &File{path: path, logger: logger}
}

func (f *File) Path() string { return f.path }

// Load returns the legacy boxes, or nil when there are none. A missing
// file, a missing key and unparseable content all count as "none";
// parse failures are logged, never returned.
func (f *File) Load() []Box {
	if f.path == "" {
		return nil
	}
	record, err := f.readRecord()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			f.logger.Error("failed to parse legacy boxes", "path", f.path, "error", err)
		}
		return nil
	}
	raw, ok := record[Key]
	if !ok || raw == "" {
		return nil
	}
	var boxes []Box
	if err := json.Unmarshal([]byte(raw), &boxes); err != nil {
		f.logger.Error("failed to parse legacy boxes", "path", f.path, "key", Key, "error", err)
		return nil
	}
	return boxes
}

// Clear removes Key from the dump, leaving any other keys in place. The
// file is deleted once nothing else remains in it.
func (f *File) Clear() error {
	if f.path == "" {
		return nil
	}
	record, err := f.readRecord()
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		// Unreadable dumps never yielded boxes; drop the file outright.
		return f.remove()
	}
	delete(record, Key)
	if len(record) == 0 {
		return f.remove()
	}
	b, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := os.WriteFile(f.path, b, 0o644); err != nil {
		return fmt.Errorf("rewrite legacy file: %w", err)
	}
	return nil
}

func (f *File) readRecord() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	var record map[string]string
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return record, nil
}

func (f *File) remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove legacy file: %w", err)
	}
	return nil
}
