package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/stevemurr/boxgrid/grid"
)

// JsonFileStore keeps every box in a single JSON file keyed by box id.
//
// Layout:
//
//	data_dir/
//	  boxes.json   # {"<id>": {box}, ...}
type JsonFileStore struct {
	mu   sync.RWMutex
	path string
}

func NewJsonFileStore(dir string) (*JsonFileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &JsonFileStore{path: filepath.Join(dir, "boxes.json")}, nil
}

func (s *JsonFileStore) load() (map[string]grid.Box, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]grid.Box{}, nil
		}
		return nil, err
	}
	var result map[string]grid.Box
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if result == nil {
		result = map[string]grid.Box{}
	}
	return result, nil
}

// save writes through a temp file and rename so a crash never leaves a
// truncated boxes.json behind.
func (s *JsonFileStore) save(boxes map[string]grid.Box) error {
	b, err := json.MarshalIndent(boxes, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *JsonFileStore) List(_ context.Context) ([]grid.Box, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	boxes, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]grid.Box, 0, len(boxes))
	for id, b := range boxes {
		b.ID = id
		out = append(out, b)
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *JsonFileStore) Upsert(_ context.Context, box grid.Box) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	boxes, err := s.load()
	if err != nil {
		return err
	}
	boxes[box.ID] = stamp(box, boxes[box.ID].CreatedAt)
	return s.save(boxes)
}

func (s *JsonFileStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	boxes, err := s.load()
	if err != nil {
		return false, err
	}
	if _, ok := boxes[id]; !ok {
		return false, nil
	}
	delete(boxes, id)
	return true, s.save(boxes)
}

// Ping checks that the data directory is still reachable.
func (s *JsonFileStore) Ping(_ context.Context) error {
	_, err := os.Stat(filepath.Dir(s.path))
	return err
}

func (s *JsonFileStore) Close() error { return nil }
