// Package search finds boxes and slots whose text matches a query.
package search

import (
	"strings"
	"unicode/utf8"

	"github.com/stevemurr/boxgrid/grid"
)

const (
	// MinQueryLen is the shortest trimmed query that produces results.
	MinQueryLen = 2
	// MaxResults caps the result list. Results are not ranked; the first
	// matches found win.
	MaxResults = 10

	unnamedSlot = "Unnamed Sample"
)

type Kind string

const (
	KindBox  Kind = "box"
	KindSlot Kind = "slot"
)

// Result is a box-level or slot-level match. Slot fields are zero for box
// results.
type Result struct {
	Kind       Kind     `json:"kind"`
	BoxID      string   `json:"boxId"`
	BoxName    string   `json:"boxName"`
	SlotKey    string   `json:"slotKey,omitempty"`
	SlotName   string   `json:"slotName,omitempty"`
	SlotType   string   `json:"slotType,omitempty"`
	Coordinate string   `json:"coordinate,omitempty"`
	Matches    []string `json:"matches"`
}

// Search scans boxes in order and, per box, emits the box itself if its
// name or description matches, then each slot (in slot-map order) whose
// name, content or type matches. Matching is case-insensitive substring
// containment of the trimmed query. Queries shorter than MinQueryLen
// return nil.
func Search(boxes []grid.Box, query string) []Result {
	q := strings.ToLower(strings.TrimSpace(query))
	if utf8.RuneCountInString(q) < MinQueryLen {
		return nil
	}

	var results []Result
	for _, b := range boxes {
		if contains(b.Name, q) || contains(b.Description, q) {
			results = append(results, Result{
				Kind:    KindBox,
				BoxID:   b.ID,
				BoxName: b.Name,
				Matches: []string{b.Name},
			})
			if len(results) == MaxResults {
				return results
			}
		}

		for key, cell := range b.Cells.All() {
			matches := slotMatches(cell, q)
			if len(matches) == 0 {
				continue
			}
			name := cell.Name
			if name == "" {
				name = unnamedSlot
			}
			results = append(results, Result{
				Kind:       KindSlot,
				BoxID:      b.ID,
				BoxName:    b.Name,
				SlotKey:    key,
				SlotName:   name,
				SlotType:   cell.Type.String(),
				Coordinate: grid.Coordinate(key),
				Matches:    matches,
			})
			if len(results) == MaxResults {
				return results
			}
		}
	}
	return results
}

// Filter returns the boxes whose name contains q, ignoring case. Unlike
// Search there is no minimum length; an empty q keeps every box.
func Filter(boxes []grid.Box, q string) []grid.Box {
	q = strings.ToLower(q)
	out := make([]grid.Box, 0, len(boxes))
	for _, b := range boxes {
		if contains(b.Name, q) {
			out = append(out, b)
		}
	}
	return out
}

func slotMatches(cell grid.Cell, q string) []string {
	var m []string
	if contains(cell.Name, q) {
		m = append(m, cell.Name)
	}
	if contains(cell.Content, q) {
		m = append(m, cell.Content)
	}
	if t := cell.Type.String(); contains(t, q) {
		m = append(m, t)
	}
	return m
}

func contains(field, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(field), lowerQuery)
}
