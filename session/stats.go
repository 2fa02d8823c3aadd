package session

import "github.com/stevemurr/boxgrid/grid"

// RecentCount is how many boxes the dashboard lists as recent.
const RecentCount = 4

// Stats summarises the snapshot for the dashboard.
type Stats struct {
	Boxes         int        `json:"boxes"`
	TotalSlots    int        `json:"totalSlots"`
	ActiveSamples int        `json:"activeSamples"`
	Recent        []grid.Box `json:"recent"`
}

func (s *Session) Stats() Stats {
	boxes := s.Boxes()
	st := Stats{Boxes: len(boxes), Recent: boxes[:min(RecentCount, len(boxes))]}
	for _, b := range boxes {
		st.TotalSlots += b.Capacity()
		st.ActiveSamples += b.Occupied()
	}
	return st
}
