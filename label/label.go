// Package label derives the printable, scannable identity of a box.
package label

import (
	"fmt"

	"github.com/stevemurr/boxgrid/grid"
)

// PathPrefix is the route a scanned label resolves to, followed by the box id.
const PathPrefix = "/box/"

const shortIDLen = 8

// URL returns "<host>/box/<id>". host is used verbatim; a malformed host
// yields a link that does not resolve, nothing more.
func URL(id, host string) string {
	return host + PathPrefix + id
}

// Label is what gets printed on a box: a title, the grid size, the deep
// link encoded into the scannable code and a short id for humans.
type Label struct {
	Title      string `json:"title"`
	Dimensions string `json:"dimensions"`
	URL        string `json:"url"`
	ShortID    string `json:"shortId"`
}

func For(b grid.Box, host string) Label {
	short := b.ID
	if len(short) > shortIDLen {
		short = short[:shortIDLen]
	}
	return Label{
		Title:      b.Name,
		Dimensions: fmt.Sprintf("%dx%d Grid", b.Rows, b.Cols),
		URL:        URL(b.ID, host),
		ShortID:    short,
	}
}
