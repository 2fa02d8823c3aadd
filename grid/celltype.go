package grid

import (
	"errors"
	"fmt"
	"strings"
)

// CellType classifies what is stored in a slot. The set is closed.
type CellType uint8

const (
	TypeSample CellType = iota
	TypeControl
	TypePrimers
	TypePlasmid
	TypeAntibody
	TypeReagent
	TypeAliquot
	TypeEmpty
)

var ErrUnknownCellType = errors.New("grid: unknown cell type")

var cellTypeNames = [...]string{
	TypeSample:   "sample",
	TypeControl:  "control",
	TypePrimers:  "primers",
	TypePlasmid:  "plasmid",
	TypeAntibody: "antibody",
	TypeReagent:  "reagent",
	TypeAliquot:  "aliquot",
	TypeEmpty:    "empty",
}

// CellTypes lists every cell type in declaration order.
func CellTypes() []CellType {
	out := make([]CellType, len(cellTypeNames))
	for i := range cellTypeNames {
		out[i] = CellType(i)
	}
	return out
}

func (t CellType) String() string {
	if int(t) < len(cellTypeNames) {
		return cellTypeNames[t]
	}
	return fmt.Sprintf("CellType(%d)", t)
}

// ParseCellType maps a type name to its CellType. Matching ignores case and
// surrounding whitespace; an empty name yields TypeSample, the editor's
// default for a freshly filled slot.
func ParseCellType(s string) (CellType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return TypeSample, nil
	}
	for i, name := range cellTypeNames {
		if name == s {
			return CellType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCellType, s)
}

func (t CellType) MarshalText() ([]byte, error) {
	if int(t) >= len(cellTypeNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCellType, t)
	}
	return []byte(cellTypeNames[t]), nil
}

func (t *CellType) UnmarshalText(text []byte) error {
	parsed, err := ParseCellType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
