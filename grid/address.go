package grid

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ErrMalformedKey is returned by Decode for keys that Encode could not have produced.
var ErrMalformedKey = errors.New("grid: malformed slot key")

// Encode returns the canonical slot key "<row>-<col>".
func Encode(row, col int) string {
	return strconv.Itoa(row) + "-" + strconv.Itoa(col)
}

// Decode parses a slot key produced by Encode. Only canonical keys are
// accepted: both parts must be non-negative decimals without sign or
// leading zeros, so Encode(Decode(key)) == key always holds.
func Decode(key string) (row, col int, err error) {
	r, c, ok := strings.Cut(key, "-")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	row, errR := strconv.Atoi(r)
	col, errC := strconv.Atoi(c)
	if errR != nil || errC != nil || row < 0 || col < 0 || Encode(row, col) != key {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	return row, col, nil
}

// RowLabel returns the spreadsheet-style letters for a zero-based row:
// A..Z, then AA, AB, ... for rows 26 and up.
func RowLabel(row int) string {
	if row < 0 {
		return ""
	}
	var buf []byte
	for n := row + 1; n > 0; n = (n - 1) / 26 {
		buf = append(buf, byte('A'+(n-1)%26))
	}
	slices.Reverse(buf)
	return string(buf)
}

// DisplayLabel returns the human-readable coordinate, e.g. (0, 0) -> "A1".
func DisplayLabel(row, col int) string {
	return RowLabel(row) + strconv.Itoa(col+1)
}

// Coordinate returns the display label for a slot key, or "" if the key
// does not decode.
func Coordinate(key string) string {
	row, col, err := Decode(key)
	if err != nil {
		return ""
	}
	return DisplayLabel(row, col)
}
