package grid

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"slices"
)

// Cells is a slot map that remembers insertion order. Overwriting a key
// keeps its position; new keys are appended. The JSON form is a plain
// object whose member order follows the insertion order, so a stored blob
// decodes back into the same sequence.
//
// The zero value is an empty map ready to use. Cells values share storage
// when copied; call Clone before mutating a copy.
type Cells struct {
	keys []string
	m    map[string]Cell
}

func (c Cells) Len() int { return len(c.keys) }

func (c Cells) Get(key string) (Cell, bool) {
	cell, ok := c.m[key]
	return cell, ok
}

// Keys returns the slot keys in insertion order.
func (c Cells) Keys() []string {
	return slices.Clone(c.keys)
}

// All iterates slots in insertion order.
func (c Cells) All() iter.Seq2[string, Cell] {
	return func(yield func(string, Cell) bool) {
		for _, k := range c.keys {
			if !yield(k, c.m[k]) {
				return
			}
		}
	}
}

func (c Cells) Clone() Cells {
	out := Cells{keys: slices.Clone(c.keys), m: make(map[string]Cell, len(c.m))}
	for k, v := range c.m {
		out.m[k] = v
	}
	return out
}

func (c *Cells) Set(key string, cell Cell) {
	if c.m == nil {
		c.m = make(map[string]Cell)
	}
	if _, ok := c.m[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.m[key] = cell
}

// Delete removes key and reports whether it was present.
func (c *Cells) Delete(key string) bool {
	if _, ok := c.m[key]; !ok {
		return false
	}
	delete(c.m, key)
	if i := slices.Index(c.keys, key); i >= 0 {
		c.keys = slices.Delete(c.keys, i, i+1)
	}
	return true
}

// Equal reports whether both maps hold the same entries in the same order.
func (c Cells) Equal(o Cells) bool {
	if !slices.Equal(c.keys, o.keys) {
		return false
	}
	for _, k := range c.keys {
		if c.m[k] != o.m[k] {
			return false
		}
	}
	return true
}

func (c Cells) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(c.m[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *Cells) UnmarshalJSON(data []byte) error {
	*c = Cells{}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("grid: cells must be a JSON object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("grid: unexpected cells key %v", tok)
		}
		var cell Cell
		if err := dec.Decode(&cell); err != nil {
			return fmt.Errorf("grid: cell %q: %w", key, err)
		}
		c.Set(key, cell)
	}
	_, err = dec.Token()
	return err
}
