// internal/catalog/memory.go
//
// Memory catalog for tests and embedding.

package catalog

import (
	"context"
	"fmt"
)

// Memory is a catalog of encoded images held in memory.
type Memory struct {
	index
	images map[string][]byte // keyed by display name
}

// NewMemory builds a catalog from name → encoded image bytes.
func NewMemory(entries map[string][]byte) (*Memory, error) {
	names := make([]string, 0, len(entries))
	for n := range entries {
		names = append(names, n)
	}
	ix, err := newIndex(names)
	if err != nil {
		return nil, err
	}
	m := &Memory{index: ix, images: make(map[string][]byte, len(entries))}
	for n, b := range entries {
		if canon, ok := ix.resolve(n); ok {
			m.images[canon] = b
		}
	}
	return m, nil
}

// SampleOne returns a random entry.
func (m *Memory) SampleOne(ctx context.Context) (string, []byte, error) {
	name, err := m.random()
	if err != nil {
		return "", nil, err
	}
	return name, m.images[name], nil
}

// Lookup returns the image for id.
func (m *Memory) Lookup(ctx context.Context, id string) ([]byte, error) {
	name, ok := m.resolve(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return m.images[name], nil
}
