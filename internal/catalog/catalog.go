// internal/catalog/catalog.go
//
// Target catalogs for the reveal game.
//
// Implementations:
//   - Dir:       a data directory with a CSV or YAML manifest plus image files.
//   - Memory:    encoded images held in a map (tests, embedding).
//   - Synthetic: procedurally drawn shapes, used when no data is configured
//                so the server always has something to play.
//
// All of them satisfy game.Catalog and game.Lister: SampleOne, Lookup, Names,
// Contains. Names keep their original spelling; lookups are case-insensitive.

package catalog

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned by Lookup for names the catalog does not hold.
	ErrNotFound = errors.New("catalog: entry not found")

	// ErrEmpty is returned when a catalog ends up with no entries.
	ErrEmpty = errors.New("catalog: no entries")
)

// index keeps the entry names in order plus a case-folded lookup set.
type index struct {
	names []string          // display spelling, sorted
	folds map[string]string // lower(name) → name
}

func newIndex(names []string) (index, error) {
	ix := index{folds: make(map[string]string, len(names))}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		key := strings.ToLower(n)
		if prev, dup := ix.folds[key]; dup {
			return index{}, fmt.Errorf("catalog: duplicate entry %q (already have %q)", n, prev)
		}
		ix.folds[key] = n
		ix.names = append(ix.names, n)
	}
	if len(ix.names) == 0 {
		return index{}, ErrEmpty
	}
	sort.Strings(ix.names)
	return ix, nil
}

// Names returns the entry names in sorted order.
func (ix index) Names() []string { return append([]string(nil), ix.names...) }

// Contains reports whether id names an entry, ignoring case and surrounding space.
func (ix index) Contains(id string) bool {
	_, ok := ix.resolve(id)
	return ok
}

// Len is the number of entries.
func (ix index) Len() int { return len(ix.names) }

func (ix index) resolve(id string) (string, bool) {
	n, ok := ix.folds[strings.ToLower(strings.TrimSpace(id))]
	return n, ok
}

// random picks a name using crypto/rand.
func (ix index) random() (string, error) {
	if len(ix.names) == 0 {
		return "", ErrEmpty
	}
	nBig, err := rand.Int(rand.Reader, big.NewInt(int64(len(ix.names))))
	if err != nil {
		return "", fmt.Errorf("catalog: random pick: %w", err)
	}
	return ix.names[nBig.Int64()], nil
}
