// internal/catalog/dir.go
//
// Dir catalog: a data directory holding catalog.csv or catalog.yaml plus the
// image files they name. Files are read on demand, not cached.

package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Manifest file names, tried in order.
var manifestNames = []string{"catalog.yaml", "catalog.yml", "catalog.csv"}

// Dir is a catalog backed by a data directory:
//
//	<root>/catalog.csv   header row with a "name" column (optional "file")
//	<root>/catalog.yaml  entries: [{name, file}], placeholder: path
//	<root>/img/<name>.png default image location when no file is given
//
// Images are read from disk on every lookup.
type Dir struct {
	index
	root        string
	files       map[string]string // display name → absolute path
	placeholder string
}

// yamlManifest is the catalog.yaml layout.
type yamlManifest struct {
	Placeholder string `yaml:"placeholder"`
	Entries     []struct {
		Name string `yaml:"name"`
		File string `yaml:"file"`
	} `yaml:"entries"`
}

// OpenDir reads the manifest under root and checks every referenced image
// exists. Entries with missing files are skipped with a warning; a catalog
// left with no entries is an error.
func OpenDir(root string) (*Dir, error) {
	var (
		entries     map[string]string
		placeholder string
		err         error
	)
	for _, name := range manifestNames {
		p := filepath.Join(root, name)
		if _, statErr := os.Stat(p); statErr != nil {
			continue
		}
		if strings.HasSuffix(name, ".csv") {
			entries, err = readCSVManifest(p)
		} else {
			entries, placeholder, err = readYAMLManifest(p)
		}
		if err != nil {
			return nil, err
		}
		break
	}
	if entries == nil {
		return nil, fmt.Errorf("catalog: no manifest in %s (want one of %s)", root, strings.Join(manifestNames, ", "))
	}

	files := make(map[string]string, len(entries))
	names := make([]string, 0, len(entries))
	for name, rel := range entries {
		if rel == "" {
			rel = filepath.Join("img", name+".png")
		}
		p := rel
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, rel)
		}
		if _, err := os.Stat(p); err != nil {
			log.Warn().Str("entry", name).Str("file", p).Msg("catalog image missing, skipping")
			continue
		}
		files[name] = p
		names = append(names, name)
	}

	ix, err := newIndex(names)
	if err != nil {
		return nil, fmt.Errorf("%w (dir %s)", err, root)
	}
	d := &Dir{index: ix, root: root, files: make(map[string]string, len(files))}
	for n, p := range files {
		canon, _ := ix.resolve(n)
		d.files[canon] = p
	}
	if placeholder != "" {
		if !filepath.IsAbs(placeholder) {
			placeholder = filepath.Join(root, placeholder)
		}
		d.placeholder = placeholder
	}
	log.Info().Str("dir", root).Int("entries", ix.Len()).Msg("catalog loaded")
	return d, nil
}

// readCSVManifest parses a CSV with a header row. The "name" column is
// required; a "file" column, if present, overrides the default image path.
func readCSVManifest(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("catalog: read header %s: %w", path, err)
	}
	nameCol, fileCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "name":
			nameCol = i
		case "file":
			fileCol = i
		}
	}
	if nameCol < 0 {
		return nil, fmt.Errorf("catalog: %s has no name column", path)
	}

	out := make(map[string]string)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("catalog: read %s: %w", path, err)
		}
		if nameCol >= len(rec) {
			continue
		}
		name := strings.TrimSpace(rec[nameCol])
		if name == "" {
			continue
		}
		file := ""
		if fileCol >= 0 && fileCol < len(rec) {
			file = strings.TrimSpace(rec[fileCol])
		}
		out[name] = file
	}
	return out, nil
}

func readYAMLManifest(path string) (map[string]string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("catalog: read %s: %w", path, err)
	}
	var m yamlManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, "", fmt.Errorf("catalog: parse %s: %w", path, err)
	}
	out := make(map[string]string, len(m.Entries))
	for _, e := range m.Entries {
		if name := strings.TrimSpace(e.Name); name != "" {
			out[name] = strings.TrimSpace(e.File)
		}
	}
	return out, m.Placeholder, nil
}

// SampleOne returns a random entry read from disk.
func (d *Dir) SampleOne(ctx context.Context) (string, []byte, error) {
	name, err := d.random()
	if err != nil {
		return "", nil, err
	}
	b, err := d.read(name)
	return name, b, err
}

// Lookup reads the image for id.
func (d *Dir) Lookup(ctx context.Context, id string) ([]byte, error) {
	name, ok := d.resolve(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return d.read(name)
}

// Placeholder returns the image shown before a round starts, if configured.
func (d *Dir) Placeholder() ([]byte, error) {
	if d.placeholder == "" {
		return nil, nil
	}
	b, err := os.ReadFile(d.placeholder)
	if err != nil {
		return nil, fmt.Errorf("catalog: read placeholder: %w", err)
	}
	return b, nil
}

func (d *Dir) read(name string) ([]byte, error) {
	b, err := os.ReadFile(d.files[name])
	if err != nil {
		return nil, fmt.Errorf("catalog: read %q: %w", name, err)
	}
	return b, nil
}
