package service

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Strob0t/moecore/internal/domain"
	"github.com/Strob0t/moecore/internal/domain/expert"
)

// registryDocument is the on-disk shape: {"experts": {"<id>": descriptor}}.
type registryDocument struct {
	Experts map[string]expert.Descriptor `json:"experts" yaml:"experts"`
}

// Format selects the registry document encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatForPath picks YAML for .yaml/.yml paths and JSON otherwise.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Encode writes every descriptor as a registry document.
func (r *ExpertRegistry) Encode(w io.Writer, f Format) error {
	doc := registryDocument{Experts: make(map[string]expert.Descriptor)}
	for _, d := range r.All() {
		doc.Experts[d.ID] = *d
	}

	switch f {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode registry yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode registry json: %w", err)
		}
		return nil
	}
}

// DecodeRegistry parses and validates a registry document without
// touching any registry. Records come back sorted by id.
func DecodeRegistry(rd io.Reader, f Format) ([]expert.Descriptor, error) {
	var doc registryDocument
	switch f {
	case FormatYAML:
		if err := yaml.NewDecoder(rd).Decode(&doc); err != nil && err != io.EOF {
			return nil, fmt.Errorf("%w: decode registry yaml: %w", domain.ErrValidation, err)
		}
	default:
		if err := json.NewDecoder(rd).Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: decode registry json: %w", domain.ErrValidation, err)
		}
	}

	ids := make([]string, 0, len(doc.Experts))
	for id := range doc.Experts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]expert.Descriptor, 0, len(ids))
	for _, id := range ids {
		d := doc.Experts[id]
		if d.ID == "" {
			d.ID = id
		}
		if d.ID != id {
			return nil, fmt.Errorf("%w: record key %q does not match expert_id %q", domain.ErrValidation, id, d.ID)
		}
		if err := d.Validate(); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// SaveFile writes the registry to path, replacing it atomically.
func (r *ExpertRegistry) SaveFile(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".registry-*")
	if err != nil {
		return fmt.Errorf("save registry: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := r.Encode(tmp, FormatForPath(path)); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}
	return nil
}

// LoadFile reads a registry document and registers every record on top of
// the current contents. Nothing is registered when any record is invalid.
// It returns the number of records loaded.
func (r *ExpertRegistry) LoadFile(path string) (int, error) {
	ds, err := ReadRegistryFile(path)
	if err != nil {
		return 0, err
	}
	if err := r.RegisterAll(ds); err != nil {
		return 0, fmt.Errorf("load registry %s: %w", path, err)
	}
	return len(ds), nil
}

// ReadRegistryFile decodes the registry document at path.
func ReadRegistryFile(path string) ([]expert.Descriptor, error) {
	f, err := os.Open(path) //nolint:gosec // G304: operator-supplied registry path
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	defer func() { _ = f.Close() }()

	ds, err := DecodeRegistry(f, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("load registry %s: %w", path, err)
	}
	return ds, nil
}
