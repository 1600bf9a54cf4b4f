package sim

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Persistence keeps the merged results of a run. A Model given one through
// WithPersistence saves every successful run.
type Persistence interface {
	Save(r *Results) error
	Load() (*Results, error)
}

// JSONPersistence writes results as an indented JSON document. Each Save
// replaces the previous document atomically.
type JSONPersistence struct {
	path string
}

// NewJSONPersistence stores results at path.
func NewJSONPersistence(path string) *JSONPersistence {
	return &JSONPersistence{path: path}
}

// Path returns the document path.
func (p *JSONPersistence) Path() string {
	return p.path
}

// Save writes r to a temporary file next to the target and renames it into
// place, so readers never see a partial document.
func (p *JSONPersistence) Save(r *Results) error {
	if r == nil {
		return fmt.Errorf("save %s: nil results", p.path)
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".results-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		tmp.Close()
		return fmt.Errorf("encode results: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p.path)
}

// Load reads the document back. A missing document yields nil results and no error.
func (p *JSONPersistence) Load() (*Results, error) {
	f, err := os.Open(p.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := NewResults("")
	if err := json.NewDecoder(f).Decode(r); err != nil {
		return nil, fmt.Errorf("decode %s: %w", p.path, err)
	}
	return r, nil
}
