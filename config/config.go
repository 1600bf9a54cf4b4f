// Package config loads simulation run files.
//
// A run file is YAML:
//
//	name: opinion-dynamics
//	simulation:
//	  agents: 1000
//	  cores: 4
//	  ticks: 50
//	  warmup_ticks: 5
//	  synced: true
//	  cache: true
//	  barrier_timeout: 1m
//	  store:
//	    kind: sqlite
//	    path: ${HOME}/.gosim/results.db
//	params:
//	  tolerance: 0.3
//
// Values left out keep the defaults of sim.DefaultSettings. Environment
// variables are expanded before parsing.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	sim "github.com/everydev1618/gosim"
)

// Document is a parsed run file.
type Document struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Settings    sim.Settings `yaml:"simulation"`
	Params      Params       `yaml:"params"`
}

// Params holds free-form model parameters.
type Params map[string]any

// Float returns key as a float64, or def when it is absent or not a number.
func (p Params) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}

// Int returns key as an int, or def when it is absent or not an integer.
func (p Params) Int(key string, def int) int {
	if v, ok := p[key].(int); ok {
		return v
	}
	return def
}

// String returns key as a string, or def when it is absent.
func (p Params) String(key, def string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return def
}

// LoadFile parses the run file at path.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return Parse(data)
}

// Parse parses YAML content into a Document and validates its settings.
// Unknown keys are rejected.
func Parse(data []byte) (*Document, error) {
	doc := &Document{
		Settings: sim.DefaultSettings(),
		Params:   make(Params),
	}

	dec := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(data)))))
	dec.KnownFields(true)
	if err := dec.Decode(doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if doc.Params == nil {
		doc.Params = make(Params)
	}

	if err := doc.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	return doc, nil
}
