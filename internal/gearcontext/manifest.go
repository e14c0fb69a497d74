// Package gearcontext reads the run configuration file the platform mounts
// into the gear container.
package gearcontext

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"synthgear/internal/services"
)

// Location points at a file input inside the container.
type Location struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// Input is one named entry under "inputs". File inputs carry a location;
// api-key inputs carry a key.
type Input struct {
	Base     string         `json:"base"`
	Location Location       `json:"location"`
	Key      string         `json:"key"`
	Object   map[string]any `json:"object"`
}

// Destination identifies the container that receives the run's outputs.
type Destination struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// Manifest is the decoded config.json.
type Manifest struct {
	Config      map[string]any   `json:"config"`
	Inputs      map[string]Input `json:"inputs"`
	Destination Destination      `json:"destination"`

	path string
}

// Load decodes the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrConfiguration, "manifest", "load", "gear config not found", err)
		}
		return nil, fmt.Errorf("read gear config: %w", err)
	}
	return Parse(data, path)
}

// Parse decodes manifest bytes. path is only used for messages.
func Parse(data []byte, path string) (*Manifest, error) {
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, services.Wrap(services.ErrValidation, "manifest", "parse", "invalid gear config JSON", err)
	}
	if manifest.Config == nil {
		manifest.Config = map[string]any{}
	}
	if manifest.Inputs == nil {
		manifest.Inputs = map[string]Input{}
	}
	manifest.path = path
	return &manifest, nil
}

// Path returns the file the manifest was loaded from.
func (m *Manifest) Path() string {
	return m.path
}

// InputFile returns the file input registered under name.
func (m *Manifest) InputFile(name string) (Location, error) {
	input, ok := m.Inputs[name]
	if !ok {
		return Location{}, services.Wrap(services.ErrValidation, "manifest", "input", fmt.Sprintf("gear input %q not provided", name), nil)
	}
	loc := input.Location
	if strings.TrimSpace(loc.Path) == "" {
		return Location{}, services.Wrap(services.ErrValidation, "manifest", "input", fmt.Sprintf("gear input %q has no file location", name), nil)
	}
	if loc.Name == "" {
		loc.Name = filepath.Base(loc.Path)
	}
	return loc, nil
}

// APIKey returns the api-key input registered under name, or "" when absent.
func (m *Manifest) APIKey(name string) string {
	input, ok := m.Inputs[name]
	if !ok {
		return ""
	}
	return strings.TrimSpace(input.Key)
}

// Debug reports the gear's debug configuration flag.
func (m *Manifest) Debug() bool {
	switch v := m.Config["debug"].(type) {
	case bool:
		return v
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && parsed
	default:
		return false
	}
}

// ConfigString returns a trimmed string config value, or "" when absent.
func (m *Manifest) ConfigString(key string) string {
	v, ok := m.Config[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// DestinationID returns the destination container id.
func (m *Manifest) DestinationID() string {
	return strings.TrimSpace(m.Destination.ID)
}
