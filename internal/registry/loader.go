package registry

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk registry format
type File struct {
	Series []Entry `yaml:"series"`
	Roles  *Roles  `yaml:"roles,omitempty"`
}

// Load returns the built-in registry when path is empty, otherwise the
// registry described by the YAML file. Unknown keys are rejected.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes a YAML registry
func Parse(data []byte) (*Registry, error) {
	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("registry: decode: %w", err)
	}

	roles := DefaultRoles
	if file.Roles != nil {
		roles = *file.Roles
	}

	return New(file.Series, roles)
}

// Marshal renders the registry in the File format
func (r *Registry) Marshal() ([]byte, error) {
	roles := r.roles
	return yaml.Marshal(File{Series: r.entries, Roles: &roles})
}
