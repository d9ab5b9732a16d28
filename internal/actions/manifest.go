package actions

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is the parsed action.yml metadata file. The runner uses it to
// fill in declared input defaults when the pipeline runtime did not
// supply a value.
type Manifest struct {
	Name        string                   `yaml:"name"`
	Description string                   `yaml:"description"`
	Inputs      map[string]ManifestInput `yaml:"inputs"`
}

// ManifestInput is one declared input in action.yml.
type ManifestInput struct {
	Description string `yaml:"description"`
	Default     string `yaml:"default"`
	Required    bool   `yaml:"required"`
}

// LoadManifest parses an action.yml file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read action manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse action manifest: %w", err)
	}
	return &m, nil
}

// InputDefault returns the declared default for an input, or "" when the
// input is unknown or has no default.
func (m *Manifest) InputDefault(name string) string {
	if m == nil {
		return ""
	}
	return m.Inputs[name].Default
}
