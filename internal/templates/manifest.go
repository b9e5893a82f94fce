package templates

import (
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/concentricsky/djenesis/internal/errors"
)

// ManifestFile is the name of the template manifest.
const ManifestFile = "djenesis.yaml"

// Manifest describes a template.
type Manifest struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Variables   []Variable `yaml:"variables"`
	Exclude     []string   `yaml:"exclude"`
	Executable  []string   `yaml:"executable"`
	Delims      []string   `yaml:"delims"`
}

// Variable is a template variable with its default value.
type Variable struct {
	Name    string `yaml:"name" json:"name"`
	Default string `yaml:"default" json:"default"`
	Help    string `yaml:"help" json:"help,omitempty"`
}

// defaultExcludes are never copied into a project.
var defaultExcludes = []string{
	ManifestFile,
	".git/**",
	"**/*.pyc",
	"**/__pycache__/**",
	"**/.DS_Store",
}

// LoadManifest reads djenesis.yaml from the root of fsys. A missing manifest
// yields an empty one.
func LoadManifest(fsys fs.FS) (*Manifest, error) {
	data, err := fs.ReadFile(fsys, ManifestFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Manifest{}, nil
		}
		return nil, errors.New("E162").Wrap(err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.New("E162").WithDetail(err.Error())
	}
	if len(m.Delims) != 0 && len(m.Delims) != 2 {
		return nil, errors.New("E162").WithDetail("delims must list exactly two strings")
	}
	for _, v := range m.Variables {
		if v.Name == "" {
			return nil, errors.New("E162").WithDetail("variable without a name")
		}
	}
	return &m, nil
}

// Defaults returns the default value of every declared variable.
func (m *Manifest) Defaults() map[string]string {
	out := make(map[string]string, len(m.Variables))
	for _, v := range m.Variables {
		out[v.Name] = v.Default
	}
	return out
}

// Excludes returns the manifest's exclude patterns plus the built-in ones.
func (m *Manifest) Excludes() []string {
	return append(append([]string{}, defaultExcludes...), m.Exclude...)
}
