package descriptor

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/bmatcuk/doublestar"
	"gopkg.in/yaml.v3"

	"github.com/concentricsky/djenesis/internal/errors"
)

// Descriptor is the metadata a packaging tool consumes to build a
// distributable unit from a source tree.
type Descriptor struct {
	Name        string              `json:"name" yaml:"name"`
	Version     string              `json:"version" yaml:"version"`
	Description string              `json:"description,omitempty" yaml:"description,omitempty"`
	Author      string              `json:"author,omitempty" yaml:"author,omitempty"`
	AuthorEmail string              `json:"author_email,omitempty" yaml:"author_email,omitempty"`
	URL         string              `json:"url,omitempty" yaml:"url,omitempty"`
	Scripts     []string            `json:"scripts" yaml:"scripts"`
	Packages    []string            `json:"packages" yaml:"packages"`
	PackageDir  map[string]string   `json:"package_dir" yaml:"package_dir"`
	PackageData map[string][]string `json:"package_data" yaml:"package_data"`
}

// yamlDescriptor mirrors Descriptor for encoding. yaml.v3 writes a nil
// slice or map as an empty collection, so the collections are pointers to
// keep nil and empty apart.
type yamlDescriptor struct {
	Name        string               `yaml:"name"`
	Version     string               `yaml:"version"`
	Description string               `yaml:"description,omitempty"`
	Author      string               `yaml:"author,omitempty"`
	AuthorEmail string               `yaml:"author_email,omitempty"`
	URL         string               `yaml:"url,omitempty"`
	Scripts     *[]string            `yaml:"scripts"`
	Packages    *[]string            `yaml:"packages"`
	PackageDir  *map[string]string   `yaml:"package_dir"`
	PackageData *map[string][]string `yaml:"package_data"`
}

// ScriptExtensions lists the file extensions accepted for scripts.
var ScriptExtensions = []string{".py", ".sh"}

// Default returns the descriptor djenesis is released under.
func Default() Descriptor {
	return Descriptor{
		Name:        "djenesis",
		Version:     "0.9.1",
		Description: "Bootstrap django projects using a standard project template",
		Author:      "Concentric Sky",
		AuthorEmail: "django@concentricsky.com",
		URL:         "http://code.google.com/p/djenesis",
		Scripts:     []string{"djenesis/djenesis.py"},
		Packages:    []string{"djenesis"},
		PackageDir:  map[string]string{"djenesis": "djenesis"},
		PackageData: map[string][]string{"djenesis": {"project_template"}},
	}
}

// ForProject returns the descriptor for a freshly bootstrapped project.
func ForProject(name, author, email, url string) Descriptor {
	return Descriptor{
		Name:        name,
		Version:     "0.1.0",
		Description: "The " + name + " Django project",
		Author:      author,
		AuthorEmail: email,
		URL:         url,
		Scripts:     []string{"manage.py"},
		Packages:    []string{name},
		PackageDir:  map[string]string{name: name},
		PackageData: map[string][]string{name: {"templates/**", "static/**"}},
	}
}

// PackageDirOf returns the source directory of pkg. When package_dir is
// empty, packages live in a directory derived from their dotted name.
func (d Descriptor) PackageDirOf(pkg string) string {
	if dir, ok := d.PackageDir[pkg]; ok {
		return dir
	}
	return strings.ReplaceAll(pkg, ".", "/")
}

// Validate checks that the descriptor is well formed. It does not look at
// the filesystem; see Check.
func (d Descriptor) Validate() error {
	var problems []string

	if strings.TrimSpace(d.Name) == "" {
		problems = append(problems, "name is empty")
	}
	if _, err := semver.StrictNewVersion(d.Version); err != nil {
		problems = append(problems, fmt.Sprintf("version %q is not a semantic version", d.Version))
	}

	for _, s := range d.Scripts {
		if s == "" {
			problems = append(problems, "script path is empty")
			continue
		}
		if !hasScriptExtension(s) {
			problems = append(problems, fmt.Sprintf("script %q does not end in one of %s", s, strings.Join(ScriptExtensions, ", ")))
		}
	}

	declared := make(map[string]bool, len(d.Packages))
	for _, p := range d.Packages {
		if p == "" {
			problems = append(problems, "package name is empty")
			continue
		}
		if declared[p] {
			problems = append(problems, fmt.Sprintf("package %q is listed twice", p))
		}
		declared[p] = true
	}
	for p := range d.PackageDir {
		if !declared[p] {
			problems = append(problems, fmt.Sprintf("package_dir names undeclared package %q", p))
		}
	}
	if len(d.PackageDir) > 0 {
		for _, p := range d.Packages {
			if _, ok := d.PackageDir[p]; p != "" && !ok {
				problems = append(problems, fmt.Sprintf("package %q has no package_dir entry", p))
			}
		}
	}
	for p, patterns := range d.PackageData {
		if !declared[p] {
			problems = append(problems, fmt.Sprintf("package_data names undeclared package %q", p))
		}
		if len(patterns) == 0 {
			problems = append(problems, fmt.Sprintf("package_data for %q is empty", p))
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return errors.New("E170").WithDetail(strings.Join(problems, "; "))
	}
	return nil
}

// Check verifies that every path the descriptor names resolves inside fsys:
// scripts exist as files, package directories exist, and each package_data
// pattern matches at least one entry below its package directory.
func (d Descriptor) Check(fsys fs.FS) error {
	var problems []string

	for _, s := range d.Scripts {
		info, err := fs.Stat(fsys, s)
		switch {
		case err != nil:
			problems = append(problems, fmt.Sprintf("script %q not found", s))
		case info.IsDir():
			problems = append(problems, fmt.Sprintf("script %q is a directory", s))
		}
	}

	for _, p := range d.Packages {
		dir := d.PackageDirOf(p)
		info, err := fs.Stat(fsys, dir)
		if err != nil || !info.IsDir() {
			problems = append(problems, fmt.Sprintf("package %q: directory %q not found", p, dir))
			continue
		}
		for _, pattern := range d.PackageData[p] {
			ok, err := matchesAny(fsys, dir, pattern)
			if err != nil {
				problems = append(problems, fmt.Sprintf("package %q: bad pattern %q: %v", p, pattern, err))
			} else if !ok {
				problems = append(problems, fmt.Sprintf("package %q: data pattern %q matches nothing", p, pattern))
			}
		}
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return errors.New("E171").WithDetail(strings.Join(problems, "; "))
	}
	return nil
}

// matchesAny reports whether pattern, relative to dir, matches any entry.
func matchesAny(fsys fs.FS, dir, pattern string) (bool, error) {
	found := false
	err := fs.WalkDir(fsys, dir, func(p string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == dir {
			return nil
		}
		rel := strings.TrimPrefix(p, dir+"/")
		ok, err := doublestar.Match(pattern, rel)
		if err != nil {
			return err
		}
		if ok {
			found = true
			return fs.SkipAll
		}
		return nil
	})
	return found, err
}

func hasScriptExtension(p string) bool {
	ext := path.Ext(p)
	for _, e := range ScriptExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// EncodeJSON encodes the descriptor as indented JSON.
func (d Descriptor) EncodeJSON() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// EncodeYAML encodes the descriptor as YAML.
func (d Descriptor) EncodeYAML() ([]byte, error) {
	return yaml.Marshal(yamlDescriptor{
		Name:        d.Name,
		Version:     d.Version,
		Description: d.Description,
		Author:      d.Author,
		AuthorEmail: d.AuthorEmail,
		URL:         d.URL,
		Scripts:     slicePtr(d.Scripts),
		Packages:    slicePtr(d.Packages),
		PackageDir:  mapPtr(d.PackageDir),
		PackageData: mapPtr(d.PackageData),
	})
}

func slicePtr(s []string) *[]string {
	if s == nil {
		return nil
	}
	return &s
}

func mapPtr[V any](m map[string]V) *map[string]V {
	if m == nil {
		return nil
	}
	return &m
}

// ParseJSON decodes a descriptor from JSON.
func ParseJSON(data []byte) (Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return Descriptor{}, errors.New("E170").WithDetail("invalid JSON: " + err.Error())
	}
	return d, nil
}

// ParseYAML decodes a descriptor from YAML.
func ParseYAML(data []byte) (Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Descriptor{}, errors.New("E170").WithDetail("invalid YAML: " + err.Error())
	}
	return d, nil
}

// Load reads a descriptor, choosing the codec by file extension.
func Load(file string) (Descriptor, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return Descriptor{}, errors.New("E170").Wrap(err)
	}
	switch strings.ToLower(filepath.Ext(file)) {
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return Descriptor{}, errors.New("E172").WithDetail("cannot read " + file)
	}
}

// Save writes the descriptor, choosing the codec by file extension.
func (d Descriptor) Save(file string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(file)) {
	case ".json":
		data, err = d.EncodeJSON()
	case ".yaml", ".yml":
		data, err = d.EncodeYAML()
	default:
		return errors.New("E172").WithDetail("cannot write " + file)
	}
	if err != nil {
		return errors.New("E170").Wrap(err)
	}
	return os.WriteFile(file, data, 0644)
}

