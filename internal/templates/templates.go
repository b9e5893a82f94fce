package templates

import (
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"

	"github.com/concentricsky/djenesis/internal/descriptor"
	"github.com/concentricsky/djenesis/internal/errors"
)

// Config contains the values a template is rendered with.
type Config struct {
	// ProjectName is the name of the project.
	ProjectName string

	// Description is a short project description.
	Description string

	// Author is the project author.
	Author string

	// AuthorEmail is the author's email address.
	AuthorEmail string

	// URL is the project homepage.
	URL string

	// SecretKey is the generated Django SECRET_KEY.
	SecretKey string

	// Package is the project's package descriptor.
	Package descriptor.Descriptor

	// Vars holds manifest defaults merged with user-supplied variables.
	Vars map[string]string
}

// Template represents a project template.
type Template struct {
	// Name is the template name.
	Name string

	// Description describes the template.
	Description string

	// FS holds the template files.
	FS fs.FS

	// Manifest is the parsed djenesis.yaml, empty if the template has none.
	Manifest *Manifest

	// Builtin is set for templates compiled into the binary.
	Builtin bool
}

// Builtin template names.
var builtins = []string{"django", "minimal"}

// Get returns a built-in template by name.
func Get(name string) (*Template, error) {
	for _, b := range builtins {
		if b != name {
			continue
		}
		fsys, err := builtinFS(name)
		if err != nil {
			return nil, err
		}
		t, err := FromFS(name, fsys)
		if err != nil {
			return nil, err
		}
		t.Builtin = true
		return t, nil
	}
	return nil, errors.New("E145").
		WithDetail("Template '" + name + "' not found").
		WithSuggestion("Available templates: " + strings.Join(List(), ", "))
}

// List returns all built-in template names.
func List() []string {
	names := append([]string{}, builtins...)
	sort.Strings(names)
	return names
}

// IsBuiltin reports whether name is a built-in template.
func IsBuiltin(name string) bool {
	for _, b := range builtins {
		if b == name {
			return true
		}
	}
	return false
}

// FromFS builds a template from an arbitrary filesystem. The manifest name
// and description take precedence over fallbackName.
func FromFS(fallbackName string, fsys fs.FS) (*Template, error) {
	m, err := LoadManifest(fsys)
	if err != nil {
		return nil, err
	}
	t := &Template{
		Name:        fallbackName,
		Description: m.Description,
		FS:          fsys,
		Manifest:    m,
	}
	if m.Name != "" {
		t.Name = m.Name
	}
	return t, nil
}

// Entry is one item of a project plan.
type Entry struct {
	// Source is the path inside the template FS.
	Source string

	// Target is the slash-separated path relative to the project directory.
	Target string

	// Dir marks directory entries.
	Dir bool

	// Render marks files rendered through text/template.
	Render bool

	// Mode is the permission of the written file or directory.
	Mode fs.FileMode
}

// Plan walks the template and returns the directories and files to write,
// directories first, each group in lexical order.
func (t *Template) Plan(cfg Config) ([]Entry, error) {
	excludes := t.Manifest.Excludes()
	tokens := pathTokens(cfg)

	var dirs, files []Entry
	excludedUnder := map[string]bool{}
	err := fs.WalkDir(t.FS, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == "." {
			return nil
		}

		excluded, err := matchAny(excludes, p, d.IsDir())
		if err != nil {
			return errors.New("E162").WithDetail("bad exclude pattern: " + err.Error())
		}
		if excluded {
			for dir := path.Dir(p); dir != "."; dir = path.Dir(dir) {
				excludedUnder[dir] = true
			}
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		target, err := substitutePath(p, tokens)
		if err != nil {
			return err
		}
		render := false
		if !d.IsDir() && strings.HasSuffix(target, ".tmpl") {
			target = strings.TrimSuffix(target, ".tmpl")
			render = true
		}
		if !filepath.IsLocal(filepath.FromSlash(target)) {
			return errors.New("E142").WithDetail("'" + p + "' maps to '" + target + "'")
		}

		if d.IsDir() {
			dirs = append(dirs, Entry{Source: p, Target: target, Dir: true, Mode: 0755})
			return nil
		}

		mode := fs.FileMode(0644)
		if info, err := d.Info(); err == nil && info.Mode().Perm()&0111 != 0 {
			mode = 0755
		}
		if ok, _ := matchAny(t.Manifest.Executable, target, false); ok {
			mode = 0755
		}
		files = append(files, Entry{Source: p, Target: target, Render: render, Mode: mode})
		return nil
	})
	if err != nil {
		return nil, err
	}

	dirs = pruneDirs(dirs, files, excludedUnder)
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Target < dirs[j].Target })
	sort.Slice(files, func(i, j int) bool { return files[i].Target < files[j].Target })

	for i := 1; i < len(files); i++ {
		if files[i].Target == files[i-1].Target {
			return nil, errors.New("E142").
				WithDetail("'" + files[i-1].Source + "' and '" + files[i].Source + "' both map to '" + files[i].Target + "'")
		}
	}

	return append(dirs, files...), nil
}

// matchAny reports whether p matches one of patterns. A directory also
// matches a pattern of the form "dir/**".
func matchAny(patterns []string, p string, isDir bool) (bool, error) {
	for _, pattern := range patterns {
		ok, err := doublestar.Match(pattern, p)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if isDir && strings.HasSuffix(pattern, "/**") {
			ok, err := doublestar.Match(strings.TrimSuffix(pattern, "/**"), p)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
	}
	return false, nil
}

// pathTokens returns a replacer for __name__ path tokens. __project_name__
// always refers to the project, even if a variable of that name exists.
func pathTokens(cfg Config) *strings.Replacer {
	keys := make([]string, 0, len(cfg.Vars))
	for k := range cfg.Vars {
		if k != "project_name" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	pairs := []string{"__project_name__", cfg.ProjectName}
	for _, k := range keys {
		pairs = append(pairs, "__"+k+"__", cfg.Vars[k])
	}
	return strings.NewReplacer(pairs...)
}

// substitutePath replaces tokens inside each segment of a slash path. A
// segment that a token empties is an error rather than a shorter path.
func substitutePath(p string, tokens *strings.Replacer) (string, error) {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		if !strings.Contains(seg, "__") {
			continue
		}
		segments[i] = tokens.Replace(seg)
		if segments[i] == "" || segments[i] == ".tmpl" {
			return "", errors.New("E123").
				WithDetail("'" + seg + "' in '" + p + "' substitutes to an empty name").
				WithSuggestion("Set the variable with --var " + strings.Trim(seg, "_") + "=<value>")
		}
	}
	return path.Join(segments...), nil
}

// pruneDirs drops directories left without entries because everything
// below them was excluded. Directories that are empty in the template stay.
func pruneDirs(dirs, files []Entry, excludedUnder map[string]bool) []Entry {
	used := map[string]bool{}
	markParents := func(p string) {
		for dir := path.Dir(p); dir != "."; dir = path.Dir(dir) {
			used[dir] = true
		}
	}
	for _, f := range files {
		markParents(f.Source)
	}
	for _, d := range dirs {
		if !excludedUnder[d.Source] {
			used[d.Source] = true
			markParents(d.Source)
		}
	}

	kept := dirs[:0]
	for _, d := range dirs {
		if used[d.Source] {
			kept = append(kept, d)
		}
	}
	return kept
}
