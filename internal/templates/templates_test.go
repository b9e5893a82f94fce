package templates

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/concentricsky/djenesis/internal/descriptor"
	"github.com/concentricsky/djenesis/internal/errors"
)

func testConfig() Config {
	return Config{
		ProjectName: "mysite",
		Description: "A test site",
		Author:      "Jane Doe",
		AuthorEmail: "jane@example.com",
		SecretKey:   "not-so-secret",
		Package:     descriptor.ForProject("mysite", "Jane Doe", "jane@example.com", ""),
		Vars:        map[string]string{"django_version": "4.2", "db_engine": "sqlite3", "time_zone": "UTC"},
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"django", false},
		{"minimal", false},
		{"flask", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := Get(tt.name)
			if tt.wantErr {
				if !errors.HasCode(err, "E145") {
					t.Errorf("expected E145, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if tmpl.Name != tt.name {
				t.Errorf("Name = %q, want %q", tmpl.Name, tt.name)
			}
			if tmpl.Description == "" {
				t.Error("built-in template should have a description")
			}
		})
	}
}

func TestList(t *testing.T) {
	names := List()
	if strings.Join(names, ",") != "django,minimal" {
		t.Errorf("List() = %v", names)
	}
	if !IsBuiltin("django") || IsBuiltin("flask") {
		t.Error("IsBuiltin mismatch")
	}
}

func TestDjangoManifest(t *testing.T) {
	tmpl, err := Get("django")
	if err != nil {
		t.Fatal(err)
	}
	defaults := tmpl.Manifest.Defaults()
	for _, name := range []string{"django_version", "db_engine", "time_zone"} {
		if _, ok := defaults[name]; !ok {
			t.Errorf("django manifest should declare %s", name)
		}
	}
}

func TestPlan_Django(t *testing.T) {
	tmpl, err := Get("django")
	if err != nil {
		t.Fatal(err)
	}

	entries, err := tmpl.Plan(testConfig())
	if err != nil {
		t.Fatalf("Plan error: %v", err)
	}

	byTarget := make(map[string]Entry, len(entries))
	for _, e := range entries {
		byTarget[e.Target] = e
	}

	requiredFiles := []string{
		"manage.py",
		"requirements.txt",
		"setup.py",
		"README.md",
		".gitignore",
		"mysite/__init__.py",
		"mysite/settings.py",
		"mysite/urls.py",
		"mysite/wsgi.py",
		"mysite/asgi.py",
		"mysite/templates/base.html",
		"mysite/static/css/site.css",
	}
	for _, file := range requiredFiles {
		if _, ok := byTarget[file]; !ok {
			t.Errorf("missing required file: %s", file)
		}
	}

	if _, ok := byTarget[ManifestFile]; ok {
		t.Error("manifest should not be planned")
	}
	if e := byTarget["mysite/settings.py"]; !e.Render || e.Source != "__project_name__/settings.py.tmpl" {
		t.Errorf("settings.py entry = %+v", e)
	}
	if e := byTarget["mysite/templates/base.html"]; e.Render {
		t.Error("base.html should be copied verbatim")
	}
	if e := byTarget["manage.py"]; e.Mode != 0755 {
		t.Errorf("manage.py mode = %v, want 0755", e.Mode)
	}
	if e := byTarget["mysite"]; !e.Dir {
		t.Error("mysite should be a directory entry")
	}

	seenFile := false
	for _, e := range entries {
		if !e.Dir {
			seenFile = true
		} else if seenFile {
			t.Fatal("directories must be planned before files")
		}
	}
}

func TestPlan_ExcludesAndTokens(t *testing.T) {
	fsys := fstest.MapFS{
		"djenesis.yaml":                      {Data: []byte("name: custom\nexclude: [\"docs/**\"]\nexecutable: [\"bin/*\"]\n")},
		"__project_name__/__init__.py":       {},
		"__project_name__/__app__/models.py": {},
		"__project_name__/cache.pyc":         {},
		"__project_name__/__pycache__/x.pyc": {},
		".git/HEAD":                          {Data: []byte("ref: refs/heads/main\n")},
		"docs/index.md":                      {},
		"bin/run.sh":                         {Data: []byte("#!/bin/sh\n")},
		"bin/tool.py":                        {Mode: 0755},
	}

	tmpl, err := FromFS("fallback", fsys)
	if err != nil {
		t.Fatal(err)
	}
	if tmpl.Name != "custom" {
		t.Errorf("Name = %q, want manifest name", tmpl.Name)
	}

	cfg := testConfig()
	cfg.Vars = map[string]string{"app": "blog"}
	entries, err := tmpl.Plan(cfg)
	if err != nil {
		t.Fatal(err)
	}

	var files []string
	for _, e := range entries {
		if !e.Dir {
			files = append(files, e.Target)
		}
		if e.Target == "bin/run.sh" && e.Mode != 0755 {
			t.Errorf("bin/run.sh mode = %v, want 0755", e.Mode)
		}
	}

	want := "bin/run.sh,bin/tool.py,mysite/__init__.py,mysite/blog/models.py"
	if got := strings.Join(files, ","); got != want {
		t.Errorf("files = %s, want %s", got, want)
	}
}

func TestPlan_RejectsEscapingPaths(t *testing.T) {
	fsys := fstest.MapFS{
		"__dest__/x.py": {},
	}
	tmpl, err := FromFS("t", fsys)
	if err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.Vars = map[string]string{"dest": ".."}

	if _, err := tmpl.Plan(cfg); !errors.HasCode(err, "E142") {
		t.Errorf("Plan() = %v, want E142", err)
	}
}

func TestPlan_EmptyPathVariable(t *testing.T) {
	fsys := fstest.MapFS{
		"djenesis.yaml":      {Data: []byte("name: t\nvariables:\n  - name: app\n")},
		"__app__/models.py":  {},
		"__project_name__.y": {},
	}
	tmpl, err := FromFS("t", fsys)
	if err != nil {
		t.Fatal(err)
	}
	cfg := testConfig()
	cfg.Vars = tmpl.Manifest.Defaults()

	_, err = tmpl.Plan(cfg)
	if !errors.HasCode(err, "E123") {
		t.Fatalf("Plan() = %v, want E123", err)
	}
	if de := err.(*errors.DjenesisError); !strings.Contains(de.Detail, "__app__") {
		t.Errorf("Detail = %q, want it to name __app__", de.Detail)
	}
}

func TestPlan_PrunesExcludedDirs(t *testing.T) {
	fsys := fstest.MapFS{
		"pkg/__pycache__/x.pyc":  {},
		"pkg/cache.pyc":          {},
		"lib/sub/__pycache__/y":  {},
		"lib/keep.py":            {},
		"static":                 {Mode: fs.ModeDir | 0755},
		"app/__init__.py":        {},
		"app/migrations/a.pyc":   {},
		"app/migrations/0001.py": {},
	}
	tmpl, err := FromFS("t", fsys)
	if err != nil {
		t.Fatal(err)
	}
	entries, err := tmpl.Plan(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	var dirs []string
	for _, e := range entries {
		if e.Dir {
			dirs = append(dirs, e.Target)
		}
	}
	want := "app,app/migrations,lib,static"
	if got := strings.Join(dirs, ","); got != want {
		t.Errorf("dirs = %s, want %s", got, want)
	}
}

func TestPlan_RejectsDuplicateTargets(t *testing.T) {
	fsys := fstest.MapFS{
		"a.py":      {},
		"a.py.tmpl": {},
	}
	tmpl, _ := FromFS("t", fsys)
	if _, err := tmpl.Plan(testConfig()); !errors.HasCode(err, "E142") {
		t.Errorf("Plan() = %v, want E142", err)
	}
}

func TestLoadManifest_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":    "name: [unclosed",
		"bad delims":  "delims: [\"<%\"]",
		"unnamed var": "variables:\n  - default: x\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadManifest(fstest.MapFS{ManifestFile: {Data: []byte(content)}})
			if !errors.HasCode(err, "E162") {
				t.Errorf("LoadManifest() = %v, want E162", err)
			}
		})
	}

	m, err := LoadManifest(fstest.MapFS{})
	if err != nil || m == nil {
		t.Errorf("missing manifest should be empty, got %v, %v", m, err)
	}
}
