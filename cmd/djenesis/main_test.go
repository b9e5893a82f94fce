package main

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"

	"github.com/concentricsky/djenesis/internal/config"
	"github.com/concentricsky/djenesis/internal/descriptor"
	"github.com/concentricsky/djenesis/internal/errors"
)

// execute runs the CLI with an isolated configuration environment.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv(config.EnvConfig, "")
	t.Setenv(config.EnvTemplate, "")
	t.Setenv(config.EnvAuthor, "")

	g := &globals{}
	defer g.close()
	cmd := newRootCmd(g)
	var out, stderr bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCreate(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "", "create", "mysite", "--dir", dir, "--yes", "--log-level", "error")
	if err != nil {
		t.Fatalf("create error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "Created mysite/") {
		t.Errorf("output = %s", out)
	}
	for _, f := range []string{"manage.py", "setup.py", "requirements.txt", "mysite/settings.py", "mysite/urls.py"} {
		if _, err := os.Stat(filepath.Join(dir, "mysite", f)); err != nil {
			t.Errorf("%s missing: %v", f, err)
		}
	}
}

func TestCreate_Prompts(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "A blog\nJane Doe\njane@example.com\n", "create", "blog", "--dir", dir, "--log-level", "error")
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "blog", "setup.py"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`description="A blog"`, `author="Jane Doe"`, `author_email="jane@example.com"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("setup.py missing %s", want)
		}
	}
}

func TestCreate_DryRun(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "", "create", "mysite", "django", "--dir", dir, "--dry-run", "--log-level", "error")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "render") || !strings.Contains(out, "mysite/templates/base.html") {
		t.Errorf("plan output = %s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "mysite")); err == nil {
		t.Error("dry run created the project")
	}
}

func TestCreate_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
		code string
	}{
		{"template twice", []string{"create", "mysite", "minimal", "-t", "django", "--dir", dir, "-y"}, "E145"},
		{"bad var", []string{"create", "mysite", "--var", "novalue", "--dir", dir, "-y"}, "E123"},
		{"bad name", []string{"create", "my-site", "--dir", dir, "-y"}, "E147"},
		{"bad collision", []string{"create", "mysite", "--collision", "merge", "--dir", dir, "-y"}, "E121"},
		{"bad log level", []string{"create", "mysite", "--log-level", "loud", "--dir", dir, "-y"}, "E122"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "", tt.args...)
			if !errors.HasCode(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestCreate_MetricsFile(t *testing.T) {
	dir := t.TempDir()
	metrics := filepath.Join(dir, "djenesis.prom")
	_, err := execute(t, "", "create", "mysite", "minimal", "--dir", dir, "-y", "--metrics-file", metrics, "--log-level", "error")
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(metrics)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"djenesis_files_total", "djenesis_bootstrap_duration_seconds"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("metrics file missing %s", want)
		}
	}
}

func TestCreate_Trace(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	dir := t.TempDir()
	trace := filepath.Join(dir, "trace.json")
	_, err := execute(t, "", "create", "mysite", "minimal", "--dir", dir, "-y", "--trace", trace, "--log-level", "error")
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(trace)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"Name":"djenesis.bootstrap"`, `"Name":"djenesis.write"`, `"Name":"djenesis.source.open"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("trace file missing %s", want)
		}
	}
}

func TestCreate_ConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "djenesis.json")
	cfg := config.New()
	cfg.Template = "minimal"
	cfg.Variables = map[string]string{"django_version": "5.0"}
	if err := cfg.SaveTo(cfgPath); err != nil {
		t.Fatal(err)
	}

	_, err := execute(t, "", "--config", cfgPath, "create", "mysite", "--dir", dir, "-y", "--log-level", "error")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "mysite", "setup.py")); err == nil {
		t.Error("configured minimal template should not write setup.py")
	}
	req, err := os.ReadFile(filepath.Join(dir, "mysite", "requirements.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(req), "5.0") {
		t.Errorf("requirements.txt = %s", req)
	}
}

func TestDescribe(t *testing.T) {
	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			out, err := execute(t, "", "describe", "--format", format)
			if err != nil {
				t.Fatal(err)
			}
			parse := descriptor.ParseJSON
			if format == "yaml" {
				parse = descriptor.ParseYAML
			}
			got, err := parse([]byte(out))
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, descriptor.Default()) {
				t.Errorf("describe = %+v, want %+v", got, descriptor.Default())
			}
		})
	}

	t.Run("unknown format", func(t *testing.T) {
		_, err := execute(t, "", "describe", "--format", "toml")
		if !errors.HasCode(err, "E172") {
			t.Errorf("error = %v, want E172", err)
		}
	})
}

func TestDescribe_Check(t *testing.T) {
	tree := t.TempDir()
	for _, f := range []string{"djenesis/djenesis.py", "djenesis/project_template/manage.py"} {
		p := filepath.Join(tree, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	out, err := execute(t, "", "describe", "--check", tree)
	if err != nil {
		t.Fatalf("check error = %v", err)
	}
	if !strings.Contains(out, "djenesis 0.9.1") {
		t.Errorf("output = %s", out)
	}

	_, err = execute(t, "", "describe", "--check", t.TempDir())
	if !errors.HasCode(err, "E171") {
		t.Errorf("error = %v, want E171", err)
	}
}

func TestDescribe_ProjectOutput(t *testing.T) {
	file := filepath.Join(t.TempDir(), "package.yaml")
	if _, err := execute(t, "", "describe", "--project", "mysite", "-o", file); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "", "describe", "--file", file, "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	got, err := descriptor.ParseJSON([]byte(out))
	if err != nil {
		t.Fatal(err)
	}
	want := descriptor.ForProject("mysite", "", "", "")
	if !reflect.DeepEqual(got, want) {
		t.Errorf("descriptor = %+v, want %+v", got, want)
	}
}

func TestTemplates(t *testing.T) {
	out, err := execute(t, "", "templates")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"NAME", "django", "minimal"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s:\n%s", want, out)
		}
	}

	out, err = execute(t, "", "templates", "django")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Source:      builtin", "db_engine", "* manage.py", "  __project_name__/templates/base.html"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version", "--short")
	if err != nil {
		t.Fatal(err)
	}
	if out != "0.9.1\n" {
		t.Errorf("version = %q", out)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "djenesis.json")

	if _, err := execute(t, "", "--config", path, "config", "init"); err != nil {
		t.Fatalf("config init error = %v", err)
	}
	if _, err := execute(t, "", "--config", path, "config", "init"); !errors.HasCode(err, "E120") {
		t.Errorf("second init error = %v, want E120", err)
	}
	if _, err := execute(t, "", "--config", path, "config", "init", "--force"); err != nil {
		t.Errorf("init --force error = %v", err)
	}

	out, err := execute(t, "", "--config", path, "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "# "+path) || !strings.Contains(out, `"template": "django"`) {
		t.Errorf("config show = %s", out)
	}
}
