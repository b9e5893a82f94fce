package source

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/concentricsky/djenesis/internal/archive"
	"github.com/concentricsky/djenesis/internal/errors"
)

func TestResolve(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		ref  string
		kind string
		name string
	}{
		{"", KindBuiltin, "django"},
		{"minimal", KindBuiltin, "minimal"},
		{dir, KindLocal, filepath.Base(dir)},
		{"file://" + dir, KindLocal, filepath.Base(dir)},
		{"git+https://github.com/acme/django-starter", KindGit, "django-starter"},
		{"https://github.com/acme/starter.git#v2", KindGit, "starter"},
		{"git@github.com:acme/starter.git", KindGit, "starter"},
		{"ssh://git@host/acme/starter.git", KindGit, "starter"},
		{"s3://templates-bucket/django/corporate", KindS3, "corporate"},
		{"s3://templates-bucket", KindS3, "templates-bucket"},
		{"http://localhost:8088/templates/django.tar.gz", KindHTTP, "django"},
		{"https://example.com/t/site.tgz?sig=abc", KindHTTP, "site"},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			src, err := Resolve(tt.ref, Options{})
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.ref, err)
			}
			if src.Kind() != tt.kind {
				t.Errorf("Kind() = %q, want %q", src.Kind(), tt.kind)
			}
			if src.Name() != tt.name {
				t.Errorf("Name() = %q, want %q", src.Name(), tt.name)
			}
		})
	}
}

func TestResolve_Errors(t *testing.T) {
	for _, ref := range []string{
		"no-such-template",
		"./does/not/exist",
		"https://example.com/page.html",
		"s3://",
	} {
		_, err := Resolve(ref, Options{})
		if !errors.HasCode(err, "E150") {
			t.Errorf("Resolve(%q) error = %v, want E150", ref, err)
		}
	}
}

func TestSplitRev(t *testing.T) {
	repo, rev := splitRev("https://host/r.git#release/1.0")
	if repo != "https://host/r.git" || rev != "release/1.0" {
		t.Errorf("splitRev() = %q, %q", repo, rev)
	}
	repo, rev = splitRev("https://host/r.git")
	if repo != "https://host/r.git" || rev != "" {
		t.Errorf("splitRev() = %q, %q", repo, rev)
	}
}

func TestBuiltin_Open(t *testing.T) {
	src, err := Resolve("django", Options{})
	if err != nil {
		t.Fatal(err)
	}
	fsys, cleanup, err := src.Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	if _, err := fs.Stat(fsys, "manage.py.tmpl"); err != nil {
		t.Errorf("manage.py.tmpl missing: %v", err)
	}
}

func TestLocal_Open(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	src, err := Resolve(dir, Options{})
	if err != nil {
		t.Fatal(err)
	}
	fsys, cleanup, err := src.Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer cleanup()

	data, err := fs.ReadFile(fsys, "README.md")
	if err != nil || string(data) != "hello" {
		t.Errorf("ReadFile() = %q, %v", data, err)
	}
}

func TestHTTP_Open(t *testing.T) {
	var buf bytes.Buffer
	err := archive.Pack(&buf, fstest.MapFS{
		"djenesis.yaml":                {Data: []byte("name: remote\n"), Mode: 0644},
		"__project_name__/settings.py": {Data: []byte("DEBUG = True\n"), Mode: 0644},
		"manage.py.tmpl":               {Data: []byte("#!/usr/bin/env python\n"), Mode: 0755},
	})
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/templates/remote.tar.gz" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/gzip")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	src, err := Resolve(srv.URL+"/templates/remote.tar.gz", Options{HTTPClient: srv.Client()})
	if err != nil {
		t.Fatal(err)
	}
	fsys, cleanup, err := src.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	data, err := fs.ReadFile(fsys, "__project_name__/settings.py")
	if err != nil || string(data) != "DEBUG = True\n" {
		t.Errorf("ReadFile() = %q, %v", data, err)
	}

	cleanup()

	t.Run("not found", func(t *testing.T) {
		src, err := Resolve(srv.URL+"/templates/missing.tar.gz", Options{HTTPClient: srv.Client()})
		if err != nil {
			t.Fatal(err)
		}
		_, _, err = src.Open(context.Background())
		if !errors.HasCode(err, "E153") {
			t.Errorf("Open() error = %v, want E153", err)
		}
		if err != nil && !strings.Contains(err.Error(), "404") {
			t.Errorf("error should mention the status: %v", err)
		}
	})
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	gets    []string
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	f.gets = append(f.gets, aws.ToString(in.Key))
	f.mu.Unlock()

	body := f.objects[aws.ToString(in.Key)]
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3_Open(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{
		"django/corporate/djenesis.yaml":                "name: corporate\n",
		"django/corporate/__project_name__/":            "",
		"django/corporate/__project_name__/__init__.py": "",
		"django/corporate/manage.py.tmpl":               "#!/usr/bin/env python\n",
		"django/other/README.md":                        "not part of the template",
	}}

	src, err := Resolve("s3://bucket/django/corporate", Options{S3Client: fake})
	if err != nil {
		t.Fatal(err)
	}
	fsys, cleanup, err := src.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer cleanup()

	data, err := fs.ReadFile(fsys, "djenesis.yaml")
	if err != nil || string(data) != "name: corporate\n" {
		t.Errorf("ReadFile(djenesis.yaml) = %q, %v", data, err)
	}
	if _, err := fs.Stat(fsys, "__project_name__/__init__.py"); err != nil {
		t.Errorf("__init__.py missing: %v", err)
	}
	if _, err := fs.Stat(fsys, "README.md"); err == nil {
		t.Error("objects outside the prefix should not be downloaded")
	}
	if len(fake.gets) != 3 {
		t.Errorf("GetObject called %d times, want 3 (directory markers are skipped)", len(fake.gets))
	}
}

func TestS3_Empty(t *testing.T) {
	src, err := Resolve("s3://bucket/nothing", Options{S3Client: &fakeS3{objects: map[string]string{}}})
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = src.Open(context.Background())
	if !errors.HasCode(err, "E152") {
		t.Errorf("Open() error = %v, want E152", err)
	}
}

func TestGit_OpenMissingRepository(t *testing.T) {
	src, err := Resolve("file:///nonexistent/djenesis/template.git", Options{})
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = src.Open(context.Background())
	if !errors.HasCode(err, "E151") {
		t.Errorf("Open() error = %v, want E151", err)
	}
}

func TestGit_Open(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary required for the file transport")
	}

	repoDir := t.TempDir()
	repo, err := git.PlainInit(repoDir, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(repoDir, "djenesis.yaml"), []byte("name: from-git\n"), 0644); err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add("djenesis.yaml"); err != nil {
		t.Fatal(err)
	}
	head, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.CreateTag("v1", head, nil); err != nil {
		t.Fatal(err)
	}

	for _, ref := range []string{"git+file://" + repoDir, "git+file://" + repoDir + "#v1"} {
		t.Run(ref, func(t *testing.T) {
			src, err := Resolve(ref, Options{})
			if err != nil {
				t.Fatal(err)
			}
			fsys, cleanup, err := src.Open(context.Background())
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer cleanup()

			data, err := fs.ReadFile(fsys, "djenesis.yaml")
			if err != nil || string(data) != "name: from-git\n" {
				t.Errorf("ReadFile() = %q, %v", data, err)
			}
		})
	}

	t.Run("unknown rev", func(t *testing.T) {
		src, _ := Resolve("git+file://"+repoDir+"#nope", Options{})
		_, _, err := src.Open(context.Background())
		if !errors.HasCode(err, "E151") {
			t.Errorf("Open() error = %v, want E151", err)
		}
	})
}
