package source

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/concentricsky/djenesis/internal/errors"
	"github.com/concentricsky/djenesis/internal/templates"
)

// Source kinds.
const (
	KindBuiltin = "builtin"
	KindLocal   = "local"
	KindGit     = "git"
	KindS3      = "s3"
	KindHTTP    = "http"
)

// Source is a resolved template reference.
type Source interface {
	// Kind is one of the Kind constants.
	Kind() string

	// Name is a template name derived from the reference.
	Name() string

	// Open materializes the template. cleanup releases any temporary
	// files and is never nil when err is nil.
	Open(ctx context.Context) (fsys fs.FS, cleanup func(), err error)
}

// Options configures remote sources.
type Options struct {
	// S3Region and S3Endpoint configure the S3 client.
	S3Region   string
	S3Endpoint string

	// S3Client replaces the client built from the default AWS config.
	S3Client S3API

	// HTTPClient is used for archive downloads (default: http.DefaultClient).
	HTTPClient *http.Client

	// Logger receives debug output (default: slog.Default()).
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Resolve maps a template reference to a Source. An empty reference is the
// default built-in template.
func Resolve(ref string, opts Options) (Source, error) {
	if ref == "" {
		ref = "django"
	}

	switch {
	case templates.IsBuiltin(ref):
		return builtinSource{name: ref}, nil

	case strings.HasPrefix(ref, "s3://"):
		u, err := url.Parse(ref)
		if err != nil || u.Host == "" {
			return nil, errors.New("E150").WithDetail("invalid S3 URL '" + ref + "'")
		}
		return &s3Source{
			bucket: u.Host,
			prefix: strings.TrimPrefix(u.Path, "/"),
			opts:   opts,
		}, nil

	case isGitRef(ref):
		repo, rev := splitRev(strings.TrimPrefix(ref, "git+"))
		return &gitSource{url: repo, rev: rev, log: opts.logger()}, nil

	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		if !isArchive(ref) {
			return nil, errors.New("E150").
				WithDetail("'" + ref + "' is neither a .tar.gz archive nor a git repository").
				WithSuggestion("Prefix git repositories with git+, e.g. git+" + ref)
		}
		client := opts.HTTPClient
		if client == nil {
			client = http.DefaultClient
		}
		return &httpSource{url: ref, client: client}, nil
	}

	dir := strings.TrimPrefix(ref, "file://")
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, err
		}
		return localSource{dir: abs}, nil
	}

	return nil, errors.New("E150").
		WithDetail("'" + ref + "' was not found").
		WithSuggestion("Use a built-in template (" + strings.Join(templates.List(), ", ") + "), a directory, git+<url>, s3://bucket/prefix or an https://…/name.tar.gz archive")
}

func isGitRef(ref string) bool {
	if strings.HasPrefix(ref, "git+") || strings.HasPrefix(ref, "git@") || strings.HasPrefix(ref, "ssh://") || strings.HasPrefix(ref, "git://") {
		return true
	}
	repo, _ := splitRev(ref)
	return strings.HasSuffix(repo, ".git") && strings.Contains(repo, "://")
}

// splitRev splits "url#rev" into its parts.
func splitRev(ref string) (string, string) {
	if i := strings.LastIndex(ref, "#"); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return ref, ""
}

func isArchive(ref string) bool {
	p := ref
	if u, err := url.Parse(ref); err == nil {
		p = u.Path
	}
	return strings.HasSuffix(p, ".tar.gz") || strings.HasSuffix(p, ".tgz")
}

// baseName derives a template name from the last element of p.
func baseName(p string) string {
	name := path.Base(strings.TrimRight(p, "/"))
	for _, suffix := range []string{".tar.gz", ".tgz", ".git"} {
		name = strings.TrimSuffix(name, suffix)
	}
	if name == "." || name == "/" || name == "" {
		return "template"
	}
	return name
}

// tempDir creates a directory for a remote template.
func tempDir(kind string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "djenesis-"+kind+"-")
	if err != nil {
		return "", nil, err
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}

type builtinSource struct {
	name string
}

func (s builtinSource) Kind() string { return KindBuiltin }
func (s builtinSource) Name() string { return s.name }

func (s builtinSource) Open(ctx context.Context) (fs.FS, func(), error) {
	tmpl, err := templates.Get(s.name)
	if err != nil {
		return nil, nil, err
	}
	return tmpl.FS, func() {}, nil
}

type localSource struct {
	dir string
}

func (s localSource) Kind() string { return KindLocal }
func (s localSource) Name() string { return baseName(filepath.ToSlash(s.dir)) }

func (s localSource) Open(ctx context.Context) (fs.FS, func(), error) {
	return os.DirFS(s.dir), func() {}, nil
}
