package scaffold

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/concentricsky/djenesis/internal/config"
	"github.com/concentricsky/djenesis/internal/descriptor"
	"github.com/concentricsky/djenesis/internal/errors"
	"github.com/concentricsky/djenesis/internal/source"
	"github.com/concentricsky/djenesis/internal/telemetry"
	"github.com/concentricsky/djenesis/internal/templates"
)

// Options configures a bootstrap run.
type Options struct {
	// Name is the project name, also its Python package.
	Name string

	// Dir is the parent directory of the project (default: current directory).
	Dir string

	// Template is a template reference understood by source.Resolve.
	Template string

	// Description, Author, AuthorEmail and URL end up in setup.py.
	Description string
	Author      string
	AuthorEmail string
	URL         string

	// Vars are configured template variables; Overrides win over them.
	Vars      map[string]string
	Overrides map[string]string

	// Collision is one of the config.Collision* policies (default: fail).
	Collision string

	// Concurrency bounds parallel file writes (default: config.DefaultConcurrency).
	Concurrency int

	// DryRun plans the project without writing anything.
	DryRun bool

	// GitInit creates a repository with an initial commit.
	GitInit bool

	// Virtualenv creates env/ and installs requirements.txt.
	Virtualenv bool

	// Python is the interpreter used for the virtualenv (default: python3).
	Python string

	// Source configures remote template sources.
	Source source.Options

	// Metrics records bootstrap metrics. May be nil.
	Metrics *telemetry.Metrics

	// Logger receives progress output (default: slog.Default()).
	Logger *slog.Logger

	// Run executes external commands (default: os/exec).
	Run Runner
}

// Result describes a completed bootstrap.
type Result struct {
	// Dir is the absolute project directory.
	Dir string

	// Template is the name of the template used.
	Template string

	// SourceKind is the kind of template source.
	SourceKind string

	// Entries is the project plan.
	Entries []templates.Entry

	// Rendered, Copied and Skipped count written and kept files.
	Rendered int
	Copied   int
	Skipped  int

	// Warnings lists post-create steps that did not complete.
	Warnings []string

	// DryRun reports that nothing was written.
	DryRun bool

	// Duration is the total run time.
	Duration time.Duration
}

func (o *Options) applyDefaults() {
	if o.Dir == "" {
		o.Dir = "."
	}
	if o.Collision == "" {
		o.Collision = config.CollisionFail
	}
	if o.Concurrency <= 0 {
		o.Concurrency = config.DefaultConcurrency
	}
	if o.Python == "" {
		o.Python = config.DefaultPython
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Run == nil {
		o.Run = ExecRunner
	}
	if o.Source.Logger == nil {
		o.Source.Logger = o.Logger
	}
}

// Bootstrap creates a project from a template.
func Bootstrap(ctx context.Context, opts Options) (res *Result, err error) {
	start := time.Now()
	opts.applyDefaults()
	log := opts.Logger.With("project", opts.Name)

	ctx, span := telemetry.StartSpan(ctx, "djenesis.bootstrap",
		attribute.String("project", opts.Name),
		attribute.String("template", opts.Template),
	)
	templateName := opts.Template
	defer func() {
		telemetry.EndSpan(span, err)
		opts.Metrics.Bootstrap(templateName, time.Since(start), err)
	}()

	if err := ValidateName(opts.Name); err != nil {
		return nil, err
	}

	target, existed, err := prepareTarget(opts.Dir, opts.Name, opts.Collision)
	if err != nil {
		return nil, err
	}

	src, err := source.Resolve(opts.Template, opts.Source)
	if err != nil {
		return nil, err
	}
	fsys, cleanup, err := openSource(ctx, src, opts.Metrics)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	tmpl, err := templates.FromFS(src.Name(), fsys)
	if err != nil {
		return nil, err
	}
	templateName = tmpl.Name

	cfg, err := renderConfig(opts, tmpl.Manifest)
	if err != nil {
		return nil, err
	}

	entries, err := tmpl.Plan(cfg)
	if err != nil {
		return nil, err
	}
	log.Debug("planned project", "template", tmpl.Name, "source", src.Kind(), "entries", len(entries))

	res = &Result{
		Dir:        target,
		Template:   tmpl.Name,
		SourceKind: src.Kind(),
		Entries:    entries,
		DryRun:     opts.DryRun,
	}
	if opts.DryRun {
		for _, e := range entries {
			switch {
			case e.Dir:
			case e.Render:
				res.Rendered++
			default:
				res.Copied++
			}
		}
		res.Duration = time.Since(start)
		return res, nil
	}

	w := &writer{
		fsys:     tmpl.FS,
		target:   target,
		cfg:      cfg,
		renderer: templates.NewRenderer(tmpl.Manifest),
		skip:     opts.Collision == config.CollisionSkip,
		metrics:  opts.Metrics,
	}
	if err := w.write(ctx, entries, opts.Concurrency); err != nil {
		if !existed {
			os.RemoveAll(target)
		}
		return nil, err
	}
	res.Rendered = int(w.rendered.Load())
	res.Copied = int(w.copied.Load())
	res.Skipped = int(w.skipped.Load())
	log.Info("project written", "dir", target, "rendered", res.Rendered, "copied", res.Copied, "skipped", res.Skipped)

	if opts.GitInit {
		if err := gitInit(ctx, target, opts.Author, opts.AuthorEmail); err != nil {
			log.Warn("git init failed", "error", err)
			res.Warnings = append(res.Warnings, err.Error())
		}
	}
	if opts.Virtualenv {
		if err := virtualenv(ctx, opts.Run, target, opts.Python); err != nil {
			log.Warn("virtualenv setup failed", "error", err)
			res.Warnings = append(res.Warnings, err.Error())
		}
	}

	res.Duration = time.Since(start)
	return res, nil
}

// prepareTarget resolves the project directory and applies the collision
// policy. existed reports whether the directory was already there.
func prepareTarget(parent, name, collision string) (target string, existed bool, err error) {
	switch collision {
	case config.CollisionFail, config.CollisionSkip, config.CollisionOverwrite:
	default:
		return "", false, errors.New("E121").WithDetail("'" + collision + "' is not a collision policy")
	}

	parent, err = filepath.Abs(parent)
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(parent); err != nil || !info.IsDir() {
		return "", false, errors.New("E141").WithDetail("'" + parent + "' is not a directory")
	}

	target = filepath.Join(parent, name)
	info, err := os.Stat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return target, false, nil
	}
	if err != nil {
		return "", false, errors.New("E143").Wrap(err)
	}
	if !info.IsDir() {
		return "", false, errors.New("E140").
			WithDetail("'" + target + "' exists and is not a directory")
	}

	if collision == config.CollisionFail {
		children, err := os.ReadDir(target)
		if err != nil {
			return "", false, errors.New("E143").Wrap(err)
		}
		if len(children) > 0 {
			return "", false, errors.New("E140").
				WithDetail("Directory '" + target + "' already exists and is not empty").
				WithSuggestion("Choose a different name, or pass --collision=skip or --collision=overwrite")
		}
	}
	return target, true, nil
}

func openSource(ctx context.Context, src source.Source, m *telemetry.Metrics) (fs.FS, func(), error) {
	ctx, span := telemetry.StartSpan(ctx, "djenesis.source.open",
		attribute.String("kind", src.Kind()),
		attribute.String("name", src.Name()),
	)
	start := time.Now()
	fsys, cleanup, err := src.Open(ctx)
	m.SourceOpened(src.Kind(), time.Since(start), err)
	telemetry.EndSpan(span, err)
	return fsys, cleanup, err
}

// renderConfig builds the template data. Variables merge in the order
// manifest defaults, configured values, overrides.
func renderConfig(opts Options, m *templates.Manifest) (templates.Config, error) {
	vars := m.Defaults()
	for _, layer := range []map[string]string{opts.Vars, opts.Overrides} {
		for k, v := range layer {
			vars[k] = v
		}
	}

	var undeclared []string
	declared := make(map[string]bool, len(m.Variables))
	for _, v := range m.Variables {
		declared[v.Name] = true
	}
	for k := range opts.Overrides {
		if !declared[k] {
			undeclared = append(undeclared, k)
		}
	}
	if len(undeclared) > 0 && len(m.Variables) > 0 {
		sort.Strings(undeclared)
		opts.Logger.Warn("variables not declared by the template", "vars", strings.Join(undeclared, ","))
	}

	secret, err := templates.NewSecretKey()
	if err != nil {
		return templates.Config{}, err
	}

	pkg := descriptor.ForProject(opts.Name, opts.Author, opts.AuthorEmail, opts.URL)
	if opts.Description != "" {
		pkg.Description = opts.Description
	}

	return templates.Config{
		ProjectName: opts.Name,
		Description: opts.Description,
		Author:      opts.Author,
		AuthorEmail: opts.AuthorEmail,
		URL:         opts.URL,
		SecretKey:   secret,
		Package:     pkg,
		Vars:        vars,
	}, nil
}

type writer struct {
	fsys     fs.FS
	target   string
	cfg      templates.Config
	renderer *templates.Renderer
	skip     bool
	metrics  *telemetry.Metrics

	rendered atomic.Int64
	copied   atomic.Int64
	skipped  atomic.Int64
}

func (w *writer) write(ctx context.Context, entries []templates.Entry, limit int) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "djenesis.write", attribute.Int("entries", len(entries)))
	defer func() { telemetry.EndSpan(span, err) }()

	if err := os.MkdirAll(w.target, 0755); err != nil {
		return errors.New("E143").Wrap(err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, e := range entries {
		if e.Dir {
			if err := w.checkLinks(e.Target); err != nil {
				return err
			}
			// Directories sort first, so they exist before any file is written.
			if err := os.MkdirAll(w.path(e), e.Mode); err != nil {
				return errors.New("E143").WithDetail("creating " + e.Target).Wrap(err)
			}
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return w.writeFile(e)
		})
	}
	return g.Wait()
}

func (w *writer) path(e templates.Entry) string {
	return filepath.Join(w.target, filepath.FromSlash(e.Target))
}

// checkLinks refuses a target path when any existing component below the
// project directory is a symbolic link, since writes would follow it.
func (w *writer) checkLinks(target string) error {
	dir := w.target
	for _, part := range strings.Split(target, "/") {
		dir = filepath.Join(dir, part)
		info, err := os.Lstat(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return errors.New("E143").WithDetail("inspecting " + target).Wrap(err)
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			rel, _ := filepath.Rel(w.target, dir)
			return errors.New("E142").WithDetail("'" + filepath.ToSlash(rel) + "' is a symbolic link")
		}
	}
	return nil
}

func (w *writer) writeFile(e templates.Entry) error {
	dest := w.path(e)

	if err := w.checkLinks(e.Target); err != nil {
		return err
	}
	if _, err := os.Lstat(dest); err == nil {
		if w.skip {
			w.skipped.Add(1)
			w.metrics.File(telemetry.KindSkipped, 0)
			return nil
		}
	}

	data, err := fs.ReadFile(w.fsys, e.Source)
	if err != nil {
		return errors.New("E143").WithDetail("reading template file " + e.Source).Wrap(err)
	}

	kind := telemetry.KindCopied
	if e.Render {
		data, err = w.renderer.Render(e.Source, data, w.cfg)
		if err != nil {
			return err
		}
		kind = telemetry.KindRendered
	}

	if err := os.WriteFile(dest, data, e.Mode); err != nil {
		return errors.New("E143").WithDetail("writing " + e.Target).Wrap(err)
	}
	// WriteFile keeps the mode of a file it overwrites.
	if err := os.Chmod(dest, e.Mode); err != nil {
		return errors.New("E143").WithDetail("chmod " + e.Target).Wrap(err)
	}

	if e.Render {
		w.rendered.Add(1)
	} else {
		w.copied.Add(1)
	}
	w.metrics.File(kind, len(data))
	return nil
}
