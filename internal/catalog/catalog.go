package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/concentricsky/djenesis/internal/archive"
	"github.com/concentricsky/djenesis/internal/config"
	"github.com/concentricsky/djenesis/internal/errors"
	"github.com/concentricsky/djenesis/internal/telemetry"
	"github.com/concentricsky/djenesis/internal/templates"
)

// ArchiveSuffix is appended to a template name to request its tarball.
const ArchiveSuffix = ".tar.gz"

// Options configures a catalog server.
type Options struct {
	// Addr is the listen address (default: config.DefaultCatalogAddr).
	Addr string

	// Root holds one template per subdirectory. Empty serves built-ins only.
	Root string

	// Metrics records request metrics. May be nil.
	Metrics *telemetry.Metrics

	// Gatherer backs /metrics (default: prometheus.DefaultGatherer).
	Gatherer prometheus.Gatherer

	// Logger receives request logs (default: slog.Default()).
	Logger *slog.Logger

	// ShutdownTimeout bounds graceful shutdown (default: 10s).
	ShutdownTimeout time.Duration
}

// Info describes a template in the index.
type Info struct {
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Builtin     bool                 `json:"builtin"`
	Archive     string               `json:"archive"`
	Variables   []templates.Variable `json:"variables,omitempty"`
}

// Index is the body of GET /templates.
type Index struct {
	Templates []Info `json:"templates"`
}

// Server is a template catalog.
type Server struct {
	opts   Options
	logger *slog.Logger
	router chi.Router
}

// New creates a catalog server.
func New(opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = config.DefaultCatalogAddr
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{opts: opts, logger: logger}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok\n"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/templates", func(r chi.Router) {
		r.Get("/", s.handleIndex)
		r.Get("/{name}", s.handleTemplate)
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("catalog starting", "address", s.opts.Addr, "root", s.opts.Root)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
		s.logger.Info("catalog shutdown complete")
		return nil
	}
}

// Templates returns the catalog keyed by template name.
func (s *Server) Templates() (map[string]*templates.Template, error) {
	out := make(map[string]*templates.Template)
	for _, name := range templates.List() {
		t, err := templates.Get(name)
		if err != nil {
			return nil, err
		}
		out[name] = t
	}

	if s.opts.Root == "" {
		return out, nil
	}
	entries, err := os.ReadDir(s.opts.Root)
	if err != nil {
		return nil, errors.New("E120").WithDetail("catalog root: " + err.Error())
	}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		t, err := templates.FromFS(e.Name(), os.DirFS(filepath.Join(s.opts.Root, e.Name())))
		if err != nil {
			s.logger.Warn("skipping template", "dir", e.Name(), "error", err)
			continue
		}
		out[e.Name()] = t
	}
	return out, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	all, err := s.Templates()
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}

	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	idx := Index{Templates: make([]Info, 0, len(names))}
	for _, name := range names {
		idx.Templates = append(idx.Templates, s.info(name, all[name]))
	}
	writeJSON(w, http.StatusOK, idx)
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	param := chi.URLParam(r, "name")
	name, isArchive := strings.CutSuffix(param, ArchiveSuffix)

	all, err := s.Templates()
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	t, ok := all[name]
	if !ok {
		s.fail(w, http.StatusNotFound, errors.New("E145").WithDetail("Template '"+name+"' not found"))
		return
	}

	if !isArchive {
		writeJSON(w, http.StatusOK, s.info(name, t))
		return
	}

	var buf bytes.Buffer
	if err := archive.Pack(&buf, t.FS); err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+ArchiveSuffix+`"`)
	n, _ := buf.WriteTo(w)
	s.opts.Metrics.ArchiveServed(n)
}

func (s *Server) info(name string, t *templates.Template) Info {
	return Info{
		Name:        name,
		Description: t.Description,
		Builtin:     t.Builtin,
		Archive:     "/templates/" + name + ArchiveSuffix,
		Variables:   t.Manifest.Variables,
	}
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		s.logger.Error("catalog error", "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(errors.FromError(err, "E143").FormatJSON()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// logRequests logs each request with slog and records it in the metrics.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.opts.Metrics.CatalogRequest(route, status)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
			"remote", r.RemoteAddr,
		)
	})
}
