// Package telemetry holds the Prometheus metrics and OpenTelemetry tracer
// shared by the scaffolding engine and the template catalog.
package telemetry

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used for spans.
const TracerName = "github.com/concentricsky/djenesis"

// File kinds recorded by FilesTotal.
const (
	KindRendered = "rendered"
	KindCopied   = "copied"
	KindSkipped  = "skipped"
)

// MetricsConfig configures the metrics set.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "djenesis").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for durations.
	Buckets []float64
}

// MetricsOption configures the metrics set.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// Metrics is the djenesis metrics set. A nil *Metrics records nothing.
type Metrics struct {
	filesTotal        *prometheus.CounterVec
	bytesWritten      prometheus.Counter
	bootstrapDuration *prometheus.HistogramVec
	sourceDuration    *prometheus.HistogramVec
	catalogRequests   *prometheus.CounterVec
	archiveBytes      prometheus.Counter
}

// NewMetrics registers the metrics set with reg.
func NewMetrics(reg prometheus.Registerer, opts ...MetricsOption) *Metrics {
	cfg := MetricsConfig{
		Namespace: "djenesis",
		Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	factory := promauto.With(reg)

	return &Metrics{
		filesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "files_total",
			Help:        "Project files processed, by kind (rendered, copied, skipped)",
			ConstLabels: cfg.ConstLabels,
		}, []string{"kind"}),

		bytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "bytes_written_total",
			Help:        "Bytes written into bootstrapped projects",
			ConstLabels: cfg.ConstLabels,
		}),

		bootstrapDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Name:        "bootstrap_duration_seconds",
			Help:        "Time to bootstrap a project",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}, []string{"template", "status"}),

		sourceDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Name:        "source_open_duration_seconds",
			Help:        "Time to materialize a template source",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}, []string{"kind", "status"}),

		catalogRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "catalog",
			Name:        "requests_total",
			Help:        "Catalog HTTP requests, by route and status code",
			ConstLabels: cfg.ConstLabels,
		}, []string{"route", "code"}),

		archiveBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "catalog",
			Name:        "archive_bytes_total",
			Help:        "Bytes of template archives served",
			ConstLabels: cfg.ConstLabels,
		}),
	}
}

// File records one processed file of the given kind.
func (m *Metrics) File(kind string, size int) {
	if m == nil {
		return
	}
	m.filesTotal.WithLabelValues(kind).Inc()
	if kind != KindSkipped {
		m.bytesWritten.Add(float64(size))
	}
}

// Bootstrap records a finished bootstrap.
func (m *Metrics) Bootstrap(template string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.bootstrapDuration.WithLabelValues(template, status(err)).Observe(d.Seconds())
}

// SourceOpened records the time spent materializing a template source.
func (m *Metrics) SourceOpened(kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.sourceDuration.WithLabelValues(kind, status(err)).Observe(d.Seconds())
}

// CatalogRequest records a catalog HTTP response.
func (m *Metrics) CatalogRequest(route string, code int) {
	if m == nil {
		return
	}
	m.catalogRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// ArchiveServed records bytes of an archive sent to a client.
func (m *Metrics) ArchiveServed(n int64) {
	if m == nil {
		return
	}
	m.archiveBytes.Add(float64(n))
}

// WriteTextfile writes every metric gathered by g to path in the text
// exposition format, for the node_exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}

// NewTracerProvider returns a provider that writes each finished span to w
// as JSON. Spans are exported synchronously, so nothing is lost when the
// command fails before Shutdown.
func NewTracerProvider(w io.Writer) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", "djenesis"))),
	), nil
}

// Tracer returns the djenesis tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// StartSpan starts a span with the given attributes.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
