package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/concentricsky/djenesis/internal/config"
	"github.com/concentricsky/djenesis/internal/errors"
	"github.com/concentricsky/djenesis/internal/telemetry"
)

// Version information set at build time.
var (
	version = ""
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┏┳┓┏┓┳┓┏┓┏┓┳┏┓
   ┃┃┣ ┃┃┣ ┗┓┃┗┓
  ┗┛┗┛┛┗┗┛┗┛┻┗┛
`

// globals holds state shared by all commands.
type globals struct {
	configPath string
	logLevel   string
	tracePath  string

	cfg      *config.Config
	logger   *slog.Logger
	shutdown func()
}

// load resolves the configuration and installs the logger.
func (g *globals) load(stderr io.Writer) error {
	cfg, err := config.Resolve(g.configPath)
	if err != nil {
		return err
	}

	level := cfg.Level()
	if g.logLevel != "" {
		level, err = config.ParseLevel(g.logLevel)
		if err != nil {
			return err
		}
	}

	g.cfg = cfg
	g.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(g.logger)

	if g.tracePath != "" {
		return g.startTracing()
	}
	return nil
}

// startTracing installs a tracer provider that writes spans to tracePath.
func (g *globals) startTracing() error {
	f, err := os.Create(g.tracePath)
	if err != nil {
		return errors.New("E120").WithDetail("cannot create trace file " + g.tracePath).Wrap(err)
	}
	tp, err := telemetry.NewTracerProvider(f)
	if err != nil {
		f.Close()
		return err
	}
	otel.SetTracerProvider(tp)
	g.shutdown = func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			g.logger.Warn("trace shutdown failed", "error", err)
		}
		f.Close()
	}
	return nil
}

// close flushes and releases the tracer provider, if any.
func (g *globals) close() {
	if g.shutdown != nil {
		g.shutdown()
		g.shutdown = nil
	}
}

func main() {
	if os.Getenv("NO_COLOR") != "" {
		errors.DisableColors()
	}

	g := &globals{}
	err := newRootCmd(g).Execute()
	g.close()
	if err != nil {
		errors.Fprint(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(g *globals) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "djenesis",
		Short: "Bootstrap Django projects using a standard project template",
		Long: `djenesis bootstraps new Django projects from a project template.

Templates can be built in, local directories, git repositories, S3
prefixes or archives published by a djenesis catalog server:

  djenesis create mysite
  djenesis create mysite ./templates/corporate
  djenesis create mysite git+https://github.com/acme/django-template.git#v2
  djenesis create mysite s3://acme-templates/django
  djenesis create mysite http://templates.acme.internal:8088/templates/django.tar.gz`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load(cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Path to "+config.ConfigFileName+" (default: $"+config.EnvConfig+" or the user config dir)")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&g.tracePath, "trace", "", "Write OpenTelemetry spans as JSON to this file")

	rootCmd.AddCommand(
		createCmd(g),
		templatesCmd(g),
		serveCmd(g),
		describeCmd(g),
		configCmd(g),
		versionCmd(),
	)

	return rootCmd
}

// printBanner prints the djenesis banner.
func printBanner(w io.Writer) {
	fmt.Fprint(w, banner)
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
