package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/concentricsky/djenesis/internal/catalog"
	"github.com/concentricsky/djenesis/internal/telemetry"
)

func serveCmd(g *globals) *cobra.Command {
	var addr, root string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve templates over HTTP",
		Long: `Start a template catalog server.

The catalog serves the built-in templates and every subdirectory of
--root. Each template is available as a tarball that djenesis create
accepts as a template reference:

  djenesis serve --root /srv/templates
  djenesis create mysite http://localhost:8088/templates/corporate.tar.gz

Endpoints:
  GET /templates               JSON index
  GET /templates/{name}        template manifest
  GET /templates/{name}.tar.gz template archive
  GET /healthz                 health check
  GET /metrics                 Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("addr") {
				addr = g.cfg.Catalog.Addr
			}
			if !cmd.Flags().Changed("root") {
				root = g.cfg.Catalog.Root
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			srv := catalog.New(catalog.Options{
				Addr:     addr,
				Root:     root,
				Metrics:  telemetry.NewMetrics(reg),
				Gatherer: reg,
				Logger:   g.logger,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			success(cmd.OutOrStdout(), "Serving templates on %s", addr)
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: config or :8088)")
	cmd.Flags().StringVar(&root, "root", "", "Directory of additional templates, one per subdirectory")

	return cmd
}
