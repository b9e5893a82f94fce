// Package catalog serves project templates over HTTP.
//
// Routes:
//
//	GET /templates               JSON index of available templates
//	GET /templates/{name}        JSON description of one template
//	GET /templates/{name}.tar.gz gzip tarball, usable as a template reference
//	GET /healthz                 liveness probe
//	GET /metrics                 Prometheus metrics
//
// The catalog offers the built-in templates plus every subdirectory of the
// configured root. A directory named like a built-in template replaces it.
package catalog
