// Package source resolves template references to filesystems.
//
// A reference may be:
//
//	django                                    built-in template
//	./templates/django, /srv/t, file:///srv/t local directory
//	git+https://host/repo.git#v2, git@host:r.git  git repository, optional #branch or #tag
//	s3://bucket/prefix                        every object below prefix
//	https://host/templates/django.tar.gz      gzip tarball, e.g. from the catalog server
//
// Remote sources are materialized into a temporary directory that the
// cleanup function returned by Open removes.
package source
