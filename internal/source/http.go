package source

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"

	"github.com/concentricsky/djenesis/internal/archive"
	"github.com/concentricsky/djenesis/internal/errors"
)

type httpSource struct {
	url    string
	client *http.Client
}

func (s *httpSource) Kind() string { return KindHTTP }
func (s *httpSource) Name() string {
	if u, err := url.Parse(s.url); err == nil {
		return baseName(u.Path)
	}
	return baseName(s.url)
}

func (s *httpSource) Open(ctx context.Context) (fs.FS, func(), error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, nil, errors.New("E150").WithDetail("invalid URL '" + s.url + "'").Wrap(err)
	}
	req.Header.Set("Accept", "application/gzip")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, errors.New("E153").WithDetail("GET " + s.url).Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, errors.New("E153").
			WithDetail(fmt.Sprintf("GET %s returned %s", s.url, resp.Status))
	}

	dir, cleanup, err := tempDir(KindHTTP)
	if err != nil {
		return nil, nil, err
	}
	if err := archive.Unpack(resp.Body, dir); err != nil {
		cleanup()
		return nil, nil, err
	}
	return os.DirFS(dir), cleanup, nil
}
