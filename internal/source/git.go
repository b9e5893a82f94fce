package source

import (
	"context"
	"io/fs"
	"log/slog"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/concentricsky/djenesis/internal/errors"
)

type gitSource struct {
	url string
	rev string
	log *slog.Logger
}

func (s *gitSource) Kind() string { return KindGit }
func (s *gitSource) Name() string { return baseName(s.url) }

func (s *gitSource) Open(ctx context.Context) (fs.FS, func(), error) {
	dir, cleanup, err := tempDir(KindGit)
	if err != nil {
		return nil, nil, err
	}

	s.log.Debug("cloning template", "url", s.url, "rev", s.rev, "dir", dir)

	// Try rev as a branch first, then as a tag.
	refs := []plumbing.ReferenceName{""}
	if s.rev != "" {
		refs = []plumbing.ReferenceName{
			plumbing.NewBranchReferenceName(s.rev),
			plumbing.NewTagReferenceName(s.rev),
		}
	}

	for i, ref := range refs {
		_, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
			URL:           s.url,
			ReferenceName: ref,
			SingleBranch:  true,
			Depth:         1,
		})
		if err == nil {
			return os.DirFS(dir), cleanup, nil
		}
		if i < len(refs)-1 && ctx.Err() == nil {
			os.RemoveAll(dir)
			if err := os.MkdirAll(dir, 0755); err != nil {
				cleanup()
				return nil, nil, err
			}
			continue
		}
		break
	}
	cleanup()

	if s.rev != "" && ctx.Err() == nil {
		return nil, nil, errors.New("E151").
			WithDetail("'" + s.rev + "' is neither a branch nor a tag of " + s.url).
			Wrap(err)
	}
	return nil, nil, errors.New("E151").WithDetail("cloning " + s.url).Wrap(err)
}
