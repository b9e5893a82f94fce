package scaffold

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.opentelemetry.io/otel/attribute"

	"github.com/concentricsky/djenesis/internal/errors"
	"github.com/concentricsky/djenesis/internal/telemetry"
)

// VirtualenvDir is the virtualenv directory inside a new project.
const VirtualenvDir = "env"

// Runner runs an external command in dir.
type Runner func(ctx context.Context, dir, name string, args ...string) error

// ExecRunner runs commands with os/exec. The command output is included
// in the error when it fails.
func ExecRunner(ctx context.Context, dir, name string, args ...string) error {
	if !strings.ContainsRune(name, filepath.Separator) {
		if _, err := exec.LookPath(name); err != nil {
			return errors.New("E146").WithDetail("'" + name + "' is not in PATH")
		}
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(out.String())
		if msg == "" {
			return err
		}
		return fmt.Errorf("%w: %s", err, msg)
	}
	return nil
}

// gitInit creates a repository in dir and commits every file not ignored
// by the project's .gitignore.
func gitInit(ctx context.Context, dir, author, email string) (err error) {
	_, span := telemetry.StartSpan(ctx, "djenesis.post.git")
	defer func() { telemetry.EndSpan(span, err) }()

	repo, err := git.PlainInit(dir, false)
	if err == git.ErrRepositoryAlreadyExists {
		return errors.New("E144").WithDetail("git init: '" + dir + "' is already a repository")
	}
	if err != nil {
		return errors.New("E144").WithDetail("git init").Wrap(err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return errors.New("E144").WithDetail("git init").Wrap(err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return errors.New("E144").WithDetail("git add").Wrap(err)
	}

	if author == "" {
		author = "djenesis"
	}
	if email == "" {
		email = "djenesis@localhost"
	}
	_, err = wt.Commit("Initial commit from djenesis", &git.CommitOptions{
		Author: &object.Signature{Name: author, Email: email, When: time.Now()},
	})
	if err != nil {
		return errors.New("E144").WithDetail("git commit").Wrap(err)
	}
	return nil
}

// virtualenv creates VirtualenvDir with python and installs
// requirements.txt into it when the project has one.
func virtualenv(ctx context.Context, run Runner, dir, python string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "djenesis.post.virtualenv", attribute.String("python", python))
	defer func() { telemetry.EndSpan(span, err) }()

	if err := run(ctx, dir, python, "-m", "venv", VirtualenvDir); err != nil {
		if errors.HasCode(err, "E146") {
			return err
		}
		return errors.New("E144").WithDetail(python + " -m venv " + VirtualenvDir).Wrap(err)
	}

	if _, err := os.Stat(filepath.Join(dir, "requirements.txt")); err != nil {
		return nil
	}
	pip := filepath.Join(dir, VirtualenvDir, "bin", "pip")
	if runtime.GOOS == "windows" {
		pip = filepath.Join(dir, VirtualenvDir, "Scripts", "pip.exe")
	}
	if err := run(ctx, dir, pip, "install", "-r", "requirements.txt"); err != nil {
		return errors.New("E144").WithDetail("pip install -r requirements.txt").Wrap(err)
	}
	return nil
}
