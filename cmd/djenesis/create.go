package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/concentricsky/djenesis/internal/errors"
	"github.com/concentricsky/djenesis/internal/scaffold"
	"github.com/concentricsky/djenesis/internal/source"
	"github.com/concentricsky/djenesis/internal/telemetry"
)

type createOptions struct {
	name        string
	template    string
	dir         string
	description string
	author      string
	authorEmail string
	url         string
	vars        []string
	collision   string
	gitInit     bool
	virtualenv  bool
	dryRun      bool
	metricsFile string
	skipPrompts bool
}

func createCmd(g *globals) *cobra.Command {
	var opts createOptions

	cmd := &cobra.Command{
		Use:   "create <name> [template]",
		Short: "Create a new Django project",
		Long: `Create a new Django project with the specified name.

The name must be a valid Python identifier; it names both the project
directory and the project's Python package.

Built-in templates:
  django    Settings, URL routing, base templates and static files (default)
  minimal   A single settings module and one view

Examples:
  djenesis create mysite
  djenesis create mysite minimal
  djenesis create mysite --var db_engine=postgresql --git-init --virtualenv
  djenesis create mysite --template ./templates/corporate --dry-run`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.name = args[0]
			if len(args) == 2 {
				if cmd.Flags().Changed("template") && opts.template != args[1] {
					return errors.New("E145").
						WithDetail("Template given twice: '" + opts.template + "' and '" + args[1] + "'").
						WithSuggestion("Pass the template either as an argument or with --template")
				}
				opts.template = args[1]
			}
			if !cmd.Flags().Changed("git-init") {
				opts.gitInit = g.cfg.Post.GitInit
			}
			if !cmd.Flags().Changed("virtualenv") {
				opts.virtualenv = g.cfg.Post.Virtualenv
			}
			return runCreate(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), g, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.template, "template", "t", "", "Template reference (default: config or django)")
	cmd.Flags().StringVar(&opts.dir, "dir", ".", "Directory to create the project in")
	cmd.Flags().StringVarP(&opts.description, "description", "d", "", "Project description")
	cmd.Flags().StringVar(&opts.author, "author", "", "Project author (default: config)")
	cmd.Flags().StringVar(&opts.authorEmail, "author-email", "", "Author email (default: config)")
	cmd.Flags().StringVar(&opts.url, "url", "", "Project homepage (default: config)")
	cmd.Flags().StringArrayVar(&opts.vars, "var", nil, "Template variable as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.collision, "collision", "", "Policy for an existing directory: fail, skip, overwrite (default: config or fail)")
	cmd.Flags().BoolVar(&opts.gitInit, "git-init", false, "Initialize a git repository with an initial commit")
	cmd.Flags().BoolVar(&opts.virtualenv, "virtualenv", false, "Create a virtualenv in env/ and install requirements.txt")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Show the files that would be written")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics of this run to a textfile")
	cmd.Flags().BoolVarP(&opts.skipPrompts, "yes", "y", false, "Skip prompts and use defaults")

	return cmd
}

func runCreate(ctx context.Context, in io.Reader, out io.Writer, g *globals, opts createOptions) error {
	cfg := g.cfg

	overrides, err := parseVars(opts.vars)
	if err != nil {
		return err
	}
	if err := scaffold.ValidateName(opts.name); err != nil {
		return err
	}

	if opts.template == "" {
		opts.template = cfg.Template
	}
	if opts.collision == "" {
		opts.collision = cfg.Collision
	}
	if opts.author == "" {
		opts.author = cfg.Author
	}
	if opts.authorEmail == "" {
		opts.authorEmail = cfg.AuthorEmail
	}
	if opts.url == "" {
		opts.url = cfg.URL
	}

	printBanner(out)
	fmt.Fprintln(out, "  Creating a new Django project...")
	fmt.Fprintln(out)

	if !opts.skipPrompts && !opts.dryRun {
		if err := promptForConfig(in, out, &opts); err != nil {
			return err
		}
	}
	if opts.description == "" {
		opts.description = "A Django web application"
	}

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)

	info(out, "Creating project from '%s' template...", opts.template)
	res, err := scaffold.Bootstrap(ctx, scaffold.Options{
		Name:        opts.name,
		Dir:         opts.dir,
		Template:    opts.template,
		Description: opts.description,
		Author:      opts.author,
		AuthorEmail: opts.authorEmail,
		URL:         opts.url,
		Vars:        cfg.Variables,
		Overrides:   overrides,
		Collision:   opts.collision,
		Concurrency: cfg.Concurrency,
		DryRun:      opts.dryRun,
		GitInit:     opts.gitInit,
		Virtualenv:  opts.virtualenv,
		Python:      cfg.Post.Python,
		Source: source.Options{
			S3Region:   cfg.S3.Region,
			S3Endpoint: cfg.S3.Endpoint,
			Logger:     g.logger,
		},
		Metrics: metrics,
		Logger:  g.logger,
	})

	if opts.metricsFile != "" {
		if werr := telemetry.WriteTextfile(opts.metricsFile, reg); werr != nil {
			warn(out, "Could not write metrics to %s: %v", opts.metricsFile, werr)
		}
	}
	if err != nil {
		return err
	}

	if res.DryRun {
		printPlan(out, res)
		return nil
	}

	for _, w := range res.Warnings {
		warn(out, "%s", w)
	}

	fmt.Fprintln(out)
	success(out, "Created %s/ (%d rendered, %d copied, %d skipped in %s)",
		opts.name, res.Rendered, res.Copied, res.Skipped, res.Duration.Round(time.Millisecond))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  To get started:")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "    cd %s\n", relDir(res.Dir))
	if opts.virtualenv {
		fmt.Fprintf(out, "    source %s/bin/activate\n", scaffold.VirtualenvDir)
	} else {
		fmt.Fprintln(out, "    pip install -r requirements.txt")
	}
	fmt.Fprintln(out, "    python manage.py migrate")
	fmt.Fprintln(out, "    python manage.py runserver")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  Your site will be running at http://127.0.0.1:8000")
	fmt.Fprintln(out)

	return nil
}

// parseVars turns key=value flags into a map.
func parseVars(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, errors.New("E123").
				WithDetail("'" + pair + "' is not key=value").
				WithSuggestion("Use --var db_engine=postgresql")
		}
		out[k] = v
	}
	return out, nil
}

func promptForConfig(in io.Reader, out io.Writer, opts *createOptions) error {
	reader := bufio.NewReader(in)

	ask := func(label, current string) (string, error) {
		if current != "" {
			fmt.Fprintf(out, "? %s [%s]: ", label, current)
		} else {
			fmt.Fprintf(out, "? %s: ", label)
		}
		answer, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		if answer = strings.TrimSpace(answer); answer != "" {
			return answer, nil
		}
		return current, nil
	}

	var err error
	if opts.description, err = ask("Description", opts.description); err != nil {
		return err
	}
	if opts.author, err = ask("Author", opts.author); err != nil {
		return err
	}
	if opts.authorEmail, err = ask("Author email", opts.authorEmail); err != nil {
		return err
	}
	fmt.Fprintln(out)
	return nil
}

func printPlan(out io.Writer, res *scaffold.Result) {
	fmt.Fprintln(out)
	info(out, "Dry run: %s from '%s' (%s)", relDir(res.Dir), res.Template, res.SourceKind)
	fmt.Fprintln(out)
	for _, e := range res.Entries {
		action := "copy  "
		switch {
		case e.Dir:
			action = "mkdir "
		case e.Render:
			action = "render"
		}
		fmt.Fprintf(out, "    %s  %s  %s\n", action, e.Mode, e.Target)
	}
	fmt.Fprintln(out)
	info(out, "%d files would be rendered, %d copied", res.Rendered, res.Copied)
}

// relDir shortens dir relative to the working directory when possible.
func relDir(dir string) string {
	abs, err := filepath.Abs(".")
	if err != nil {
		return dir
	}
	if rel, err := filepath.Rel(abs, dir); err == nil && filepath.IsLocal(rel) {
		return rel
	}
	return dir
}
