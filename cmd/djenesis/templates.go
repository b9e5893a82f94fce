package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/concentricsky/djenesis/internal/source"
	"github.com/concentricsky/djenesis/internal/templates"
)

func templatesCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates [template]",
		Short: "List built-in templates or describe one template",
		Long: `Without arguments, list the built-in project templates.

With a template reference, fetch the template and show its manifest:
description, variables with their defaults, and the files it contains.

Examples:
  djenesis templates
  djenesis templates django
  djenesis templates git+https://github.com/acme/django-template.git`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				return listTemplates(out)
			}

			src, err := source.Resolve(args[0], source.Options{
				S3Region:   g.cfg.S3.Region,
				S3Endpoint: g.cfg.S3.Endpoint,
				Logger:     g.logger,
			})
			if err != nil {
				return err
			}
			fsys, cleanup, err := src.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			t, err := templates.FromFS(src.Name(), fsys)
			if err != nil {
				return err
			}
			return describeTemplate(out, t, src.Kind())
		},
	}
	return cmd
}

func listTemplates(out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDESCRIPTION")
	for _, name := range templates.List() {
		t, err := templates.Get(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\n", name, t.Description)
	}
	return tw.Flush()
}

func describeTemplate(out io.Writer, t *templates.Template, kind string) error {
	fmt.Fprintf(out, "Name:        %s\n", t.Name)
	fmt.Fprintf(out, "Source:      %s\n", kind)
	if t.Description != "" {
		fmt.Fprintf(out, "Description: %s\n", t.Description)
	}

	if len(t.Manifest.Variables) > 0 {
		fmt.Fprintln(out)
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VARIABLE\tDEFAULT\tHELP")
		for _, v := range t.Manifest.Variables {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", v.Name, v.Default, v.Help)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	entries, err := t.Plan(templates.Config{ProjectName: "__project_name__", Vars: t.Manifest.Defaults()})
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Files:")
	for _, e := range entries {
		if e.Dir {
			continue
		}
		marker := " "
		if e.Render {
			marker = "*"
		}
		fmt.Fprintf(out, "  %s %s\n", marker, e.Target)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "* rendered with text/template")
	return nil
}
