package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/concentricsky/djenesis/internal/descriptor"
	"github.com/concentricsky/djenesis/internal/errors"
)

func describeCmd(g *globals) *cobra.Command {
	var (
		format  string
		file    string
		project string
		check   string
		output  string
	)

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Print or check a package descriptor",
		Long: `Print the djenesis package descriptor, the descriptor of a project
djenesis would generate, or one loaded from a file.

With --check, validate the descriptor and verify it against a source tree:
every script and package directory must exist and every package_data
pattern must match at least one file.

Examples:
  djenesis describe
  djenesis describe --format yaml
  djenesis describe --project mysite -o package.yaml
  djenesis describe --file package.json --check .`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var d descriptor.Descriptor
			switch {
			case file != "":
				loaded, err := descriptor.Load(file)
				if err != nil {
					return err
				}
				d = loaded
			case project != "":
				d = descriptor.ForProject(project, g.cfg.Author, g.cfg.AuthorEmail, g.cfg.URL)
			default:
				d = descriptor.Default()
			}

			out := cmd.OutOrStdout()
			if check != "" {
				return checkDescriptor(out, d, check)
			}
			if output != "" {
				if err := d.Save(output); err != nil {
					return err
				}
				success(out, "Wrote %s", output)
				return nil
			}
			return printDescriptor(out, d, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format (json, yaml)")
	cmd.Flags().StringVar(&file, "file", "", "Load the descriptor from a .json, .yaml or .yml file")
	cmd.Flags().StringVar(&project, "project", "", "Describe the project a create run would generate")
	cmd.Flags().StringVar(&check, "check", "", "Check the descriptor against this source tree")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the descriptor to a .json, .yaml or .yml file")
	cmd.MarkFlagsMutuallyExclusive("file", "project")
	cmd.MarkFlagsMutuallyExclusive("check", "output")

	return cmd
}

func printDescriptor(out io.Writer, d descriptor.Descriptor, format string) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case "json":
		data, err = d.EncodeJSON()
	case "yaml", "yml":
		data, err = d.EncodeYAML()
	default:
		return errors.New("E172").
			WithDetail("Unknown format '" + format + "'").
			WithSuggestion("Use --format json or --format yaml")
	}
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

func checkDescriptor(out io.Writer, d descriptor.Descriptor, dir string) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if err := d.Check(os.DirFS(dir)); err != nil {
		return err
	}
	success(out, "%s %s: %d scripts, %d packages OK", d.Name, d.Version, len(d.Scripts), len(d.Packages))
	fmt.Fprintln(out)
	return nil
}
