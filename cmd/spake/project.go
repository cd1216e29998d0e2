package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/example/spake/internal/pipeline"
	"github.com/example/spake/internal/project"
)

func newProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Create and select projects",
	}

	cmd.AddCommand(newProjectNewCmd())
	cmd.AddCommand(newProjectShowCmd())
	cmd.AddCommand(newProjectListCmd())
	cmd.AddCommand(newProjectUseCmd())

	return cmd
}

func newProjectNewCmd() *cobra.Command {
	var (
		name   string
		asYAML bool
	)

	cmd := &cobra.Command{
		Use:   "new <source>...",
		Short: "Create a project over corpus files or directories and select it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			ws := pipeline.NewWorkspace(cfg)
			if asYAML {
				ws.Format = "yaml"
			}
			if err := ws.Ensure(); err != nil {
				return err
			}

			if name == "" {
				abs, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				name = filepath.Base(abs)
			}

			d, err := ws.Create(name, args)
			if err != nil {
				return err
			}
			if _, err := ws.Use(d.Name); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "created project %s (corpus %s, model %s)\n", d.Name, d.CorpusPath, d.ModelPath)
			return err
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Project name (default: base name of the first source)")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Store the descriptor as YAML instead of JSON")

	return cmd
}

func newProjectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [project]",
		Short: "Print a project descriptor",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(args)
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(s.Project)
			if err != nil {
				return err
			}

			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func newProjectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects; the selected one is marked with *",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			ws := pipeline.NewWorkspace(cfg)

			names, err := ws.List()
			if err != nil {
				return err
			}

			settings, err := ws.LoadSettings()
			if err != nil {
				return err
			}

			for _, n := range names {
				mark := " "
				if n == settings.Recent {
					mark = "*"
				}
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", mark, n); err != nil {
					return err
				}
			}

			return nil
		},
	}
}

func newProjectUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <project>",
		Short: "Select the project used when none is named",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			var d project.Descriptor
			if d, err = pipeline.NewWorkspace(cfg).Use(args[0]); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "using project %s\n", d.Name)
			return err
		},
	}
}
