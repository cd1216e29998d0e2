package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/spake/internal/pipeline"
)

func newGenerateCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "generate [project]",
		Short: "Print sentences sampled from the project model",
		Long: "Print sentences sampled from the project model. The model is loaded\n" +
			"from the project's artifact, or trained from its corpus when no artifact exists.\n" +
			"Use --order, --policy and --seed to control the walk.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be >= 1, got %d", count)
			}

			s, err := openSession(args)
			if err != nil {
				return err
			}

			sentences, err := s.Generate(cmd.Context(), pipeline.GenerateDefaults(activeCfg), count)
			if err != nil {
				return err
			}

			for _, sent := range sentences {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), sent); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of sentences to print")

	return cmd
}
