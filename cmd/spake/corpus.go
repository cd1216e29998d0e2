package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/spake/internal/pipeline"
)

func newCorpusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Normalize and merge corpus sources",
	}

	cmd.AddCommand(newCorpusNormalizeCmd())
	cmd.AddCommand(newCorpusMergeCmd())
	cmd.AddCommand(newCorpusStatsCmd())

	return cmd
}

func newCorpusNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <file>",
		Short: "Print the normalized lines of one raw corpus file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			out, err := pipeline.NewNormalizer(cfg).NormalizeFile(args[0])
			if err != nil {
				return err
			}
			if out == "" {
				return nil
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
}

func newCorpusMergeCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "merge [project]",
		Short: "Normalize every project source into the corpus artifact",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(args)
			if err != nil {
				return err
			}
			s.Strict = strict

			report, err := s.MergeCorpus(cmd.Context())
			for _, fe := range report.Failed {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", fe.Path, fe.Err)
			}
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Corpus merged to %s (%d lines from %d files)\n",
				report.Path, report.Lines, report.Files)
			return err
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Fail instead of skipping sources that cannot be decoded")

	return cmd
}

func newCorpusStatsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats [project]",
		Short: "Count lines and characters in the corpus artifact",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(args)
			if err != nil {
				return err
			}

			st, err := s.CorpusStats()
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}

			w := cmd.OutOrStdout()
			_, err = fmt.Fprintf(w, "corpus:  %s\nlines:   %d\nchars:   %d\nbytes:   %d\nlongest: %d\n",
				st.Path, st.Lines, st.Chars, st.Bytes, st.Longest)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print stats as JSON")

	return cmd
}
