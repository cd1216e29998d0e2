package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/spake/internal/store"
)

func newModelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Build, inspect and export n-gram models",
	}

	cmd.AddCommand(newModelBuildCmd())
	cmd.AddCommand(newModelInspectCmd())
	cmd.AddCommand(newModelVerifyCmd())
	cmd.AddCommand(newModelExportCmd())

	return cmd
}

func newModelBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build [project]",
		Short: "Train the model from the corpus artifact and save it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(args)
			if err != nil {
				return err
			}

			m, err := s.Build(cmd.Context())
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Model saved to %s (%d sentences, %d tokens, %d distinct)\n",
				s.Project.ModelPath, m.Stats.Sentences, m.Stats.Tokens, m.Stats.Vocab)
			return err
		},
	}
}

func newModelInspectCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect [project]",
		Short: "Describe the stored model artifact",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(args)
			if err != nil {
				return err
			}

			info, err := store.Inspect(s.Project.ModelPath)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			_, err = fmt.Fprintf(w,
				"path:              %s\nformat:            %s\nsize:              %d\nsentences:         %d\ntokens:            %d\nvocab:             %d\ninitial tokens:    %d\nbigram contexts:   %d\ntrigram contexts:  %d\ntop tokens:        %s\n",
				info.Path, info.Format, info.Size,
				info.Stats.Sentences, info.Stats.Tokens, info.Stats.Vocab,
				info.Initial, info.Bigram, info.Trigram,
				strings.Join(firstN(info.Stats.TopTokens, 20), " "),
			)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the description as JSON")

	return cmd
}

func newModelVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [project]",
		Short: "Load the model artifact and check every distribution",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(args)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(w, "verifying model: %s\n", s.Project.ModelPath); err != nil {
				return fmt.Errorf("write status: %w", err)
			}

			m, err := s.LoadModel()
			if err != nil {
				return fmt.Errorf("model verify failed: %w", err)
			}
			if _, err := fmt.Fprintln(w, "  ✓ artifact decodes"); err != nil {
				return fmt.Errorf("write status: %w", err)
			}

			if err := m.Validate(); err != nil {
				return fmt.Errorf("model verify failed: %w", err)
			}
			bigrams, trigrams := m.Contexts()
			if _, err := fmt.Fprintf(w, "  ✓ %d bigram and %d trigram distributions sum to 1\n", bigrams, trigrams); err != nil {
				return fmt.Errorf("write status: %w", err)
			}

			if m.Empty() {
				return errors.New("model verify failed: model has no initial tokens")
			}
			if _, err := fmt.Fprintf(w, "  ✓ %d initial tokens\n", len(m.Initial)); err != nil {
				return fmt.Errorf("write status: %w", err)
			}

			_, err = fmt.Fprintln(w, "model verification passed")
			return err
		},
	}
}

func newModelExportCmd() *cobra.Command {
	var (
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "export [project]",
		Short: "Write the model in another artifact format",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return errors.New("--out is required for export")
			}

			f, err := store.ParseFormat(format)
			if err != nil {
				return err
			}

			s, err := openSession(args)
			if err != nil {
				return err
			}

			m, err := s.LoadModel()
			if err != nil {
				return err
			}

			if err := store.SaveAs(out, m, f); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Model exported to %s (%s)\n", out, f)
			return err
		},
	}

	cmd.Flags().StringVar(&format, "format", string(store.FormatSQLite), "Export format (binary|sqlite)")
	cmd.Flags().StringVar(&out, "out", "", "Destination path")

	return cmd
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
