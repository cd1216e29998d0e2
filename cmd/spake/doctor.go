package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/spake/internal/doctor"
	"github.com/example/spake/internal/pipeline"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor [project]",
		Short: "Check a project's sources, corpus, model and tokenizer resources",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			ws := pipeline.NewWorkspace(cfg)

			name := ""
			if len(args) > 0 {
				name = args[0]
			}

			d, err := ws.Resolve(name)
			if err != nil {
				return fmt.Errorf("doctor: %w", err)
			}

			dcfg := doctor.Config{
				CorpusPath:         d.CorpusPath,
				ModelPath:          d.ModelPath,
				TokenizerKind:      cfg.Tokenizer.Kind,
				SentencePieceModel: pipeline.ResolvePath(cfg.Paths.Workspace, cfg.Paths.TokenizerModel),
				Dictionary:         pipeline.ResolvePath(cfg.Paths.Workspace, cfg.Paths.Dictionary),
				Stopwords:          pipeline.ResolvePath(cfg.Paths.Workspace, cfg.Paths.Stopwords),
				Sources:            d.Sources,
				Encodings:          cfg.Corpus.Encodings,
			}

			result := doctor.Run(dcfg, cmd.OutOrStdout())
			if result.Failed() {
				for _, f := range result.Failures() {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), "doctor checks passed")
			return err
		},
	}
}
