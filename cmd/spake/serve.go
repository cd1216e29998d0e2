package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/spake/internal/ngram"
	"github.com/example/spake/internal/pipeline"
	"github.com/example/spake/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve [project]",
		Short: "Serve sentence generation over HTTP",
		Long: "Serve sentence generation over HTTP. The project model is loaded at startup\n" +
			"and again on POST /reload, training it first when the artifact is missing.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			cfg.Generate = pipeline.GenerateDefaults(cfg)

			name := ""
			if len(args) > 0 {
				name = args[0]
			}

			logger := slog.Default()
			holder := server.NewHolder(func(ctx context.Context) (*ngram.Model, error) {
				s, err := pipeline.Open(cfg, name, logger)
				if err != nil {
					return nil, err
				}
				return s.EnsureModel(ctx)
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("starting server", "addr", cfg.Server.ListenAddr, "project", name)

			return server.New(cfg, holder).WithLogger(logger).Start(ctx)
		},
	}
}
