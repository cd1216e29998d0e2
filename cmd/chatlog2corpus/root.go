package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/spake/internal/config"
	"github.com/example/spake/internal/pipeline"
	"github.com/example/spake/internal/server"
)

var (
	cfgFile   string
	activeCfg config.Config
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "chatlog2corpus <dir>",
		Short: "Extract one person's messages from a directory of chat exports",
		Long: "Extract one person's messages from a directory of chat exports.\n" +
			"The sorted, de-duplicated sentences are written to <dir>.txt next to the directory.\n" +
			"Select the speaker with --chatlog-handles and --chatlog-names.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}
			if err := loaded.Validate(); err != nil {
				return err
			}

			activeCfg = loaded

			lvl, err := server.ParseLogLevel(loaded.LogLevel)
			if err != nil {
				lvl = slog.LevelInfo
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// A missing or non-directory argument is a usage mistake, not a failure.
			if len(args) != 1 {
				return cmd.Usage()
			}
			if st, err := os.Stat(args[0]); err != nil || !st.IsDir() {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "not a directory: %s\n", args[0])
				return cmd.Usage()
			}

			res, err := pipeline.NewExtractor(activeCfg, slog.Default()).ExtractDir(args[0])
			if err != nil {
				return err
			}

			for _, fe := range res.Failed {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", fe.Path, fe.Err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Corpus merged to %s\n", res.Path)
			return err
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	return cmd
}
