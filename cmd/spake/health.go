package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/spake/internal/server"
)

func newHealthCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe a running spake server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := server.ProbeHTTP(addr); err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}

			_, err := fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "Server host:port")

	return cmd
}
