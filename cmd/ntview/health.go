package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the API server is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}

		h, err := s.client.Health().Check(cmd.Context())
		if err != nil {
			return fmt.Errorf("checking health of %s: %w", s.cfg.Client.BaseURL, err)
		}

		return render(cmd.OutOrStdout(), h, keyValueTable(
			[2]any{"URL", s.cfg.Client.BaseURL},
			[2]any{"Status", h.Status},
		))
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
