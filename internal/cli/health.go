package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaultfm/vaultfm/internal/api"
)

// newHealthCmd creates the 'health' command. It needs no token.
func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.ValidateForConnection(); err != nil {
				return err
			}
			client, err := api.NewClient(cfg, GetLogger())
			if err != nil {
				return err
			}
			h, err := client.Health(GetContext())
			if err != nil {
				return fmt.Errorf("backend unreachable: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %s\n", "server:", client.BaseURL())
			fmt.Fprintf(out, "%-10s %s\n", "status:", h.Status)
			fmt.Fprintf(out, "%-10s %s\n", "database:", h.Database)
			fmt.Fprintf(out, "%-10s %s\n", "storage:", h.Storage)
			fmt.Fprintf(out, "%-10s %s\n", "version:", h.Version)
			return nil
		},
	}
}
