package cli

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vaultfm/vaultfm/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}
	cmd.AddCommand(newConfigInitCmd(), newConfigShowCmd(), newConfigPathCmd())
	return cmd
}

func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactively create the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return fmt.Errorf("failed to load existing config: %w", err)
			}

			out := cmd.OutOrStdout()
			reader := bufio.NewReader(cmd.InOrStdin())

			fmt.Fprintln(out, "vaultfm configuration")
			fmt.Fprintln(out, "=====================")
			fmt.Fprintln(out)

			if cfg.ServerURL, err = promptString(reader, out, "Server URL", cfg.ServerURL); err != nil {
				return err
			}
			hint := "Bearer token"
			if cfg.Token != "" {
				hint = fmt.Sprintf("Bearer token (empty keeps %s)", cfg.RedactedToken())
			}
			tok, err := promptSecret(reader, out, hint)
			if err != nil {
				return err
			}
			if tok != "" {
				cfg.Token = tok
			}
			if cfg.LogLevel, err = promptString(reader, out, "Log level", cfg.LogLevel); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nConfiguration saved to %s\n", path)
			return nil
		},
	}
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-28s %s\n", "server url:", cfg.ServerURL)
			fmt.Fprintf(out, "%-28s %s\n", "token:", cfg.RedactedToken())
			fmt.Fprintf(out, "%-28s %s\n", "user:", orNone(cfg.UserID()))
			fmt.Fprintf(out, "%-28s %s\n", "log level:", cfg.LogLevel)
			fmt.Fprintf(out, "%-28s %d\n", "upload max size:", cfg.Upload.MaxSizeBytes)
			fmt.Fprintf(out, "%-28s %d\n", "upload single-shot below:", cfg.Upload.SingleShotThresholdBytes)
			fmt.Fprintf(out, "%-28s %d\n", "upload chunk size:", cfg.Upload.ChunkSizeBytes)
			fmt.Fprintf(out, "%-28s %t\n", "scan polling:", cfg.Poller.Enabled)
			fmt.Fprintf(out, "%-28s %s\n", "scan poll interval:", cfg.Poller.Interval)
			return nil
		},
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(cmd.ErrOrStderr(), "(file does not exist yet, run 'vaultfm config init')")
			}
			return nil
		},
	}
}
