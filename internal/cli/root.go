// Package cli provides the vaultfm command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vaultfm/vaultfm/internal/config"
	"github.com/vaultfm/vaultfm/internal/logging"
	"github.com/vaultfm/vaultfm/internal/version"
	"github.com/vaultfm/vaultfm/internal/workspace"
)

var (
	// Global flags
	cfgFile   string
	serverURL string
	token     string
	verbose   bool
	debug     bool
	assumeYes bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vaultfm",
		Short: "vaultfm - file manager for the vault storage backend",
		Long: `vaultfm ` + version.Version + ` - Built: ` + version.BuildTime + `
Browse, organize and upload files in a vault workspace.

Folders and files are addressed by id; the root folder is "0" (or "/").`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewDefaultCLILogger()
			if verbose || debug {
				logging.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", "", "Backend base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Bearer token (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Answer yes to confirmation prompts")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"
	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling operations...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)
	cancelFunc()
	return err
}

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newLsCmd())
	rootCmd.AddCommand(newTreeCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newMkdirCmd())
	rootCmd.AddCommand(newRmCmd())
	rootCmd.AddCommand(newMvCmd())
	rootCmd.AddCommand(newCpCmd())
	rootCmd.AddCommand(newRenameCmd())
	rootCmd.AddCommand(newFavCmd())
	rootCmd.AddCommand(newURLCmd())
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newShareCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newHealthCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context, cancelled on Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

// loadConfig loads the config file and applies the global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if token != "" {
		cfg.Token = token
	}
	if !verbose && !debug {
		logging.SetGlobalLevel(logging.ParseLevel(cfg.LogLevel))
	}
	return cfg, nil
}

// openWorkspace builds a workspace for commands that talk to the backend.
func openWorkspace(cmd *cobra.Command, opts workspace.Options) (*workspace.Workspace, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w (run 'vaultfm config init')", err)
	}
	if opts.Logger == nil {
		opts.Logger = GetLogger()
	}
	if opts.Confirmer == nil {
		opts.Confirmer = newConfirmer(cmd)
	}
	return workspace.New(cfg, opts)
}
