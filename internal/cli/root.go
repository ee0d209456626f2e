package cli

import (
	"context"

	"github.com/spf13/cobra"

	"contextkeeper/internal/config"
	"contextkeeper/pkg/logger"
)

// GlobalFlags are the persistent root flags.
type GlobalFlags struct {
	ConfigPath string
	Verbose    bool
	Quiet      bool
}

type contextKey struct{}

// NewRootCmd creates the contextkeeper root command.
func NewRootCmd() *cobra.Command {
	var flags GlobalFlags

	rootCmd := &cobra.Command{
		Use:   "contextkeeper",
		Short: "contextkeeper - conversation context compaction",
		Long: `contextkeeper keeps an agent conversation inside the model's context window.
It collapses duplicated file contents, hides the middle of long histories
when needed, and keeps an edit log per task that can be rolled back.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}

			configPath := flags.ConfigPath
			if configPath == "" {
				var err error
				configPath, err = config.DefaultConfigPath()
				if err != nil {
					return err
				}
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			logLevel := cfg.Log.Level
			if flags.Verbose {
				logLevel = "debug"
			}
			if flags.Quiet {
				logLevel = "error"
			}
			if err := logger.Init(logger.LogConfig{
				Level:  logLevel,
				Format: cfg.Log.Format,
				File:   cfg.Log.File,
			}); err != nil {
				return err
			}

			cliCtx := NewCLIContext(cfg, configPath, flags.Verbose, flags.Quiet)
			cmd.SetContext(context.WithValue(cmd.Context(), contextKey{}, cliCtx))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.ConfigPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "quiet mode")

	rootCmd.AddCommand(NewVersionCmd())
	rootCmd.AddCommand(NewViewCmd())
	rootCmd.AddCommand(NewShouldCompactCmd())
	rootCmd.AddCommand(NewTelemetryCmd())
	rootCmd.AddCommand(NewRollbackCmd())
	rootCmd.AddCommand(NewHistoryCmd())
	rootCmd.AddCommand(NewConfigCmd())

	return rootCmd
}

// Execute runs rootCmd and closes the storage opened by the executed
// command, also when the command failed.
func Execute(rootCmd *cobra.Command) error {
	cmd, err := rootCmd.ExecuteC()
	if cmd == nil {
		return err
	}
	if cliCtx := GetCLIContext(cmd); cliCtx != nil {
		if closeErr := cliCtx.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

// GetCLIContext returns the context set up by the root command.
func GetCLIContext(cmd *cobra.Command) *CLIContext {
	ctx := cmd.Context()
	if ctx == nil {
		return nil
	}
	cliCtx, ok := ctx.Value(contextKey{}).(*CLIContext)
	if !ok {
		return nil
	}
	return cliCtx
}
