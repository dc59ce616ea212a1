// Package cli contains the dreamlog command tree.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	appconfig "github.com/kalinpl/dreamlog/internal/app/config"
	infraconfig "github.com/kalinpl/dreamlog/internal/infrastructure/config"
)

// globalConfig holds the loaded configuration for all commands
var globalConfig appconfig.Config

// globalLogger is shared by all commands
var globalLogger *Logger

// NewRoot builds the dreamlog command tree.
func NewRoot(version string) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "dreamlog",
		Short:   "DreamLog journal processing pipeline",
		Long:    "DreamLog persists journal entries and processes them through\nan asynchronous AI pipeline: text analysis, then image generation.",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load configuration before any command runs
			// Priority: ENV > dreamlog.yaml > defaults
			path := configPath
			if path == "" {
				path = os.Getenv("DREAMLOG_CONFIG")
			}
			if path == "" {
				path = "dreamlog.yaml"
			}

			cfg, err := infraconfig.Load(path)
			if err != nil {
				return err
			}
			globalConfig = cfg
			globalLogger = NewLogger(LogLevelFromString(cfg.LogLevel()), os.Stderr)
			return nil
		},
		RunE: func(c *cobra.Command, _ []string) error { return c.Help() },
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to dreamlog.yaml")

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newStatusCmd())
	return cmd
}
