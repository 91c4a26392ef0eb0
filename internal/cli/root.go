// Package cli holds the mindshift command-line entry points.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/p-n-ai/mindshift/internal/platform/config"
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:          "mindshift",
		Short:        "Course scraper, quiz and roadmap service",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional .env file loaded before the environment is read")
	cmd.AddCommand(newServeCmd(&envFile))
	cmd.AddCommand(newScrapeCmd(&envFile))
	return cmd
}

// loadConfig reads the optional .env file, then the environment.
func loadConfig(envFile string) (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
