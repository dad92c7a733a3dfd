// Package cli defines the cobra command tree for leadflow.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/leadflow-api/pkg/config"
	"github.com/noah-isme/leadflow-api/pkg/logger"
)

var flagDriver string

// NewRootCmd creates the root cobra command with global flags.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "leadflow",
		Short:         "Lead management API for a training institute",
		Long:          "Serve the lead management HTTP API or populate the configured store with sample leads.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagDriver, "driver", "", "override PERSISTENCE_DRIVER (memory|redis|postgres|sqlite)")

	root.AddCommand(
		newServeCmd(),
		newSeedCmd(),
	)

	return root
}

// loadConfig reads configuration and applies command line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if flagDriver != "" {
		switch flagDriver {
		case config.DriverMemory, config.DriverRedis, config.DriverPostgres, config.DriverSQLite:
			cfg.Persistence.Driver = flagDriver
		default:
			return nil, fmt.Errorf("unsupported driver %q", flagDriver)
		}
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logr, nil
}
