package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/gatepass/internal/config"
	"github.com/BrandonDHaskell/gatepass/internal/logging"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "gatepass",
		Short:         "GatePass - QR token issuance and gate admission",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")

	rootCmd.AddCommand(
		newServeCommand(),
		newWorkerCommand(),
		newScanCommand(),
		newIssueCommand(),
		newStatusCommand(),
		newGatesCommand(),
		newMigrateCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gatepass:", err)
		os.Exit(1)
	}
}

// setup loads the config and builds the process logger.  output overrides
// log.output when non-empty.
func setup(output string) (config.Config, *slog.Logger, func() error, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	if output != "" {
		cfg.Log.Output = output
	}

	logger, closer, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
		Debug:  cfg.Env == "dev" && cfg.Log.Level == "debug",
	})
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, closer, nil
}
