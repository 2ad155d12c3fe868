package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/raykavin/stoploss/pkg/config"
	"github.com/raykavin/stoploss/pkg/core"
	"github.com/raykavin/stoploss/pkg/logger"
	zerologger "github.com/raykavin/stoploss/pkg/logger/zerolog"
	"github.com/raykavin/stoploss/pkg/storage"
)

const (
	logDateLayout = "2006-01-02 15:04:05"
	version       = "1.0.0"
)

var configFile string

func main() {
	// Create root command
	rootCmd := &cobra.Command{
		Use:     "stoploss",
		Short:   "Calculate stop-loss prices for stock positions",
		Version: version,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file")

	// Add commands
	rootCmd.AddCommand(buildCalculateCmd())
	rootCmd.AddCommand(buildHistoryCmd())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("stoploss " + version)
		},
	})

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(configFile)
}

func initLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := zerologger.New(cfg.LogLevel, logDateLayout, true, false)
	if err != nil {
		return nil, fmt.Errorf("cannot initialize logger: %w", err)
	}
	return log, nil
}

// openHistory builds the price history store configured in cfg. File-backed
// backends get their parent directory created on demand.
func openHistory(cfg *config.Config) (core.History, error) {
	switch cfg.StorageBackend {
	case "memory":
		return storage.NewFromMemory()
	case "buntdb":
		if err := os.MkdirAll(filepath.Dir(cfg.StoragePath), 0o755); err != nil {
			return nil, err
		}
		return storage.NewFromFile(cfg.StoragePath)
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.StoragePath), 0o755); err != nil {
			return nil, err
		}
		return storage.FromSQLite(cfg.StoragePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
