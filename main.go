package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/CharlyTlelo/abc-exprezo-contratos/config"
	"github.com/CharlyTlelo/abc-exprezo-contratos/pkg/logger"
	"github.com/CharlyTlelo/abc-exprezo-contratos/service"
	"github.com/CharlyTlelo/abc-exprezo-contratos/storage"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "contratos",
	Short: "Contract modelling workflow: documents, reviews and status",
	Long: `contratos tracks the five-stage modelling pipeline of each contract:
PDF deliverables per section, reviewer decisions and the derived contract status.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to a YAML or TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// loadConfig reads the config file and initialises the logger. A missing
// default file falls back to the in-memory defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	logger.Init(&logger.Config{
		Level:  level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	slog.Debug("configuration loaded", "path", configPath, "store", cfg.Store.Driver, "blobs", cfg.Blobs.Driver)
	return cfg, nil
}

// openWorkflow opens the configured backends. The returned function closes
// them.
func openWorkflow(ctx context.Context, cfg *config.Config) (*service.Workflow, func(), error) {
	backend, err := storage.Open(&cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	blobs, err := storage.OpenBlobs(ctx, &cfg.Blobs)
	if err != nil {
		backend.Close()
		return nil, nil, fmt.Errorf("opening blob store: %w", err)
	}

	closeFn := func() {
		if err := backend.Close(); err != nil {
			slog.Warn("failed to close store", "error", err)
		}
	}
	return service.NewWorkflow(backend, blobs), closeFn, nil
}
