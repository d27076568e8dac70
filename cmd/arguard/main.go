package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"arguard/internal/codec"
	"arguard/internal/config"
	"arguard/internal/logging"
	"arguard/internal/model"
	"arguard/internal/storage"
)

const version = "0.1.0"

var (
	configPath string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "arguard",
		Short: "Association rule intrusion detection for industrial control traffic",
		Long: `arguard learns association rules over sliding windows of discretized ICS
events, together with cause-to-effect timing bounds, and flags live traffic that
violates them.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(newTrainCmd(), newLiveCmd(), newServeCmd(), newInspectCmd(), newConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Manager, error) {
	if configPath == "" {
		return config.NewStaticManager(config.DefaultConfig()), nil
	}
	mgr, err := config.NewManager(config.ResolvePath(configPath))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return mgr, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	return logging.NewLogger(level)
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	store, err := storage.NewStore(cfg.Storage)
	if err != nil || store == nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	return store, nil
}

// loadModel reads the model file and falls back to the database. A missing
// model yields codec.ErrModelNotFound; a foreign one is an error.
func loadModel(ctx context.Context, cfg *config.Config, store storage.Store) (*model.Model, error) {
	m, err := codec.Load(cfg.Detector.ModelPath, cfg.Detector.Name)
	if err == nil || !errors.Is(err, codec.ErrModelNotFound) || store == nil {
		return m, err
	}
	m, serr := store.LoadModel(ctx, cfg.Detector.Name)
	if errors.Is(serr, storage.ErrNotFound) {
		return nil, err
	}
	return m, serr
}
