package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"arguard/internal/codec"
	"arguard/internal/ingest"
	"arguard/internal/training"
)

func newTrainCmd() *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Learn a model from a newline-delimited JSON corpus of normal traffic",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := loadConfig()
			if err != nil {
				return err
			}
			cfg := mgr.Get()
			logger := newLogger(cfg)
			if output == "" {
				output = cfg.Detector.ModelPath
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			trainer := training.New(cfg.Detector.Name, cfg.Detector.Settings, logger)
			m, summary, err := trainer.Train(ctx, ingest.FileOpener(input))
			if err != nil {
				return fmt.Errorf("train: %w", err)
			}
			if err := codec.Save(output, m); err != nil {
				return err
			}
			logger.Info("model saved", "path", output)

			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
				if err := store.SaveModel(ctx, m); err != nil {
					return fmt.Errorf("store model: %w", err)
				}
				logger.Info("model stored", "driver", cfg.Storage.Driver, "name", m.Name)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "Training corpus (.gz is decompressed)")
	cmd.Flags().StringVar(&output, "output", "", "Model path (defaults to detector.model_path)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
