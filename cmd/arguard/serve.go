package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"arguard/internal/alerts"
	"arguard/internal/api"
	"arguard/internal/codec"
	"arguard/internal/config"
	"arguard/internal/engine"
	"arguard/internal/ingest"
	"arguard/internal/metrics"
	"arguard/internal/model"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the live detector on the configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := loadConfig()
			if err != nil {
				return err
			}
			cfg := mgr.Get()
			logger := newLogger(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			metricStore := metrics.NewStore(cfg.Metrics.StoreLimit)
			alertStore := alerts.NewStore(cfg.Alerts.StoreLimit)
			collectors := metrics.NewCollectors(nil)
			eng := engine.NewEngine(cfg, logger, metricStore, collectors, alertStore, store)

			m, err := loadModel(ctx, cfg, store)
			switch {
			case err == nil:
				eng.SetModel(m)
			case errors.Is(err, codec.ErrModelNotFound):
				logger.Warn("no model found, running untrained", "path", cfg.Detector.ModelPath)
			default:
				return err
			}
			if cfg.Detector.WatchModel {
				onLoad := func(m *model.Model) { eng.SetModel(m) }
				onError := func(err error) { logger.Error("model reload failed", "err", err) }
				if err := codec.Watch(ctx, cfg.Detector.ModelPath, cfg.Detector.Name, onLoad, onError); err != nil {
					return err
				}
			}
			if mgr.Path() != "" {
				go mgr.Watch(3*time.Second, func(next *config.Config) {
					eng.UpdateConfig(next)
					logger.Info("config reloaded", "path", mgr.Path())
				}, func(err error) {
					logger.Warn("config reload failed", "err", err)
				}, ctx.Done())
			}

			events := make(chan model.Event, cfg.Ingest.ChannelBuffer)
			eng.Start(ctx, events)

			parser := ingest.NewParser()
			ingest.StartFileTail(ctx, mgr, parser, events, logger)
			ingest.StartTCPStream(ctx, mgr, parser, events, logger)
			ingest.StartKafka(ctx, mgr, parser, events, logger)
			ingest.StartREST(ctx, mgr, events, logger)

			srv := api.NewServer(mgr, metricStore, collectors, alertStore, eng, logger, version)
			api.Start(ctx, srv)

			logger.Info("arguard started", "version", version, "detector", cfg.Detector.Name)
			<-ctx.Done()
			logger.Info("arguard stopping")
			return nil
		},
	}
}
