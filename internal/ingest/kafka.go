package ingest

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/segmentio/kafka-go"

	"arguard/internal/config"
	"arguard/internal/model"
)

// StartKafka consumes records from a topic. Each partition is one session, as
// ordering only holds within a partition.
func StartKafka(ctx context.Context, cfg *config.Manager, parser *Parser, out chan<- model.Event, logger *slog.Logger) {
	current := cfg.Get().Ingest.Kafka
	if !current.Enabled {
		if logger != nil {
			logger.Info("kafka ingest disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("kafka ingest enabled", "brokers", current.Brokers, "topic", current.Topic, "group_id", current.GroupID)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  current.Brokers,
		Topic:    current.Topic,
		GroupID:  current.GroupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	go func() {
		defer reader.Close()
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if logger != nil {
					logger.Warn("kafka read error", "err", err)
				}
				continue
			}
			handleLine(ctx, parser, string(m.Value), kafkaSession(m), "kafka", cfg.Get().Ingest.DropWhenFull, out, logger)
		}
	}()
}

func kafkaSession(m kafka.Message) string {
	return "kafka:" + m.Topic + "/" + strconv.Itoa(m.Partition)
}
