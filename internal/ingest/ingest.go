package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"arguard/internal/model"
	"arguard/internal/normalize"
)

// handleLine parses one live record and forwards it. Records with missing
// fields are forwarded with their sentinels; undecodable ones are dropped.
func handleLine(ctx context.Context, parser *Parser, line, session, source string, dropWhenFull bool, out chan<- model.Event, logger *slog.Logger) bool {
	obs, err := parser.ParseLine(line)
	if err != nil {
		var de *normalize.DataError
		if obs == nil || !errors.As(err, &de) {
			if logger != nil {
				logger.Warn(source+" parse error", "session", session, "err", err)
			}
			return false
		}
		if logger != nil {
			logger.Debug(source+" record incomplete", "session", session, "fields", de.Fields)
		}
	}
	if obs == nil {
		return false
	}
	return Send(ctx, out, model.Event{Session: session, Source: source, Observation: *obs}, dropWhenFull, logger)
}

// Send delivers ev, blocking until the engine accepts it unless dropWhenFull
// is set. It reports whether the event was delivered.
func Send(ctx context.Context, out chan<- model.Event, ev model.Event, dropWhenFull bool, logger *slog.Logger) bool {
	if dropWhenFull {
		return SendNonBlocking(ctx, out, ev, logger)
	}
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func SendNonBlocking(ctx context.Context, out chan<- model.Event, ev model.Event, logger *slog.Logger) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	default:
		if logger != nil {
			logger.Warn("event channel full, dropping event", "session", ev.Session, "timestamp", ev.Observation.Timestamp)
		}
		return false
	}
}

func BackoffSleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = 200 * time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
