package ingest

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"arguard/internal/config"
	"arguard/internal/model"
)

const (
	tailReopenDelay = 500 * time.Millisecond
	tailPollDelay   = 200 * time.Millisecond
)

// StartFileTail follows every configured file as its own session.
func StartFileTail(ctx context.Context, cfg *config.Manager, parser *Parser, out chan<- model.Event, logger *slog.Logger) {
	current := cfg.Get().Ingest.FileTail
	if !current.Enabled {
		if logger != nil {
			logger.Info("file tail ingest disabled")
		}
		return
	}
	for _, path := range current.Files {
		t := &tailer{
			path:       path,
			session:    "file:" + path,
			startAtEnd: current.StartAtEnd,
			cfg:        cfg,
			parser:     parser,
			out:        out,
			logger:     logger,
		}
		if logger != nil {
			logger.Info("file tail ingest enabled", "path", path, "start_at_end", current.StartAtEnd)
		}
		go t.run(ctx)
	}
}

type tailer struct {
	path       string
	session    string
	startAtEnd bool
	cfg        *config.Manager
	parser     *Parser
	out        chan<- model.Event
	logger     *slog.Logger
}

func (t *tailer) run(ctx context.Context) {
	first := true
	for ctx.Err() == nil {
		f, err := os.Open(t.path)
		if err != nil {
			if t.logger != nil {
				t.logger.Warn("tail open failed", "path", t.path, "err", err)
			}
			if !BackoffSleep(ctx, tailReopenDelay) {
				return
			}
			continue
		}
		// Only the first open honors start_at_end; a truncated or rotated
		// file is read from the beginning.
		err = t.follow(ctx, f, first && t.startAtEnd)
		first = false
		_ = f.Close()
		if err != nil && !errors.Is(err, errTruncated) && t.logger != nil {
			t.logger.Warn("tail read error", "path", t.path, "err", err)
		}
	}
}

var errTruncated = errors.New("file truncated")

// follow reads complete lines from f until the context ends, the file
// shrinks below the read offset, or a read fails.
func (t *tailer) follow(ctx context.Context, f *os.File, seekEnd bool) error {
	var offset int64
	if seekEnd {
		pos, err := f.Seek(0, io.SeekEnd)
		if err == nil {
			offset = pos
		}
	}
	reader := bufio.NewReader(f)
	var partial []byte
	for {
		chunk, err := reader.ReadBytes('\n')
		offset += int64(len(chunk))
		partial = append(partial, chunk...)
		switch {
		case err == nil:
			handleLine(ctx, t.parser, string(partial), t.session, "file_tail", t.cfg.Get().Ingest.DropWhenFull, t.out, t.logger)
			partial = partial[:0]
		case errors.Is(err, io.EOF):
			if !BackoffSleep(ctx, tailPollDelay) {
				return ctx.Err()
			}
			if info, statErr := os.Stat(t.path); statErr == nil && info.Size() < offset {
				return errTruncated
			}
		default:
			return err
		}
	}
}
