package ingest

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/google/uuid"

	"arguard/internal/config"
	"arguard/internal/model"
)

// StartTCPStream accepts newline-delimited records. Every connection is a
// session of its own.
func StartTCPStream(ctx context.Context, cfg *config.Manager, parser *Parser, out chan<- model.Event, logger *slog.Logger) {
	current := cfg.Get().Ingest.TCPStream
	if !current.Enabled {
		if logger != nil {
			logger.Info("tcp stream ingest disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("tcp stream ingest enabled", "addr", current.Addr)
	}
	ln, err := net.Listen("tcp", current.Addr)
	if err != nil {
		if logger != nil {
			logger.Error("tcp stream listen error", "err", err)
		}
		return
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				if logger != nil {
					logger.Warn("tcp stream accept error", "err", err)
				}
				continue
			}
			go handleTCPStreamConn(ctx, conn, cfg, parser, out, logger)
		}
	}()
}

func handleTCPStreamConn(ctx context.Context, conn net.Conn, cfg *config.Manager, parser *Parser, out chan<- model.Event, logger *slog.Logger) {
	defer conn.Close()
	session := "tcp:" + uuid.NewString()
	if logger != nil {
		logger.Info("tcp stream session opened", "session", session, "remote", conn.RemoteAddr().String())
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 8192), maxRecordSize)
	for scanner.Scan() {
		handleLine(ctx, parser, scanner.Text(), session, "tcp_stream", cfg.Get().Ingest.DropWhenFull, out, logger)
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
	if err := scanner.Err(); err != nil && logger != nil {
		logger.Warn("tcp stream scanner error", "session", session, "err", err)
	}
}
