package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"arguard/internal/config"
	"arguard/internal/model"
	"arguard/internal/normalize"
)

const defaultRESTSession = "rest"

type RESTServer struct {
	cfg    *config.Manager
	out    chan<- model.Event
	logger *slog.Logger
}

func NewRESTServer(cfg *config.Manager, out chan<- model.Event, logger *slog.Logger) *RESTServer {
	return &RESTServer{cfg: cfg, out: out, logger: logger}
}

func (s *RESTServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

func StartREST(ctx context.Context, cfg *config.Manager, out chan<- model.Event, logger *slog.Logger) *http.Server {
	current := cfg.Get().Ingest.REST
	if !current.Enabled {
		if logger != nil {
			logger.Info("rest ingest disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("rest ingest enabled", "addr", current.Addr)
	}
	server := NewRESTServer(cfg, out, logger)
	httpServer := &http.Server{Addr: current.Addr, Handler: server.Handler()}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("rest ingest server error", "err", err)
			}
		}
	}()
	return httpServer
}

// handleEvents accepts one record or an array of records. Records of one
// request are forwarded in order to the session named by the "session" query
// parameter.
func (s *RESTServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 2<<20))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	trim := bytes.TrimSpace(body)
	if len(trim) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var list []map[string]any
	if trim[0] == '[' {
		if err := json.Unmarshal(trim, &list); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
	} else {
		var obj map[string]any
		if err := json.Unmarshal(trim, &obj); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		list = append(list, obj)
	}

	session := r.URL.Query().Get("session")
	if session == "" {
		session = defaultRESTSession
	}
	dropWhenFull := s.cfg.Get().Ingest.DropWhenFull
	accepted, incomplete, dropped := 0, 0, 0
	for _, obj := range list {
		obs, err := normalize.Record(obj)
		if err != nil {
			var de *normalize.DataError
			if !errors.As(err, &de) {
				dropped++
				continue
			}
			incomplete++
			if s.logger != nil {
				s.logger.Debug("rest record incomplete", "session", session, "fields", de.Fields)
			}
		}
		ev := model.Event{Session: session, Source: "rest", Observation: obs}
		if !Send(r.Context(), s.out, ev, dropWhenFull, s.logger) {
			dropped++
			continue
		}
		accepted++
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"session":    session,
		"accepted":   accepted,
		"incomplete": incomplete,
		"dropped":    dropped,
	})
}
