package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"arguard/internal/alerts"
	"arguard/internal/config"
	"arguard/internal/engine"
	"arguard/internal/metrics"
	"arguard/internal/model"
)

type EngineControl interface {
	Reset()
	Status() engine.Status
	Model() *model.Model
	Sessions() []engine.SessionInfo
	Session(id string) (engine.SessionInfo, bool)
}

type Server struct {
	cfg        *config.Manager
	metrics    *metrics.Store
	collectors *metrics.Collectors
	alerts     *alerts.Store
	engine     EngineControl
	logger     *slog.Logger
	version    string
}

type statusResponse struct {
	Status     string        `json:"status"`
	Time       string        `json:"time"`
	Version    string        `json:"version"`
	ConfigPath string        `json:"config_path"`
	Detector   string        `json:"detector"`
	Engine     engine.Status `json:"engine"`
	Alerts     int           `json:"alerts"`
	Ingest     ingestStatus  `json:"ingest"`
	API        apiStatus     `json:"api"`
}

type ingestStatus struct {
	REST      bool `json:"rest"`
	FileTail  bool `json:"file_tail"`
	TCPStream bool `json:"tcp_stream"`
	Kafka     bool `json:"kafka"`
}

type apiStatus struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

type modelResponse struct {
	Name     string          `json:"name"`
	Settings model.Settings  `json:"settings"`
	Classes  int             `json:"classes"`
	Itemsets int             `json:"itemsets"`
	Rules    []ruleView      `json:"rules"`
	Clusters []model.Cluster `json:"clusters,omitempty"`
}

type ruleView struct {
	Rule       string            `json:"rule"`
	Support    float64           `json:"support"`
	Confidence float64           `json:"confidence"`
	Bound      *model.DelayBound `json:"bound,omitempty"`
}

func NewServer(cfg *config.Manager, metricsStore *metrics.Store, collectors *metrics.Collectors, alertsStore *alerts.Store, eng EngineControl, logger *slog.Logger, version string) *Server {
	return &Server{
		cfg:        cfg,
		metrics:    metricsStore,
		collectors: collectors,
		alerts:     alertsStore,
		engine:     eng,
		logger:     logger,
		version:    version,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/alerts", s.handleAlerts)
	mux.HandleFunc("/sessions", s.handleSessions)
	mux.HandleFunc("/sessions/", s.handleSessions)
	mux.HandleFunc("/model", s.handleModel)
	mux.HandleFunc("/admin/clear", s.handleClear)
	mux.HandleFunc("/admin/reset", s.handleReset)
	if s.collectors != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.collectors.Registry, promhttp.HandlerOpts{}))
	}
	return mux
}

func Start(ctx context.Context, srv *Server) *http.Server {
	if srv == nil || srv.cfg == nil {
		return nil
	}
	logger := srv.logger
	current := srv.cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	httpServer := &http.Server{Addr: current.Addr, Handler: srv.Handler()}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	resp := statusResponse{
		Status:     "ok",
		Time:       time.Now().UTC().Format(time.RFC3339Nano),
		Version:    s.version,
		ConfigPath: s.cfg.Path(),
		Detector:   cfg.Detector.Name,
		Ingest: ingestStatus{
			REST:      cfg.Ingest.REST.Enabled,
			FileTail:  cfg.Ingest.FileTail.Enabled,
			TCPStream: cfg.Ingest.TCPStream.Enabled,
			Kafka:     cfg.Ingest.Kafka.Enabled,
		},
		API: apiStatus{Enabled: cfg.API.Enabled, Addr: cfg.API.Addr},
	}
	if s.engine != nil {
		resp.Engine = s.engine.Status()
		if !resp.Engine.Trained {
			resp.Status = "untrained"
		}
	}
	if s.alerts != nil {
		resp.Alerts = s.alerts.Total()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	sinceStr := r.URL.Query().Get("since")
	var list []model.Alert
	if sinceStr != "" {
		if ts, err := time.Parse(time.RFC3339, sinceStr); err == nil {
			list = s.alerts.Since(ts)
		} else {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
	} else {
		list = s.alerts.List(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": list,
		"count":  len(list),
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.engine == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/sessions"), "/")
	if id != "" {
		info, ok := s.engine.Session(id)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		resp := map[string]any{"session": info}
		if s.metrics != nil {
			if stats, ok := s.metrics.Get(id); ok {
				resp["stats"] = stats
			}
		}
		if s.alerts != nil {
			resp["alerts"] = s.alerts.ForSession(id)
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}
	list := s.engine.Sessions()
	resp := map[string]any{
		"sessions": list,
		"count":    len(list),
	}
	if s.metrics != nil {
		resp["stats"] = s.metrics.GetAll()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var m *model.Model
	if s.engine != nil {
		m = s.engine.Model()
	}
	if m == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"status": "untrained"})
		return
	}
	resp := modelResponse{
		Name:     m.Name,
		Settings: m.Settings,
		Classes:  len(m.Classes),
		Itemsets: len(m.Itemsets),
		Rules:    make([]ruleView, 0, len(m.Rules)),
		Clusters: m.Clusters,
	}
	for _, rule := range m.Rules {
		view := ruleView{Rule: rule.String(), Support: rule.Support, Confidence: rule.Confidence}
		if b, ok := m.DelayBound(rule); ok {
			view.Bound = &b
		}
		resp.Rules = append(resp.Rules, view)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, _ := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	var req struct {
		Target string `json:"target"`
	}
	_ = json.Unmarshal(body, &req)
	target := strings.ToLower(strings.TrimSpace(req.Target))
	if target == "" {
		target = "all"
	}
	switch target {
	case "all":
		if s.metrics != nil {
			s.metrics.Clear()
		}
		if s.alerts != nil {
			s.alerts.Clear()
		}
	case "alerts":
		if s.alerts != nil {
			s.alerts.Clear()
		}
	case "metrics", "stats":
		if s.metrics != nil {
			s.metrics.Clear()
		}
	default:
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleReset drops every live session so windows refill from scratch.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.engine != nil {
		s.engine.Reset()
	}
	if s.metrics != nil {
		s.metrics.Clear()
	}
	if s.alerts != nil {
		s.alerts.Clear()
	}
	if s.logger != nil {
		s.logger.Info("engine reset via api")
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
