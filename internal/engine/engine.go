package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"arguard/internal/alerts"
	"arguard/internal/config"
	"arguard/internal/metrics"
	"arguard/internal/model"
	"arguard/internal/storage"
)

// Engine routes events to one Session per stream. All sessions share the
// currently loaded model.
type Engine struct {
	logger     *slog.Logger
	metrics    *metrics.Store
	collectors *metrics.Collectors
	alerts     *alerts.Store
	store      storage.Store
	cfg        atomic.Value
	model      atomic.Pointer[model.Model]
	sessions   map[string]*sessionState
	mu         sync.Mutex
	started    time.Time
	cooldown   *Cooldown
}

type sessionState struct {
	mu       sync.Mutex
	session  *Session
	lastSeen time.Time
}

// SessionInfo describes a live session.
type SessionInfo struct {
	ID       string          `json:"id"`
	Ready    bool            `json:"ready"`
	Window   int             `json:"window"`
	Width    int             `json:"width"`
	Distinct int             `json:"distinct"`
	Labels   []string        `json:"labels,omitempty"`
	LastSeen time.Time       `json:"last_seen"`
	Model    string          `json:"model"`
	Mode     model.LabelMode `json:"mode"`
}

// Status summarizes the engine for the API.
type Status struct {
	Trained  bool      `json:"trained"`
	Model    string    `json:"model,omitempty"`
	Rules    int       `json:"rules"`
	Classes  int       `json:"classes"`
	Sessions int       `json:"sessions"`
	Started  time.Time `json:"started"`
}

func NewEngine(cfg *config.Config, logger *slog.Logger, metricsStore *metrics.Store, collectors *metrics.Collectors, alertsStore *alerts.Store, store storage.Store) *Engine {
	e := &Engine{
		logger:     logger,
		metrics:    metricsStore,
		collectors: collectors,
		alerts:     alertsStore,
		store:      store,
		sessions:   make(map[string]*sessionState),
		started:    time.Now().UTC(),
		cooldown:   NewCooldown(),
	}
	e.cfg.Store(cfg)
	return e
}

func (e *Engine) UpdateConfig(cfg *config.Config) {
	e.cfg.Store(cfg)
}

func (e *Engine) config() *config.Config {
	if v := e.cfg.Load(); v != nil {
		return v.(*config.Config)
	}
	return config.DefaultConfig()
}

// SetModel swaps the model and drops every session.
func (e *Engine) SetModel(m *model.Model) {
	e.model.Store(m)
	e.Reset()
	if m != nil {
		e.collectors.SetModelRules(len(m.Rules))
		if e.logger != nil {
			e.logger.Info("model loaded", "name", m.Name, "mode", string(m.Settings.Mode), "rules", len(m.Rules), "classes", len(m.Classes))
		}
	}
}

func (e *Engine) Model() *model.Model {
	return e.model.Load()
}

func (e *Engine) Start(ctx context.Context, in <-chan model.Event) {
	go func() {
		for {
			select {
			case ev, ok := <-in:
				if !ok {
					return
				}
				e.ProcessEvent(ev)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// ProcessEvent evaluates ev in its session. Without a model every event is
// Insufficient.
func (e *Engine) ProcessEvent(ev model.Event) model.Verdict {
	m := e.model.Load()
	if m == nil {
		return model.Verdict{Status: model.StatusInsufficient, Detail: "no model loaded"}
	}
	if ev.Session == "" {
		ev.Session = "default"
	}
	cfg := e.config()
	st, err := e.getSession(ev.Session, m, cfg.Detector.MaxSessions)
	if err != nil {
		if e.logger != nil {
			e.logger.Error("session create failed", "session", ev.Session, "err", err)
		}
		return model.Verdict{Status: model.StatusInsufficient, Detail: err.Error()}
	}

	st.mu.Lock()
	verdict := st.session.Observe(ev.Observation)
	st.lastSeen = time.Now().UTC()
	st.mu.Unlock()

	if e.metrics != nil {
		e.metrics.Update(ev.Session, verdict)
	}
	e.collectors.ObserveVerdict(verdict)
	if verdict.IsAlert() {
		e.recordAlert(cfg, m, ev, verdict)
	}
	return verdict
}

func (e *Engine) recordAlert(cfg *config.Config, m *model.Model, ev model.Event, v model.Verdict) {
	alert := model.Alert{
		ID:             uuid.NewString(),
		Timestamp:      time.Now().UTC(),
		EventTimestamp: ev.Observation.Timestamp,
		Session:        ev.Session,
		Detector:       m.Name,
		Reason:         v.Reason,
		Detail:         v.Detail,
		Label:          v.Label,
		Rule:           v.Rule,
		Context:        map[string]string{"source": ev.Source, "mode": string(m.Settings.Mode)},
	}
	if e.alerts != nil {
		e.alerts.Add(alert)
	}
	if !e.cooldown.Allow(ev.Session, v.Reason, cfg.Detector.AlertCooldown) {
		return
	}
	if e.logger != nil {
		attrs := []any{
			"session", alert.Session,
			"reason", string(alert.Reason),
			"label", string(alert.Label),
			"timestamp", alert.EventTimestamp,
		}
		if alert.Rule != nil {
			attrs = append(attrs, "rule", alert.Rule.String())
		}
		e.logger.Warn("alert triggered", attrs...)
	}
	if e.store != nil {
		if err := e.store.SaveAlert(context.Background(), alert); err != nil && e.logger != nil {
			e.logger.Error("alert persist failed", "id", alert.ID, "err", err)
		}
	}
}

func (e *Engine) Reset() {
	e.mu.Lock()
	e.sessions = make(map[string]*sessionState)
	e.mu.Unlock()
	e.cooldown.Reset()
	e.collectors.SetSessions(0)
}

func (e *Engine) getSession(id string, m *model.Model, maxSessions int) (*sessionState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.sessions[id]; ok && st.session.model == m {
		return st, nil
	}
	s, err := NewSession(id, m)
	if err != nil {
		return nil, err
	}
	if maxSessions > 0 && len(e.sessions) >= maxSessions {
		e.evictIdleLocked()
	}
	st := &sessionState{session: s, lastSeen: time.Now().UTC()}
	e.sessions[id] = st
	e.collectors.SetSessions(len(e.sessions))
	return st, nil
}

func (e *Engine) evictIdleLocked() {
	var oldestID string
	var oldest time.Time
	for id, st := range e.sessions {
		st.mu.Lock()
		seen := st.lastSeen
		st.mu.Unlock()
		if oldestID == "" || seen.Before(oldest) {
			oldestID = id
			oldest = seen
		}
	}
	if oldestID != "" {
		delete(e.sessions, oldestID)
		if e.logger != nil {
			e.logger.Info("session evicted", "session", oldestID)
		}
	}
}

func (e *Engine) Sessions() []SessionInfo {
	e.mu.Lock()
	ids := make([]string, 0, len(e.sessions))
	states := make(map[string]*sessionState, len(e.sessions))
	for id, st := range e.sessions {
		ids = append(ids, id)
		states[id] = st
	}
	e.mu.Unlock()
	sort.Strings(ids)
	out := make([]SessionInfo, 0, len(ids))
	for _, id := range ids {
		out = append(out, states[id].info(false))
	}
	return out
}

// Session describes one session including the labels of its window.
func (e *Engine) Session(id string) (SessionInfo, bool) {
	e.mu.Lock()
	st, ok := e.sessions[id]
	e.mu.Unlock()
	if !ok {
		return SessionInfo{}, false
	}
	return st.info(true), true
}

func (st *sessionState) info(withLabels bool) SessionInfo {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.session
	info := SessionInfo{
		ID:       s.ID(),
		Ready:    s.Ready(),
		Window:   s.window.Len(),
		Width:    s.window.Width(),
		Distinct: s.window.Distinct(),
		LastSeen: st.lastSeen,
		Model:    s.model.Name,
		Mode:     s.model.Settings.Mode,
	}
	if withLabels {
		for _, l := range s.window.Labels() {
			info.Labels = append(info.Labels, string(l))
		}
	}
	return info
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	n := len(e.sessions)
	e.mu.Unlock()
	st := Status{Sessions: n, Started: e.started}
	if m := e.model.Load(); m != nil {
		st.Trained = true
		st.Model = m.Name
		st.Rules = len(m.Rules)
		st.Classes = len(m.Classes)
	}
	return st
}
