package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arguard/internal/alerts"
	"arguard/internal/config"
	"arguard/internal/engine"
	"arguard/internal/metrics"
	"arguard/internal/model"
)

func testModel() *model.Model {
	s := model.DefaultSettings()
	s.ItemsetSize = 2
	r := model.Rule{
		Antecedent: model.NewLabelSet("modbus-X-request-plc-hmi-{}"),
		Consequent: model.NewLabelSet("modbus-Y-request-plc-hmi-{}"),
		Support:    0.5,
		Confidence: 1,
	}
	return &model.Model{
		Name:        "ids",
		Settings:    s,
		Classes:     []model.Label{r.Antecedent[0], r.Consequent[0]},
		Rules:       []model.Rule{r},
		DelayBounds: map[model.RuleKey]model.DelayBound{r.Key(): {Min: 0, Max: 1}},
	}
}

func event(session, typ string, ts float64) model.Event {
	return model.Event{Session: session, Source: "test", Observation: model.Observation{
		Timestamp: ts,
		Message:   &model.Message{Protocol: "modbus", Type: typ, Activity: "request", Src: "plc", Dest: "hmi", Data: map[string]any{}},
	}}
}

type fixture struct {
	handler http.Handler
	engine  *engine.Engine
	alerts  *alerts.Store
}

func newFixture(t *testing.T, trained bool) fixture {
	t.Helper()
	cfg := config.DefaultConfig()
	alertStore := alerts.NewStore(10)
	metricStore := metrics.NewStore(10)
	collectors := metrics.NewCollectors(nil)
	eng := engine.NewEngine(cfg, nil, metricStore, collectors, alertStore, nil)
	if trained {
		eng.SetModel(testModel())
	}
	srv := NewServer(config.NewStaticManager(cfg), metricStore, collectors, alertStore, eng, nil, "test")
	return fixture{handler: srv.Handler(), engine: eng, alerts: alertStore}
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestStatusUntrained(t *testing.T) {
	f := newFixture(t, false)
	rec, body := get(t, f.handler, "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "untrained", body["status"])

	rec, _ = get(t, f.handler, "/model")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionsAndAlerts(t *testing.T) {
	f := newFixture(t, true)
	f.engine.ProcessEvent(event("plc-1", "X", 0))
	f.engine.ProcessEvent(event("plc-1", "X", 1))

	rec, body := get(t, f.handler, "/sessions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, body["count"])

	rec, body = get(t, f.handler, "/sessions/plc-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["alerts"], 1)

	rec, _ = get(t, f.handler, "/sessions/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = get(t, f.handler, "/alerts?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, body["count"])

	rec, _ = get(t, f.handler, "/alerts?since=yesterday")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestModelEndpoint(t *testing.T) {
	f := newFixture(t, true)
	rec, body := get(t, f.handler, "/model")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ids", body["name"])
	rules, ok := body["rules"].([]any)
	require.True(t, ok)
	require.Len(t, rules, 1)
	assert.NotNil(t, rules[0].(map[string]any)["bound"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, true)
	f.engine.ProcessEvent(event("plc-1", "X", 0))
	rec, _ := get(t, f.handler, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	out := rec.Body.String()
	assert.Contains(t, out, "arguard_verdicts_total")
	assert.Contains(t, out, "arguard_model_rules 1")
	assert.Contains(t, out, "arguard_sessions 1")
}

func TestAdminReset(t *testing.T) {
	f := newFixture(t, true)
	f.engine.ProcessEvent(event("plc-1", "X", 0))
	f.engine.ProcessEvent(event("plc-1", "X", 1))

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/reset", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/reset", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.engine.Sessions())
	assert.Empty(t, f.alerts.List(0))
}

func TestAdminClearTargets(t *testing.T) {
	f := newFixture(t, true)
	f.engine.ProcessEvent(event("plc-1", "X", 0))
	f.engine.ProcessEvent(event("plc-1", "X", 1))

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/clear", strings.NewReader(`{"target": "alerts"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.alerts.List(0))
	assert.Len(t, f.engine.Sessions(), 1)

	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/clear", strings.NewReader(`{"target": "nope"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
