package ingest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"

	"arguard/internal/config"
	"arguard/internal/model"
	"arguard/internal/normalize"
)

func TestParseLineJSON(t *testing.T) {
	p := NewParser()
	obs, err := p.ParseLine(`{"timestamp": 10, "protocol": "modbus", "type": "3", "activity": "request", "src": "a", "dest": "b", "data": {}}`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if obs == nil || obs.Message == nil || obs.Message.Protocol != "modbus" {
		t.Fatalf("unexpected observation: %+v", obs)
	}
}

func TestParseLineBlank(t *testing.T) {
	p := NewParser()
	if obs, err := p.ParseLine("   "); obs != nil || err != nil {
		t.Fatalf("expected nil for blank line")
	}
}

func TestParseLineMissingFieldKeepsObservation(t *testing.T) {
	p := NewParser()
	obs, err := p.ParseLine(`{"timestamp": 1, "protocol": "modbus", "data": {}}`)
	var de *normalize.DataError
	if !errors.As(err, &de) {
		t.Fatalf("expected data error, got %v", err)
	}
	if obs == nil || obs.Message.Src != normalize.Missing {
		t.Fatalf("expected sentinel observation")
	}
}

func TestParseLineMalformed(t *testing.T) {
	p := NewParser()
	obs, err := p.ParseLine(`{"timestamp": `)
	if err == nil || obs != nil {
		t.Fatalf("expected error without observation")
	}
}

func TestReaderOrderAndErrors(t *testing.T) {
	input := strings.Join([]string{
		`{"timestamp": 1, "state": {"a": 1}}`,
		``,
		`not json`,
		`{"timestamp": 2, "state": {"a": 2}}`,
	}, "\n")
	r := NewReader(strings.NewReader(input))
	first, err := r.Next()
	if err != nil || first.Timestamp != 1 {
		t.Fatalf("first record: %v %+v", err, first)
	}
	_, err = r.Next()
	var de *normalize.DataError
	if !errors.As(err, &de) || !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("expected data error on line 3, got %v", err)
	}
	second, err := r.Next()
	if err != nil || second.Timestamp != 2 {
		t.Fatalf("second record: %v %+v", err, second)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestOpenGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(`{"timestamp": 5, "state": {"a": 1}}` + "\n"))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "train.ipal.gz")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	rc, err := FileOpener(path)()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	obs, err := NewReader(rc).Next()
	if err != nil || obs.Timestamp != 5 {
		t.Fatalf("gzip record: %v %+v", err, obs)
	}
}

func TestRESTEventsForwardsInOrder(t *testing.T) {
	out := make(chan model.Event, 4)
	srv := NewRESTServer(config.NewStaticManager(config.DefaultConfig()), out, nil)
	body := `[{"timestamp": 1, "state": {"a": 1}}, {"timestamp": 2, "protocol": "modbus", "data": {}}]`
	req := httptest.NewRequest(http.MethodPost, "/events?session=plc-1", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 events, got %d", len(out))
	}
	first, second := <-out, <-out
	if first.Session != "plc-1" || first.Observation.Timestamp != 1 || second.Observation.Timestamp != 2 {
		t.Fatalf("unexpected events: %+v %+v", first, second)
	}
	if second.Observation.Message.Src != normalize.Missing {
		t.Fatalf("expected sentinel source, got %q", second.Observation.Message.Src)
	}
}

func TestRESTEventsRejectsBadBody(t *testing.T) {
	srv := NewRESTServer(config.NewStaticManager(config.DefaultConfig()), make(chan model.Event, 1), nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/events", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected method not allowed, got %d", rec.Code)
	}
}

func TestHandleLineDropsUndecodable(t *testing.T) {
	out := make(chan model.Event, 2)
	ctx := context.Background()
	if handleLine(ctx, NewParser(), "garbage", "s", "test", false, out, nil) {
		t.Fatalf("garbage should not be forwarded")
	}
	if !handleLine(ctx, NewParser(), `{"timestamp": 3, "state": {"a": 1}}`, "s", "test", false, out, nil) {
		t.Fatalf("record should be forwarded")
	}
	ev := <-out
	if ev.Session != "s" || ev.Source != "test" {
		t.Fatalf("unexpected event %+v", ev)
	}
}
