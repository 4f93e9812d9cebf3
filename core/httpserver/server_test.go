package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	coreconfig "github.com/m3rciful/quizbot/core/config"
	"github.com/m3rciful/quizbot/core/metrics"
)

func TestHealthz(t *testing.T) {
	s := New(coreconfig.HTTPConfig{}, func(context.Context) map[string]any {
		return map[string]any{"active_sessions": 3}
	})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["active_sessions"] != float64(3) {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestMetricsExposed(t *testing.T) {
	metrics.Sends.WithLabelValues("send.question", "ok").Inc()
	s := New(coreconfig.HTTPConfig{}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "quizbot_sender_jobs_total") {
		t.Fatal("expected sender counter in /metrics output")
	}
}

func TestPprofOptIn(t *testing.T) {
	off := New(coreconfig.HTTPConfig{}, nil)
	rec := httptest.NewRecorder()
	off.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("pprof must be disabled by default, got %d", rec.Code)
	}

	on := New(coreconfig.HTTPConfig{Pprof: true}, nil)
	rec = httptest.NewRecorder()
	on.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("pprof index status = %d", rec.Code)
	}
}
