package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"schedula/reservations/internal/metrics"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(ctx context.Context) error { return s.err }

func serve(t *testing.T, db Pinger, path string) *httptest.ResponseRecorder {
	t.Helper()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ExpirationsTotal.Inc()

	e := NewRouter(db, reg, nil)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestLiveness(t *testing.T) {
	rec := serve(t, stubPinger{}, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("missing request id header")
	}
}

func TestReadiness(t *testing.T) {
	rec := serve(t, stubPinger{}, "/health/ready")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	rec = serve(t, stubPinger{err: errors.New("connection refused")}, "/health/ready")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
	var body readinessResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "degraded" {
		t.Fatalf("status = %q, want %q", body.Status, "degraded")
	}
	if got := body.Dependencies["database"].Error; got != "connection refused" {
		t.Fatalf("database error = %q", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(t, stubPinger{}, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "schedula_reservation_expirations_total 1") {
		t.Fatalf("metrics body missing expirations counter:\n%s", rec.Body.String())
	}
}
