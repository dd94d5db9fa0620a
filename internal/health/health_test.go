package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func doReadyz(t *testing.T, h *Handler) (int, result) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	h.Readyz(rec, req)
	var res result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rec.Code, res
}

func TestReadyz_AllOK(t *testing.T) {
	h := New(Checker{Name: "store", Check: func(context.Context) error { return nil }})
	code, res := doReadyz(t, h)
	if code != http.StatusOK || res.Status != "ok" {
		t.Fatalf("got (%d, %q), want (200, ok)", code, res.Status)
	}
}

func TestReadyz_CriticalFailureReturns503(t *testing.T) {
	h := New(Checker{Name: "store", Check: func(context.Context) error { return errors.New("connection refused") }})
	code, res := doReadyz(t, h)
	if code != http.StatusServiceUnavailable || res.Status != "fail" {
		t.Fatalf("got (%d, %q), want (503, fail)", code, res.Status)
	}
}

func TestReadyz_WarnFailureDegradesWithout503(t *testing.T) {
	h := New(
		Checker{Name: "store", Check: func(context.Context) error { return nil }},
		Checker{Name: "dlq_backlog", Warn: true, Check: func(context.Context) error { return errors.New("120 entries") }},
	)
	code, res := doReadyz(t, h)
	if code != http.StatusOK || res.Status != "degraded" {
		t.Fatalf("got (%d, %q), want (200, degraded)", code, res.Status)
	}
}

func TestHealthz(t *testing.T) {
	h := New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.Healthz(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
