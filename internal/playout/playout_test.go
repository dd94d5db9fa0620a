package playout

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClampLimit(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, minLimit},
		{-5, minLimit},
		{1, 1},
		{10, 10},
		{50, 50},
		{51, maxLimit},
		{1000, maxLimit},
	}
	for _, c := range cases {
		if got := clampLimit(c.in); got != c.want {
			t.Errorf("clampLimit(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseID_Invalid(t *testing.T) {
	if _, err := parseID("not-a-uuid"); err == nil {
		t.Error("expected error for invalid uuid")
	}
}

func TestParseID_Valid(t *testing.T) {
	if _, err := parseID("01234567-89ab-cdef-0123-456789abcdef"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestHandleDeadAirAlert(t *testing.T) {
	b := &Bridge{}
	body, _ := json.Marshal(map[string]string{
		"timestamp": "2026-01-01T00:00:00Z",
		"type":      "silence_detected",
		"details":   "playout pipeline empty for 12s",
	})
	req := httptest.NewRequest(http.MethodPost, "/playout/alerts/dead-air", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	b.handleDeadAirAlert(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "logged" {
		t.Errorf("status = %q, want %q", resp["status"], "logged")
	}
}

func TestHandleDeadAirAlert_InvalidBody(t *testing.T) {
	b := &Bridge{}
	req := httptest.NewRequest(http.MethodPost, "/playout/alerts/dead-air", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()

	b.handleDeadAirAlert(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
