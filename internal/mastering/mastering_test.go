package mastering

import "testing"

func newTestWorker() *Worker {
	w := &Worker{}
	w.cfg.applyDefaults()
	return w
}

func TestGateReject_Pass(t *testing.T) {
	w := newTestWorker()
	if reason := w.gateReject(-16.2, -1.5, 30, 500_000); reason != "" {
		t.Errorf("expected pass, got rejection: %s", reason)
	}
}

func TestGateReject_LoudnessDeviation(t *testing.T) {
	w := newTestWorker()
	if reason := w.gateReject(-10.0, -1.5, 30, 500_000); reason == "" {
		t.Error("expected rejection for loudness deviation, got pass")
	}
}

func TestGateReject_PeakExceedsLimit(t *testing.T) {
	w := newTestWorker()
	if reason := w.gateReject(-16.0, -0.2, 30, 500_000); reason == "" {
		t.Error("expected rejection for peak over limit, got pass")
	}
}

func TestGateReject_DurationTooShort(t *testing.T) {
	w := newTestWorker()
	if reason := w.gateReject(-16.0, -1.5, 2, 500_000); reason == "" {
		t.Error("expected rejection for duration under minimum, got pass")
	}
}

func TestGateReject_DurationTooLong(t *testing.T) {
	w := newTestWorker()
	if reason := w.gateReject(-16.0, -1.5, 601, 500_000); reason == "" {
		t.Error("expected rejection for duration over maximum, got pass")
	}
}

func TestGateReject_SizeTooSmall(t *testing.T) {
	w := newTestWorker()
	if reason := w.gateReject(-16.0, -1.5, 30, 100); reason == "" {
		t.Error("expected rejection for undersized file, got pass")
	}
}

func TestPayloadID_MissingKey(t *testing.T) {
	if _, err := payloadID(map[string]any{}, "segment_id"); err == nil {
		t.Error("expected error for missing payload key")
	}
}

func TestPayloadID_InvalidUUID(t *testing.T) {
	if _, err := payloadID(map[string]any{"segment_id": "not-a-uuid"}, "segment_id"); err == nil {
		t.Error("expected error for malformed uuid")
	}
}

func TestPayloadID_Valid(t *testing.T) {
	const id = "9b1f1e0e-1e4a-4b1a-9c3b-6f3d3f6a9b2a"
	got, err := payloadID(map[string]any{"segment_id": id}, "segment_id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.String() != id {
		t.Errorf("got %s, want %s", got, id)
	}
}
