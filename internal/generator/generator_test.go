package generator

import (
	"context"
	"testing"

	"github.com/meridianfm/meridian/internal/domain"
)

func TestHandle_MissingSegmentID(t *testing.T) {
	g := &Generator{}
	err := g.Handle(context.Background(), &domain.Job{Payload: map[string]any{}})
	if err == nil {
		t.Fatal("Handle: want error for missing segment_id, got nil")
	}
}

func TestHandle_InvalidSegmentID(t *testing.T) {
	g := &Generator{}
	err := g.Handle(context.Background(), &domain.Job{Payload: map[string]any{"segment_id": "not-a-uuid"}})
	if err == nil {
		t.Fatal("Handle: want error for invalid segment_id, got nil")
	}
}

func TestHandle_WrongPayloadType(t *testing.T) {
	g := &Generator{}
	err := g.Handle(context.Background(), &domain.Job{Payload: map[string]any{"segment_id": 42}})
	if err == nil {
		t.Fatal("Handle: want error when segment_id is not a string, got nil")
	}
}
