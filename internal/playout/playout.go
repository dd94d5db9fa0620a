// Package playout is the HTTP bridge between the ready-segment queue and
// the broadcaster (§4.6): it hands out signed URLs for segments in
// scheduled_start_ts order, accepts playback callbacks, and logs the
// dead-air alert channel.
package playout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meridianfm/meridian/internal/domain"
	"github.com/meridianfm/meridian/internal/health"
	"github.com/meridianfm/meridian/internal/objectstore"
	"github.com/meridianfm/meridian/internal/store"
)

const (
	defaultLimit = 10
	minLimit     = 1
	maxLimit     = 50
)

// Bridge wires the ready-segment queue to chi HTTP routes.
type Bridge struct {
	store    *store.Store
	objStore *objectstore.Client
}

// New builds a Bridge.
func New(st *store.Store, objStore *objectstore.Client) *Bridge {
	return &Bridge{store: st, objStore: objStore}
}

// Router assembles the chi.Router serving /playout/*, plus /healthz,
// /readyz, and /metrics. health.Handler only knows how to register itself
// against an *http.ServeMux, so its routes are wired here by hand rather
// than through its Register method.
func Router(b *Bridge, healthHandler *health.Handler, metricsHandler http.Handler, mw ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	for _, m := range mw {
		r.Use(m)
	}

	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/playout", func(r chi.Router) {
		r.Get("/next", b.handleNext)
		r.Post("/now-playing", b.handleNowPlaying)
		r.Post("/segment-complete/{id}", b.handleSegmentComplete)
		r.Post("/alerts/dead-air", b.handleDeadAirAlert)
	})

	return r
}

// nextSegment is one entry of the GET /playout/next response.
type nextSegment struct {
	SegmentID        string  `json:"segment_id"`
	Title            string  `json:"title"`
	SlotType         string  `json:"slot_type"`
	Presenter        string  `json:"presenter,omitempty"`
	ScheduledStartTS string  `json:"scheduled_start_ts"`
	DurationSec      float64 `json:"duration_sec"`
	AudioURL         string  `json:"audio_url"`
}

// handleNext implements GET /playout/next?limit=N (§4.6).
func (b *Bridge) handleNext(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	limit = clampLimit(limit)

	segments, err := b.store.ListReadySegments(ctx, limit)
	if err != nil {
		slog.Error("playout: list ready segments", "error", err)
		writeError(w, http.StatusInternalServerError, "list ready segments failed")
		return
	}

	out := make([]nextSegment, 0, len(segments))
	for _, seg := range segments {
		entry, ok := b.buildNextEntry(ctx, seg)
		if !ok {
			continue
		}
		out = append(out, entry)
	}

	writeJSON(w, http.StatusOK, map[string]any{"segments": out})
}

// buildNextEntry resolves a ready segment's signed URL (normalized
// preferred, raw fallback) and presenter name. When the asset is missing or
// neither asset path can produce a signed URL, the segment is left out of
// the response. failUnplayable also calls MarkFailed, but ready -> failed
// is not an edge of the segment state machine, so that call is rejected
// with ErrIllegalTransition, the error is logged, and the segment stays
// ready.
func (b *Bridge) buildNextEntry(ctx context.Context, seg domain.Segment) (nextSegment, bool) {
	if seg.AssetID == nil {
		b.failUnplayable(ctx, seg.ID, "ready segment has no asset_id")
		return nextSegment{}, false
	}

	asset, err := b.store.GetAsset(ctx, *seg.AssetID)
	if err != nil {
		slog.Error("playout: load asset", "segment_id", seg.ID, "error", err)
		b.failUnplayable(ctx, seg.ID, fmt.Sprintf("asset %s could not be loaded: %v", *seg.AssetID, err))
		return nextSegment{}, false
	}

	audioURL, err := b.signedURLFor(ctx, *asset)
	if err != nil {
		slog.Error("playout: sign audio url", "segment_id", seg.ID, "asset_id", asset.ID, "error", err)
		b.failUnplayable(ctx, seg.ID, fmt.Sprintf("no signed url available: %v", err))
		return nextSegment{}, false
	}

	return nextSegment{
		SegmentID:        seg.ID.String(),
		Title:            fmt.Sprintf("%s segment", seg.SlotType),
		SlotType:         seg.SlotType,
		Presenter:        b.presenterFor(ctx, seg.ProgramID),
		ScheduledStartTS: seg.ScheduledStartTS.UTC().Format(time.RFC3339),
		DurationSec:      seg.DurationSec,
		AudioURL:         audioURL,
	}, true
}

// signedURLFor prefers the normalized storage_path, falling back to
// raw_storage_path when the former is unset or cannot be signed. A ttl of
// 0 gives every URL the object-store client's configured lifetime
// (EnvConfig.SignedURLTTL).
func (b *Bridge) signedURLFor(ctx context.Context, asset domain.Asset) (string, error) {
	if asset.StoragePath != "" {
		url, err := b.objStore.SignedURL(ctx, asset.StoragePath, 0)
		if err == nil {
			return url, nil
		}
		slog.Warn("playout: normalized asset signed url failed, falling back to raw", "asset_id", asset.ID, "error", err)
	}
	if asset.RawStoragePath == "" {
		return "", fmt.Errorf("asset %s has neither a normalized nor a raw storage path", asset.ID)
	}
	return b.objStore.SignedURL(ctx, asset.RawStoragePath, 0)
}

func (b *Bridge) failUnplayable(ctx context.Context, segmentID domain.ID, reason string) {
	if err := b.store.MarkFailed(ctx, segmentID, domain.SegmentReady, reason); err != nil {
		slog.Error("playout: mark unplayable segment failed", "segment_id", segmentID, "error", err)
	}
}

func (b *Bridge) presenterFor(ctx context.Context, programID domain.ID) string {
	djs, err := b.store.ListDJsForProgram(ctx, programID)
	if err != nil || len(djs) == 0 {
		return ""
	}
	host := djs[0]
	for _, d := range djs {
		if d.Role == domain.RoleHost {
			host = d
			break
		}
	}
	dj, err := b.store.GetDJ(ctx, host.DJID)
	if err != nil {
		return ""
	}
	return dj.Name
}

type nowPlayingRequest struct {
	SegmentID string    `json:"segment_id"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
}

// handleNowPlaying implements POST /playout/now-playing (§4.6): ready ->
// airing, idempotent on repeat for the same segment. Per spec.md's External
// Interfaces contract this returns 404 for an unknown segment_id and 409 for
// a known segment in the wrong state to transition — Transition's own
// ErrIllegalTransition conflates "not found" and "wrong state" (both are
// zero rows affected), so existence is checked separately first.
func (b *Bridge) handleNowPlaying(w http.ResponseWriter, r *http.Request) {
	var req nowPlayingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, err := parseID(req.SegmentID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid segment_id")
		return
	}

	ctx := r.Context()
	seg, err := b.store.GetSegment(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "segment not found")
			return
		}
		slog.Error("playout: load segment", "segment_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "load segment failed")
		return
	}

	if seg.State == domain.SegmentAiring {
		// Idempotent repeat: the segment is already airing, nothing to do.
		writeJSON(w, http.StatusOK, map[string]string{"status": "airing"})
		return
	}

	if err := b.store.Transition(ctx, id, domain.SegmentReady, domain.SegmentAiring); err != nil {
		slog.Error("playout: now-playing transition failed", "segment_id", id, "error", err)
		writeError(w, http.StatusConflict, "segment is not ready")
		return
	}
	slog.Info("playout: now playing", "segment_id", id, "title", req.Title)
	writeJSON(w, http.StatusOK, map[string]string{"status": "airing"})
}

// handleSegmentComplete implements POST /playout/segment-complete/{id}:
// airing -> aired, iff the current state is airing. 404 for an unknown
// segment_id, 409 if it exists but isn't currently airing.
func (b *Bridge) handleSegmentComplete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid segment id")
		return
	}

	ctx := r.Context()
	if _, err := b.store.GetSegment(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "segment not found")
			return
		}
		slog.Error("playout: load segment", "segment_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "load segment failed")
		return
	}

	if err := b.store.MarkAired(ctx, id, time.Now()); err != nil {
		slog.Error("playout: segment-complete transition failed", "segment_id", id, "error", err)
		writeError(w, http.StatusConflict, "segment is not airing")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "aired"})
}

type deadAirAlertRequest struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Details   string    `json:"details,omitempty"`
}

// handleDeadAirAlert implements POST /playout/alerts/dead-air: logs a
// high-severity event. The spec reserves this channel without prescribing
// a downstream paging integration.
func (b *Bridge) handleDeadAirAlert(w http.ResponseWriter, r *http.Request) {
	var req deadAirAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	slog.Error("playout: dead air alert", "type", req.Type, "timestamp", req.Timestamp, "details", req.Details)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged"})
}

// clampLimit bounds a requested page size to [minLimit, maxLimit] (§4.6).
func clampLimit(n int) int {
	if n < minLimit {
		return minLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

func parseID(raw string) (domain.ID, error) {
	return uuid.Parse(raw)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
