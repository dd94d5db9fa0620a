package mastering

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/meridianfm/meridian/internal/audio"
	"github.com/meridianfm/meridian/internal/domain"
	"github.com/meridianfm/meridian/internal/objectstore"
	"github.com/meridianfm/meridian/internal/store"
)

// Config tunes the quality gates and targets of §4.5.
type Config struct {
	// TargetLUFS is the integrated-loudness target. Default -16.
	TargetLUFS float64
	// PeakLimitDBFS is the true-peak ceiling. Default -1.0.
	PeakLimitDBFS float64
	// MaxLoudnessDeviation is the |final-target| quality gate, in LU. Default 2.
	MaxLoudnessDeviation float64
	// MinDurationSec and MaxDurationSec bound acceptable segment length.
	// Defaults 5 and 600.
	MinDurationSec float64
	MaxDurationSec float64
	// MinSizeBytes rejects implausibly small files (silence, truncated
	// upload). Default 10_000.
	MinSizeBytes int64
}

func (c *Config) applyDefaults() {
	if c.TargetLUFS == 0 {
		c.TargetLUFS = -16.0
	}
	if c.PeakLimitDBFS == 0 {
		c.PeakLimitDBFS = -1.0
	}
	if c.MaxLoudnessDeviation == 0 {
		c.MaxLoudnessDeviation = 2.0
	}
	if c.MinDurationSec == 0 {
		c.MinDurationSec = 5
	}
	if c.MaxDurationSec == 0 {
		c.MaxDurationSec = 600
	}
	if c.MinSizeBytes == 0 {
		c.MinSizeBytes = 10_000
	}
}

// Worker claims audio_finalize jobs and runs the §4.5 mastering algorithm.
type Worker struct {
	store    *store.Store
	objStore *objectstore.Client
	cfg      Config
}

// New builds a Worker.
func New(st *store.Store, objStore *objectstore.Client, cfg Config) *Worker {
	cfg.applyDefaults()
	return &Worker{store: st, objStore: objStore, cfg: cfg}
}

// Handle implements worker.Handler. It parses the audio_finalize job
// payload and runs Process; transient errors are returned for the job-level
// retry/backoff policy (§9), while a quality-gate rejection is terminal for
// the segment (handled inside Process) and reported to the caller as nil so
// the job itself completes.
func (w *Worker) Handle(ctx context.Context, job *domain.Job) error {
	segmentID, err := payloadID(job.Payload, "segment_id")
	if err != nil {
		return err
	}
	assetID, err := payloadID(job.Payload, "asset_id")
	if err != nil {
		return err
	}
	return w.Process(ctx, segmentID, assetID)
}

func payloadID(payload map[string]any, key string) (domain.ID, error) {
	raw, ok := payload[key].(string)
	if !ok {
		return domain.ID{}, fmt.Errorf("mastering: payload missing %q", key)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return domain.ID{}, fmt.Errorf("mastering: invalid %q: %w", key, err)
	}
	return id, nil
}

// Process runs the §4.5 algorithm for one segment/asset pair: fetch, measure,
// adjust, re-measure, gate, and persist.
func (w *Worker) Process(ctx context.Context, segmentID, assetID domain.ID) error {
	asset, err := w.store.GetAsset(ctx, assetID)
	if err != nil {
		return fmt.Errorf("mastering: load asset: %w", err)
	}

	raw, err := w.objStore.Get(ctx, asset.RawStoragePath)
	if err != nil {
		return fmt.Errorf("mastering: fetch raw audio: %w", err)
	}

	measured := measureRMSDBFS(raw)
	peak := measurePeakDBFS(raw)
	adjustment := w.cfg.TargetLUFS - measured

	adjusted := applyGainDB(raw, adjustment)
	adjusted = limitPeakDB(adjusted, w.cfg.PeakLimitDBFS)
	adjusted = audio.Convert(adjusted, audio.RenderFormat, audio.BroadcastFormat)

	finalLoudness := measureRMSDBFS(adjusted)
	finalPeak := measurePeakDBFS(adjusted)
	finalDuration := audio.DurationSec(adjusted, audio.BroadcastFormat)

	if reason := w.gateReject(finalLoudness, finalPeak, finalDuration, int64(len(adjusted))); reason != "" {
		if err := w.store.SetAssetValidation(ctx, assetID, domain.AssetFailed, finalLoudness, finalPeak); err != nil {
			return fmt.Errorf("mastering: record rejected validation: %w", err)
		}
		if err := w.store.MarkFailed(ctx, segmentID, domain.SegmentNormalizing, reason); err != nil {
			return fmt.Errorf("mastering: mark segment failed: %w", err)
		}
		slog.Error("mastering: quality gate rejected asset", "segment_id", segmentID, "asset_id", assetID, "reason", reason)
		return nil
	}

	finalPath := fmt.Sprintf("final/%s.wav", assetID)
	if err := w.objStore.Put(ctx, finalPath, adjusted, "audio/wav"); err != nil {
		return fmt.Errorf("mastering: upload normalized audio: %w", err)
	}
	if err := w.store.FinalizeAsset(ctx, assetID, finalPath, finalLoudness, finalPeak, finalDuration, int64(len(adjusted))); err != nil {
		return fmt.Errorf("mastering: finalize asset: %w", err)
	}
	if err := w.store.Transition(ctx, segmentID, domain.SegmentNormalizing, domain.SegmentReady); err != nil {
		return fmt.Errorf("mastering: transition to ready: %w", err)
	}

	slog.Info("mastering: segment ready", "segment_id", segmentID, "asset_id", assetID,
		"loudness_lufs", finalLoudness, "peak_dbfs", finalPeak, "raw_peak_dbfs", peak, "duration_sec", finalDuration)
	return nil
}

// gateReject evaluates §4.5 step 7 and returns a non-empty reason on
// rejection, empty on pass.
func (w *Worker) gateReject(loudness, peak, durationSec float64, sizeBytes int64) string {
	if dev := loudness - w.cfg.TargetLUFS; dev > w.cfg.MaxLoudnessDeviation || dev < -w.cfg.MaxLoudnessDeviation {
		return fmt.Sprintf("loudness deviation %.1f LU exceeds gate of %.1f LU", dev, w.cfg.MaxLoudnessDeviation)
	}
	if peak > w.cfg.PeakLimitDBFS {
		return fmt.Sprintf("peak %.1f dBFS exceeds limit %.1f dBFS", peak, w.cfg.PeakLimitDBFS)
	}
	if durationSec < w.cfg.MinDurationSec || durationSec > w.cfg.MaxDurationSec {
		return fmt.Sprintf("duration %.1fs outside [%.0f,%.0f]s", durationSec, w.cfg.MinDurationSec, w.cfg.MaxDurationSec)
	}
	if sizeBytes < w.cfg.MinSizeBytes {
		return fmt.Sprintf("size %d bytes below minimum %d", sizeBytes, w.cfg.MinSizeBytes)
	}
	return ""
}
