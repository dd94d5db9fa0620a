package store

import (
	"context"
	"fmt"

	"github.com/meridianfm/meridian/internal/domain"
)

// GetOrCreateAsset returns the existing asset row for contentHash if one
// exists, otherwise inserts a. Deduplication is by content hash, not storage
// path (§4.4.5, §8 invariant): `∀ b ≠ a: content_hash(a) = content_hash(b) ⇒ a = b`.
func (s *Store) GetOrCreateAsset(ctx context.Context, a domain.Asset) (*domain.Asset, error) {
	if a.ID == (domain.ID{}) {
		a.ID = domain.NewID()
	}

	const q = `
INSERT INTO assets (id, storage_path, raw_storage_path, content_type, content_hash,
    integrated_loudness, peak_level, duration_sec, size_bytes, validation_status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (content_hash) DO UPDATE SET content_hash = EXCLUDED.content_hash
RETURNING id, storage_path, raw_storage_path, content_type, content_hash, integrated_loudness,
    peak_level, duration_sec, size_bytes, validation_status, created_at`

	row := s.pool.QueryRow(ctx, q, a.ID, a.StoragePath, a.RawStoragePath, a.ContentType, a.ContentHash,
		a.IntegratedLoudness, a.PeakLevel, a.DurationSec, a.SizeBytes, a.ValidationStatus)
	return scanAsset(row)
}

// AssetByHash looks up an asset by its content hash.
func (s *Store) AssetByHash(ctx context.Context, contentHash string) (*domain.Asset, error) {
	const q = `
SELECT id, storage_path, raw_storage_path, content_type, content_hash, integrated_loudness,
    peak_level, duration_sec, size_bytes, validation_status, created_at
FROM assets WHERE content_hash = $1`
	return scanAsset(s.pool.QueryRow(ctx, q, contentHash))
}

// GetAsset loads an asset by id, used by the playout bridge to resolve a
// segment's signed URL.
func (s *Store) GetAsset(ctx context.Context, id domain.ID) (*domain.Asset, error) {
	const q = `
SELECT id, storage_path, raw_storage_path, content_type, content_hash, integrated_loudness,
    peak_level, duration_sec, size_bytes, validation_status, created_at
FROM assets WHERE id = $1`
	return scanAsset(s.pool.QueryRow(ctx, q, id))
}

// SetAssetValidation updates the mastering quality-gate outcome for an asset
// that was rejected (§4.5 step 7) — no storage_path change, since no
// normalized file was retained.
func (s *Store) SetAssetValidation(ctx context.Context, id domain.ID, status domain.AssetValidationStatus, integratedLoudness, peakLevel float64) error {
	const q = `
UPDATE assets SET validation_status = $1, integrated_loudness = $2, peak_level = $3 WHERE id = $4`
	if _, err := s.pool.Exec(ctx, q, status, integratedLoudness, peakLevel, id); err != nil {
		return fmt.Errorf("store: set asset validation: %w", err)
	}
	return nil
}

// FinalizeAsset records a successful mastering pass (§4.5 steps 5-6): the
// normalized file's storage path, its re-measured loudness/peak/duration,
// byte size, and validation_status = passed. raw_storage_path is untouched,
// retaining the original upload for audit.
func (s *Store) FinalizeAsset(ctx context.Context, id domain.ID, storagePath string, integratedLoudness, peakLevel, durationSec float64, sizeBytes int64) error {
	const q = `
UPDATE assets SET storage_path = $1, integrated_loudness = $2, peak_level = $3,
    duration_sec = $4, size_bytes = $5, validation_status = $6
WHERE id = $7`
	if _, err := s.pool.Exec(ctx, q, storagePath, integratedLoudness, peakLevel, durationSec, sizeBytes, domain.AssetPassed, id); err != nil {
		return fmt.Errorf("store: finalize asset: %w", err)
	}
	return nil
}

func scanAsset(row interface {
	Scan(dest ...any) error
}) (*domain.Asset, error) {
	var a domain.Asset
	if err := row.Scan(&a.ID, &a.StoragePath, &a.RawStoragePath, &a.ContentType, &a.ContentHash,
		&a.IntegratedLoudness, &a.PeakLevel, &a.DurationSec, &a.SizeBytes, &a.ValidationStatus, &a.CreatedAt); err != nil {
		return nil, fmt.Errorf("store: scan asset: %w", err)
	}
	return &a, nil
}
