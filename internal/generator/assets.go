package generator

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/meridianfm/meridian/internal/domain"
	"github.com/meridianfm/meridian/internal/objectstore"
	"github.com/meridianfm/meridian/internal/store"
)

// StoreAudio implements the §4.4.5 asset-storage algorithm: hash the bytes,
// return the existing asset unchanged on a hash match (deduplication),
// otherwise upload the raw file and insert a pending asset row.
//
// The AssetByHash lookup before upload is a pure I/O-avoidance optimization,
// not the source of correctness: [store.Store.GetOrCreateAsset]'s
// INSERT ... ON CONFLICT (content_hash) is the atomic dedup guarantee, so a
// race that uploads the same bytes twice still converges on one asset row.
func StoreAudio(ctx context.Context, st *store.Store, objStore *objectstore.Client, pcm []byte, contentType string, durationSec float64) (*domain.Asset, error) {
	sum := sha256.Sum256(pcm)
	contentHash := hex.EncodeToString(sum[:])

	if existing, err := st.AssetByHash(ctx, contentHash); err == nil {
		return existing, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, transientErr("asset_storage", fmt.Errorf("lookup by hash: %w", err))
	}

	path := rawStoragePath()
	if err := objStore.Put(ctx, path, pcm, contentType); err != nil {
		return nil, transientErr("asset_storage", fmt.Errorf("upload raw audio: %w", err))
	}

	asset, err := st.GetOrCreateAsset(ctx, domain.Asset{
		RawStoragePath:   path,
		ContentType:      contentType,
		ContentHash:      contentHash,
		DurationSec:      durationSec,
		SizeBytes:        int64(len(pcm)),
		ValidationStatus: domain.AssetPending,
	})
	if err != nil {
		return nil, transientErr("asset_storage", fmt.Errorf("insert asset row: %w", err))
	}
	return asset, nil
}

func rawStoragePath() string {
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("raw/%d-%s.wav", time.Now().UnixNano(), hex.EncodeToString(buf[:]))
}
