// Package store is the PostgreSQL-backed persistence layer for Meridian: the
// durable job queue (§4.1), the segment state machine (§4.2), the catalog of
// voices/DJs/programs/format clocks/schedule entries (§3), the knowledge
// corpus and its pgvector embeddings (§4.4.1), the asset table, the dead
// letter queue, and worker health-check rows.
//
// A single [pgxpool.Pool] backs every table, mirroring the teacher's
// single-pool [Store] that wires L1/L2/L3 sub-stores together.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlCatalog = `
CREATE TABLE IF NOT EXISTS voices (
    id           UUID         PRIMARY KEY,
    name         TEXT         NOT NULL UNIQUE,
    model_id     TEXT         NOT NULL DEFAULT '',
    language     TEXT         NOT NULL DEFAULT '',
    locale       TEXT         NOT NULL DEFAULT '',
    gender       TEXT         NOT NULL DEFAULT '',
    quality_tier TEXT         NOT NULL DEFAULT '',
    available    BOOLEAN      NOT NULL DEFAULT true,
    created_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS djs (
    id              UUID         PRIMARY KEY,
    name            TEXT         NOT NULL UNIQUE,
    bio             TEXT         NOT NULL DEFAULT '',
    personality     TEXT         NOT NULL DEFAULT '',
    specializations TEXT[]       NOT NULL DEFAULT '{}',
    voice_id        UUID         REFERENCES voices (id),
    speech_speed    DOUBLE PRECISION NOT NULL DEFAULT 1.0,
    language        TEXT         NOT NULL DEFAULT '',
    active          BOOLEAN      NOT NULL DEFAULT true,
    created_at      TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS format_clocks (
    id             UUID        PRIMARY KEY,
    name           TEXT        NOT NULL UNIQUE,
    description    TEXT        NOT NULL DEFAULT '',
    total_duration INT         NOT NULL DEFAULT 3600,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS format_slots (
    id           UUID        PRIMARY KEY,
    clock_id     UUID        NOT NULL REFERENCES format_clocks (id) ON DELETE CASCADE,
    slot_type    TEXT        NOT NULL,
    duration_sec INT         NOT NULL,
    order_index  INT         NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_format_slots_clock ON format_slots (clock_id, order_index);

CREATE TABLE IF NOT EXISTS programs (
    id                  UUID        PRIMARY KEY,
    name                TEXT        NOT NULL UNIQUE,
    format_clock_id     UUID        REFERENCES format_clocks (id),
    scheduling_hints    TEXT        NOT NULL DEFAULT '',
    conversation_format TEXT        NOT NULL DEFAULT '',
    active              BOOLEAN     NOT NULL DEFAULT true,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS program_djs (
    program_id UUID NOT NULL REFERENCES programs (id) ON DELETE CASCADE,
    dj_id      UUID NOT NULL REFERENCES djs (id) ON DELETE CASCADE,
    role       TEXT NOT NULL,
    "order"    INT  NOT NULL DEFAULT 0,
    PRIMARY KEY (program_id, dj_id)
);

CREATE TABLE IF NOT EXISTS broadcast_schedule_entries (
    id          UUID        PRIMARY KEY,
    program_id  UUID        NOT NULL REFERENCES programs (id) ON DELETE CASCADE,
    day_of_week INT,
    start_time  INTERVAL    NOT NULL,
    end_time    INTERVAL    NOT NULL,
    priority    INT         NOT NULL DEFAULT 0,
    active      BOOLEAN     NOT NULL DEFAULT true
);

CREATE INDEX IF NOT EXISTS idx_schedule_program ON broadcast_schedule_entries (program_id);
`

const ddlJobQueue = `
CREATE TABLE IF NOT EXISTS jobs (
    id             UUID        PRIMARY KEY,
    type           TEXT        NOT NULL,
    payload        JSONB       NOT NULL DEFAULT '{}',
    state          TEXT        NOT NULL DEFAULT 'pending',
    priority       INT         NOT NULL DEFAULT 5,
    scheduled_for  TIMESTAMPTZ NOT NULL DEFAULT now(),
    locked_until   TIMESTAMPTZ,
    locked_by      TEXT        NOT NULL DEFAULT '',
    attempts       INT         NOT NULL DEFAULT 0,
    max_attempts   INT         NOT NULL DEFAULT 5,
    started_at     TIMESTAMPTZ,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_jobs_claimable
    ON jobs (type, state, priority DESC, scheduled_for)
    WHERE state = 'pending';

CREATE INDEX IF NOT EXISTS idx_jobs_locked_until
    ON jobs (locked_until) WHERE state = 'processing';

CREATE TABLE IF NOT EXISTS dead_letter_queue (
    id               UUID        PRIMARY KEY,
    original_job_id  UUID        NOT NULL,
    type             TEXT        NOT NULL,
    payload          JSONB       NOT NULL DEFAULT '{}',
    failure_reason   TEXT        NOT NULL DEFAULT '',
    failure_details  TEXT        NOT NULL DEFAULT '',
    attempts_made    INT         NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    reviewed_at      TIMESTAMPTZ,
    resolution       TEXT        NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS health_checks (
    worker_type    TEXT        NOT NULL,
    instance_id    TEXT        NOT NULL,
    status         TEXT        NOT NULL DEFAULT 'ok',
    last_heartbeat TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (worker_type, instance_id)
);
`

const ddlSegments = `
CREATE TABLE IF NOT EXISTS segments (
    id                  UUID        PRIMARY KEY,
    program_id          UUID        NOT NULL REFERENCES programs (id),
    slot_type           TEXT        NOT NULL,
    state               TEXT        NOT NULL DEFAULT 'queued',
    scheduled_start_ts  TIMESTAMPTZ NOT NULL,
    script              TEXT        NOT NULL DEFAULT '',
    asset_id            UUID,
    conversation_format TEXT        NOT NULL DEFAULT '',
    participant_count   INT         NOT NULL DEFAULT 1,
    language            TEXT        NOT NULL DEFAULT '',
    retry_count         INT         NOT NULL DEFAULT 0,
    max_retries         INT         NOT NULL DEFAULT 3,
    last_error          TEXT        NOT NULL DEFAULT '',
    tone_score          DOUBLE PRECISION NOT NULL DEFAULT 0,
    optimism_pct        DOUBLE PRECISION NOT NULL DEFAULT 0,
    realism_pct         DOUBLE PRECISION NOT NULL DEFAULT 0,
    wonder_pct          DOUBLE PRECISION NOT NULL DEFAULT 0,
    idempotency_key     TEXT        NOT NULL UNIQUE,
    duration_sec        DOUBLE PRECISION NOT NULL DEFAULT 0,
    aired_at            TIMESTAMPTZ,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_segments_program_start
    ON segments (program_id, scheduled_start_ts);

CREATE INDEX IF NOT EXISTS idx_segments_state
    ON segments (state);

CREATE INDEX IF NOT EXISTS idx_segments_ready_by_start
    ON segments (scheduled_start_ts) WHERE state = 'ready';

CREATE TABLE IF NOT EXISTS segment_citations (
    segment_id  UUID NOT NULL REFERENCES segments (id) ON DELETE CASCADE,
    chunk_id    UUID NOT NULL,
    final_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    PRIMARY KEY (segment_id, chunk_id)
);

CREATE TABLE IF NOT EXISTS conversation_participants (
    id             UUID PRIMARY KEY,
    segment_id     UUID NOT NULL REFERENCES segments (id) ON DELETE CASCADE,
    dj_id          UUID NOT NULL REFERENCES djs (id),
    role           TEXT NOT NULL,
    "order"        INT  NOT NULL DEFAULT 0,
    character_name TEXT NOT NULL DEFAULT '',
    background     TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_conv_participants_segment
    ON conversation_participants (segment_id, "order");

CREATE TABLE IF NOT EXISTS conversation_turns (
    id             UUID PRIMARY KEY,
    segment_id     UUID NOT NULL REFERENCES segments (id) ON DELETE CASCADE,
    participant_id UUID NOT NULL REFERENCES conversation_participants (id),
    turn_number    INT  NOT NULL,
    speaker_name   TEXT NOT NULL DEFAULT '',
    text           TEXT NOT NULL DEFAULT '',
    audio_path     TEXT NOT NULL DEFAULT '',
    duration_sec   DOUBLE PRECISION NOT NULL DEFAULT 0,
    UNIQUE (segment_id, turn_number)
);
`

const ddlAssets = `
CREATE TABLE IF NOT EXISTS assets (
    id                  UUID        PRIMARY KEY,
    storage_path        TEXT        NOT NULL DEFAULT '',
    raw_storage_path     TEXT        NOT NULL DEFAULT '',
    content_type        TEXT        NOT NULL DEFAULT 'audio/wav',
    content_hash        TEXT        NOT NULL UNIQUE,
    integrated_loudness DOUBLE PRECISION NOT NULL DEFAULT 0,
    peak_level          DOUBLE PRECISION NOT NULL DEFAULT 0,
    duration_sec        DOUBLE PRECISION NOT NULL DEFAULT 0,
    size_bytes          BIGINT      NOT NULL DEFAULT 0,
    validation_status   TEXT        NOT NULL DEFAULT 'pending',
    created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// ddlKnowledge returns the knowledge-corpus DDL with the embedding dimension
// substituted, matching the teacher's ddlL2 pattern of baking the pgvector
// dimension into the column type at migration time.
func ddlKnowledge(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS knowledge_chunks (
    id          UUID        PRIMARY KEY,
    source_ref  TEXT        NOT NULL DEFAULT '',
    text        TEXT        NOT NULL,
    order_index INT         NOT NULL DEFAULT 0,
    language    TEXT        NOT NULL DEFAULT '',
    embedding   vector(%d),
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_knowledge_chunks_embedding
    ON knowledge_chunks USING hnsw (embedding vector_cosine_ops);

CREATE INDEX IF NOT EXISTS idx_knowledge_chunks_source
    ON knowledge_chunks (source_ref);

CREATE TABLE IF NOT EXISTS canon_facts (
    category TEXT NOT NULL,
    key      TEXT NOT NULL,
    value    TEXT NOT NULL DEFAULT '',
    type     TEXT NOT NULL DEFAULT 'string',
    min      DOUBLE PRECISION,
    max      DOUBLE PRECISION,
    allowed  TEXT[] NOT NULL DEFAULT '{}',
    PRIMARY KEY (category, key)
);
`, embeddingDimensions)
}

// Migrate creates or ensures every table, index, and extension Meridian
// needs exists. It is idempotent and safe to call on every process start, as
// the teacher's Migrate does.
//
// embeddingDimensions must match the configured embeddings provider's
// Dimensions() (§4.4.1 step 1); changing it after the first migration
// requires a manual schema change.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlCatalog,
		ddlJobQueue,
		ddlSegments,
		ddlAssets,
		ddlKnowledge(embeddingDimensions),
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}
