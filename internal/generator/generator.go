package generator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridianfm/meridian/internal/audio"
	"github.com/meridianfm/meridian/internal/domain"
	"github.com/meridianfm/meridian/internal/objectstore"
	"github.com/meridianfm/meridian/internal/provider/embeddings"
	"github.com/meridianfm/meridian/internal/provider/llm"
	"github.com/meridianfm/meridian/internal/provider/tts"
	"github.com/meridianfm/meridian/internal/store"
)

// turnGapMs is the pacing silence inserted between concatenated
// multi-speaker turns (§4.4.2: "optional short silence gaps... for pacing").
const turnGapMs = 350

// topKChunks is how many knowledge chunks the RAG stage retrieves per
// segment (§4.4.1 step 1).
const topKChunks = 5

// Config holds the station-level prompt material the generator has no other
// source for: its name and style guide, both authored in the station YAML
// (§6).
type Config struct {
	StationName string
	StyleGuide  string
}

// Generator turns a queued segment into a ready one end to end (§4.4).
type Generator struct {
	store    *store.Store
	llm      llm.Provider
	tts      tts.Provider
	embedder embeddings.Provider
	objStore *objectstore.Client
	cfg      Config
}

// New builds a Generator. The segment's own scheduled_start_ts is always the
// source of truth for the broadcast time (§4.4 step 2); Generator carries no
// notion of "now".
func New(st *store.Store, llmProvider llm.Provider, ttsProvider tts.Provider, embedder embeddings.Provider, objStore *objectstore.Client, cfg Config) *Generator {
	return &Generator{store: st, llm: llmProvider, tts: ttsProvider, embedder: embedder, objStore: objStore, cfg: cfg}
}

// Handle implements worker.Handler for segment_make jobs: it parses
// segment_id from the payload and delegates to Generate.
func (g *Generator) Handle(ctx context.Context, job *domain.Job) error {
	raw, ok := job.Payload["segment_id"].(string)
	if !ok || raw == "" {
		return fmt.Errorf("generator: payload missing segment_id")
	}
	segmentID, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("generator: invalid segment_id: %w", err)
	}
	return g.Generate(ctx, segmentID)
}

// Generate runs the full §4.4 workflow for segmentID: claim, retrieve,
// generate, validate, synthesize, and hand off to mastering. It returns an
// error only for retryable failures (KindInput, KindTransient); a major lore
// contradiction is recorded on the segment and reported as nil so the job
// completes without an automatic retry (§7).
func (g *Generator) Generate(ctx context.Context, segmentID domain.ID) error {
	seg, err := g.claimAndLoad(ctx, segmentID)
	if err != nil {
		return err
	}

	program, err := g.store.GetProgram(ctx, seg.ProgramID)
	if err != nil {
		return transientErr("claim", fmt.Errorf("load program: %w", err))
	}

	broadcastTime := seg.ScheduledStartTS

	djs, err := g.store.ListDJsForProgram(ctx, program.ID)
	if err != nil {
		return transientErr("claim", fmt.Errorf("load program djs: %w", err))
	}

	multiSpeaker := program.ConversationFormat != "" && len(djs) >= 2

	targetDuration, err := g.targetDurationSec(ctx, program, seg.SlotType)
	if err != nil {
		return transientErr("claim", err)
	}

	if multiSpeaker {
		return g.generateMultiSpeaker(ctx, seg, program, djs, broadcastTime, targetDuration)
	}
	return g.generateMonologue(ctx, seg, program, djs, broadcastTime, targetDuration)
}

// claimAndLoad transitions the segment into retrieving, handling the
// failed->queued re-entry a retried job lands on (§4.2: "re-enterable to
// queued only if retry_count < max_retries").
func (g *Generator) claimAndLoad(ctx context.Context, segmentID domain.ID) (*domain.Segment, error) {
	seg, err := g.store.GetSegment(ctx, segmentID)
	if err != nil {
		return nil, inputErr("claim", fmt.Sprintf("segment %s not found: %v", segmentID, err))
	}

	if seg.State == domain.SegmentFailed {
		if err := g.store.Transition(ctx, segmentID, domain.SegmentFailed, domain.SegmentQueued); err != nil {
			return nil, transientErr("claim", fmt.Errorf("re-enter failed segment: %w", err))
		}
	}
	if err := g.store.Transition(ctx, segmentID, domain.SegmentQueued, domain.SegmentRetrieving); err != nil {
		return nil, transientErr("claim", fmt.Errorf("transition to retrieving: %w", err))
	}

	seg, err = g.store.GetSegment(ctx, segmentID)
	if err != nil {
		return nil, transientErr("claim", fmt.Errorf("reload segment: %w", err))
	}
	return seg, nil
}

func (g *Generator) targetDurationSec(ctx context.Context, program *domain.Program, slotType string) (int, error) {
	_, slots, err := g.store.GetFormatClock(ctx, program.FormatClockID)
	if err != nil {
		return 0, fmt.Errorf("load format clock: %w", err)
	}
	for _, slot := range slots {
		if slot.SlotType == slotType {
			return slot.DurationSec, nil
		}
	}
	return 60, nil // no matching slot found; fall back to a conservative default
}

// voiceModelFor resolves a DJ's voice catalog entry to the provider-specific
// model identifier the TTS request needs.
func (g *Generator) voiceModelFor(ctx context.Context, voiceID domain.ID) (string, error) {
	voice, err := g.store.GetVoice(ctx, voiceID)
	if err != nil {
		return "", fmt.Errorf("load voice: %w", err)
	}
	return voice.ModelID, nil
}

func hostDJ(djs []domain.ProgramDJ) domain.ProgramDJ {
	best := djs[0]
	for _, pd := range djs {
		if pd.Role == domain.RoleHost {
			return pd
		}
		if pd.Order < best.Order {
			best = pd
		}
	}
	return best
}

// generateMonologue implements §4.4.1 for a single-DJ segment.
func (g *Generator) generateMonologue(ctx context.Context, seg *domain.Segment, program *domain.Program, djs []domain.ProgramDJ, broadcastTime time.Time, targetDuration int) error {
	if len(djs) == 0 {
		return inputErr("claim", fmt.Sprintf("program %s has no djs assigned", program.Name))
	}
	dj, err := g.store.GetDJ(ctx, hostDJ(djs).DJID)
	if err != nil {
		return transientErr("claim", fmt.Errorf("load dj: %w", err))
	}

	query := BuildQuery(seg.SlotType, broadcastTime)
	chunks, err := Retrieve(ctx, g.store, g.embedder, query, broadcastTime, topKChunks)
	if err != nil {
		return err
	}

	if err := g.store.Transition(ctx, seg.ID, domain.SegmentRetrieving, domain.SegmentGenerating); err != nil {
		return transientErr("generation", fmt.Errorf("transition to generating: %w", err))
	}

	systemPrompt := BuildSystemPrompt(g.cfg.StationName, g.cfg.StyleGuide, broadcastTime.Year())
	userPrompt := BuildMonologuePrompt(broadcastTime, *dj, seg.SlotType, targetDuration, chunks)

	resp, err := GenerateScript(ctx, g.llm, systemPrompt, userPrompt)
	if err != nil {
		g.failSegment(ctx, seg.ID, domain.SegmentGenerating, err)
		return err
	}
	script := resp.Content

	if err := ValidateLength(script, targetDuration); err != nil {
		g.failSegment(ctx, seg.ID, domain.SegmentGenerating, err)
		return err
	}

	tone := AnalyzeTone(script)
	if !tone.Acceptable() {
		slog.Warn("generator: tone below threshold, proceeding (warning, not a blocker)",
			"segment_id", seg.ID, "score", tone.Score, "issues", len(tone.Issues))
	}

	facts, err := loadCanonFacts(ctx, g.store)
	if err != nil {
		g.failSegment(ctx, seg.ID, domain.SegmentGenerating, err)
		return err
	}
	issues := CheckConsistency(script, facts)
	if domain.HasMajor(issues) {
		reason := majorIssueSummary(issues)
		if err := g.store.MarkFailed(ctx, seg.ID, domain.SegmentGenerating, reason); err != nil {
			return transientErr("consistency_check", fmt.Errorf("mark failed: %w", err))
		}
		slog.Error("generator: major lore contradiction, segment failed (not retryable)", "segment_id", seg.ID, "reason", reason)
		return nil
	}

	citations := make([]domain.ChunkCitation, len(chunks))
	for i, c := range chunks {
		citations[i] = domain.ChunkCitation{ChunkID: c.Chunk.ID, FinalScore: c.FinalScore}
	}
	if err := g.store.UpdateScript(ctx, seg.ID, script, tone, citations); err != nil {
		return transientErr("persist_script", err)
	}

	if err := g.store.Transition(ctx, seg.ID, domain.SegmentGenerating, domain.SegmentRendering); err != nil {
		return transientErr("rendering", fmt.Errorf("transition to rendering: %w", err))
	}

	voiceModel, err := g.voiceModelFor(ctx, dj.VoiceID)
	if err != nil {
		return transientErr("rendering", err)
	}
	audioOut, err := g.tts.Synthesize(ctx, tts.SynthesizeRequest{Text: script, VoiceModel: voiceModel, Speed: dj.SpeechSpeed})
	if err != nil {
		g.failSegment(ctx, seg.ID, domain.SegmentRendering, transientErr("rendering", err))
		return transientErr("rendering", err)
	}

	pcm := audio.Convert(audioOut.PCM, audio.Format{SampleRate: audioOut.SampleRate, Channels: audioOut.Channels}, audio.RenderFormat)
	asset, err := StoreAudio(ctx, g.store, g.objStore, pcm, "audio/wav", audioOut.DurationSec)
	if err != nil {
		g.failSegment(ctx, seg.ID, domain.SegmentRendering, err)
		return err
	}

	if err := g.store.AttachAsset(ctx, seg.ID, asset.ID, audioOut.DurationSec); err != nil {
		return transientErr("rendering", fmt.Errorf("attach asset: %w", err))
	}

	if err := g.store.Transition(ctx, seg.ID, domain.SegmentRendering, domain.SegmentNormalizing); err != nil {
		return transientErr("rendering", fmt.Errorf("transition to normalizing: %w", err))
	}

	if _, err := g.store.Enqueue(ctx, "audio_finalize", map[string]any{
		"segment_id": seg.ID.String(),
		"asset_id":   asset.ID.String(),
	}, 5, 0); err != nil {
		return transientErr("rendering", fmt.Errorf("enqueue audio_finalize: %w", err))
	}
	return nil
}

// generateMultiSpeaker implements §4.4.2 for a conversation-format segment.
func (g *Generator) generateMultiSpeaker(ctx context.Context, seg *domain.Segment, program *domain.Program, djs []domain.ProgramDJ, broadcastTime time.Time, targetDuration int) error {
	existing, err := g.store.ListParticipants(ctx, seg.ID)
	if err != nil {
		return transientErr("claim", fmt.Errorf("load participants: %w", err))
	}
	participants := EnsureParticipants(seg.ID, existing, djs)
	if len(participants) == 0 {
		return inputErr("claim", fmt.Sprintf("program %s has no djs to derive participants from", program.Name))
	}
	if len(existing) == 0 {
		if err := g.store.CreateParticipants(ctx, participants); err != nil {
			return transientErr("claim", fmt.Errorf("persist participants: %w", err))
		}
	}

	speakers := make([]Speaker, 0, len(participants))
	for _, p := range participants {
		dj, err := g.store.GetDJ(ctx, p.DJID)
		if err != nil {
			return transientErr("claim", fmt.Errorf("load dj for participant: %w", err))
		}
		speakers = append(speakers, Speaker{Participant: p, DJ: *dj})
	}

	query := BuildQuery(seg.SlotType, broadcastTime)
	chunks, err := Retrieve(ctx, g.store, g.embedder, query, broadcastTime, topKChunks)
	if err != nil {
		return err
	}

	if err := g.store.Transition(ctx, seg.ID, domain.SegmentRetrieving, domain.SegmentGenerating); err != nil {
		return transientErr("generation", fmt.Errorf("transition to generating: %w", err))
	}

	systemPrompt := BuildSystemPrompt(g.cfg.StationName, g.cfg.StyleGuide, broadcastTime.Year())
	userPrompt := BuildMultiSpeakerPrompt(broadcastTime, speakers, seg.SlotType, targetDuration, chunks)

	resp, err := GenerateScript(ctx, g.llm, systemPrompt, userPrompt)
	if err != nil {
		g.failSegment(ctx, seg.ID, domain.SegmentGenerating, err)
		return err
	}
	script := resp.Content

	if err := ValidateLength(script, targetDuration); err != nil {
		g.failSegment(ctx, seg.ID, domain.SegmentGenerating, err)
		return err
	}

	turns, err := ParseTurns(seg.ID, script, speakers)
	if err != nil {
		g.failSegment(ctx, seg.ID, domain.SegmentGenerating, err)
		return err
	}

	tone := AnalyzeTone(script)
	if !tone.Acceptable() {
		slog.Warn("generator: tone below threshold, proceeding (warning, not a blocker)",
			"segment_id", seg.ID, "score", tone.Score, "issues", len(tone.Issues))
	}

	facts, err := loadCanonFacts(ctx, g.store)
	if err != nil {
		g.failSegment(ctx, seg.ID, domain.SegmentGenerating, err)
		return err
	}
	issues := CheckConsistency(script, facts)
	if domain.HasMajor(issues) {
		reason := majorIssueSummary(issues)
		if err := g.store.MarkFailed(ctx, seg.ID, domain.SegmentGenerating, reason); err != nil {
			return transientErr("consistency_check", fmt.Errorf("mark failed: %w", err))
		}
		slog.Error("generator: major lore contradiction, segment failed (not retryable)", "segment_id", seg.ID, "reason", reason)
		return nil
	}

	citations := make([]domain.ChunkCitation, len(chunks))
	for i, c := range chunks {
		citations[i] = domain.ChunkCitation{ChunkID: c.Chunk.ID, FinalScore: c.FinalScore}
	}
	if err := g.store.UpdateScript(ctx, seg.ID, script, tone, citations); err != nil {
		return transientErr("persist_script", err)
	}

	if err := g.store.Transition(ctx, seg.ID, domain.SegmentGenerating, domain.SegmentRendering); err != nil {
		return transientErr("rendering", fmt.Errorf("transition to rendering: %w", err))
	}

	speakerByParticipant := make(map[domain.ID]Speaker, len(speakers))
	for _, sp := range speakers {
		speakerByParticipant[sp.Participant.ID] = sp
	}

	buffers := make([][]byte, len(turns))
	for i, t := range turns {
		sp, ok := speakerByParticipant[t.ParticipantID]
		if !ok {
			return transientErr("rendering", fmt.Errorf("turn %d references unknown participant", t.TurnNumber))
		}
		voiceModel, err := g.voiceModelFor(ctx, sp.DJ.VoiceID)
		if err != nil {
			return transientErr("rendering", err)
		}
		out, err := g.tts.Synthesize(ctx, tts.SynthesizeRequest{Text: t.Text, VoiceModel: voiceModel, Speed: sp.DJ.SpeechSpeed})
		if err != nil {
			g.failSegment(ctx, seg.ID, domain.SegmentRendering, transientErr("rendering", err))
			return transientErr("rendering", err)
		}
		turns[i].DurationSec = out.DurationSec
		buffers[i] = audio.Convert(out.PCM, audio.Format{SampleRate: out.SampleRate, Channels: out.Channels}, audio.RenderFormat)
	}

	if err := g.store.CreateTurns(ctx, turns); err != nil {
		return transientErr("rendering", fmt.Errorf("persist turns: %w", err))
	}

	combined := audio.Concat(buffers, audio.RenderFormat, turnGapMs)
	durationSec := audio.DurationSec(combined, audio.RenderFormat)

	asset, err := StoreAudio(ctx, g.store, g.objStore, combined, "audio/wav", durationSec)
	if err != nil {
		g.failSegment(ctx, seg.ID, domain.SegmentRendering, err)
		return err
	}

	if err := g.store.AttachAsset(ctx, seg.ID, asset.ID, durationSec); err != nil {
		return transientErr("rendering", fmt.Errorf("attach asset: %w", err))
	}

	if err := g.store.Transition(ctx, seg.ID, domain.SegmentRendering, domain.SegmentNormalizing); err != nil {
		return transientErr("rendering", fmt.Errorf("transition to normalizing: %w", err))
	}

	if _, err := g.store.Enqueue(ctx, "audio_finalize", map[string]any{
		"segment_id": seg.ID.String(),
		"asset_id":   asset.ID.String(),
	}, 5, 0); err != nil {
		return transientErr("rendering", fmt.Errorf("enqueue audio_finalize: %w", err))
	}
	return nil
}

// failSegment transitions seg into failed from `from`, logging but not
// propagating a secondary error from the store call itself — the original
// stage error (err) is what the caller returns and what drives the job
// retry.
func (g *Generator) failSegment(ctx context.Context, segID domain.ID, from domain.SegmentState, err error) {
	if markErr := g.store.MarkFailed(ctx, segID, from, err.Error()); markErr != nil {
		slog.Error("generator: failed to mark segment failed", "segment_id", segID, "error", markErr)
	}
}

func majorIssueSummary(issues []domain.ConsistencyIssue) string {
	for _, iss := range issues {
		if iss.Severity == domain.SeverityMajor {
			return fmt.Sprintf("major lore contradiction: %s.%s: %s", iss.Category, iss.Key, iss.Detail)
		}
	}
	return "major lore contradiction"
}
