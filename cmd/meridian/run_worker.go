package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/meridianfm/meridian/internal/config"
	"github.com/meridianfm/meridian/internal/embedder"
	"github.com/meridianfm/meridian/internal/generator"
	"github.com/meridianfm/meridian/internal/mastering"
	"github.com/meridianfm/meridian/internal/objectstore"
	"github.com/meridianfm/meridian/internal/store"
	"github.com/meridianfm/meridian/internal/worker"
)

// runWorker claims jobs of one type and dispatches them to the matching
// handler: "generator" claims segment_make, "mastering" claims
// audio_finalize, "embedder" claims kb_index (§4.3 claim-loop discipline).
func runWorker(ctx context.Context, env config.EnvConfig, station *config.Station, args []string) int {
	fs := flag.NewFlagSet("worker", flag.ExitOnError)
	kind := fs.String("type", "", "worker type: generator, mastering, or embedder")
	concurrency := fs.Int("concurrency", env.MaxConcurrentJobs, "max in-flight jobs")
	if err := fs.Parse(args); err != nil {
		slog.Error("worker: parse flags", "error", err)
		return 1
	}
	if *kind == "" {
		slog.Error("worker: -type is required (generator, mastering, embedder)")
		return 1
	}

	metrics, _, shutdownObserve, err := initObservability(ctx, "meridian-worker-"+*kind)
	if err != nil {
		slog.Error("worker: init observability", "error", err)
		return 1
	}
	defer shutdownObserve()

	st, err := store.New(ctx, env.PostgresDSN, embeddingDimensions, metrics)
	if err != nil {
		slog.Error("worker: connect store", "error", err)
		return 1
	}
	defer st.Close()

	reg := newRegistry()
	objStore := objectstore.New(buildObjectStoreURL(env), env.ObjectStoreBucket, env.SupabaseServiceRoleKey, env.SignedURLTTL)

	cfg := worker.Config{
		WorkerType:  *kind,
		InstanceID:  instanceID(),
		Concurrency: *concurrency,
	}

	var handler worker.Handler
	switch *kind {
	case "generator":
		cfg.JobType = "segment_make"
		llmProvider, err := buildLLM(reg, env, metrics)
		if err != nil {
			slog.Error("worker: build llm", "error", err)
			return 1
		}
		ttsProvider, err := buildTTS(reg, env, metrics)
		if err != nil {
			slog.Error("worker: build tts", "error", err)
			return 1
		}
		embedProvider, err := buildEmbeddings(reg, env)
		if err != nil {
			slog.Error("worker: build embeddings", "error", err)
			return 1
		}
		gen := generator.New(st, llmProvider, ttsProvider, embedProvider, objStore, generator.Config{
			StationName: station.StationName,
			StyleGuide:  station.StyleGuide,
		})
		handler = gen.Handle

	case "mastering":
		cfg.JobType = "audio_finalize"
		handler = mastering.New(st, objStore, mastering.Config{}).Handle

	case "embedder":
		cfg.JobType = "kb_index"
		embedProvider, err := buildEmbeddings(reg, env)
		if err != nil {
			slog.Error("worker: build embeddings", "error", err)
			return 1
		}
		handler = embedder.New(st, embedProvider).Handle

	default:
		slog.Error("worker: unknown -type", "type", *kind)
		return 1
	}

	pool := worker.New(cfg, st)
	if err := pool.Run(ctx, handler); err != nil && ctx.Err() == nil {
		slog.Error("worker: run", "error", err)
		return 1
	}
	return 0
}

func buildObjectStoreURL(env config.EnvConfig) string {
	if env.SupabaseURL != "" {
		return env.SupabaseURL
	}
	return env.PostgresDSN
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown-host"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
