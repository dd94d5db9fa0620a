package main

import (
	"context"
	"flag"
	"log/slog"

	"github.com/meridianfm/meridian/internal/config"
	"github.com/meridianfm/meridian/internal/scheduler"
	"github.com/meridianfm/meridian/internal/store"
)

// runScheduler materializes format clocks onto concrete segment rows and
// enqueues segment_make jobs (§4.3). mode is "once" (materialize tomorrow,
// then exit) or "continuous" (loop, waking at 2am local each day).
func runScheduler(ctx context.Context, env config.EnvConfig, args []string) int {
	fs := flag.NewFlagSet("scheduler", flag.ExitOnError)
	mode := fs.String("mode", env.SchedulerMode, "scheduler mode: once or continuous")
	if err := fs.Parse(args); err != nil {
		slog.Error("scheduler: parse flags", "error", err)
		return 1
	}

	metrics, _, shutdownObserve, err := initObservability(ctx, "meridian-scheduler")
	if err != nil {
		slog.Error("scheduler: init observability", "error", err)
		return 1
	}
	defer shutdownObserve()

	st, err := store.New(ctx, env.PostgresDSN, embeddingDimensions, metrics)
	if err != nil {
		slog.Error("scheduler: connect store", "error", err)
		return 1
	}
	defer st.Close()

	sched := scheduler.New(st, env.FutureYearOffset)
	if err := sched.Run(ctx, scheduler.Mode(*mode)); err != nil {
		slog.Error("scheduler: run", "error", err)
		return 1
	}
	return 0
}
