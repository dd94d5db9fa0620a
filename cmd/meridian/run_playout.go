package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/meridianfm/meridian/internal/config"
	"github.com/meridianfm/meridian/internal/health"
	"github.com/meridianfm/meridian/internal/objectstore"
	"github.com/meridianfm/meridian/internal/observe"
	"github.com/meridianfm/meridian/internal/playout"
	"github.com/meridianfm/meridian/internal/store"
)

// dlqBacklogWarnThreshold is the unreviewed-entry count past which the
// playout process's /readyz reports "degraded" rather than staying silent
// (§9 Design Notes: DLQ backlog growth should be operator-visible).
const dlqBacklogWarnThreshold = 50

// runPlayout serves the §4.6 HTTP bridge: /playout/*, /healthz, /readyz,
// /metrics.
func runPlayout(ctx context.Context, env config.EnvConfig, args []string) int {
	fs := flag.NewFlagSet("playout", flag.ExitOnError)
	addr := fs.String("addr", env.ListenAddr, "HTTP listen address")
	if err := fs.Parse(args); err != nil {
		slog.Error("playout: parse flags", "error", err)
		return 1
	}

	metrics, metricsHandler, shutdownObserve, err := initObservability(ctx, "meridian-playout")
	if err != nil {
		slog.Error("playout: init observability", "error", err)
		return 1
	}
	defer shutdownObserve()

	st, err := store.New(ctx, env.PostgresDSN, embeddingDimensions, metrics)
	if err != nil {
		slog.Error("playout: connect store", "error", err)
		return 1
	}
	defer st.Close()

	objStore := objectstore.New(buildObjectStoreURL(env), env.ObjectStoreBucket, env.SupabaseServiceRoleKey, env.SignedURLTTL)
	bridge := playout.New(st, objStore)

	healthHandler := health.New(
		health.Checker{
			Name: "store",
			Check: func(ctx context.Context) error {
				return st.Ping(ctx)
			},
		},
		health.Checker{
			Name: "dlq_backlog",
			Warn: true,
			Check: func(ctx context.Context) error {
				n, err := st.DLQBacklogSize(ctx)
				if err != nil {
					return err
				}
				if n > dlqBacklogWarnThreshold {
					return fmt.Errorf("%d unreviewed entries (warn threshold %d)", n, dlqBacklogWarnThreshold)
				}
				return nil
			},
		},
	)

	handler := playout.Router(bridge, healthHandler, metricsHandler, observe.Middleware(metrics))

	srv := &http.Server{
		Addr:              *addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("playout: listening", "addr", *addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("playout: serve", "error", err)
			return 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("playout: shutdown", "error", err)
		return 1
	}
	return 0
}
