// Package worker implements the claim-loop harness shared by every job
// processor (generator, mastering, embedder): claim, bound concurrency with
// a semaphore, dispatch to a handler, complete/fail, and heartbeat (§4.3
// claim-loop discipline).
package worker

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/meridianfm/meridian/internal/domain"
	"github.com/meridianfm/meridian/internal/store"
)

// Handler processes one claimed job. Returning an error fails the job via
// Fail with reason "handler_error" and details err.Error(); returning nil
// completes it.
type Handler func(ctx context.Context, job *domain.Job) error

// Config tunes a Pool's behavior.
type Config struct {
	// JobType is the queue type this pool claims, e.g. "segment_make".
	JobType string

	// WorkerType labels this pool's heartbeat rows, e.g. "generator".
	WorkerType string

	// InstanceID uniquely identifies this process among its peers, e.g. a
	// hostname+pid string.
	InstanceID string

	// Concurrency bounds in-flight jobs (§5 MAX_CONCURRENT_JOBS).
	Concurrency int

	// Lease is how long a claim holds its lock before it is reclaimable.
	Lease time.Duration

	// PollTimeout bounds how long WaitForJob blocks before the loop retries
	// the claim (§4.3: "wait for a change-notification or timeout (<=5s)").
	PollTimeout time.Duration

	// HeartbeatInterval is how often Heartbeat is upserted (~30s per §4.3).
	HeartbeatInterval time.Duration

	// DrainTimeout bounds how long Run waits for in-flight jobs after ctx is
	// cancelled before returning (default 60s, §5 cancellation policy).
	DrainTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 2
	}
	if c.Lease <= 0 {
		c.Lease = 2 * time.Minute
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 5 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 60 * time.Second
	}
}

// Pool runs a claim loop against the store, dispatching claimed jobs to a
// Handler with bounded concurrency.
type Pool struct {
	cfg   Config
	store *store.Store
	sem   *semaphore.Weighted
}

// New builds a Pool. Call Run to start the claim loop; it blocks until ctx
// is cancelled and in-flight jobs drain or DrainTimeout passes.
func New(cfg Config, st *store.Store) *Pool {
	cfg.applyDefaults()
	return &Pool{cfg: cfg, store: st, sem: semaphore.NewWeighted(int64(cfg.Concurrency))}
}

// Run executes the claim loop described in §4.3: claim a job; if none, wait
// for a change-notification or timeout then retry; on claim, spawn a task
// bounded by the concurrency semaphore; on completion call complete or fail;
// heartbeat on HeartbeatInterval. Run blocks until ctx is cancelled, then
// stops claiming and waits up to DrainTimeout for in-flight jobs.
func (p *Pool) Run(ctx context.Context, handle Handler) error {
	eg, egCtx := errgroup.WithContext(ctx)

	heartbeatStop := make(chan struct{})
	eg.Go(func() error {
		p.heartbeatLoop(ctx, heartbeatStop)
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			close(heartbeatStop)
			drainCtx, cancel := context.WithTimeout(context.Background(), p.cfg.DrainTimeout)
			defer cancel()
			if err := p.sem.Acquire(drainCtx, int64(p.cfg.Concurrency)); err != nil {
				slog.Warn("worker: drain timeout exceeded, in-flight jobs will be reclaimed by lease expiry",
					"job_type", p.cfg.JobType, "instance", p.cfg.InstanceID)
				return nil
			}
			return eg.Wait()
		default:
		}

		job, err := p.store.Claim(egCtx, p.cfg.JobType, p.cfg.InstanceID, p.cfg.Lease)
		if err != nil {
			slog.Error("worker: claim failed", "job_type", p.cfg.JobType, "error", err)
			time.Sleep(p.cfg.PollTimeout)
			continue
		}
		if job == nil {
			if err := p.store.WaitForJob(egCtx, p.cfg.JobType, p.cfg.PollTimeout); err != nil && egCtx.Err() == nil {
				slog.Warn("worker: wait for job failed, falling back to poll", "job_type", p.cfg.JobType, "error", err)
			}
			continue
		}

		if err := p.sem.Acquire(egCtx, 1); err != nil {
			return eg.Wait()
		}
		eg.Go(func() error {
			defer p.sem.Release(1)
			p.dispatch(egCtx, job, handle)
			return nil
		})
	}
}

func (p *Pool) dispatch(ctx context.Context, job *domain.Job, handle Handler) {
	if err := handle(ctx, job); err != nil {
		outcome, failErr := p.store.Fail(ctx, job.ID, "handler_error", err.Error())
		if failErr != nil {
			slog.Error("worker: fail call failed", "job_id", job.ID, "error", failErr)
			return
		}
		slog.Warn("worker: job handler failed", "job_id", job.ID, "job_type", job.Type, "outcome", outcome, "error", err)
		return
	}
	if _, err := p.store.Complete(ctx, job.ID); err != nil {
		slog.Error("worker: complete call failed", "job_id", job.ID, "error", err)
	}
}

func (p *Pool) heartbeatLoop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(p.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			hbCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := p.store.Heartbeat(hbCtx, p.cfg.WorkerType, p.cfg.InstanceID, "ok"); err != nil {
				slog.Warn("worker: heartbeat failed", "worker_type", p.cfg.WorkerType, "error", err)
			}
			cancel()
		}
	}
}
