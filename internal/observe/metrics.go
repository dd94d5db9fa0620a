// Package observe provides application-wide observability primitives for
// Meridian: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Meridian metrics.
const meterName = "github.com/meridianfm/meridian"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Job queue (§4.1) ---

	// JobsEnqueued counts jobs inserted into the queue. Attribute: "type".
	JobsEnqueued metric.Int64Counter

	// JobsClaimed counts successful claims. Attribute: "type".
	JobsClaimed metric.Int64Counter

	// JobsFailed counts job failures recorded by Fail. Attributes: "type", "outcome"
	// ("retry" or "dlq").
	JobsFailed metric.Int64Counter

	// JobClaimLatency tracks the time a job waits between scheduled_for and
	// the moment it is claimed.
	JobClaimLatency metric.Float64Histogram

	// QueueDepth is an instrument for the number of pending jobs by type.
	// The worker harness does not update it.
	QueueDepth metric.Int64UpDownCounter

	// --- Segment pipeline (§4.2, §4.4, §4.5) ---

	// SegmentTransitions counts segment state-machine transitions.
	// Attributes: "from", "to".
	SegmentTransitions metric.Int64Counter

	// StageDuration tracks wall-clock time spent in each generation stage.
	// Attribute: "stage" (retrieval, script, tone, consistency, tts,
	// mastering).
	StageDuration metric.Float64Histogram

	// MasteringDuration tracks loudness-normalization latency specifically,
	// since it is the most I/O-heavy stage (§4.5).
	MasteringDuration metric.Float64Histogram

	// --- Provider calls ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Playout (§4.6) ---

	// SegmentsAired counts segments that completed airing.
	SegmentsAired metric.Int64Counter

	// DeadAirAlerts counts dead-air alerts raised by the broadcaster.
	DeadAirAlerts metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for fast
// operations (provider calls, claim latency).
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// stageBuckets defines histogram bucket boundaries (in seconds) for the
// slower, I/O-bound generation and mastering stages.
var stageBuckets = []float64{
	0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.JobsEnqueued, err = m.Int64Counter("meridian.jobs.enqueued",
		metric.WithDescription("Total jobs inserted into the durable queue, by type."),
	); err != nil {
		return nil, err
	}
	if met.JobsClaimed, err = m.Int64Counter("meridian.jobs.claimed",
		metric.WithDescription("Total successful job claims, by type."),
	); err != nil {
		return nil, err
	}
	if met.JobsFailed, err = m.Int64Counter("meridian.jobs.failed",
		metric.WithDescription("Total job failures, by type and outcome (retry/dlq)."),
	); err != nil {
		return nil, err
	}
	if met.JobClaimLatency, err = m.Float64Histogram("meridian.jobs.claim_latency",
		metric.WithDescription("Time between a job's scheduled_for and its claim."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.QueueDepth, err = m.Int64UpDownCounter("meridian.jobs.queue_depth",
		metric.WithDescription("Number of pending jobs, by type."),
	); err != nil {
		return nil, err
	}

	if met.SegmentTransitions, err = m.Int64Counter("meridian.segments.transitions",
		metric.WithDescription("Total segment state-machine transitions, by from/to state."),
	); err != nil {
		return nil, err
	}
	if met.StageDuration, err = m.Float64Histogram("meridian.pipeline.stage_duration",
		metric.WithDescription("Latency of a single generation-pipeline stage, by stage name."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if met.MasteringDuration, err = m.Float64Histogram("meridian.mastering.duration",
		metric.WithDescription("Latency of the loudness-normalization mastering stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ProviderRequests, err = m.Int64Counter("meridian.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("meridian.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	if met.SegmentsAired, err = m.Int64Counter("meridian.playout.segments_aired",
		metric.WithDescription("Total segments that completed airing."),
	); err != nil {
		return nil, err
	}
	if met.DeadAirAlerts, err = m.Int64Counter("meridian.playout.dead_air_alerts",
		metric.WithDescription("Total dead-air alerts raised by the broadcaster."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("meridian.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordJobEnqueued increments the enqueue counter for a job type.
func (m *Metrics) RecordJobEnqueued(ctx context.Context, jobType string) {
	m.JobsEnqueued.Add(ctx, 1, metric.WithAttributes(attribute.String("type", jobType)))
}

// RecordJobClaimed increments the claim counter for a job type.
func (m *Metrics) RecordJobClaimed(ctx context.Context, jobType string) {
	m.JobsClaimed.Add(ctx, 1, metric.WithAttributes(attribute.String("type", jobType)))
}

// RecordJobFailed increments the failure counter for a job type and outcome.
func (m *Metrics) RecordJobFailed(ctx context.Context, jobType, outcome string) {
	m.JobsFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", jobType),
		attribute.String("outcome", outcome),
	))
}

// RecordSegmentTransition increments the transition counter for a from/to
// state pair.
func (m *Metrics) RecordSegmentTransition(ctx context.Context, from, to string) {
	m.SegmentTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordStageDuration records the latency of a named pipeline stage.
func (m *Metrics) RecordStageDuration(ctx context.Context, stage string, seconds float64) {
	m.StageDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
