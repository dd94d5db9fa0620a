package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/meridianfm/meridian/internal/observe"
)

// embeddingDimensions is the vector width of the configured embeddings
// provider (text-embedding-3-small). Every subcommand runs the same store
// migration, so all of them pass this constant regardless of whether that
// particular process uses embeddings itself.
const embeddingDimensions = 1536

// initObservability is shared setup for every subcommand: the OTel provider
// bridge, an http.Handler for /metrics, and the Metrics instruments built
// on the now-global MeterProvider.
func initObservability(ctx context.Context, serviceName string) (metrics *observe.Metrics, metricsHandler http.Handler, shutdown func(), err error) {
	rawShutdown, metricsHandler, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: serviceName})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init provider: %w", err)
	}
	metrics = observe.DefaultMetrics()
	return metrics, metricsHandler, func() { _ = rawShutdown(context.Background()) }, nil
}
