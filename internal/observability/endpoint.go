package observability

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/tphakala/myconet/internal/conf"
	"github.com/tphakala/myconet/internal/logger"
	"github.com/tphakala/myconet/internal/observability/metrics"
)

// Endpoint serves /metrics on a dedicated listener so that scrapers do not
// go through the dashboard middleware.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	metrics       *Metrics
}

// NewEndpoint creates the metrics listener. It fails when telemetry is disabled.
func NewEndpoint(settings *conf.Settings, m *Metrics) (*Endpoint, error) {
	if !settings.Telemetry.Enabled {
		return nil, errors.New("telemetry not enabled in settings")
	}

	return &Endpoint{
		listenAddress: settings.Telemetry.Listen,
		metrics:       m,
	}, nil
}

// Start runs the listener until ctx is cancelled.
func (e *Endpoint) Start(ctx context.Context, wg *sync.WaitGroup) {
	mux := http.NewServeMux()
	e.metrics.RegisterHandlers(mux)

	e.server = &http.Server{
		Addr:    e.listenAddress,
		Handler: mux,
	}

	log := GetLogger()
	wg.Go(func() {
		log.Info("Telemetry endpoint starting", logger.String("address", e.listenAddress))
		if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Telemetry HTTP server error", logger.Error(err))
		}
	})

	wg.Go(func() {
		<-ctx.Done()
		e.shutdown()
	})
}

func (e *Endpoint) shutdown() {
	log := GetLogger()
	log.Info("Stopping telemetry server")
	ctx, cancel := context.WithTimeout(context.Background(), metrics.ShutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(ctx); err != nil {
		log.Error("Telemetry server shutdown error", logger.Error(err))
	}
}

// GetMetrics returns the Metrics instance associated with this Endpoint.
func (e *Endpoint) GetMetrics() *Metrics {
	return e.metrics
}
