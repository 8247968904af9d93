package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/myconet/internal/conf"
)

// NewMetrics builds an independent registry per call, so concurrent callers
// never collide on registration.
func TestNewMetricsConcurrency(t *testing.T) {
	const numGoroutines = 20

	var wg sync.WaitGroup
	for range numGoroutines {
		wg.Go(func() {
			m, err := NewMetrics()
			if !assert.NoError(t, err) {
				return
			}
			assert.NotNil(t, m.Registry())
			assert.NotNil(t, m.MycoNet)
			assert.NotNil(t, m.HTTP)
			assert.NotNil(t, m.Datastore)
		})
	}
	wg.Wait()
}

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)
	m.MycoNet.SetModelLoaded("plant_health", true)
	m.MycoNet.RecordHistorySave()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `myconet_model_loaded{model="plant_health"} 1`)
	assert.Contains(t, string(body), "myconet_history_saves_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNewEndpointRequiresTelemetry(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	settings := &conf.Settings{}
	_, err = NewEndpoint(settings, m)
	assert.Error(t, err)

	settings.Telemetry.Enabled = true
	settings.Telemetry.Listen = "127.0.0.1:0"
	e, err := NewEndpoint(settings, m)
	require.NoError(t, err)
	assert.Same(t, m, e.GetMetrics())
}
