// Package metrics provides custom Prometheus metrics for the Myco-Net application.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/tphakala/myconet/internal/errors"
)

// MycoNetMetrics contains the prediction, history and training metrics.
type MycoNetMetrics struct {
	// Prediction metrics
	PredictionTotal    *prometheus.CounterVec
	PredictionDuration *prometheus.HistogramVec
	PredictionErrors   *prometheus.CounterVec

	// Model state
	ModelLoaded *prometheus.GaugeVec

	// History operations
	HistorySaves   prometheus.Counter
	HistoryExports *prometheus.CounterVec

	// Training
	TrainingDuration *prometheus.HistogramVec
	TrainingAccuracy *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMycoNetMetrics creates the collector and registers it on registry.
func NewMycoNetMetrics(registry *prometheus.Registry) (*MycoNetMetrics, error) {
	m := &MycoNetMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register Myco-Net metrics: %w", err)
	}
	return m, nil
}

func (m *MycoNetMetrics) initMetrics() {
	m.PredictionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "myconet_predictions_total",
			Help: "Total number of predictions partitioned by model and predicted status.",
		},
		[]string{"model", "status"},
	)

	m.PredictionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "myconet_prediction_duration_seconds",
			Help:    "Time taken to score one reading",
			Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount12),
		},
		[]string{"model"},
	)

	m.PredictionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "myconet_prediction_errors_total",
			Help: "Total number of failed predictions",
		},
		[]string{"model", "error_type"},
	)

	m.ModelLoaded = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "myconet_model_loaded",
			Help: "Whether a model is currently loaded (1) or not (0)",
		},
		[]string{"model"},
	)

	m.HistorySaves = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "myconet_history_saves_total",
			Help: "Total number of combined results saved to session history",
		},
	)

	m.HistoryExports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "myconet_history_exports_total",
			Help: "Total number of history CSV exports",
		},
		[]string{"source"},
	)

	m.TrainingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "myconet_training_duration_seconds",
			Help:    "Time taken to train a model",
			Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount10),
		},
		[]string{"model"},
	)

	m.TrainingAccuracy = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "myconet_training_accuracy",
			Help: "Held-out accuracy of the most recent training run",
		},
		[]string{"model"},
	)
}

// RecordPrediction records the outcome of one prediction.
func (m *MycoNetMetrics) RecordPrediction(model, status string, duration time.Duration, err error) {
	if err != nil {
		m.PredictionErrors.WithLabelValues(model, categorizeError(err)).Inc()
		return
	}
	m.PredictionTotal.WithLabelValues(model, status).Inc()
	m.PredictionDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// SetModelLoaded flags a model as loaded or unloaded.
func (m *MycoNetMetrics) SetModelLoaded(model string, loaded bool) {
	v := 0.0
	if loaded {
		v = 1
	}
	m.ModelLoaded.WithLabelValues(model).Set(v)
}

// IsModelLoaded reads back the model loaded gauge.
func (m *MycoNetMetrics) IsModelLoaded(model string) bool {
	var metric dto.Metric
	if err := m.ModelLoaded.WithLabelValues(model).Write(&metric); err != nil {
		return false
	}
	return metric.GetGauge().GetValue() == 1
}

// RecordHistorySave counts a saved combined result.
func (m *MycoNetMetrics) RecordHistorySave() {
	m.HistorySaves.Inc()
}

// RecordHistoryExport counts a CSV export; source is "dashboard" or "api".
func (m *MycoNetMetrics) RecordHistoryExport(source string) {
	m.HistoryExports.WithLabelValues(source).Inc()
}

// RecordTraining records the duration and accuracy of a training run.
func (m *MycoNetMetrics) RecordTraining(model string, duration time.Duration, accuracy float64) {
	m.TrainingDuration.WithLabelValues(model).Observe(duration.Seconds())
	m.TrainingAccuracy.WithLabelValues(model).Set(accuracy)
}

// categorizeError maps an error to a low cardinality label.
func categorizeError(err error) string {
	return string(errors.CategoryOf(err))
}

// Describe implements the prometheus.Collector interface.
func (m *MycoNetMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.PredictionTotal.Describe(ch)
	m.PredictionDuration.Describe(ch)
	m.PredictionErrors.Describe(ch)
	m.ModelLoaded.Describe(ch)
	ch <- m.HistorySaves.Desc()
	m.HistoryExports.Describe(ch)
	m.TrainingDuration.Describe(ch)
	m.TrainingAccuracy.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *MycoNetMetrics) Collect(ch chan<- prometheus.Metric) {
	m.PredictionTotal.Collect(ch)
	m.PredictionDuration.Collect(ch)
	m.PredictionErrors.Collect(ch)
	m.ModelLoaded.Collect(ch)
	ch <- m.HistorySaves
	m.HistoryExports.Collect(ch)
	m.TrainingDuration.Collect(ch)
	m.TrainingAccuracy.Collect(ch)
}
