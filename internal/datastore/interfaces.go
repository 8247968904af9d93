// interfaces.go: this code defines the interface for the training run registry
package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/myconet/internal/conf"
	"github.com/tphakala/myconet/internal/errors"
	"github.com/tphakala/myconet/internal/logger"
	"github.com/tphakala/myconet/internal/observability/metrics"
)

// ErrNotFound is returned when no training run matches a query.
var ErrNotFound = errors.NewStd("training run not found")

// ErrNotOpen is returned when the store is used before Open.
var ErrNotOpen = errors.NewStd("database connection is not initialized")

// Interface abstracts the underlying database implementation.
type Interface interface {
	Open() error
	Close() error
	SaveTrainingRun(ctx context.Context, run *TrainingRun) error
	LatestTrainingRun(ctx context.Context, model string) (*TrainingRun, error)
	ListTrainingRuns(ctx context.Context, limit int) ([]TrainingRun, error)
}

// GetLogger returns the datastore module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}

// DataStore implements the shared queries on a GORM database.
type DataStore struct {
	DB      *gorm.DB // GORM database instance
	metrics *metrics.DatastoreMetrics
}

// New returns the store selected by the output settings. When no database
// output is enabled a no-op store is returned.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return NopStore{}
	}
}

// SetMetrics attaches datastore metrics to a store created by New.
func SetMetrics(store Interface, m *metrics.DatastoreMetrics) {
	switch s := store.(type) {
	case *SQLiteStore:
		s.metrics = m
	case *MySQLStore:
		s.metrics = m
	}
}

func (ds *DataStore) record(op string, start time.Time, err error) {
	if ds.metrics != nil {
		ds.metrics.RecordOperation(op, time.Since(start), err)
	}
}

// SaveTrainingRun inserts one training run.
func (ds *DataStore) SaveTrainingRun(ctx context.Context, run *TrainingRun) (err error) {
	defer func(start time.Time) { ds.record(metrics.OpSaveRun, start, err) }(time.Now())
	if ds.DB == nil {
		return dbError(ErrNotOpen, "save_training_run")
	}

	if err = ds.DB.WithContext(ctx).Create(run).Error; err != nil {
		return dbError(err, "save_training_run")
	}
	GetLogger().Debug("training run saved",
		logger.String("model", run.Model),
		logger.Float64("accuracy", run.Accuracy))
	return nil
}

// LatestTrainingRun returns the most recent run of a model.
func (ds *DataStore) LatestTrainingRun(ctx context.Context, model string) (run *TrainingRun, err error) {
	defer func(start time.Time) { ds.record(metrics.OpLatestRun, start, err) }(time.Now())
	if ds.DB == nil {
		return nil, dbError(ErrNotOpen, "latest_training_run")
	}

	var r TrainingRun
	err = ds.DB.WithContext(ctx).
		Where("model = ?", model).
		Order("created_at DESC").
		Order("id DESC").
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New(ErrNotFound).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Context("model", model).
			Build()
	}
	if err != nil {
		return nil, dbError(err, "latest_training_run")
	}
	return &r, nil
}

// ListTrainingRuns returns up to limit runs, newest first. limit <= 0 means all.
func (ds *DataStore) ListTrainingRuns(ctx context.Context, limit int) (runs []TrainingRun, err error) {
	defer func(start time.Time) { ds.record(metrics.OpListRuns, start, err) }(time.Now())
	if ds.DB == nil {
		return nil, dbError(ErrNotOpen, "list_training_runs")
	}

	q := ds.DB.WithContext(ctx).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err = q.Find(&runs).Error; err != nil {
		return nil, dbError(err, "list_training_runs")
	}
	if ds.metrics != nil {
		ds.metrics.SetTrainingRuns(len(runs))
	}
	return runs, nil
}

func dbError(err error, operation string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation).
		Build()
}

// NopStore is used when no database output is enabled. Writes are dropped
// and lookups find nothing.
type NopStore struct{}

func (NopStore) Open() error  { return nil }
func (NopStore) Close() error { return nil }

func (NopStore) SaveTrainingRun(context.Context, *TrainingRun) error { return nil }

func (NopStore) LatestTrainingRun(_ context.Context, model string) (*TrainingRun, error) {
	return nil, errors.New(ErrNotFound).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Context("model", model).
		Build()
}

func (NopStore) ListTrainingRuns(context.Context, int) ([]TrainingRun, error) { return nil, nil }
