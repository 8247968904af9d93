package datastore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/myconet/internal/conf"
	"github.com/tphakala/myconet/internal/errors"
	"github.com/tphakala/myconet/internal/model"
	"github.com/tphakala/myconet/internal/observability/metrics"
	"github.com/tphakala/myconet/internal/training"
)

func openSQLite(t *testing.T) Interface {
	t.Helper()
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "db", "myconet.db")

	store := New(settings)
	require.IsType(t, &SQLiteStore{}, store)

	m, err := metrics.NewDatastoreMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	SetMetrics(store, m)

	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func run(name string, accuracy float64, at time.Time) *TrainingRun {
	return &TrainingRun{
		Model:     name,
		TotalRows: 100,
		CleanRows: 95,
		TrainRows: 76,
		TestRows:  19,
		Accuracy:  accuracy,
		Trees:     100,
		Seed:      42,
		Report:    `{"model":"` + name + `","accuracy":` + "0.5" + `}`,
		CreatedAt: at,
	}
}

func TestSaveAndLatestTrainingRun(t *testing.T) {
	store := openSQLite(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveTrainingRun(ctx, run(model.PlantHealth, 0.91, base)))
	require.NoError(t, store.SaveTrainingRun(ctx, run(model.PlantHealth, 0.97, base.Add(time.Hour))))
	require.NoError(t, store.SaveTrainingRun(ctx, run(model.FungalNetwork, 0.88, base.Add(2*time.Hour))))

	latest, err := store.LatestTrainingRun(ctx, model.PlantHealth)
	require.NoError(t, err)
	assert.InDelta(t, 0.97, latest.Accuracy, 1e-12)
	assert.NotZero(t, latest.ID)

	rep, err := latest.DecodeReport()
	require.NoError(t, err)
	assert.Equal(t, model.PlantHealth, rep.Model)
}

func TestLatestTrainingRunNotFound(t *testing.T) {
	store := openSQLite(t)
	_, err := store.LatestTrainingRun(context.Background(), model.FungalNetwork)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, errors.IsNotFound(err))
}

func TestListTrainingRuns(t *testing.T) {
	store := openSQLite(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := range 5 {
		require.NoError(t, store.SaveTrainingRun(ctx, run(model.PlantHealth, float64(i)/10, base.Add(time.Duration(i)*time.Minute))))
	}

	runs, err := store.ListTrainingRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.InDelta(t, 0.4, runs[0].Accuracy, 1e-12)
	assert.True(t, runs[0].CreatedAt.After(runs[1].CreatedAt))

	all, err := store.ListTrainingRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestNewTrainingRun(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	res := &training.Result{
		Bundle: &model.Bundle{Name: model.FungalNetwork, TrainedAt: at},
		Report: training.Evaluate(model.FungalNetwork, []string{"0", "1"}, []int{0, 1, 1}, []int{0, 1, 0}),
		Stats:  training.Stats{TotalRows: 10, CleanRows: 9, TrainRows: 7, TestRows: 2, Duration: 1500 * time.Millisecond},
	}
	res.Params.Trees = 100
	res.Params.Seed = 42

	r, err := NewTrainingRun(res)
	require.NoError(t, err)
	assert.Equal(t, model.FungalNetwork, r.Model)
	assert.Equal(t, int64(1500), r.DurationMs)
	assert.Equal(t, 100, r.Trees)
	assert.Equal(t, at, r.CreatedAt)
	assert.InDelta(t, 2.0/3.0, r.Accuracy, 1e-12)

	rep, err := r.DecodeReport()
	require.NoError(t, err)
	assert.Len(t, rep.Classes, 2)
}

func TestNopStore(t *testing.T) {
	store := New(&conf.Settings{})
	require.IsType(t, NopStore{}, store)
	ctx := context.Background()

	require.NoError(t, store.Open())
	require.NoError(t, store.SaveTrainingRun(ctx, run(model.PlantHealth, 1, time.Now())))
	_, err := store.LatestTrainingRun(ctx, model.PlantHealth)
	assert.ErrorIs(t, err, ErrNotFound)
	runs, err := store.ListTrainingRuns(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
	require.NoError(t, store.Close())
}

func TestStoreNotOpen(t *testing.T) {
	store := &SQLiteStore{Settings: &conf.Settings{}}
	err := store.SaveTrainingRun(context.Background(), run(model.PlantHealth, 1, time.Now()))
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.Error(t, store.Close())
}

func TestMySQLDSN(t *testing.T) {
	settings := &conf.Settings{}
	settings.Output.MySQL = conf.MySQLSettings{
		Enabled:  true,
		Username: "myconet",
		Password: "secret",
		Database: "runs",
		Host:     "db.local",
		Port:     "3306",
	}
	store, ok := New(settings).(*MySQLStore)
	require.True(t, ok)
	assert.Equal(t, "myconet:secret@tcp(db.local:3306)/runs?charset=utf8mb4&parseTime=True&loc=Local", store.dsn())
}
