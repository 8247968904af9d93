package model

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/tphakala/myconet/internal/conf"
	"github.com/tphakala/myconet/internal/dataset"
	"github.com/tphakala/myconet/internal/encoder"
	"github.com/tphakala/myconet/internal/errors"
	"github.com/tphakala/myconet/internal/forest"
)

func testBundle(t *testing.T, name string) *Bundle {
	t.Helper()
	x := mat.NewDense(6, 2, []float64{
		0, 10,
		1, 20,
		2, 30,
		8, 40,
		9, 50,
		10, 60,
	})
	y := []int{0, 0, 0, 1, 1, 1}

	scaler, err := dataset.FitMinMax(x, nil)
	require.NoError(t, err)

	p := forest.DefaultParams()
	p.Trees = 5
	f, err := forest.Fit(context.Background(), scaler.Transform(x), y, 2, p)
	require.NoError(t, err)

	return &Bundle{
		Name:         name,
		Features:     []string{"a", "b"},
		DisplayNames: []string{"A", "B"},
		Classes:      []string{"no", "yes"},
		Scaler:       scaler,
		Forest:       f,
		Accuracy:     1,
		Rows:         6,
		TrainedAt:    time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func testSet(t *testing.T) *Set {
	t.Helper()
	species, err := encoder.Fit("species", []string{"Acer", "Quercus"})
	require.NoError(t, err)
	light, err := encoder.Fit("light", []string{"High", "Low"})
	require.NoError(t, err)
	microbe, err := encoder.Fit("microbe", []string{"AMF", "EMF"})
	require.NoError(t, err)
	return &Set{
		Plant:    testBundle(t, PlantHealth),
		Fungal:   testBundle(t, FungalNetwork),
		Encoders: Encoders{Species: species, Light: light, Microbe: microbe},
	}
}

func testPaths(dir string) Paths {
	return PathsFromSettings(&conf.ModelSettings{
		Dir:     dir,
		Plant:   "plant.json.zst",
		Fungal:  "fungal.json.zst",
		Species: "species.json",
		Light:   "light.json",
		Microbe: "microbe.json",
	})
}

func TestBundleRoundTrip(t *testing.T) {
	b := testBundle(t, PlantHealth)
	path := filepath.Join(t.TempDir(), "bundle.json.zst")

	require.NoError(t, SaveBundle(path, b))
	loaded, err := LoadBundle(path)
	require.NoError(t, err)

	assert.Equal(t, b.Features, loaded.Features)
	assert.Equal(t, b.Classes, loaded.Classes)
	assert.True(t, b.TrainedAt.Equal(loaded.TrainedAt))

	row := loaded.Prepare([]float64{9, 55})
	want, err := b.Forest.PredictProba(b.Prepare([]float64{9, 55}))
	require.NoError(t, err)
	got, err := loaded.Forest.PredictProba(row)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadBundleRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json.zst")
	require.NoError(t, os.WriteFile(path, []byte("not zstd"), 0o600))

	_, err := LoadBundle(path)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelLoad))
}

func TestBundleValidate(t *testing.T) {
	b := testBundle(t, PlantHealth)
	require.NoError(t, b.Validate())

	b.Classes = []string{"only"}
	assert.Error(t, b.Validate())

	b = testBundle(t, PlantHealth)
	b.DisplayNames = nil
	assert.Error(t, b.Validate())

	b = testBundle(t, PlantHealth)
	b.Scaler.Columns = []int{5}
	b.Scaler.Min = []float64{0}
	b.Scaler.Max = []float64{1}
	assert.Error(t, b.Validate())
}

func TestSaveAndLoadArtifacts(t *testing.T) {
	paths := testPaths(filepath.Join(t.TempDir(), "models"))
	require.NoError(t, SaveArtifacts(paths, testSet(t)))
	assert.Empty(t, paths.Missing())

	set, err := LoadArtifacts(paths)
	require.NoError(t, err)
	assert.Equal(t, PlantHealth, set.Plant.Name)
	assert.Equal(t, FungalNetwork, set.Fungal.Name)
	assert.Equal(t, []string{"High", "Low"}, set.Encoders.Light.Classes)
}

func TestLoadArtifactsReportsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	paths := testPaths(dir)
	require.NoError(t, SaveArtifacts(paths, testSet(t)))
	require.NoError(t, os.Remove(paths.Light))
	require.NoError(t, os.Remove(paths.Fungal))

	set, err := LoadArtifacts(paths)
	require.Error(t, err)
	assert.Nil(t, set)
	assert.ErrorIs(t, err, ErrArtifactsMissing)
	assert.Contains(t, err.Error(), paths.Light)
	assert.Contains(t, err.Error(), paths.Fungal)
	assert.NotContains(t, err.Error(), paths.Plant)
}

func TestSaveArtifactsRejectsIncompleteSet(t *testing.T) {
	set := testSet(t)
	set.Encoders.Microbe = nil
	assert.Error(t, SaveArtifacts(testPaths(t.TempDir()), set))
}
