package training

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/myconet/internal/conf"
	"github.com/tphakala/myconet/internal/dataset"
	"github.com/tphakala/myconet/internal/model"
)

var plantColumns = []string{
	"Soil_Moisture", "Ambient_Temperature", "Soil_Temperature", "Humidity", "Light_Intensity",
	"Soil_pH", "Nitrogen_Level", "Phosphorus_Level", "Potassium_Level", "Chlorophyll_Content",
	"Electrochemical_Signal",
}

// writePlantCSV writes n rows whose status is driven by soil moisture, plus
// naRows rows with a missing value.
func writePlantCSV(t *testing.T, dir string, n, naRows int) string {
	t.Helper()
	rng := rand.New(rand.NewPCG(7, 7))

	var b strings.Builder
	b.WriteString("Timestamp,Plant_ID," + strings.Join(plantColumns, ",") + ",Plant_Health_Status\n")
	for i := range n + naRows {
		moisture := rng.Float64() * 60
		status := "Healthy"
		switch {
		case moisture < 20:
			status = "High Stress"
		case moisture < 40:
			status = "Moderate Stress"
		}
		fields := []string{"2024-01-01 00:00:00", fmt.Sprint(i%10 + 1), fmt.Sprintf("%.3f", moisture)}
		for range len(plantColumns) - 1 {
			fields = append(fields, fmt.Sprintf("%.3f", rng.Float64()*100))
		}
		if i >= n {
			fields[4] = ""
		}
		fields = append(fields, status)
		b.WriteString(strings.Join(fields, ",") + "\n")
	}

	path := filepath.Join(dir, "plant.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

// writeFungalCSV writes rows where survival follows AMF colonization.
func writeFungalCSV(t *testing.T, dir string, n int) string {
	t.Helper()
	rng := rand.New(rand.NewPCG(11, 11))
	species := []string{"Acer saccharum", "Prunus serotina", "Quercus alba"}
	light := []string{"High", "Low", "Med"}
	microbe := []string{"Live", "Sterile"}

	var b strings.Builder
	b.WriteString("Species,Light,Microbe,AMF,PHN_Imp,NSC_Imp,LIG_Imp,Survived\n")
	for i := range n {
		amf := rng.Float64() * 100
		survived := "0.0"
		if amf > 50 {
			survived = "1.0"
		}
		fmt.Fprintf(&b, "%s,%s,%s,%.2f,%.2f,%.2f,%.2f,%s\n",
			species[i%len(species)], light[i%len(light)], microbe[i%len(microbe)],
			amf, rng.Float64(), rng.Float64(), rng.Float64(), survived)
	}
	b.WriteString("Quercus alba,,Live,40,0.1,0.2,0.3,0\n")

	path := filepath.Join(dir, "fungal.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func testSettings(plantPath, fungalPath string) (conf.DataSettings, conf.TrainingSettings) {
	data := conf.DataSettings{
		Plant: conf.PlantDataSettings{
			Path:  plantPath,
			Label: "Plant_Health_Status",
			Drop:  []string{"Timestamp", "Plant_ID"},
		},
		Fungal: conf.FungalDataSettings{
			Path:         fungalPath,
			Label:        "Survived",
			SurviveLabel: "1",
			Species:      "Species",
			Light:        "Light",
			Microbe:      "Microbe",
			Numeric:      []string{"AMF", "PHN_Imp", "NSC_Imp", "LIG_Imp"},
		},
	}
	ts := conf.TrainingSettings{
		Trees:           15,
		Seed:            42,
		TestFraction:    0.2,
		MaxFeatures:     "sqrt",
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Workers:         2,
	}
	return data, ts
}

func TestTrainPlant(t *testing.T) {
	dir := t.TempDir()
	data, ts := testSettings(writePlantCSV(t, dir, 150, 5), "")

	res, err := New(data, ts).TrainPlant(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 155, res.Stats.TotalRows)
	assert.Equal(t, 150, res.Stats.CleanRows)
	assert.Equal(t, 30, res.Stats.TestRows)
	assert.Equal(t, 120, res.Stats.TrainRows)

	b := res.Bundle
	assert.Equal(t, model.PlantHealth, b.Name)
	assert.Equal(t, plantColumns, b.Features)
	assert.Equal(t, "Soil Moisture", b.DisplayNames[0])
	assert.Equal(t, []string{"Healthy", "High Stress", "Moderate Stress"}, b.Classes)
	require.NoError(t, b.Validate())

	assert.True(t, res.Report.Holdout)
	assert.Equal(t, 30, res.Report.Support)
	assert.GreaterOrEqual(t, res.Report.Accuracy, 0.6)
	assert.InDelta(t, res.Report.Accuracy, b.Accuracy, 1e-12)

	imp := b.Forest.FeatureImportances()
	assert.Len(t, imp, len(plantColumns))
}

func TestTrainPlantScalesIntoUnitInterval(t *testing.T) {
	dir := t.TempDir()
	path := writePlantCSV(t, dir, 60, 0)
	data, ts := testSettings(path, "")

	res, err := New(data, ts).TrainPlant(context.Background())
	require.NoError(t, err)

	table, err := dataset.ReadCSV(path)
	require.NoError(t, err)
	x, err := table.Float64Matrix(plantColumns)
	require.NoError(t, err)

	scaled := res.Bundle.Scaler.Transform(x)
	rows, cols := scaled.Dims()
	for j := range cols {
		lo, hi := 1.0, 0.0
		for i := range rows {
			v := scaled.At(i, j)
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
			lo, hi = min(lo, v), max(hi, v)
		}
		assert.InDelta(t, 0, lo, 1e-12)
		assert.InDelta(t, 1, hi, 1e-12)
	}
}

func TestTrainPlantIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	data, ts := testSettings(writePlantCSV(t, dir, 80, 0), "")

	a, err := New(data, ts).TrainPlant(context.Background())
	require.NoError(t, err)
	ts.Workers = 1
	b, err := New(data, ts).TrainPlant(context.Background())
	require.NoError(t, err)

	row := []float64{25, 20, 20, 50, 40000, 6.5, 45, 35, 40, 60, 5}
	pa, err := a.Bundle.Forest.PredictProba(a.Bundle.Prepare(row))
	require.NoError(t, err)
	pb, err := b.Bundle.Forest.PredictProba(b.Bundle.Prepare(row))
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
}

func TestTrainPlantMissingFile(t *testing.T) {
	data, ts := testSettings(filepath.Join(t.TempDir(), "nope.csv"), "")
	_, err := New(data, ts).TrainPlant(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, dataset.ErrSourceMissing)
}

func TestTrainPlantTooFewRows(t *testing.T) {
	dir := t.TempDir()
	data, ts := testSettings(writePlantCSV(t, dir, 1, 3), "")
	_, err := New(data, ts).TrainPlant(context.Background())
	assert.Error(t, err)
}

func TestTrainFungal(t *testing.T) {
	dir := t.TempDir()
	data, ts := testSettings("", writeFungalCSV(t, dir, 120))

	res, err := New(data, ts).TrainFungal(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 121, res.Stats.TotalRows)
	assert.Equal(t, 120, res.Stats.CleanRows)

	b := res.Bundle
	assert.Equal(t, model.FungalNetwork, b.Name)
	assert.Equal(t, []string{"0", "1"}, b.Classes)
	assert.Equal(t, []string{"Species", "Light", "Microbe", "AMF", "PHN_Imp", "NSC_Imp", "LIG_Imp"}, b.Features)
	assert.Equal(t, b.Features, b.DisplayNames)
	assert.Equal(t, []int{3, 4, 5, 6}, b.Scaler.Columns)
	require.NoError(t, b.Validate())
	assert.GreaterOrEqual(t, res.Report.Accuracy, 0.6)

	assert.Equal(t, []string{"Acer saccharum", "Prunus serotina", "Quercus alba"}, res.Encoders.Species.Classes)
	assert.Equal(t, []string{"High", "Low", "Med"}, res.Encoders.Light.Classes)
	assert.Equal(t, []string{"Live", "Sterile"}, res.Encoders.Microbe.Classes)
}

func TestTrainFungalDropsRowsMissingUnusedColumns(t *testing.T) {
	dir := t.TempDir()
	rng := rand.New(rand.NewPCG(5, 5))
	species := []string{"Acer saccharum", "Quercus alba"}

	var b strings.Builder
	b.WriteString("Plant_ID,Species,Light,Microbe,AMF,PHN_Imp,NSC_Imp,LIG_Imp,Survived\n")
	for i := range 20 {
		id := fmt.Sprint(i + 1)
		if i == 0 {
			id = ""
		}
		amf := float64(i) * 5
		fmt.Fprintf(&b, "%s,%s,High,Live,%.2f,%.2f,%.2f,%.2f,%d\n",
			id, species[i%2], amf, rng.Float64(), rng.Float64(), rng.Float64(), i%2)
	}
	path := filepath.Join(dir, "fungal_ids.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))

	data, ts := testSettings("", path)
	ts.TestFraction = 0
	res, err := New(data, ts).TrainFungal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, res.Stats.TotalRows)
	assert.Equal(t, 19, res.Stats.CleanRows, "an empty Plant_ID drops the row")
}

func TestTrainFungalMissingColumn(t *testing.T) {
	dir := t.TempDir()
	data, ts := testSettings("", writeFungalCSV(t, dir, 20))
	data.Fungal.Microbe = "Community"
	_, err := New(data, ts).TrainFungal(context.Background())
	assert.ErrorIs(t, err, dataset.ErrUnknownColumn)
}

func TestTrainWithoutHoldoutScoresTrainingRows(t *testing.T) {
	dir := t.TempDir()
	data, ts := testSettings(writePlantCSV(t, dir, 40, 0), "")
	ts.TestFraction = 0

	res, err := New(data, ts).TrainPlant(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Report.Holdout)
	assert.Equal(t, 40, res.Report.Support)
	assert.Zero(t, res.Stats.TestRows)
}

func TestNormalizeLabel(t *testing.T) {
	tests := map[string]string{
		"1":       "1",
		"1.0":     "1",
		" 0.0 ":   "0",
		"1.5":     "1.5",
		"Healthy": "Healthy",
		"NaN":     "NaN",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeLabel(in), in)
	}
}
