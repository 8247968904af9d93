// Package testutil provides shared test fixtures for the Myco-Net packages:
// small training tables and an artifact set trained from them.
package testutil

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tphakala/myconet/internal/conf"
	"github.com/tphakala/myconet/internal/model"
	"github.com/tphakala/myconet/internal/training"
)

// PlantColumns are the numeric plant table columns in model order.
var PlantColumns = []string{
	"Soil_Moisture", "Ambient_Temperature", "Soil_Temperature", "Humidity", "Light_Intensity",
	"Soil_pH", "Nitrogen_Level", "Phosphorus_Level", "Potassium_Level", "Chlorophyll_Content",
	"Electrochemical_Signal",
}

// Fungal fixture categories.
var (
	Species  = []string{"Acer saccharum", "Quercus rubra"}
	Lights   = []string{"High", "Low"}
	Microbes = []string{"Live", "Sterile"}
)

// PlantStatus is the rule the plant fixture follows: status depends only on
// soil moisture.
func PlantStatus(moisture float64) string {
	switch {
	case moisture < 20:
		return "High Stress"
	case moisture < 40:
		return "Moderate Stress"
	default:
		return "Healthy"
	}
}

// WritePlantCSV writes a plant table with n complete rows to dir.
func WritePlantCSV(t *testing.T, dir string, n int) string {
	t.Helper()
	rng := rand.New(rand.NewPCG(1, 2))

	var b strings.Builder
	b.WriteString("Timestamp,Plant_ID," + strings.Join(PlantColumns, ",") + ",Plant_Health_Status\n")
	for i := range n {
		moisture := float64(i%60) + 0.5
		fields := []string{"2024-05-01 08:00:00", fmt.Sprint(i%5 + 1), fmt.Sprintf("%.2f", moisture)}
		for range len(PlantColumns) - 1 {
			fields = append(fields, fmt.Sprintf("%.2f", rng.Float64()*50))
		}
		fields = append(fields, PlantStatus(moisture))
		b.WriteString(strings.Join(fields, ",") + "\n")
	}

	path := filepath.Join(dir, "plant_health_data.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

// WriteFungalCSV writes a fungal table with n rows to dir. Survival ("1")
// depends only on AMF colonization above 50.
func WriteFungalCSV(t *testing.T, dir string, n int) string {
	t.Helper()
	rng := rand.New(rand.NewPCG(3, 4))

	var b strings.Builder
	b.WriteString("Species,Light,Microbe,AMF,PHN_Imp,NSC_Imp,LIG_Imp,Survived\n")
	for i := range n {
		amf := float64(i%100) + 0.5
		survived := 0
		if amf > 50 {
			survived = 1
		}
		fmt.Fprintf(&b, "%s,%s,%s,%.2f,%.2f,%.2f,%.2f,%d\n",
			Species[i%len(Species)], Lights[(i/2)%len(Lights)], Microbes[(i/3)%len(Microbes)],
			amf, rng.Float64(), rng.Float64(), rng.Float64(), survived)
	}

	path := filepath.Join(dir, "myco_network_data.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

// Settings returns data and training settings pointing at the fixture tables
// in dir. The forest is small and considers every feature at each split so
// that the fixture rules are learned exactly.
func Settings(plantPath, fungalPath string) (conf.DataSettings, conf.TrainingSettings) {
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
		Trees:           10,
		Seed:            42,
		TestFraction:    0.2,
		MaxFeatures:     "all",
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Workers:         2,
	}
	return data, ts
}

// TrainedSet trains both fixture models and returns the artifact set.
func TrainedSet(t *testing.T) *model.Set {
	t.Helper()
	dir := t.TempDir()
	data, ts := Settings(WritePlantCSV(t, dir, 240), WriteFungalCSV(t, dir, 200))

	trainer := training.New(data, ts)
	plant, err := trainer.TrainPlant(context.Background())
	require.NoError(t, err)
	fungal, err := trainer.TrainFungal(context.Background())
	require.NoError(t, err)

	return &model.Set{
		Plant:    plant.Bundle,
		Fungal:   fungal.Bundle,
		Encoders: fungal.Encoders,
	}
}
