package charts

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/myconet/internal/analysis"
	"github.com/tphakala/myconet/internal/errors"
	"github.com/tphakala/myconet/internal/history"
	"github.com/tphakala/myconet/internal/testutil"
)

func entries() []*history.Entry {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	statuses := []string{analysis.StatusHealthy, analysis.StatusHighStress, analysis.StatusHealthy}
	out := make([]*history.Entry, len(statuses))
	for i, s := range statuses {
		out[i] = &history.Entry{
			ID:      strconv.Itoa(i + 1),
			Plant:   &analysis.PlantResult{Status: s, SoilMoisture: float64(20 + 10*i), Nitrogen: 40},
			Fungal:  &analysis.FungalResult{RiskLevel: analysis.RiskLow, AMFColonization: 60},
			SavedAt: base.Add(time.Duration(i) * time.Hour),
		}
	}
	return out
}

func TestImportanceChartIsCached(t *testing.T) {
	set := testutil.TrainedSet(t)
	r := NewRenderer(time.Minute)

	first, err := r.Importance(set.Fungal)
	require.NoError(t, err)
	assert.Contains(t, string(first), "<svg")
	assert.Contains(t, string(first), "Myco-Net Model Feature Importance")
	assert.Equal(t, 1, r.cache.ItemCount())

	second, err := r.Importance(set.Fungal)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, r.cache.ItemCount())

	plant, err := r.Importance(set.Plant)
	require.NoError(t, err)
	assert.Contains(t, string(plant), "Plant Health Model Feature Importance")
	assert.Equal(t, 2, r.cache.ItemCount())
}

func TestTrend(t *testing.T) {
	r := NewRenderer(time.Minute)
	for _, s := range Series() {
		t.Run(s, func(t *testing.T) {
			svg, err := r.Trend(s, entries())
			require.NoError(t, err)
			assert.Contains(t, string(svg), "<svg")
		})
	}
}

func TestTrendEmptyAndSinglePoint(t *testing.T) {
	r := NewRenderer(time.Minute)

	svg, err := r.Trend(SeriesAMF, nil)
	require.NoError(t, err)
	assert.Contains(t, string(svg), "no saved results")

	_, err = r.Trend(SeriesNitrogen, entries()[:1])
	require.NoError(t, err)
}

func TestTrendUnknownSeries(t *testing.T) {
	_, err := NewRenderer(time.Minute).Trend("rainfall", entries())
	require.ErrorIs(t, err, ErrUnknownSeries)
	assert.True(t, errors.IsNotFound(err))
}

func TestStatusDistribution(t *testing.T) {
	r := NewRenderer(time.Minute)

	svg, err := r.StatusDistribution(entries())
	require.NoError(t, err)
	assert.Contains(t, string(svg), "Plant Status Distribution")
	assert.Contains(t, string(svg), analysis.StatusModerateStress)

	_, err = r.StatusDistribution(nil)
	require.NoError(t, err)
}
