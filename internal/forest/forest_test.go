package forest

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// synthetic returns three classes determined by feature 0 with two noise features.
func synthetic(n int, seed uint64) (*mat.Dense, []int) {
	rng := rand.New(rand.NewPCG(seed, seed))
	data := make([]float64, 0, n*3)
	y := make([]int, n)
	for i := range n {
		signal := rng.Float64()
		data = append(data, signal, rng.Float64(), rng.Float64())
		switch {
		case signal < 0.33:
			y[i] = 0
		case signal < 0.66:
			y[i] = 1
		default:
			y[i] = 2
		}
	}
	return mat.NewDense(n, 3, data), y
}

func smallParams() Params {
	p := DefaultParams()
	p.Trees = 15
	return p
}

func TestFitLearnsSeparableData(t *testing.T) {
	x, y := synthetic(300, 1)
	f, err := Fit(context.Background(), x, y, 3, smallParams())
	require.NoError(t, err)

	assert.Len(t, f.Trees, 15)
	assert.Equal(t, 3, f.NClasses)
	assert.Equal(t, 3, f.NFeatures)

	testX, testY := synthetic(100, 2)
	pred, err := f.PredictAll(testX)
	require.NoError(t, err)

	correct := 0
	for i := range pred {
		if pred[i] == testY[i] {
			correct++
		}
	}
	assert.Greater(t, correct, 75, "accuracy on held-out rows")
}

func TestPredictProbaIsDistribution(t *testing.T) {
	x, y := synthetic(200, 3)
	f, err := Fit(context.Background(), x, y, 3, smallParams())
	require.NoError(t, err)

	for _, row := range [][]float64{{0.1, 0.5, 0.5}, {0.5, 0.1, 0.9}, {0.95, 0, 1}, {7, -3, 2}} {
		proba, err := f.PredictProba(row)
		require.NoError(t, err)
		require.Len(t, proba, 3)
		assert.InDelta(t, 1.0, floats.Sum(proba), 1e-9)
		for _, p := range proba {
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
		}

		class, err := f.Predict(row)
		require.NoError(t, err)
		assert.Equal(t, floats.MaxIdx(proba), class)
		assert.Positive(t, proba[class])
	}
}

func TestFitIsDeterministicAcrossWorkerCounts(t *testing.T) {
	x, y := synthetic(150, 4)

	p1 := smallParams()
	p1.Workers = 1
	p8 := smallParams()
	p8.Workers = 8

	a, err := Fit(context.Background(), x, y, 3, p1)
	require.NoError(t, err)
	b, err := Fit(context.Background(), x, y, 3, p8)
	require.NoError(t, err)

	row := []float64{0.4, 0.2, 0.7}
	pa, err := a.PredictProba(row)
	require.NoError(t, err)
	pb, err := b.PredictProba(row)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
	assert.Equal(t, a.Importances, b.Importances)

	p1.Seed = 7
	c, err := Fit(context.Background(), x, y, 3, p1)
	require.NoError(t, err)
	assert.NotEqual(t, a.Trees[0].Nodes, c.Trees[0].Nodes, "different seed grows different trees")
}

func TestFeatureImportances(t *testing.T) {
	x, y := synthetic(300, 5)
	f, err := Fit(context.Background(), x, y, 3, smallParams())
	require.NoError(t, err)

	imp := f.FeatureImportances()
	require.Len(t, imp, 3)
	assert.InDelta(t, 1.0, floats.Sum(imp), 1e-9)
	assert.Equal(t, 0, floats.MaxIdx(imp), "signal feature dominates")

	imp[0] = 99
	assert.NotEqual(t, 99.0, f.Importances[0], "returns a copy")
}

func TestSingleClassGrowsLeaves(t *testing.T) {
	x := mat.NewDense(4, 2, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	f, err := Fit(context.Background(), x, []int{0, 0, 0, 0}, 1, smallParams())
	require.NoError(t, err)

	proba, err := f.PredictProba([]float64{0, 0})
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, proba)
	assert.Equal(t, []float64{0, 0}, f.Importances)
	assert.Equal(t, 0, f.MaxDepth())
}

func TestMaxDepthLimitsTrees(t *testing.T) {
	x, y := synthetic(200, 6)
	p := smallParams()
	p.MaxDepth = 2
	f, err := Fit(context.Background(), x, y, 3, p)
	require.NoError(t, err)
	for _, tree := range f.Trees {
		assert.LessOrEqual(t, tree.Depth(), 2)
	}
	assert.Positive(t, f.MaxDepth())
}

func TestFitValidation(t *testing.T) {
	x, y := synthetic(10, 7)
	ctx := context.Background()

	tests := []struct {
		name   string
		y      []int
		n      int
		mutate func(*Params)
	}{
		{"label count mismatch", y[:5], 3, func(*Params) {}},
		{"label out of range", append([]int{5}, y[1:]...), 3, func(*Params) {}},
		{"no trees", y, 3, func(p *Params) { p.Trees = 0 }},
		{"bad max features", y, 3, func(p *Params) { p.MaxFeatures = "many" }},
		{"min split too small", y, 3, func(p *Params) { p.MinSamplesSplit = 1 }},
		{"no classes", y, 0, func(*Params) {}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := smallParams()
			tt.mutate(&p)
			_, err := Fit(ctx, x, tt.y, tt.n, p)
			assert.Error(t, err)
		})
	}
}

func TestFitHonoursCancelledContext(t *testing.T) {
	x, y := synthetic(50, 8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Fit(ctx, x, y, 3, smallParams())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPredictRejectsBadRows(t *testing.T) {
	x, y := synthetic(50, 9)
	f, err := Fit(context.Background(), x, y, 3, smallParams())
	require.NoError(t, err)

	_, err = f.PredictProba([]float64{1, 2})
	assert.Error(t, err)
	_, err = f.PredictProba([]float64{math.NaN(), 0, 0})
	assert.Error(t, err)
}

func TestJSONRoundTripPreservesPredictions(t *testing.T) {
	x, y := synthetic(120, 10)
	f, err := Fit(context.Background(), x, y, 3, smallParams())
	require.NoError(t, err)

	data, err := json.Marshal(f)
	require.NoError(t, err)

	var decoded Forest
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.NoError(t, decoded.Validate())

	row := []float64{0.5, 0.5, 0.5}
	want, err := f.PredictProba(row)
	require.NoError(t, err)
	got, err := decoded.PredictProba(row)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestValidateRejectsMalformedForest(t *testing.T) {
	f := &Forest{NClasses: 2, NFeatures: 1, Trees: []*Tree{{Nodes: []Node{{Feature: 0, Left: 0, Right: 0}}}}}
	assert.Error(t, f.Validate())

	f = &Forest{NClasses: 2, NFeatures: 1, Trees: []*Tree{{Nodes: []Node{{Feature: leafFeature, Value: []float64{1}}}}}}
	assert.Error(t, f.Validate())

	assert.Error(t, (&Forest{}).Validate())
}

func TestResolveMaxFeatures(t *testing.T) {
	tests := []struct {
		setting string
		n       int
		want    int
	}{
		{"sqrt", 11, 3},
		{"sqrt", 7, 2},
		{"log2", 11, 3},
		{"all", 7, 7},
		{"4", 7, 4},
		{"40", 7, 7},
		{"sqrt", 1, 1},
	}
	for _, tt := range tests {
		got, err := Params{MaxFeatures: tt.setting}.resolveMaxFeatures(tt.n)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s of %d", tt.setting, tt.n)
	}
}
