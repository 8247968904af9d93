// Package forest implements a random forest classifier: bootstrap-sampled
// CART trees with Gini impurity and per-split feature subsampling.
package forest

import (
	"context"
	"math"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/tphakala/myconet/internal/errors"
)

// Forest is a fitted random forest.
type Forest struct {
	NClasses    int       `json:"n_classes"`
	NFeatures   int       `json:"n_features"`
	Trees       []*Tree   `json:"trees"`
	Importances []float64 `json:"importances"`
}

// Fit trains a forest on x (rows are samples) and class codes y in
// [0, nClasses). Trees are fitted concurrently; the result depends only on
// the data and p.Seed, not on the worker count.
func Fit(ctx context.Context, x mat.Matrix, y []int, nClasses int, p Params) (*Forest, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	rows, cols := x.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.Newf("cannot fit forest on a %dx%d matrix", rows, cols).
			Component("forest").
			Category(errors.CategoryTraining).
			Build()
	}
	if len(y) != rows {
		return nil, errors.Newf("label count %d does not match row count %d", len(y), rows).
			Component("forest").
			Category(errors.CategoryTraining).
			Build()
	}
	if nClasses < 1 {
		return nil, errors.Newf("need at least one class, got %d", nClasses).
			Component("forest").
			Category(errors.CategoryTraining).
			Build()
	}
	for i, c := range y {
		if c < 0 || c >= nClasses {
			return nil, errors.Newf("label %d of row %d outside [0,%d)", c, i, nClasses).
				Component("forest").
				Category(errors.CategoryTraining).
				Build()
		}
	}

	maxFeatures, err := p.resolveMaxFeatures(cols)
	if err != nil {
		return nil, err
	}

	data := make([][]float64, rows)
	for i := range rows {
		data[i] = mat.Row(nil, i, x)
	}

	// Seeds are drawn up front so tree i always gets the same stream.
	master := rand.New(rand.NewPCG(p.Seed, p.Seed))
	seeds := make([]uint64, p.Trees)
	for i := range seeds {
		seeds[i] = master.Uint64()
	}

	trees := make([]*Tree, p.Trees)
	treeImportances := make([][]float64, p.Trees)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for i := range p.Trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			trees[i], treeImportances[i] = fitTree(data, y, nClasses, maxFeatures, p, seeds[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.New(err).
			Component("forest").
			Category(errors.CategoryTraining).
			Context("operation", "fit_forest").
			Build()
	}

	return &Forest{
		NClasses:    nClasses,
		NFeatures:   cols,
		Trees:       trees,
		Importances: meanImportances(treeImportances, cols),
	}, nil
}

// meanImportances normalises each tree's impurity decreases, averages them
// over trees that split at least once, and normalises the mean to sum to 1.
func meanImportances(perTree [][]float64, nFeatures int) []float64 {
	mean := make([]float64, nFeatures)
	used := 0
	for _, imp := range perTree {
		total := floats.Sum(imp)
		if total <= 0 {
			continue
		}
		floats.AddScaled(mean, 1/total, imp)
		used++
	}
	if used == 0 {
		return mean
	}
	if total := floats.Sum(mean); total > 0 {
		floats.Scale(1/total, mean)
	}
	return mean
}

// checkRow validates a feature row before prediction.
func (f *Forest) checkRow(row []float64) error {
	if len(row) != f.NFeatures {
		return errors.Newf("expected %d features, got %d", f.NFeatures, len(row)).
			Component("forest").
			Category(errors.CategoryValidation).
			Build()
	}
	for i, v := range row {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Newf("feature %d is not a finite number", i).
				Component("forest").
				Category(errors.CategoryValidation).
				Build()
		}
	}
	return nil
}

// PredictProba returns the class distribution for one row: the mean of the
// leaf distributions across trees. The result sums to 1.
func (f *Forest) PredictProba(row []float64) ([]float64, error) {
	if err := f.checkRow(row); err != nil {
		return nil, err
	}
	if len(f.Trees) == 0 {
		return nil, errors.Newf("forest has no trees").
			Component("forest").
			Category(errors.CategoryModelLoad).
			Build()
	}

	proba := make([]float64, f.NClasses)
	for _, t := range f.Trees {
		floats.Add(proba, t.leaf(row))
	}
	floats.Scale(1/float64(len(f.Trees)), proba)
	return proba, nil
}

// Predict returns the most probable class; ties go to the lowest code.
func (f *Forest) Predict(row []float64) (int, error) {
	proba, err := f.PredictProba(row)
	if err != nil {
		return -1, err
	}
	return floats.MaxIdx(proba), nil
}

// PredictAll predicts every row of x.
func (f *Forest) PredictAll(x mat.Matrix) ([]int, error) {
	rows, _ := x.Dims()
	out := make([]int, rows)
	for i := range rows {
		c, err := f.Predict(mat.Row(nil, i, x))
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// FeatureImportances returns a copy of the mean decrease in impurity per feature.
func (f *Forest) FeatureImportances() []float64 {
	out := make([]float64, len(f.Importances))
	copy(out, f.Importances)
	return out
}

// MaxDepth returns the depth of the deepest tree.
func (f *Forest) MaxDepth() int {
	depth := 0
	for _, t := range f.Trees {
		depth = max(depth, t.Depth())
	}
	return depth
}

// Validate checks the structural integrity of a decoded forest.
func (f *Forest) Validate() error {
	if f.NClasses < 1 || f.NFeatures < 1 || len(f.Trees) == 0 {
		return errors.Newf("forest is empty").
			Component("forest").
			Category(errors.CategoryModelLoad).
			Build()
	}
	for ti, t := range f.Trees {
		if t == nil || len(t.Nodes) == 0 {
			return errors.Newf("tree %d has no nodes", ti).
				Component("forest").Category(errors.CategoryModelLoad).Build()
		}
		for ni, n := range t.Nodes {
			if n.IsLeaf() {
				if len(n.Value) != f.NClasses {
					return errors.Newf("tree %d leaf %d has %d classes, want %d", ti, ni, len(n.Value), f.NClasses).
						Component("forest").Category(errors.CategoryModelLoad).Build()
				}
				continue
			}
			if n.Feature < 0 || n.Feature >= f.NFeatures ||
				n.Left <= ni || n.Left >= len(t.Nodes) || n.Right <= ni || n.Right >= len(t.Nodes) {
				return errors.Newf("tree %d node %d is malformed", ti, ni).
					Component("forest").Category(errors.CategoryModelLoad).Build()
			}
		}
	}
	return nil
}
