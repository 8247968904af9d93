// Package training fits the plant health and fungal network models from
// their raw CSV tables.
package training

import (
	"context"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/tphakala/myconet/internal/conf"
	"github.com/tphakala/myconet/internal/dataset"
	"github.com/tphakala/myconet/internal/encoder"
	"github.com/tphakala/myconet/internal/errors"
	"github.com/tphakala/myconet/internal/forest"
	"github.com/tphakala/myconet/internal/logger"
	"github.com/tphakala/myconet/internal/model"
)

// GetLogger returns the training module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("training")
}

// Stats counts the rows seen at each stage of a training run.
type Stats struct {
	TotalRows int           `json:"total_rows"`
	CleanRows int           `json:"clean_rows"`
	TrainRows int           `json:"train_rows"`
	TestRows  int           `json:"test_rows"`
	Duration  time.Duration `json:"duration"`
}

// Result is one fitted model with its evaluation.
type Result struct {
	Bundle *model.Bundle
	Report *Report
	Stats  Stats
	Params forest.Params
}

// FungalResult adds the categorical encoders fitted alongside the fungal model.
type FungalResult struct {
	Result
	Encoders model.Encoders
}

// Trainer runs both training pipelines with one set of hyperparameters.
type Trainer struct {
	data         conf.DataSettings
	params       forest.Params
	testFraction float64
	log          logger.Logger
	now          func() time.Time
}

// New builds a trainer from the data and training settings.
func New(data conf.DataSettings, ts conf.TrainingSettings) *Trainer {
	return &Trainer{
		data: data,
		params: forest.Params{
			Trees:           ts.Trees,
			MaxFeatures:     ts.MaxFeatures,
			MaxDepth:        ts.MaxDepth,
			MinSamplesSplit: ts.MinSamplesSplit,
			MinSamplesLeaf:  ts.MinSamplesLeaf,
			Seed:            ts.Seed,
			Workers:         ts.Workers,
		},
		testFraction: ts.TestFraction,
		log:          GetLogger(),
		now:          time.Now,
	}
}

// TrainPlant fits the plant health classifier on every numeric column of the
// plant table except the label and the configured identifier columns.
func (t *Trainer) TrainPlant(ctx context.Context) (*Result, error) {
	start := time.Now()
	cfg := t.data.Plant
	log := t.log.With(logger.String("model", model.PlantHealth))

	table, err := dataset.ReadCSV(cfg.Path)
	if err != nil {
		return nil, err
	}
	clean, err := table.DropNA()
	if err != nil {
		return nil, err
	}
	log.Info("plant data loaded",
		logger.String("path", cfg.Path),
		logger.Int("rows", table.Len()),
		logger.Int("clean_rows", clean.Len()))

	labels, err := clean.Column(cfg.Label)
	if err != nil {
		return nil, err
	}
	features, err := clean.Drop(append(slices.Clone(cfg.Drop), cfg.Label)...)
	if err != nil {
		return nil, err
	}
	featureNames := features.Columns()

	labelEnc, err := encoder.Fit(cfg.Label, labels)
	if err != nil {
		return nil, err
	}
	y, err := labelEnc.EncodeAll(labels)
	if err != nil {
		return nil, err
	}

	x, err := features.Float64Matrix(featureNames)
	if err != nil {
		return nil, err
	}

	displayNames := make([]string, len(featureNames))
	for i, name := range featureNames {
		displayNames[i] = strings.ReplaceAll(name, "_", " ")
	}

	res, err := t.fit(ctx, log, model.PlantHealth, x, y, labelEnc.Classes, nil)
	if err != nil {
		return nil, err
	}
	res.Bundle.Features = featureNames
	res.Bundle.DisplayNames = displayNames
	res.Stats.TotalRows = table.Len()
	res.Stats.Duration = time.Since(start)
	return res, nil
}

// TrainFungal fits the fungal network survival classifier. The three
// categorical columns are label encoded, the numeric proxies are scaled.
func (t *Trainer) TrainFungal(ctx context.Context) (*FungalResult, error) {
	start := time.Now()
	cfg := t.data.Fungal
	log := t.log.With(logger.String("model", model.FungalNetwork))

	table, err := dataset.ReadCSV(cfg.Path)
	if err != nil {
		return nil, err
	}

	// Rows with a missing value anywhere are dropped, including columns the
	// model does not use.
	clean, err := table.DropNA()
	if err != nil {
		return nil, err
	}
	categorical := []string{cfg.Species, cfg.Light, cfg.Microbe}
	log.Info("fungal data loaded",
		logger.String("path", cfg.Path),
		logger.Int("rows", table.Len()),
		logger.Int("clean_rows", clean.Len()))

	rawLabels, err := clean.Column(cfg.Label)
	if err != nil {
		return nil, err
	}
	labels := make([]string, len(rawLabels))
	for i, l := range rawLabels {
		labels[i] = NormalizeLabel(l)
	}
	labelEnc, err := encoder.Fit(cfg.Label, labels)
	if err != nil {
		return nil, err
	}
	y, err := labelEnc.EncodeAll(labels)
	if err != nil {
		return nil, err
	}

	encoders := make([]*encoder.LabelEncoder, len(categorical))
	codes := make([][]int, len(categorical))
	for i, name := range categorical {
		values, err := clean.Column(name)
		if err != nil {
			return nil, err
		}
		if encoders[i], err = encoder.Fit(name, values); err != nil {
			return nil, err
		}
		if codes[i], err = encoders[i].EncodeAll(values); err != nil {
			return nil, err
		}
	}

	numeric, err := clean.Float64Matrix(cfg.Numeric)
	if err != nil {
		return nil, err
	}

	rows := clean.Len()
	nCat := len(categorical)
	x := mat.NewDense(rows, nCat+len(cfg.Numeric), nil)
	for r := range rows {
		for c := range nCat {
			x.Set(r, c, float64(codes[c][r]))
		}
		for c := range cfg.Numeric {
			x.Set(r, nCat+c, numeric.At(r, c))
		}
	}

	scaled := make([]int, len(cfg.Numeric))
	for i := range scaled {
		scaled[i] = nCat + i
	}

	res, err := t.fit(ctx, log, model.FungalNetwork, x, y, labelEnc.Classes, scaled)
	if err != nil {
		return nil, err
	}
	names := slices.Concat(categorical, cfg.Numeric)
	res.Bundle.Features = names
	res.Bundle.DisplayNames = slices.Clone(names)
	res.Stats.TotalRows = table.Len()
	res.Stats.Duration = time.Since(start)

	return &FungalResult{
		Result: *res,
		Encoders: model.Encoders{
			Species: encoders[0],
			Light:   encoders[1],
			Microbe: encoders[2],
		},
	}, nil
}

// fit scales x, splits it, fits the forest on the training rows and scores
// it on the held-out rows. scaleColumns nil scales every column.
func (t *Trainer) fit(ctx context.Context, log logger.Logger, name string, x *mat.Dense, y []int, classes []string, scaleColumns []int) (*Result, error) {
	rows, _ := x.Dims()
	if rows < 2 {
		return nil, errors.Newf("%s: need at least 2 clean rows to train, got %d", name, rows).
			Component("training").
			Category(errors.CategoryTraining).
			Build()
	}

	scaler, err := dataset.FitMinMax(x, scaleColumns)
	if err != nil {
		return nil, err
	}
	xs := scaler.Transform(x)

	trainIdx, testIdx := dataset.TrainTestSplit(rows, t.testFraction, t.params.Seed)
	xTrain, yTrain := selectRows(xs, y, trainIdx)

	log.Info("fitting forest",
		logger.Int("train_rows", len(trainIdx)),
		logger.Int("test_rows", len(testIdx)),
		logger.Int("trees", t.params.Trees),
		logger.Int("classes", len(classes)))

	f, err := forest.Fit(ctx, xTrain, yTrain, len(classes), t.params)
	if err != nil {
		return nil, errors.New(err).
			Component("training").
			Category(errors.CategoryTraining).
			Context("model", name).
			Build()
	}

	holdout := len(testIdx) > 0
	evalIdx := testIdx
	if !holdout {
		evalIdx = trainIdx
	}
	xEval, yEval := selectRows(xs, y, evalIdx)
	pred, err := f.PredictAll(xEval)
	if err != nil {
		return nil, err
	}
	report := Evaluate(name, classes, yEval, pred)
	report.Holdout = holdout

	log.Info("model trained",
		logger.Float64("accuracy", report.Accuracy),
		logger.Bool("holdout", holdout),
		logger.Int("max_depth", f.MaxDepth()))

	return &Result{
		Bundle: &model.Bundle{
			Name:      name,
			Classes:   slices.Clone(classes),
			Scaler:    scaler,
			Forest:    f,
			Accuracy:  report.Accuracy,
			Rows:      rows,
			TrainedAt: t.now().UTC(),
		},
		Report: report,
		Stats: Stats{
			CleanRows: rows,
			TrainRows: len(trainIdx),
			TestRows:  len(testIdx),
		},
		Params: t.params,
	}, nil
}

// selectRows copies the given rows of x and y.
func selectRows(x *mat.Dense, y []int, idx []int) (*mat.Dense, []int) {
	_, cols := x.Dims()
	out := mat.NewDense(len(idx), cols, nil)
	labels := make([]int, len(idx))
	for i, r := range idx {
		out.SetRow(i, x.RawRowView(r))
		labels[i] = y[r]
	}
	return out, labels
}

// NormalizeLabel trims a label and renders integral numbers without a
// fraction, so "1", "1.0" and " 1 " are the same class.
func NormalizeLabel(label string) string {
	label = strings.TrimSpace(label)
	v, err := strconv.ParseFloat(label, 64)
	if err != nil || math.IsInf(v, 0) || v != math.Trunc(v) {
		return label
	}
	return strconv.FormatInt(int64(v), 10)
}
