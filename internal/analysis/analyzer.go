// Package analysis scores sensor and fungal readings with the trained models
// and turns the predictions into statuses and recommendations.
package analysis

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/tphakala/myconet/internal/errors"
	"github.com/tphakala/myconet/internal/logger"
	"github.com/tphakala/myconet/internal/model"
	"github.com/tphakala/myconet/internal/training"
)

// TimeLayout formats result and history timestamps.
const TimeLayout = "2006-01-02 15:04:05"

// GetLogger returns the analysis module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("analysis")
}

// Recorder receives prediction outcomes, typically Prometheus metrics.
type Recorder interface {
	RecordPrediction(model, status string, duration time.Duration, err error)
}

type noopRecorder struct{}

func (noopRecorder) RecordPrediction(string, string, time.Duration, error) {}

// ClassProbability is the predicted probability of one class.
type ClassProbability struct {
	Class       string  `json:"class"`
	Probability float64 `json:"probability"`
}

// PlantResult is the outcome of one plant health analysis.
type PlantResult struct {
	Status          string             `json:"status"`
	Confidence      float64            `json:"confidence"` // max class probability in percent
	Probabilities   []ClassProbability `json:"probabilities"`
	Severity        Severity           `json:"severity"`
	Headline        string             `json:"headline"`
	Recommendations []string           `json:"recommendations"`
	SoilMoisture    float64            `json:"soil_moisture"`
	Nitrogen        float64            `json:"nitrogen"`
	SoilPH          float64            `json:"soil_ph"`
	Reading         SensorReading      `json:"reading"`
	Timestamp       time.Time          `json:"timestamp"`
}

// FungalResult is the outcome of one fungal network analysis.
type FungalResult struct {
	RiskLevel       string             `json:"risk_level"`
	Survival        string             `json:"survival"`
	Confidence      float64            `json:"confidence"`
	Probabilities   []ClassProbability `json:"probabilities"`
	Severity        Severity           `json:"severity"`
	Message         string             `json:"message"`
	AMFColonization float64            `json:"amf_colonization"`
	NSCLevel        float64            `json:"nsc_level"`
	MicrobeType     string             `json:"microbe_type"`
	Reading         FungalReading      `json:"reading"`
	Timestamp       time.Time          `json:"timestamp"`
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithRecorder sets the prediction metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(a *Analyzer) {
		if r != nil {
			a.recorder = r
		}
	}
}

// WithLocation sets the time zone of result timestamps.
func WithLocation(loc *time.Location) Option {
	return func(a *Analyzer) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// Analyzer scores readings against a loaded artifact set. It is safe for
// concurrent use; the models are read-only after loading.
type Analyzer struct {
	models       *model.Set
	plantOrder   []int // plantOrder[j] indexes the reading value fed as plant feature j
	surviveLabel string
	recorder     Recorder
	loc          *time.Location
	now          func() time.Time
	log          logger.Logger
}

// NewAnalyzer wraps a loaded artifact set. surviveLabel is the fungal class
// that means the network survived.
func NewAnalyzer(set *model.Set, surviveLabel string, opts ...Option) (*Analyzer, error) {
	if set == nil || set.Plant == nil || set.Fungal == nil {
		return nil, errors.Newf("analyzer needs both models").
			Component("analysis").
			Category(errors.CategoryState).
			Build()
	}
	if set.Encoders.Species == nil || set.Encoders.Light == nil || set.Encoders.Microbe == nil {
		return nil, errors.Newf("analyzer needs the species, light and microbe encoders").
			Component("analysis").
			Category(errors.CategoryState).
			Build()
	}

	label := training.NormalizeLabel(surviveLabel)
	if !slices.Contains(set.Fungal.Classes, label) {
		GetLogger().Warn("survive label is not a class of the fungal model, every prediction will be high risk",
			logger.String("label", label),
			logger.Any("classes", set.Fungal.Classes))
	}
	if got := len(set.Fungal.Features); got != 3+len(FungalFields) {
		return nil, errors.Newf("fungal model expects %d features, readings carry %d", got, 3+len(FungalFields)).
			Component("analysis").
			Category(errors.CategoryModelLoad).
			Build()
	}
	plantOrder, err := featureOrder(set.Plant, PlantFields)
	if err != nil {
		return nil, err
	}

	a := &Analyzer{
		models:       set,
		plantOrder:   plantOrder,
		surviveLabel: label,
		recorder:     noopRecorder{},
		loc:          time.Local,
		now:          time.Now,
		log:          GetLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Models returns the artifact set the analyzer scores against.
func (a *Analyzer) Models() *model.Set {
	return a.models
}

// AnalyzePlant predicts the plant health status of one sensor reading.
func (a *Analyzer) AnalyzePlant(ctx context.Context, reading SensorReading) (*PlantResult, error) {
	start := time.Now()
	res, err := a.analyzePlant(ctx, reading)
	status := ""
	if res != nil {
		status = res.Status
	}
	a.recorder.RecordPrediction(model.PlantHealth, status, time.Since(start), err)
	return res, err
}

func (a *Analyzer) analyzePlant(ctx context.Context, reading SensorReading) (*PlantResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateReading(reading); err != nil {
		return nil, err
	}

	b := a.models.Plant
	probs, status, confidence, err := predict(b, arrange(reading.Values(), a.plantOrder))
	if err != nil {
		return nil, err
	}

	headline, recs := plantAdvice(status, reading.SoilMoisture, reading.Nitrogen, reading.SoilPH)
	res := &PlantResult{
		Status:          status,
		Confidence:      confidence,
		Probabilities:   probs,
		Severity:        PlantSeverity(status),
		Headline:        headline,
		Recommendations: recs,
		SoilMoisture:    reading.SoilMoisture,
		Nitrogen:        reading.Nitrogen,
		SoilPH:          reading.SoilPH,
		Reading:         reading,
		Timestamp:       a.now().In(a.loc),
	}

	a.log.WithContext(ctx).Debug("plant analyzed",
		logger.String("status", status),
		logger.Float64("confidence", confidence))
	return res, nil
}

// AnalyzeFungal predicts the survival risk of one fungal network reading.
// Categorical values the model was not trained on are rejected.
func (a *Analyzer) AnalyzeFungal(ctx context.Context, reading FungalReading) (*FungalResult, error) {
	start := time.Now()
	res, err := a.analyzeFungal(ctx, reading)
	status := ""
	if res != nil {
		status = res.RiskLevel
	}
	a.recorder.RecordPrediction(model.FungalNetwork, status, time.Since(start), err)
	return res, err
}

func (a *Analyzer) analyzeFungal(ctx context.Context, reading FungalReading) (*FungalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateReading(reading); err != nil {
		return nil, err
	}

	enc := a.models.Encoders
	species, err := enc.Species.Encode(reading.Species)
	if err != nil {
		return nil, err
	}
	light, err := enc.Light.Encode(reading.Light)
	if err != nil {
		return nil, err
	}
	microbe, err := enc.Microbe.Encode(reading.Microbe)
	if err != nil {
		return nil, err
	}

	row := append([]float64{float64(species), float64(light), float64(microbe)}, reading.Numeric()...)
	probs, class, confidence, err := predict(a.models.Fungal, row)
	if err != nil {
		return nil, err
	}

	risk := RiskHigh
	if class == a.surviveLabel {
		risk = RiskLow
	}
	survival, message := fungalAdvice(risk)

	res := &FungalResult{
		RiskLevel:       risk,
		Survival:        survival,
		Confidence:      confidence,
		Probabilities:   probs,
		Severity:        RiskSeverity(risk),
		Message:         message,
		AMFColonization: reading.AMF,
		NSCLevel:        reading.NSCImp,
		MicrobeType:     reading.Microbe,
		Reading:         reading,
		Timestamp:       a.now().In(a.loc),
	}

	a.log.WithContext(ctx).Debug("fungal network analyzed",
		logger.String("risk", risk),
		logger.Float64("confidence", confidence))
	return res, nil
}

// featureOrder matches each feature of b to the field with the same CSV
// column, ignoring case. Every field must be used exactly once.
func featureOrder(b *model.Bundle, fields []Field) ([]int, error) {
	fail := func(format string, args ...any) error {
		return errors.Newf(format, args...).
			Component("analysis").
			Category(errors.CategoryModelLoad).
			Build()
	}
	if len(b.Features) != len(fields) {
		return nil, fail("%s model expects %d features, readings carry %d", b.Name, len(b.Features), len(fields))
	}

	order := make([]int, len(b.Features))
	seen := make([]bool, len(fields))
	for j, name := range b.Features {
		i := slices.IndexFunc(fields, func(f Field) bool { return strings.EqualFold(f.Column, name) })
		if i < 0 {
			return nil, fail("%s model feature %q matches no reading input", b.Name, name)
		}
		if seen[i] {
			return nil, fail("%s model lists feature %q twice", b.Name, name)
		}
		seen[i] = true
		order[j] = i
	}
	return order, nil
}

// arrange returns values permuted so that out[j] = values[order[j]].
func arrange(values []float64, order []int) []float64 {
	out := make([]float64, len(order))
	for j, i := range order {
		out[j] = values[i]
	}
	return out
}

// predict scores a raw row and returns the class distribution, the winning
// class and its probability in percent.
func predict(b *model.Bundle, row []float64) ([]ClassProbability, string, float64, error) {
	dist, err := b.Forest.PredictProba(b.Prepare(row))
	if err != nil {
		return nil, "", 0, errors.New(fmt.Errorf("%s: %w", b.Name, err)).
			Component("analysis").
			Category(errors.CategoryValidation).
			Build()
	}

	probs := make([]ClassProbability, len(dist))
	for i, p := range dist {
		probs[i] = ClassProbability{Class: b.Classes[i], Probability: p}
	}
	best := floats.MaxIdx(dist)
	return probs, b.Classes[best], dist[best] * 100, nil
}
