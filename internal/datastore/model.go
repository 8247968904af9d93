package datastore

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/tphakala/myconet/internal/training"
)

// TrainingRun records one fitted model.
type TrainingRun struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Model      string    `gorm:"size:64;index:idx_training_runs_model_created,priority:1;not null" json:"model"`
	TotalRows  int       `json:"total_rows"`
	CleanRows  int       `json:"clean_rows"`
	TrainRows  int       `json:"train_rows"`
	TestRows   int       `json:"test_rows"`
	Accuracy   float64   `json:"accuracy"`
	Trees      int       `json:"trees"`
	Seed       uint64    `json:"seed"`
	Report     string    `gorm:"type:text" json:"-"` // JSON encoded training.Report
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `gorm:"index:idx_training_runs_model_created,priority:2" json:"created_at"`
}

// NewTrainingRun builds a run record from a training result.
func NewTrainingRun(res *training.Result) (*TrainingRun, error) {
	report, err := json.Marshal(res.Report)
	if err != nil {
		return nil, err
	}
	return &TrainingRun{
		Model:      res.Bundle.Name,
		TotalRows:  res.Stats.TotalRows,
		CleanRows:  res.Stats.CleanRows,
		TrainRows:  res.Stats.TrainRows,
		TestRows:   res.Stats.TestRows,
		Accuracy:   res.Report.Accuracy,
		Trees:      res.Params.Trees,
		Seed:       res.Params.Seed,
		Report:     string(report),
		DurationMs: res.Stats.Duration.Milliseconds(),
		CreatedAt:  res.Bundle.TrainedAt,
	}, nil
}

// DecodeReport returns the stored evaluation report.
func (r *TrainingRun) DecodeReport() (*training.Report, error) {
	var rep training.Report
	if err := json.Unmarshal([]byte(r.Report), &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}
