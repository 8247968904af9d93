package analysis

import (
	"cmp"
	"slices"
	"time"

	"github.com/tphakala/myconet/internal/model"
)

// Importance is the share of impurity decrease attributed to one feature.
type Importance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// FeatureImportance returns the model's importances under their display
// names, most important first. Ties keep model order.
func FeatureImportance(b *model.Bundle) []Importance {
	imp := b.Forest.FeatureImportances()
	out := make([]Importance, len(imp))
	for i, v := range imp {
		name := b.Features[i]
		if i < len(b.DisplayNames) {
			name = b.DisplayNames[i]
		}
		out[i] = Importance{Feature: name, Importance: v}
	}
	slices.SortStableFunc(out, func(x, y Importance) int {
		return cmp.Compare(y.Importance, x.Importance)
	})
	return out
}

// ModelInfo describes a loaded model for the API and the results page.
type ModelInfo struct {
	Name        string       `json:"name"`
	Features    []string     `json:"features"`
	Classes     []string     `json:"classes"`
	Trees       int          `json:"trees"`
	Accuracy    float64      `json:"accuracy"`
	Rows        int          `json:"rows"`
	TrainedAt   time.Time    `json:"trained_at"`
	Importances []Importance `json:"importances"`
}

// Describe summarises a bundle.
func Describe(b *model.Bundle) ModelInfo {
	return ModelInfo{
		Name:        b.Name,
		Features:    slices.Clone(b.DisplayNames),
		Classes:     slices.Clone(b.Classes),
		Trees:       len(b.Forest.Trees),
		Accuracy:    b.Accuracy,
		Rows:        b.Rows,
		TrainedAt:   b.TrainedAt,
		Importances: FeatureImportance(b),
	}
}
