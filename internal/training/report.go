package training

import (
	"fmt"
	"strings"
)

// ClassMetrics are precision, recall and F1 for one class on the evaluation rows.
type ClassMetrics struct {
	Class     string  `json:"class"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report summarises a fitted model on its evaluation rows.
type Report struct {
	Model       string         `json:"model"`
	Accuracy    float64        `json:"accuracy"`
	Classes     []ClassMetrics `json:"classes"`
	MacroAvg    ClassMetrics   `json:"macro_avg"`
	WeightedAvg ClassMetrics   `json:"weighted_avg"`
	Support     int            `json:"support"`
	Holdout     bool           `json:"holdout"` // false when scored on the training rows
}

// Evaluate compares predicted class codes with the true ones. Undefined
// ratios (no predictions or no support for a class) are reported as 0.
func Evaluate(modelName string, classes []string, yTrue, yPred []int) *Report {
	n := len(classes)
	tp := make([]int, n)
	predicted := make([]int, n)
	support := make([]int, n)

	correct := 0
	for i, want := range yTrue {
		got := yPred[i]
		support[want]++
		predicted[got]++
		if got == want {
			tp[want]++
			correct++
		}
	}

	r := &Report{
		Model:   modelName,
		Support: len(yTrue),
		Classes: make([]ClassMetrics, n),
	}
	if len(yTrue) > 0 {
		r.Accuracy = float64(correct) / float64(len(yTrue))
	}

	r.MacroAvg.Class = "macro avg"
	r.WeightedAvg.Class = "weighted avg"
	for c := range n {
		m := ClassMetrics{
			Class:     classes[c],
			Precision: ratio(tp[c], predicted[c]),
			Recall:    ratio(tp[c], support[c]),
			Support:   support[c],
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		r.Classes[c] = m

		r.MacroAvg.Precision += m.Precision / float64(n)
		r.MacroAvg.Recall += m.Recall / float64(n)
		r.MacroAvg.F1 += m.F1 / float64(n)
		if r.Support > 0 {
			w := float64(m.Support) / float64(r.Support)
			r.WeightedAvg.Precision += w * m.Precision
			r.WeightedAvg.Recall += w * m.Recall
			r.WeightedAvg.F1 += w * m.F1
		}
	}
	r.MacroAvg.Support = r.Support
	r.WeightedAvg.Support = r.Support

	return r
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// String renders the report as a fixed-width table.
func (r *Report) String() string {
	width := len("weighted avg")
	for _, c := range r.Classes {
		width = max(width, len(c.Class))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%*s %10s %10s %10s %10s\n\n", width, "", "precision", "recall", "f1-score", "support")
	for _, c := range r.Classes {
		writeRow(&b, width, c)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s %10s %10s %10.2f %10d\n", width, "accuracy", "", "", r.Accuracy, r.Support)
	writeRow(&b, width, r.MacroAvg)
	writeRow(&b, width, r.WeightedAvg)
	return b.String()
}

func writeRow(b *strings.Builder, width int, c ClassMetrics) {
	fmt.Fprintf(b, "%*s %10.2f %10.2f %10.2f %10d\n", width, c.Class, c.Precision, c.Recall, c.F1, c.Support)
}
