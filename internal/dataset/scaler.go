package dataset

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/tphakala/myconet/internal/errors"
)

// MinMaxScaler rescales selected columns to [0, 1] using the per-column
// minimum and maximum seen at fit time. Columns not listed pass through.
type MinMaxScaler struct {
	Columns []int     `json:"columns"`
	Min     []float64 `json:"min"`
	Max     []float64 `json:"max"`
}

// FitMinMax learns column ranges from x. A nil columns slice selects every column.
func FitMinMax(x mat.Matrix, columns []int) (*MinMaxScaler, error) {
	rows, cols := x.Dims()
	if rows == 0 {
		return nil, errors.New(ErrEmptyTable).
			Component("dataset").
			Category(errors.CategoryValidation).
			Build()
	}

	if columns == nil {
		columns = make([]int, cols)
		for j := range columns {
			columns[j] = j
		}
	}

	s := &MinMaxScaler{
		Columns: columns,
		Min:     make([]float64, len(columns)),
		Max:     make([]float64, len(columns)),
	}

	values := make([]float64, rows)
	for k, j := range columns {
		if j < 0 || j >= cols {
			return nil, errors.Newf("scaler column %d out of range [0,%d)", j, cols).
				Component("dataset").
				Category(errors.CategoryValidation).
				Build()
		}
		mat.Col(values, j, x)
		s.Min[k] = floats.Min(values)
		s.Max[k] = floats.Max(values)
	}

	return s, nil
}

// scale maps v for the k-th scaled column. Constant columns map to 0.
func (s *MinMaxScaler) scale(k int, v float64) float64 {
	span := s.Max[k] - s.Min[k]
	if span == 0 {
		return 0
	}
	return (v - s.Min[k]) / span
}

// Transform returns a scaled copy of x.
func (s *MinMaxScaler) Transform(x mat.Matrix) *mat.Dense {
	out := mat.DenseCopyOf(x)
	rows, _ := out.Dims()
	for k, j := range s.Columns {
		for i := range rows {
			out.Set(i, j, s.scale(k, out.At(i, j)))
		}
	}
	return out
}

// TransformRow returns a scaled copy of one feature row. Values outside the
// fitted range are not clipped.
func (s *MinMaxScaler) TransformRow(row []float64) []float64 {
	out := make([]float64, len(row))
	copy(out, row)
	for k, j := range s.Columns {
		if j < len(out) {
			out[j] = s.scale(k, out[j])
		}
	}
	return out
}
