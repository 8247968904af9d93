// Package charts renders the dashboard charts as SVG with gonum/plot.
package charts

import (
	"bytes"
	"fmt"
	"image/color"
	"slices"
	"time"

	"github.com/patrickmn/go-cache"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/tphakala/myconet/internal/analysis"
	"github.com/tphakala/myconet/internal/errors"
	"github.com/tphakala/myconet/internal/history"
	"github.com/tphakala/myconet/internal/model"
)

// ErrUnknownSeries is returned for a trend series that does not exist.
var ErrUnknownSeries = errors.NewStd("unknown trend series")

// Trend series names.
const (
	SeriesSoilMoisture = "soil_moisture"
	SeriesNitrogen     = "nitrogen"
	SeriesAMF          = "amf"
)

var (
	green  = color.RGBA{R: 0x2E, G: 0x8B, B: 0x57, A: 0xFF}
	orange = color.RGBA{R: 0xFF, G: 0x7F, B: 0x50, A: 0xFF}
	red    = color.RGBA{R: 0xFF, G: 0x45, B: 0x00, A: 0xFF}
	blue   = color.RGBA{R: 0x1E, G: 0x90, B: 0xFF, A: 0xFF}
	gold   = color.RGBA{R: 0xDA, G: 0xA5, B: 0x20, A: 0xFF}
)

type series struct {
	title  string
	ylabel string
	color  color.Color
	value  func(*history.Entry) float64
}

var trendSeries = map[string]series{
	SeriesSoilMoisture: {"Soil Moisture Over Time", "Soil Moisture (%)", blue, func(e *history.Entry) float64 { return e.Plant.SoilMoisture }},
	SeriesNitrogen:     {"Nitrogen Level Over Time", "Nitrogen (ppm)", green, func(e *history.Entry) float64 { return e.Plant.Nitrogen }},
	SeriesAMF:          {"AMF Colonization Over Time", "AMF Colonization (%)", orange, func(e *history.Entry) float64 { return e.Fungal.AMFColonization }},
}

// Series lists the valid trend series names.
func Series() []string {
	return []string{SeriesSoilMoisture, SeriesNitrogen, SeriesAMF}
}

// Renderer draws charts. Importance charts only change when a model is
// retrained, so they are cached per model and training time.
type Renderer struct {
	cache  *cache.Cache
	width  vg.Length
	height vg.Length
}

// NewRenderer creates a renderer whose importance charts live for ttl.
func NewRenderer(ttl time.Duration) *Renderer {
	return &Renderer{
		cache:  cache.New(ttl, 2*ttl),
		width:  7 * vg.Inch,
		height: 4 * vg.Inch,
	}
}

// Importance draws a horizontal bar chart of a model's feature importances,
// most important on top.
func (r *Renderer) Importance(b *model.Bundle) ([]byte, error) {
	key := b.Name + "@" + b.TrainedAt.UTC().Format(time.RFC3339Nano)
	if v, ok := r.cache.Get(key); ok {
		return v.([]byte), nil
	}

	imp := analysis.FeatureImportance(b)
	slices.Reverse(imp) // plot rows bottom-up

	values := make(plotter.Values, len(imp))
	names := make([]string, len(imp))
	for i, v := range imp {
		values[i] = v.Importance
		names[i] = v.Feature
	}

	p := plot.New()
	p.Title.Text = importanceTitle(b.Name)
	p.X.Label.Text = "Importance"
	p.X.Min = 0

	bars, err := plotter.NewBarChart(values, vg.Points(14))
	if err != nil {
		return nil, chartError(err, "importance")
	}
	bars.Horizontal = true
	bars.LineStyle.Width = 0
	bars.Color = green
	if b.Name == model.FungalNetwork {
		bars.Color = orange
	}
	p.Add(bars)
	p.NominalY(names...)

	svg, err := r.render(p)
	if err != nil {
		return nil, chartError(err, "importance")
	}
	r.cache.SetDefault(key, svg)
	return svg, nil
}

func importanceTitle(name string) string {
	if name == model.FungalNetwork {
		return "Myco-Net Model Feature Importance"
	}
	return "Plant Health Model Feature Importance"
}

// Trend draws one series of the saved history over time. entries must be
// oldest first.
func (r *Renderer) Trend(name string, entries []*history.Entry) ([]byte, error) {
	s, ok := trendSeries[name]
	if !ok {
		return nil, errors.New(fmt.Errorf("%w: %q", ErrUnknownSeries, name)).
			Component("charts").
			Category(errors.CategoryNotFound).
			Build()
	}

	p := plot.New()
	p.Title.Text = s.title
	p.Y.Label.Text = s.ylabel
	p.X.Tick.Marker = plot.TimeTicks{Format: "01-02 15:04"}

	if len(entries) == 0 {
		p.Title.Text += " (no saved results)"
		now := float64(time.Now().Unix())
		p.X.Min, p.X.Max = now-3600, now
		p.Y.Min, p.Y.Max = 0, 100
		return r.renderOrError(p, "trend")
	}

	pts := make(plotter.XYs, len(entries))
	for i, e := range entries {
		pts[i].X = float64(e.SavedAt.Unix())
		pts[i].Y = s.value(e)
	}

	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, chartError(err, "trend")
	}
	line.Color = s.color
	points.Color = s.color
	points.Shape = nil
	p.Add(line, points, plotter.NewGrid())

	return r.renderOrError(p, "trend")
}

// StatusDistribution draws the count of saved results per plant status.
func (r *Renderer) StatusDistribution(entries []*history.Entry) ([]byte, error) {
	statuses := []string{analysis.StatusHealthy, analysis.StatusModerateStress, analysis.StatusHighStress}
	counts := map[string]int{}
	for _, e := range entries {
		if !slices.Contains(statuses, e.Plant.Status) {
			statuses = append(statuses, e.Plant.Status)
		}
		counts[e.Plant.Status]++
	}

	p := plot.New()
	p.Title.Text = "Plant Status Distribution"
	p.Y.Label.Text = "Saved results"
	p.Y.Min = 0

	for i, status := range statuses {
		bars, err := plotter.NewBarChart(plotter.Values{float64(counts[status])}, vg.Points(40))
		if err != nil {
			return nil, chartError(err, "status")
		}
		bars.XMin = float64(i)
		bars.LineStyle.Width = 0
		bars.Color = statusColor(status)
		p.Add(bars)
	}
	p.NominalX(statuses...)

	return r.renderOrError(p, "status")
}

func statusColor(status string) color.Color {
	switch analysis.PlantSeverity(status) {
	case analysis.SeverityHealthy:
		return green
	case analysis.SeverityWarning:
		return gold
	default:
		return red
	}
}

func (r *Renderer) renderOrError(p *plot.Plot, chart string) ([]byte, error) {
	svg, err := r.render(p)
	if err != nil {
		return nil, chartError(err, chart)
	}
	return svg, nil
}

func (r *Renderer) render(p *plot.Plot) ([]byte, error) {
	w, err := p.WriterTo(r.width, r.height, "svg")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func chartError(err error, chart string) error {
	return errors.New(err).
		Component("charts").
		Category(errors.CategoryProcessing).
		Context("chart", chart).
		Build()
}
