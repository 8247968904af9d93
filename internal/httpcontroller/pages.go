package httpcontroller

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/myconet/internal/analysis"
	"github.com/tphakala/myconet/internal/charts"
	"github.com/tphakala/myconet/internal/datastore"
	"github.com/tphakala/myconet/internal/errors"
	"github.com/tphakala/myconet/internal/history"
	"github.com/tphakala/myconet/internal/logger"
	"github.com/tphakala/myconet/internal/model"
	"github.com/tphakala/myconet/internal/training"
)

// FieldInput is a form input with its current value.
type FieldInput struct {
	analysis.Field
	Value float64
}

// FieldGroup is a titled section of form inputs.
type FieldGroup struct {
	Name   string
	Inputs []FieldInput
}

// PlantPage backs the plant health form.
type PlantPage struct {
	Groups []FieldGroup
	Result *analysis.PlantResult
	Error  string
}

// FungalPage backs the fungal network form.
type FungalPage struct {
	Groups   []FieldGroup
	Reading  analysis.FungalReading
	Species  []string
	Lights   []string
	Microbes []string
	Result   *analysis.FungalResult
	Error    string
}

// CombinedPage backs the combined results page.
type CombinedPage struct {
	Plant      *analysis.PlantResult
	Fungal     *analysis.FungalResult
	Assessment *analysis.Assessment
}

// HistoryPage backs the history table.
type HistoryPage struct {
	Entries  []*history.Entry
	Filter   history.Filter
	Statuses []string
	Risks    []string
	Total    int
}

// ModelSummary describes one trained model for the results dashboard.
type ModelSummary struct {
	Info           analysis.ModelInfo `json:"info"`
	Title          string             `json:"title"`
	Accuracy       float64            `json:"accuracy"`
	AccuracySource string             `json:"accuracy_source"` // "training_run" or "bundle"
	Report         *training.Report   `json:"report,omitempty"`
	LastRun        *time.Time         `json:"last_run,omitempty"`
}

// ResultsPage backs the results dashboard.
type ResultsPage struct {
	Models     []ModelSummary
	Runs       []datastore.TrainingRun // newest first
	Series     []string
	SavedTests int
}

// trainingHistoryLimit is how many training runs the results page shows.
const trainingHistoryLimit = 20

// render writes a full page: the layout around the content template of route.
func (s *Server) render(c echo.Context, code int, route string, content any) error {
	page := s.pageRoutes[route]
	data := RenderData{
		C:         c,
		Route:     route,
		Page:      page.TemplateName,
		Title:     page.Title,
		Settings:  s.Settings,
		Stats:     s.History.Stats(sessionID(c)),
		CSRFToken: csrfToken(c),
		Content:   content,
	}

	start := time.Now()
	err := c.Render(code, "index", data)
	s.telemetry.RecordTemplateRender(page.TemplateName, time.Since(start), err)
	return err
}

func csrfToken(c echo.Context) string {
	token, _ := c.Get(CSRFContextKey).(string)
	return token
}

func (s *Server) homePage(c echo.Context) error {
	return s.render(c, http.StatusOK, "/", nil)
}

func groupFields(fields []analysis.Field, values []float64) []FieldGroup {
	var groups []FieldGroup
	for i, f := range fields {
		if len(groups) == 0 || groups[len(groups)-1].Name != f.Group {
			groups = append(groups, FieldGroup{Name: f.Group})
		}
		g := &groups[len(groups)-1]
		g.Inputs = append(g.Inputs, FieldInput{Field: f, Value: values[i]})
	}
	return groups
}

func (s *Server) plantPage(c echo.Context) error {
	plant, _ := s.History.Latest(sessionID(c))
	reading := analysis.DefaultSensorReading()
	if plant != nil {
		reading = plant.Reading
	}
	return s.render(c, http.StatusOK, "/plant", PlantPage{
		Groups: groupFields(analysis.PlantFields, reading.Values()),
		Result: plant,
	})
}

func (s *Server) analyzePlant(c echo.Context) error {
	var reading analysis.SensorReading
	err := bindReading(c, &reading, analysis.PlantInputNames())
	page := PlantPage{Groups: groupFields(analysis.PlantFields, reading.Values())}

	var res *analysis.PlantResult
	if err == nil {
		res, err = s.runPlant(c, reading)
	}
	if err != nil {
		if !errors.IsCategory(err, errors.CategoryValidation) {
			return err
		}
		page.Error = err.Error()
		return s.render(c, http.StatusBadRequest, "/plant", page)
	}

	page.Result = res
	return s.render(c, http.StatusOK, "/plant", page)
}

// runPlant scores and stores a plant reading. The analyzer checks bounds.
func (s *Server) runPlant(c echo.Context, reading analysis.SensorReading) (*analysis.PlantResult, error) {
	res, err := s.Analyzer.AnalyzePlant(c.Request().Context(), reading)
	if err != nil {
		return nil, err
	}
	s.History.SetPlant(sessionID(c), res)
	return res, nil
}

func (s *Server) fungalPage(c echo.Context) error {
	_, fungal := s.History.Latest(sessionID(c))
	reading := s.defaultFungalReading()
	if fungal != nil {
		reading = fungal.Reading
	}
	page := s.newFungalPage(reading)
	page.Result = fungal
	return s.render(c, http.StatusOK, "/fungal", page)
}

func (s *Server) analyzeFungal(c echo.Context) error {
	var reading analysis.FungalReading
	err := bindReading(c, &reading, analysis.FungalInputNames())
	page := s.newFungalPage(reading)

	var res *analysis.FungalResult
	if err == nil {
		res, err = s.runFungal(c, reading)
	}
	if err != nil {
		if !errors.IsCategory(err, errors.CategoryValidation) {
			return err
		}
		page.Error = err.Error()
		return s.render(c, http.StatusBadRequest, "/fungal", page)
	}

	page.Result = res
	return s.render(c, http.StatusOK, "/fungal", page)
}

// runFungal scores and stores a fungal reading. The analyzer checks bounds
// and categories.
func (s *Server) runFungal(c echo.Context, reading analysis.FungalReading) (*analysis.FungalResult, error) {
	res, err := s.Analyzer.AnalyzeFungal(c.Request().Context(), reading)
	if err != nil {
		return nil, err
	}
	s.History.SetFungal(sessionID(c), res)
	return res, nil
}

func (s *Server) defaultFungalReading() analysis.FungalReading {
	r := analysis.DefaultFungalReading()
	enc := s.Analyzer.Models().Encoders
	r.Species = first(enc.Species.Classes)
	r.Light = first(enc.Light.Classes)
	r.Microbe = first(enc.Microbe.Classes)
	return r
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func (s *Server) newFungalPage(reading analysis.FungalReading) FungalPage {
	enc := s.Analyzer.Models().Encoders
	return FungalPage{
		Groups:   groupFields(analysis.FungalFields, reading.Numeric()),
		Reading:  reading,
		Species:  enc.Species.Classes,
		Lights:   enc.Light.Classes,
		Microbes: enc.Microbe.Classes,
	}
}

func (s *Server) combinedPage(c echo.Context) error {
	plant, fungal := s.History.Latest(sessionID(c))
	page := CombinedPage{Plant: plant, Fungal: fungal}
	if plant != nil && fungal != nil {
		a := analysis.Combine(plant, fungal)
		page.Assessment = &a
	}
	return s.render(c, http.StatusOK, "/combined", page)
}

func (s *Server) saveCombined(c echo.Context) error {
	if _, err := s.saveHistory(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/history")
}

func (s *Server) saveHistory(c echo.Context) (*history.Entry, error) {
	entry, err := s.History.Save(sessionID(c))
	if err != nil {
		return nil, err
	}
	if s.Metrics != nil {
		s.Metrics.MycoNet.RecordHistorySave()
	}
	s.log.Debug("result saved to history", logger.String("entry", entry.ID))
	return entry, nil
}

func (s *Server) historyPage(c echo.Context) error {
	var f history.Filter
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &f); err != nil {
		return err
	}
	if f.PlantStatus == "" {
		f.PlantStatus = history.All
	}
	if f.FungalRisk == "" {
		f.FungalRisk = history.All
	}

	id := sessionID(c)
	return s.render(c, http.StatusOK, "/history", HistoryPage{
		Entries:  s.History.Entries(id, f),
		Filter:   f,
		Statuses: []string{history.All, analysis.StatusHealthy, analysis.StatusModerateStress, analysis.StatusHighStress},
		Risks:    []string{history.All, analysis.RiskLow, analysis.RiskHigh},
		Total:    s.History.Count(id),
	})
}

func (s *Server) exportHistory(c echo.Context) error {
	entries := s.History.Chronological(sessionID(c))

	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	h.Set(echo.HeaderContentDisposition, `attachment; filename="`+history.ExportFilename+`"`)
	c.Response().WriteHeader(http.StatusOK)

	if err := history.WriteCSV(c.Response(), entries); err != nil {
		return err
	}

	if s.Metrics != nil {
		source := "dashboard"
		if isAPIRequest(c) {
			source = "api"
		}
		s.Metrics.MycoNet.RecordHistoryExport(source)
	}
	return nil
}

func (s *Server) clearHistory(c echo.Context) error {
	s.History.Clear(sessionID(c))
	return c.Redirect(http.StatusSeeOther, "/history")
}

func (s *Server) resultsPage(c echo.Context) error {
	ctx := c.Request().Context()
	return s.render(c, http.StatusOK, "/results", ResultsPage{
		Models:     s.modelSummaries(ctx),
		Runs:       s.trainingRuns(ctx),
		Series:     charts.Series(),
		SavedTests: s.History.Count(sessionID(c)),
	})
}

// modelSummaries describes both models. Accuracy comes from the latest
// recorded training run and falls back to the one stored in the bundle.
func (s *Server) modelSummaries(ctx context.Context) []ModelSummary {
	set := s.Analyzer.Models()
	out := make([]ModelSummary, 0, 2)
	for _, b := range []*model.Bundle{set.Plant, set.Fungal} {
		sum := ModelSummary{
			Info:           analysis.Describe(b),
			Title:          modelTitle(b.Name),
			Accuracy:       b.Accuracy,
			AccuracySource: "bundle",
		}

		run, err := s.DS.LatestTrainingRun(ctx, b.Name)
		switch {
		case err == nil:
			sum.Accuracy = run.Accuracy
			sum.AccuracySource = "training_run"
			sum.LastRun = &run.CreatedAt
			if rep, err := run.DecodeReport(); err == nil {
				sum.Report = rep
			}
		case errors.Is(err, datastore.ErrNotFound):
		default:
			s.log.Warn("could not read training run", logger.String("model", b.Name), logger.Error(err))
		}

		out = append(out, sum)
	}
	return out
}

// trainingRuns returns the recent training history. A store failure only
// hides the table.
func (s *Server) trainingRuns(ctx context.Context) []datastore.TrainingRun {
	runs, err := s.DS.ListTrainingRuns(ctx, trainingHistoryLimit)
	if err != nil {
		s.log.Warn("could not list training runs", logger.Error(err))
		return nil
	}
	return runs
}

func modelTitle(name string) string {
	if name == model.FungalNetwork {
		return "Myco-Net Model"
	}
	return "Plant Health Model"
}
