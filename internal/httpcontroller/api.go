package httpcontroller

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/myconet/internal/analysis"
	"github.com/tphakala/myconet/internal/datastore"
	"github.com/tphakala/myconet/internal/history"
)

// maxTrainingRuns caps the limit query parameter of the training run list.
const maxTrainingRuns = 100

// HealthResponse is returned by the liveness endpoint.
type HealthResponse struct {
	Status   string    `json:"status"`
	Time     time.Time `json:"time"`
	Sessions int       `json:"sessions"`
}

// CombinedResponse is the combined assessment of the latest results.
type CombinedResponse struct {
	Plant      *analysis.PlantResult  `json:"plant"`
	Fungal     *analysis.FungalResult `json:"fungal"`
	Assessment *analysis.Assessment   `json:"assessment,omitempty"`
	Complete   bool                   `json:"complete"`
}

// HistoryResponse lists saved results.
type HistoryResponse struct {
	Entries []*history.Entry `json:"entries"`
	Total   int              `json:"total"`
	Filter  history.Filter   `json:"filter"`
}

func (s *Server) apiHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:   "ok",
		Time:     time.Now().UTC(),
		Sessions: s.History.Sessions(),
	})
}

func (s *Server) apiModels(c echo.Context) error {
	return c.JSON(http.StatusOK, s.modelSummaries(c.Request().Context()))
}

type runsQuery struct {
	Limit int `query:"limit"`
}

// apiTrainingRuns lists recorded training runs, newest first.
func (s *Server) apiTrainingRuns(c echo.Context) error {
	q := runsQuery{Limit: trainingHistoryLimit}
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return err
	}
	if q.Limit < 1 || q.Limit > maxTrainingRuns {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxTrainingRuns))
	}

	runs, err := s.DS.ListTrainingRuns(c.Request().Context(), q.Limit)
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []datastore.TrainingRun{}
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) apiAnalyzePlant(c echo.Context) error {
	var reading analysis.SensorReading
	if err := bindReading(c, &reading, analysis.PlantInputNames()); err != nil {
		return err
	}
	res, err := s.runPlant(c, reading)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) apiAnalyzeFungal(c echo.Context) error {
	var reading analysis.FungalReading
	if err := bindReading(c, &reading, analysis.FungalInputNames()); err != nil {
		return err
	}
	res, err := s.runFungal(c, reading)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) apiCombined(c echo.Context) error {
	plant, fungal := s.History.Latest(sessionID(c))
	resp := CombinedResponse{Plant: plant, Fungal: fungal, Complete: plant != nil && fungal != nil}
	if resp.Complete {
		a := analysis.Combine(plant, fungal)
		resp.Assessment = &a
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) apiHistory(c echo.Context) error {
	var f history.Filter
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &f); err != nil {
		return err
	}
	id := sessionID(c)
	return c.JSON(http.StatusOK, HistoryResponse{
		Entries: s.History.Entries(id, f),
		Total:   s.History.Count(id),
		Filter:  f,
	})
}

func (s *Server) apiSaveHistory(c echo.Context) error {
	entry, err := s.saveHistory(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, entry)
}

func (s *Server) apiClearHistory(c echo.Context) error {
	removed := s.History.Clear(sessionID(c))
	return c.JSON(http.StatusOK, map[string]int{"removed": removed})
}
