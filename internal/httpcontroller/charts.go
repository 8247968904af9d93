package httpcontroller

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/myconet/internal/model"
)

const svgContentType = "image/svg+xml"

func (s *Server) importanceChart(c echo.Context) error {
	var b *model.Bundle
	set := s.Analyzer.Models()
	switch c.Param("model") {
	case model.PlantHealth:
		b = set.Plant
	case model.FungalNetwork:
		b = set.Fungal
	default:
		return echo.NewHTTPError(http.StatusNotFound, "unknown model: "+c.Param("model"))
	}

	svg, err := s.Charts.Importance(b)
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, svgContentType, svg)
}

func (s *Server) trendChart(c echo.Context) error {
	svg, err := s.Charts.Trend(c.Param("series"), s.History.Chronological(sessionID(c)))
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, svgContentType, svg)
}

func (s *Server) statusChart(c echo.Context) error {
	svg, err := s.Charts.StatusDistribution(s.History.Chronological(sessionID(c)))
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, svgContentType, svg)
}
