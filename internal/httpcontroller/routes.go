package httpcontroller

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// PageRouteConfig defines the structure for each full page route.
type PageRouteConfig struct {
	Path         string
	TemplateName string
	Title        string
}

// initRoutes initializes the routes for the server.
func (s *Server) initRoutes() {
	s.pageRoutes = map[string]PageRouteConfig{
		"/":         {Path: "/", TemplateName: "home", Title: "Home"},
		"/plant":    {Path: "/plant", TemplateName: "plant", Title: "Plant Health Assessment"},
		"/fungal":   {Path: "/fungal", TemplateName: "fungal", Title: "Fungal Network Analysis"},
		"/combined": {Path: "/combined", TemplateName: "combined", Title: "Combined Results"},
		"/history":  {Path: "/history", TemplateName: "history", Title: "Test History"},
		"/results":  {Path: "/results", TemplateName: "results", Title: "Results Dashboard"},
	}

	e := s.Echo

	// Pages
	e.GET("/", s.homePage)
	e.GET("/plant", s.plantPage)
	e.POST("/plant", s.analyzePlant)
	e.GET("/fungal", s.fungalPage)
	e.POST("/fungal", s.analyzeFungal)
	e.GET("/combined", s.combinedPage)
	e.POST("/combined/save", s.saveCombined)
	e.GET("/history", s.historyPage)
	e.GET("/history/export", s.exportHistory)
	e.POST("/history/clear", s.clearHistory)
	e.GET("/results", s.resultsPage)

	// Charts
	e.GET("/charts/importance/:model", s.importanceChart)
	e.GET("/charts/trend/:series", s.trendChart)
	e.GET("/charts/status", s.statusChart)

	// JSON API
	api := e.Group("/api/v1", s.RateLimitMiddleware())
	api.GET("/health", s.apiHealth)
	api.GET("/models", s.apiModels)
	api.GET("/training-runs", s.apiTrainingRuns)
	api.POST("/analyze/plant", s.apiAnalyzePlant)
	api.POST("/analyze/fungal", s.apiAnalyzeFungal)
	api.GET("/combined", s.apiCombined)
	api.GET("/history", s.apiHistory)
	api.POST("/history", s.apiSaveHistory)
	api.DELETE("/history", s.apiClearHistory)
	api.GET("/history/export", s.exportHistory)

	if s.Metrics != nil && s.Settings.Telemetry.Enabled {
		e.GET("/metrics", echo.WrapHandler(s.Metrics.Handler()))
	}

	e.RouteNotFound("/*", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "Page not found")
	})
}
