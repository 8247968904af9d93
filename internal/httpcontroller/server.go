// Package httpcontroller serves the Myco-Net dashboard and its JSON API.
package httpcontroller

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"golang.org/x/crypto/acme/autocert"

	"github.com/tphakala/myconet/internal/analysis"
	"github.com/tphakala/myconet/internal/charts"
	"github.com/tphakala/myconet/internal/conf"
	"github.com/tphakala/myconet/internal/datastore"
	"github.com/tphakala/myconet/internal/errors"
	"github.com/tphakala/myconet/internal/history"
	"github.com/tphakala/myconet/internal/logger"
	"github.com/tphakala/myconet/internal/observability"
	"github.com/tphakala/myconet/internal/observability/metrics"
)

const (
	defaultSessionTTL = 12 * time.Hour
	chartCacheTTL     = time.Hour
	shutdownTimeout   = 10 * time.Second
)

// GetLogger returns the httpcontroller module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("httpcontroller")
}

// Server encapsulates the Echo server and the state the dashboard needs.
type Server struct {
	Echo     *echo.Echo
	Settings *conf.Settings
	Analyzer *analysis.Analyzer
	History  *history.Store
	Charts   *charts.Renderer
	DS       datastore.Interface
	Metrics  *observability.Metrics

	sessions   sessions.Store
	renderer   *TemplateRenderer
	telemetry  *TelemetryMiddleware
	pageRoutes map[string]PageRouteConfig
	log        logger.Logger
}

// New builds the dashboard server. ds and m may be nil.
func New(settings *conf.Settings, analyzer *analysis.Analyzer, ds datastore.Interface, m *observability.Metrics) (*Server, error) {
	configureDefaultSettings(settings)

	if ds == nil {
		ds = datastore.NopStore{}
	}

	var httpMetrics *metrics.HTTPMetrics
	if m != nil {
		httpMetrics = m.HTTP
	}

	s := &Server{
		Echo:      echo.New(),
		Settings:  settings,
		Analyzer:  analyzer,
		History:   history.NewStore(settings.WebServer.SessionTTL),
		Charts:    charts.NewRenderer(chartCacheTTL),
		DS:        ds,
		Metrics:   m,
		sessions:  newSessionStore(settings),
		telemetry: NewTelemetryMiddleware(httpMetrics),
		log:       GetLogger(),
	}

	if err := s.initializeServer(); err != nil {
		return nil, err
	}
	return s, nil
}

// configureDefaultSettings fills server settings left empty.
func configureDefaultSettings(settings *conf.Settings) {
	if settings.WebServer.Port == "" {
		settings.WebServer.Port = "8080"
	}
	if settings.WebServer.SessionTTL <= 0 {
		settings.WebServer.SessionTTL = defaultSessionTTL
	}
	if settings.WebServer.SessionSecret == "" {
		settings.WebServer.SessionSecret = conf.GenerateRandomSecret()
	}
}

// initializeServer configures and initializes the server.
func (s *Server) initializeServer() error {
	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.Echo.Debug = s.Settings.WebServer.Debug
	s.Echo.IPExtractor = echo.ExtractIPFromXFFHeader()

	// Request logging goes through the module logger.
	s.Echo.Logger.SetOutput(io.Discard)
	s.Echo.Logger.SetLevel(log.OFF)

	s.Echo.HTTPErrorHandler = s.httpErrorHandler

	renderer, err := NewTemplateRenderer(s.RenderContent)
	if err != nil {
		return err
	}
	s.renderer = renderer
	s.Echo.Renderer = renderer

	s.configureMiddleware()
	s.initRoutes()
	return nil
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		errChan <- s.listen()
	}()

	s.log.Info("dashboard started",
		logger.String("port", s.Settings.WebServer.Port),
		logger.Bool("autotls", s.Settings.WebServer.AutoTLS))

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.New(err).
			Component("httpcontroller").
			Category(errors.CategoryHTTP).
			Context("port", s.Settings.WebServer.Port).
			Build()
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

func (s *Server) listen() error {
	addr := ":" + s.Settings.WebServer.Port

	if s.Settings.WebServer.AutoTLS {
		configPaths, err := conf.GetDefaultConfigPaths()
		if err != nil {
			return err
		}
		s.Echo.AutoTLSManager.Prompt = autocert.AcceptTOS
		s.Echo.AutoTLSManager.Cache = autocert.DirCache(configPaths[0])
		s.Echo.AutoTLSManager.HostPolicy = autocert.HostWhitelist(s.Settings.WebServer.Host)
		return s.Echo.StartAutoTLS(addr)
	}

	return s.Echo.Start(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down dashboard")
	if err := s.Echo.Shutdown(ctx); err != nil {
		return errors.New(err).
			Component("httpcontroller").
			Category(errors.CategoryHTTP).
			Context("operation", "shutdown").
			Build()
	}
	return nil
}

// LogError logs a request error with its request context.
func (s *Server) LogError(c echo.Context, err error, message string) {
	req := c.Request()
	s.log.Error(message,
		logger.Error(err),
		logger.String("path", req.URL.Path),
		logger.String("method", req.Method),
		logger.String("ip", c.RealIP()),
		logger.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)))
}
