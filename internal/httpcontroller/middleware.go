package httpcontroller

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/tphakala/myconet/internal/errors"
	"github.com/tphakala/myconet/internal/logger"
	"github.com/tphakala/myconet/internal/observability/metrics"
)

// CSRFContextKey is the key used to store CSRF token in the context
const CSRFContextKey = "myconet-csrf"

// configureMiddleware sets up middleware for the server.
func (s *Server) configureMiddleware() {
	s.Echo.Use(middleware.RequestID())
	s.Echo.Use(s.telemetry.Middleware())
	s.Echo.Use(middleware.Recover())
	s.Echo.Use(s.GzipMiddleware())
	s.Echo.Use(s.CacheControlMiddleware())
	s.Echo.Use(s.CSRFMiddleware())
	s.Echo.Use(s.SessionMiddleware())
}

// CSRFMiddleware protects the dashboard forms. The JSON API, charts and
// metrics are exempt.
func (s *Server) CSRFMiddleware() echo.MiddlewareFunc {
	csrfLogger := s.log.Module("csrf")

	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "header:X-CSRF-Token,form:_csrf",
		CookieName:     "csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteLaxMode,
		CookieSecure:   s.Settings.WebServer.AutoTLS,
		CookieMaxAge:   1800,
		TokenLength:    32,
		ContextKey:     CSRFContextKey,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasPrefix(path, "/api/") ||
				strings.HasPrefix(path, "/charts/") ||
				path == "/metrics"
		},
		ErrorHandler: func(err error, c echo.Context) error {
			csrfLogger.Warn("CSRF token validation failed",
				logger.String("path", c.Request().URL.Path),
				logger.String("method", c.Request().Method),
				logger.Error(err))
			return echo.NewHTTPError(http.StatusForbidden, "Invalid CSRF token")
		},
	})
}

// GzipMiddleware configures Gzip compression for the server
func (s *Server) GzipMiddleware() echo.MiddlewareFunc {
	return middleware.GzipWithConfig(middleware.GzipConfig{
		Level:     6,
		MinLength: 2048,
	})
}

// CacheControlMiddleware sets cache headers by path. Charts change with the
// session history so nothing is cached by the browser.
func (s *Server) CacheControlMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			path := c.Request().URL.Path
			switch {
			case strings.HasPrefix(path, "/api/"):
				h.Set("Cache-Control", "no-store")
				h.Set("Pragma", "no-cache")
				h.Set("Expires", "0")
			case strings.HasPrefix(path, "/charts/"):
				h.Set("Cache-Control", "private, no-cache")
				h.Set("X-Content-Type-Options", "nosniff")
			default:
				h.Set("Cache-Control", "no-store")
			}
			return next(c)
		}
	}
}

// RateLimitMiddleware limits JSON API requests per client IP. A limit of
// zero disables it.
func (s *Server) RateLimitMiddleware() echo.MiddlewareFunc {
	limit := s.Settings.WebServer.RateLimit
	if limit <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(limit),
		Burst:     max(1, int(limit*2)),
		ExpiresIn: 3 * time.Minute,
	})

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "could not identify client")
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			s.telemetry.RecordRateLimited(c.Path())
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		},
	})
}

// TelemetryMiddleware logs requests and records HTTP metrics.
type TelemetryMiddleware struct {
	httpMetrics *metrics.HTTPMetrics
	log         logger.Logger
}

// NewTelemetryMiddleware creates a new telemetry middleware instance.
// httpMetrics may be nil.
func NewTelemetryMiddleware(httpMetrics *metrics.HTTPMetrics) *TelemetryMiddleware {
	return &TelemetryMiddleware{
		httpMetrics: httpMetrics,
		log:         logger.Global().Module("access"),
	}
}

// Middleware returns the Echo middleware function
func (tm *TelemetryMiddleware) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			if requestID != "" {
				c.SetRequest(c.Request().WithContext(logger.WithTraceID(c.Request().Context(), requestID)))
			}
			err := next(c)
			if err != nil {
				// Let the error handler write the response so the status is final.
				c.Error(err)
			}
			duration := time.Since(start)

			req := c.Request()
			res := c.Response()
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}

			if tm.httpMetrics != nil {
				tm.httpMetrics.ObserveRequest(req.Method, path, res.Status, duration, res.Size)
				if err != nil {
					tm.httpMetrics.CountError(req.Method, path, categorizeError(err))
				}
			}

			fields := []logger.Field{
				logger.String("method", req.Method),
				logger.String("path", logger.RedactSensitiveData(req.URL.RequestURI())),
				logger.Int("status", res.Status),
				logger.Duration("latency", duration),
				logger.Int64("bytes_out", res.Size),
				logger.String("ip", c.RealIP()),
			}
			log := tm.log.WithContext(req.Context())
			switch {
			case err != nil:
				log.Error("HTTP request", append(fields, logger.Error(err))...)
			case res.Status >= http.StatusBadRequest:
				log.Warn("HTTP request", fields...)
			default:
				log.Debug("HTTP request", fields...)
			}

			return nil
		}
	}
}

// RecordTemplateRender records template rendering metrics.
func (tm *TelemetryMiddleware) RecordTemplateRender(name string, duration time.Duration, err error) {
	if tm.httpMetrics != nil {
		tm.httpMetrics.ObserveRender(name, duration, err)
	}
}

// RecordRateLimited counts a rejected request.
func (tm *TelemetryMiddleware) RecordRateLimited(path string) {
	if tm.httpMetrics != nil {
		tm.httpMetrics.CountRateLimited(path)
	}
}

// categorizeError labels an error for the request error counter.
func categorizeError(err error) string {
	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		switch {
		case echoErr.Code == http.StatusNotFound:
			return "not_found"
		case echoErr.Code == http.StatusTooManyRequests:
			return "rate_limited"
		case echoErr.Code == http.StatusForbidden:
			return "forbidden"
		case echoErr.Code < http.StatusInternalServerError:
			return "validation"
		default:
			return "system"
		}
	}
	return string(errors.CategoryOf(err))
}
