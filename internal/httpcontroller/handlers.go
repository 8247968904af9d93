package httpcontroller

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/myconet/internal/errors"
)

// HandlerError is a custom error type that includes an HTTP status code and a user-friendly message.
type HandlerError struct {
	Err     error
	Message string
	Code    int
}

// Error implements the error interface for HandlerError.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// apiError is the JSON body of a failed API request.
type apiError struct {
	Error    string `json:"error"`
	Category string `json:"category,omitempty"`
	Code     int    `json:"code"`
}

// toHandlerError classifies any error returned by a handler.
func toHandlerError(err error) *HandlerError {
	var he *HandlerError
	if errors.As(err, &he) {
		return he
	}

	var echoHTTPError *echo.HTTPError
	if errors.As(err, &echoHTTPError) {
		return &HandlerError{
			Err:     echoHTTPError,
			Message: fmt.Sprintf("%v", echoHTTPError.Message),
			Code:    echoHTTPError.Code,
		}
	}

	var enhancedErr *errors.EnhancedError
	if errors.As(err, &enhancedErr) {
		code := mapCategoryToHTTPStatus(enhancedErr.GetCategory())
		msg := enhancedErr.Error()
		if code == http.StatusInternalServerError {
			msg = "An unexpected error occurred"
		}
		return &HandlerError{Err: enhancedErr, Message: msg, Code: code}
	}

	return &HandlerError{
		Err:     err,
		Message: "An unexpected error occurred",
		Code:    http.StatusInternalServerError,
	}
}

// mapCategoryToHTTPStatus maps error categories to appropriate HTTP status codes
func mapCategoryToHTTPStatus(category errors.ErrorCategory) int {
	switch category {
	case errors.CategoryValidation:
		return http.StatusBadRequest
	case errors.CategoryNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// httpErrorHandler renders handler errors as JSON for the API and as the
// error page everywhere else.
func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	he := toHandlerError(err)
	if he.Code >= http.StatusInternalServerError {
		s.LogError(c, err, "request failed")
	}

	var renderErr error
	switch {
	case c.Request().Method == http.MethodHead:
		renderErr = c.NoContent(he.Code)
	case isAPIRequest(c):
		renderErr = c.JSON(he.Code, apiError{
			Error:    he.Message,
			Category: categoryName(he.Err),
			Code:     he.Code,
		})
	default:
		renderErr = s.renderErrorPage(c, he)
	}
	if renderErr != nil {
		s.LogError(c, renderErr, "failed to write error response")
	}
}

func (s *Server) renderErrorPage(c echo.Context, he *HandlerError) error {
	data := struct {
		Code    int
		Title   string
		Message string
	}{
		Code:    he.Code,
		Title:   fmt.Sprintf("%d %s", he.Code, http.StatusText(he.Code)),
		Message: he.Message,
	}

	start := time.Now()
	err := c.Render(he.Code, "error", data)
	s.telemetry.RecordTemplateRender("error", time.Since(start), err)
	if err != nil {
		return c.String(he.Code, he.Message)
	}
	return nil
}

func isAPIRequest(c echo.Context) bool {
	return strings.HasPrefix(c.Request().URL.Path, "/api/")
}

func categoryName(err error) string {
	var enhancedErr *errors.EnhancedError
	if errors.As(err, &enhancedErr) {
		return string(enhancedErr.GetCategory())
	}
	return ""
}
