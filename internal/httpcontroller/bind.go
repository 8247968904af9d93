package httpcontroller

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"

	"github.com/tphakala/myconet/internal/analysis"
)

// bindReading binds a JSON or form body into dst after checking that every
// key in names is present. Missing keys are a validation error; zero values
// are never substituted for them.
func bindReading(c echo.Context, dst any, names []string) error {
	req := c.Request()
	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		return bindJSONReading(req, dst, names)
	}

	form, err := c.FormParams()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed form body")
	}
	has := func(name string) bool { return strings.TrimSpace(form.Get(name)) != "" }
	if err := analysis.RequireInputs(has, names); err != nil {
		return err
	}
	return c.Bind(dst)
}

func bindJSONReading(req *http.Request, dst any, names []string) error {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable request body")
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(body, &keys); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "request body must be a JSON object")
	}
	has := func(name string) bool {
		v, ok := keys[name]
		return ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null"))
	}
	if err := analysis.RequireInputs(has, names); err != nil {
		return err
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid field type in request body")
	}
	return nil
}
