package httpcontroller

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tphakala/myconet/internal/analysis"
	"github.com/tphakala/myconet/internal/conf"
	"github.com/tphakala/myconet/internal/errors"
	"github.com/tphakala/myconet/internal/history"
)

//go:embed views
var ViewsFs embed.FS

// RenderData is passed to the page layout and to every content template.
type RenderData struct {
	C         echo.Context
	Route     string         // page route the content belongs to
	Page      string         // content template name
	Title     string         // page title
	Settings  *conf.Settings // application settings
	Stats     history.Stats  // sidebar quick stats
	CSRFToken string
	Content   any // page specific data
}

// TemplateRenderer is a custom HTML template renderer for Echo framework.
type TemplateRenderer struct {
	templates *template.Template
}

// NewTemplateRenderer parses the embedded views. content renders a page's
// content template inside the layout; nil is fine for callers that only
// render fragments.
func NewTemplateRenderer(content func(RenderData) (template.HTML, error)) (*TemplateRenderer, error) {
	if content == nil {
		content = func(d RenderData) (template.HTML, error) {
			return "", fmt.Errorf("no content renderer for page %s", d.Page)
		}
	}

	funcMap := templateFunctions()
	funcMap["RenderContent"] = content

	tmpl, err := template.New("").Funcs(funcMap).ParseFS(ViewsFs, "views/*.html", "views/*/*.html")
	if err != nil {
		return nil, errors.New(err).
			Component("httpcontroller").
			Category(errors.CategoryFileParsing).
			Context("operation", "parse_templates").
			Build()
	}
	return &TemplateRenderer{templates: tmpl}, nil
}

// Render renders a template with the given data.
func (t *TemplateRenderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	var buf bytes.Buffer
	if err := t.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

// RenderString renders a template to a string.
func (t *TemplateRenderer) RenderString(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Render(&buf, name, data, nil); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Lookup reports whether a template is defined.
func (t *TemplateRenderer) Lookup(name string) bool {
	return t.templates.Lookup(name) != nil
}

// RenderContent renders the content template of a page route.
func (s *Server) RenderContent(d RenderData) (template.HTML, error) {
	route, ok := s.pageRoutes[d.Route]
	if !ok {
		return "", fmt.Errorf("no route found for path: %s", d.Route)
	}

	var buf bytes.Buffer
	if err := s.renderer.Render(&buf, route.TemplateName, d, d.C); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil //nolint:gosec // output of html/template
}

func templateFunctions() template.FuncMap {
	return template.FuncMap{
		"title":       func(v string) string { return cases.Title(language.English).String(v) },
		"value":       analysis.FormatValue,
		"percent":     func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
		"ratio":       func(v float64) string { return fmt.Sprintf("%.2f", v*100) },
		"timestamp":   func(e *history.Entry) string { return e.SavedAt.Format(analysis.TimeLayout) },
		"severityCSS": severityCSS,
		"join":        strings.Join,
		"add":         func(a, b int) int { return a + b },
		"dict":        dict,
	}
}

// dict builds a map from key/value pairs so templates can pass several
// values to a sub-template.
func dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("dict needs key/value pairs, got %d arguments", len(pairs))
	}
	m := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict key %v is not a string", pairs[i])
		}
		m[key] = pairs[i+1]
	}
	return m, nil
}

// severityCSS maps a severity to the card style of the dashboard.
func severityCSS(s analysis.Severity) string {
	switch s {
	case analysis.SeverityHealthy:
		return "status-healthy"
	case analysis.SeverityWarning:
		return "status-warning"
	case analysis.SeverityCritical:
		return "status-critical"
	default:
		return "status-unknown"
	}
}
