// Package errors wraps errors with a category, the component that raised
// them and free form context. HTTP handlers map categories to status codes
// and an optional reporter forwards built errors to Sentry.
package errors

import (
	"fmt"
	"maps"
	"runtime"
	"strings"
	"sync/atomic"
	"time"
)

// ErrorCategory groups errors for status mapping and telemetry.
type ErrorCategory string

// CategorizedError lets plain error types choose their own category.
type CategorizedError interface {
	error
	ErrorCategory() ErrorCategory
}

const (
	CategoryModelLoad     ErrorCategory = "model-loading"
	CategoryModelSave     ErrorCategory = "model-saving"
	CategoryTraining      ErrorCategory = "training"
	CategoryValidation    ErrorCategory = "validation"
	CategoryFileIO        ErrorCategory = "file-io"
	CategoryFileParsing   ErrorCategory = "file-parsing"
	CategoryDatabase      ErrorCategory = "database"
	CategoryHTTP          ErrorCategory = "http-request"
	CategoryConfiguration ErrorCategory = "configuration"
	CategorySystem        ErrorCategory = "system-resource"
	CategoryNotFound      ErrorCategory = "not-found"
	CategoryState         ErrorCategory = "state"
	CategoryProcessing    ErrorCategory = "processing"
	CategoryGeneric       ErrorCategory = "generic"
)

const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// ComponentUnknown is reported when no component was set or detected.
const ComponentUnknown = "unknown"

// EnhancedError is an error with category, component and context attached.
// Build it with New or Newf.
type EnhancedError struct {
	Err       error
	Category  ErrorCategory
	Priority  string         // empty unless set explicitly
	Context   map[string]any // read through GetContext
	Timestamp time.Time

	component string
	reported  atomic.Bool
}

func (ee *EnhancedError) Error() string { return ee.Err.Error() }

func (ee *EnhancedError) Unwrap() error { return ee.Err }

// Is matches another EnhancedError of the same category, or anything the
// wrapped error matches.
func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return ee.Category == other.Category
	}
	return Is(ee.Err, target)
}

func (ee *EnhancedError) GetComponent() string       { return ee.component }
func (ee *EnhancedError) GetCategory() ErrorCategory { return ee.Category }
func (ee *EnhancedError) GetPriority() string        { return ee.Priority }
func (ee *EnhancedError) GetTimestamp() time.Time    { return ee.Timestamp }

// GetContext returns a copy of the context map.
func (ee *EnhancedError) GetContext() map[string]any {
	if ee.Context == nil {
		return nil
	}
	return maps.Clone(ee.Context)
}

// MarkReported records that a reporter has seen this error.
func (ee *EnhancedError) MarkReported() { ee.reported.Store(true) }

func (ee *EnhancedError) IsReported() bool { return ee.reported.Load() }

// ErrorBuilder assembles an EnhancedError.
type ErrorBuilder struct {
	ee EnhancedError
}

// New starts an EnhancedError around err.
func New(err error) *ErrorBuilder {
	b := &ErrorBuilder{}
	b.ee.Err = err
	return b
}

// Newf is New(fmt.Errorf(format, args...)).
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.ee.component = component
	return eb
}

func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.ee.Category = category
	return eb
}

// Priority sets an explicit priority. Unrecognized values become medium.
func (eb *ErrorBuilder) Priority(priority string) *ErrorBuilder {
	switch priority {
	case "":
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		eb.ee.Priority = priority
	default:
		eb.ee.Priority = PriorityMedium
	}
	return eb
}

func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.ee.Context == nil {
		eb.ee.Context = make(map[string]any)
	}
	eb.ee.Context[key] = value
	return eb
}

// FileContext records the kind of path and its extension, never the path.
func (eb *ErrorBuilder) FileContext(path string) *ErrorBuilder {
	if path == "" {
		return eb
	}
	kind := "relative-path"
	if strings.HasPrefix(path, "/") || strings.Contains(path, `:\`) {
		kind = "absolute-path"
	}
	return eb.Context("file_type", kind).Context("file_extension", fileExtension(path))
}

// Timing records the operation name and its duration in milliseconds.
func (eb *ErrorBuilder) Timing(operation string, d time.Duration) *ErrorBuilder {
	return eb.Context("operation", operation).Context("duration_ms", d.Milliseconds())
}

// reporting is true while an enabled reporter is installed. Component
// detection walks the stack, so it only runs when someone will read it.
var reporting atomic.Bool

// Build finalizes the error and hands it to the reporter, if any.
func (eb *ErrorBuilder) Build() *EnhancedError {
	ee := &EnhancedError{
		Err:       eb.ee.Err,
		Category:  eb.ee.Category,
		Priority:  eb.ee.Priority,
		Context:   eb.ee.Context,
		Timestamp: time.Now(),
		component: eb.ee.component,
	}

	active := reporting.Load()
	if ee.component == "" && active {
		ee.component = callerComponent()
	}
	if ee.component == "" {
		ee.component = ComponentUnknown
	}
	if ee.Category == "" {
		ee.Category = detectCategory(ee.Err, ee.component)
	}

	if active {
		reportToTelemetry(ee)
	}
	return ee
}

// components maps package paths to component names, most specific first.
var components = []struct{ pkg, name string }{
	{"internal/httpcontroller", "http-controller"},
	{"internal/analysis", "analysis"},
	{"internal/charts", "charts"},
	{"internal/conf", "configuration"},
	{"internal/dataset", "dataset"},
	{"internal/datastore", "datastore"},
	{"internal/encoder", "encoder"},
	{"internal/forest", "forest"},
	{"internal/history", "history"},
	{"internal/model", "model"},
	{"internal/training", "training"},
}

// callerComponent names the first known package on the stack outside this one.
func callerComponent() string {
	pcs := make([]uintptr, 32)
	frames := runtime.CallersFrames(pcs[:runtime.Callers(3, pcs)])
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.Function, "/internal/errors.") {
			for _, c := range components {
				if strings.Contains(frame.Function, c.pkg) {
					return c.name
				}
			}
		}
		if !more {
			return ""
		}
	}
}

// messageRules categorize errors that carry no category of their own.
var messageRules = []struct {
	match    func(msg string) bool
	category ErrorCategory
}{
	{func(m string) bool { return strings.Contains(m, "model") && strings.Contains(m, "load") }, CategoryModelLoad},
	{func(m string) bool { return strings.Contains(m, "no such file") || strings.Contains(m, "open") }, CategoryFileIO},
	{func(m string) bool { return strings.Contains(m, "invalid") || strings.Contains(m, "validation") }, CategoryValidation},
}

var componentCategories = map[string]ErrorCategory{
	"datastore":       CategoryDatabase,
	"http-controller": CategoryHTTP,
	"training":        CategoryTraining,
	"forest":          CategoryTraining,
}

// detectCategory prefers a category found in the chain, then the message,
// then the component.
func detectCategory(err error, component string) ErrorCategory {
	if err == nil {
		return CategoryGeneric
	}

	var categorized CategorizedError
	if As(err, &categorized) {
		return categorized.ErrorCategory()
	}
	var enhanced *EnhancedError
	if As(err, &enhanced) && enhanced.Category != "" {
		return enhanced.Category
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range messageRules {
		if rule.match(msg) {
			return rule.category
		}
	}
	if c, ok := componentCategories[component]; ok {
		return c
	}
	return CategoryGeneric
}

func fileExtension(path string) string {
	dot := strings.LastIndexByte(path, '.')
	if dot <= 0 || dot == len(path)-1 {
		return "none"
	}
	return strings.ToLower(path[dot+1:])
}

// IsCategory reports whether the first EnhancedError in err's chain has category.
func IsCategory(err error, category ErrorCategory) bool {
	var enhanced *EnhancedError
	return As(err, &enhanced) && enhanced.Category == category
}

func IsNotFound(err error) bool { return IsCategory(err, CategoryNotFound) }

// CategoryOf returns the category of the first EnhancedError in the chain,
// or CategoryGeneric.
func CategoryOf(err error) ErrorCategory {
	var enhanced *EnhancedError
	if As(err, &enhanced) {
		return enhanced.Category
	}
	return CategoryGeneric
}
