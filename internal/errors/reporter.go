package errors

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/getsentry/sentry-go"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TelemetryReporter receives every EnhancedError built while it is installed.
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

var (
	reporterMu sync.RWMutex
	reporter   TelemetryReporter
)

// SetTelemetryReporter installs r. Pass nil to stop reporting.
func SetTelemetryReporter(r TelemetryReporter) {
	reporterMu.Lock()
	defer reporterMu.Unlock()
	reporter = r
	reporting.Store(r != nil && r.IsEnabled())
}

func GetTelemetryReporter() TelemetryReporter {
	reporterMu.RLock()
	defer reporterMu.RUnlock()
	return reporter
}

func reportToTelemetry(ee *EnhancedError) {
	if r := GetTelemetryReporter(); r != nil && r.IsEnabled() {
		r.ReportError(ee)
	}
}

// SentryReporter sends errors to Sentry as scrubbed events grouped by
// component and category.
type SentryReporter struct {
	enabled bool
}

func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

func (sr *SentryReporter) IsEnabled() bool { return sr.enabled }

// ReportError captures ee once. Messages and string context values are
// scrubbed before they leave the process.
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() {
		return
	}
	ee.MarkReported()

	title := generateErrorTitle(ee)
	message := basicURLScrub(fmt.Sprintf("[%s] %s", ee.Category, ee.Err))
	level := sentryLevel(ee.Category)

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(map[string]string{
			"error_title": title,
			"component":   ee.GetComponent(),
			"category":    string(ee.Category),
			"error_type":  fmt.Sprintf("%T", ee.Err),
		})
		if ee.Priority != "" {
			scope.SetTag("priority", ee.Priority)
		}
		for key, value := range ee.GetContext() {
			if s, ok := value.(string); ok {
				value = basicURLScrub(s)
			}
			scope.SetContext(key, sentry.Context{"value": value})
		}
		scope.SetLevel(level)
		scope.SetFingerprint([]string{title, ee.GetComponent(), string(ee.Category)})

		// The exception type becomes the issue title in Sentry.
		event := sentry.NewEvent()
		event.Level = level
		event.Message = message
		event.Exception = []sentry.Exception{{Type: title, Value: message}}
		sentry.CaptureEvent(event)
	})
}

var categoryTitles = map[ErrorCategory]string{
	CategoryValidation:    "Validation Error",
	CategoryDatabase:      "Database Error",
	CategoryFileIO:        "File I/O Error",
	CategoryFileParsing:   "File Parsing Error",
	CategoryModelLoad:     "Model Loading Error",
	CategoryModelSave:     "Model Saving Error",
	CategoryTraining:      "Training Error",
	CategoryConfiguration: "Configuration Error",
	CategoryHTTP:          "HTTP Error",
	CategoryNotFound:      "Not Found",
	CategorySystem:        "System Error",
}

// generateErrorTitle builds "<Component> <Category title> <Operation>",
// skipping the parts that are unknown.
func generateErrorTitle(ee *EnhancedError) string {
	caser := cases.Title(language.English)
	var parts []string

	if c := ee.GetComponent(); c != "" && c != ComponentUnknown {
		parts = append(parts, caser.String(strings.ReplaceAll(c, "-", " ")))
	}
	if title, ok := categoryTitles[ee.Category]; ok {
		parts = append(parts, title)
	} else if ee.Category != "" {
		parts = append(parts, string(ee.Category))
	}
	if op, _ := ee.Context["operation"].(string); op != "" {
		parts = append(parts, caser.String(strings.ReplaceAll(op, "_", " ")))
	}

	if len(parts) == 0 {
		return fmt.Sprintf("%T", ee.Err)
	}
	return strings.Join(parts, " ")
}

// sentryLevel treats bad user input as informational and I/O trouble as a
// warning. Everything else is an error.
func sentryLevel(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryValidation, CategoryNotFound:
		return sentry.LevelInfo
	case CategoryFileIO, CategoryFileParsing, CategoryHTTP:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}

var (
	urlQuery   = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)
	queryParam = regexp.MustCompile(`[?&]([^=\s]+)=([^&\s]+)`)
	dsnSecret  = regexp.MustCompile(`[^\s:/@]+:[^\s@]+@tcp\(`)
	keyLike    = regexp.MustCompile(`(api[_-]?key|token|auth|password)[=:]\S+|key[=:][0-9a-fA-F]{8,}|[0-9a-fA-F]{32,}`)
)

// basicURLScrub strips query strings, DSN credentials and key material.
func basicURLScrub(message string) string {
	message = urlQuery.ReplaceAllString(message, "$1?[REDACTED]")
	message = queryParam.ReplaceAllString(message, "?[REDACTED]")
	message = dsnSecret.ReplaceAllString(message, "[CREDENTIALS_REDACTED]@tcp(")
	return keyLike.ReplaceAllString(message, "[API_KEY_REDACTED]")
}
