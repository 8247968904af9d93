package logger

import (
	"regexp"
)

type redaction struct {
	pattern     *regexp.Regexp
	replacement string
}

// redactions match credentials that must never reach a log sink.
var redactions = []redaction{
	{regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9-._~+/]+=*)`), "$1[REDACTED]"},
	{regexp.MustCompile(`(?i)((api|access|auth|token|secret|key|passw(or)?d)[0-9a-z\-_\.]*[\s:=]+)([^;,\s&]{5,})`), "$1[REDACTED]"},
	{regexp.MustCompile(`(?i)((session|csrf|sid|_csrf)=)([^;,\s&]{5,})`), "$1[REDACTED]"},
	// user:password@tcp(host) in MySQL DSNs
	{regexp.MustCompile(`([^\s:/@]+:)([^\s@]+)@tcp\(`), "$1[REDACTED]@tcp("},
}

// RedactSensitiveData replaces secrets such as tokens, passwords, session
// ids and DSN passwords with [REDACTED].
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}

	for _, r := range redactions {
		input = r.pattern.ReplaceAllString(input, r.replacement)
	}

	return input
}
