package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.reported = append(r.reported, ee)
	ee.MarkReported()
}

func (r *recordingReporter) IsEnabled() bool { return true }

func TestFastPathNoTelemetry(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.IsReported())
}

func TestBuilderSetsFields(t *testing.T) {
	SetTelemetryReporter(nil)

	ee := Newf("cannot read %s", "plant.csv").
		Component("dataset").
		Category(CategoryFileIO).
		Priority(PriorityHigh).
		Context("path", "data/raw/plant.csv").
		Timing("read_csv", 1500*time.Millisecond).
		Build()

	assert.Equal(t, "cannot read plant.csv", ee.Error())
	assert.Equal(t, "dataset", ee.GetComponent())
	assert.Equal(t, CategoryFileIO, ee.GetCategory())
	assert.Equal(t, PriorityHigh, ee.GetPriority())

	ctx := ee.GetContext()
	assert.Equal(t, "data/raw/plant.csv", ctx["path"])
	assert.Equal(t, "read_csv", ctx["operation"])
	assert.Equal(t, int64(1500), ctx["duration_ms"])

	// returned context is a copy
	ctx["path"] = "changed"
	assert.Equal(t, "data/raw/plant.csv", ee.GetContext()["path"])
}

func TestPriorityFallsBackToMedium(t *testing.T) {
	ee := NewStd("x")
	built := New(ee).Priority("urgent").Build()
	assert.Equal(t, PriorityMedium, built.Priority)
}

func TestCategoryHelpers(t *testing.T) {
	sentinel := NewStd("model missing")
	ee := New(sentinel).Category(CategoryNotFound).Build()
	wrapped := fmt.Errorf("loading: %w", ee)

	assert.True(t, IsNotFound(wrapped))
	assert.True(t, IsCategory(wrapped, CategoryNotFound))
	assert.False(t, IsCategory(wrapped, CategoryValidation))
	assert.True(t, Is(wrapped, sentinel))
	assert.Equal(t, CategoryNotFound, CategoryOf(wrapped))
	assert.Equal(t, CategoryGeneric, CategoryOf(NewStd("plain")))

	var target *EnhancedError
	require.True(t, As(wrapped, &target))
	assert.Same(t, ee, target)
}

func TestDetectCategory(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		component string
		want      ErrorCategory
	}{
		{"nil error", nil, "", CategoryGeneric},
		{"model load", NewStd("failed to load model"), "", CategoryModelLoad},
		{"missing file", NewStd("open x.csv: no such file or directory"), "", CategoryFileIO},
		{"invalid input", NewStd("invalid soil pH"), "", CategoryValidation},
		{"datastore component", NewStd("constraint failed"), "datastore", CategoryDatabase},
		{"training component", NewStd("empty table"), "training", CategoryTraining},
		{"fallback", NewStd("something odd"), "", CategoryGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, detectCategory(tt.err, tt.component))
		})
	}
}

func TestTelemetryReporterReceivesErrors(t *testing.T) {
	reporter := &recordingReporter{}
	SetTelemetryReporter(reporter)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := New(NewStd("boom")).Category(CategoryTraining).Build()

	require.Len(t, reporter.reported, 1)
	assert.Same(t, ee, reporter.reported[0])
	assert.True(t, ee.IsReported())
}

func TestGenerateErrorTitle(t *testing.T) {
	ee := New(NewStd("x")).
		Component("http-controller").
		Category(CategoryValidation).
		Context("operation", "analyze_plant").
		Build()

	assert.Equal(t, "Http Controller Validation Error Analyze Plant", generateErrorTitle(ee))
}

func TestBasicURLScrub(t *testing.T) {
	scrubbed := basicURLScrub("Error at https://api.example.com?api_key=secret123&token=abc")
	assert.Equal(t, "Error at https://api.example.com?[REDACTED]", scrubbed)

	scrubbed = basicURLScrub("Config error: api_key=secret123 is invalid")
	assert.Contains(t, scrubbed, "[API_KEY_REDACTED]")

	scrubbed = basicURLScrub("dial failed for myco:hunter2@tcp(db:3306)/myconet")
	assert.NotContains(t, scrubbed, "hunter2")
}
