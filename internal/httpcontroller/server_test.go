package httpcontroller

import (
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/myconet/internal/analysis"
	"github.com/tphakala/myconet/internal/conf"
	"github.com/tphakala/myconet/internal/datastore"
	"github.com/tphakala/myconet/internal/history"
	"github.com/tphakala/myconet/internal/model"
	"github.com/tphakala/myconet/internal/observability"
	"github.com/tphakala/myconet/internal/testutil"
)

var (
	fixtureOnce sync.Once
	fixtureSet  *model.Set
)

func fixture(t *testing.T) *model.Set {
	t.Helper()
	fixtureOnce.Do(func() { fixtureSet = testutil.TrainedSet(t) })
	require.NotNil(t, fixtureSet)
	return fixtureSet
}

func newTestServer(t *testing.T, configure ...func(*conf.Settings)) *Server {
	t.Helper()
	return newTestServerWithStore(t, nil, configure...)
}

func newTestServerWithStore(t *testing.T, ds datastore.Interface, configure ...func(*conf.Settings)) *Server {
	t.Helper()

	m, err := observability.NewMetrics()
	require.NoError(t, err)

	a, err := analysis.NewAnalyzer(fixture(t), "1", analysis.WithRecorder(m.MycoNet))
	require.NoError(t, err)

	settings := &conf.Settings{}
	settings.Telemetry.Enabled = true
	for _, fn := range configure {
		fn(settings)
	}

	s, err := New(settings, a, ds, m)
	require.NoError(t, err)
	return s
}

type client struct {
	t       *testing.T
	s       *Server
	session string
}

func newClient(t *testing.T, s *Server) *client {
	t.Helper()
	return &client{t: t, s: s, session: uuid.NewString()}
}

func (cl *client) do(req *http.Request) *httptest.ResponseRecorder {
	cl.t.Helper()
	req.Header.Set(SessionHeader, cl.session)
	rec := httptest.NewRecorder()
	cl.s.Echo.ServeHTTP(rec, req)
	return rec
}

func (cl *client) get(path string) *httptest.ResponseRecorder {
	return cl.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (cl *client) postJSON(path string, body any) *httptest.ResponseRecorder {
	cl.t.Helper()
	b, err := json.Marshal(body)
	require.NoError(cl.t, err)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(b)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return cl.do(req)
}

// postForm submits a dashboard form with a matching CSRF cookie and token.
func (cl *client) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	const token = "test-csrf-token"
	if form == nil {
		form = url.Values{}
	}
	form.Set("_csrf", token)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.AddCookie(&http.Cookie{Name: "csrf", Value: token})
	return cl.do(req)
}

// plantBody is a complete plant reading at the form defaults with
// soil_moisture replaced.
func plantBody(moisture float64) map[string]any {
	body := make(map[string]any, len(analysis.PlantFields))
	for _, f := range analysis.PlantFields {
		body[f.Name] = f.Default
	}
	body["soil_moisture"] = moisture
	return body
}

func fungalBody(species string) map[string]any {
	return map[string]any{
		"species": species,
		"light":   testutil.Lights[0],
		"microbe": testutil.Microbes[0],
		"amf":     90.5,
		"phn_imp": 0.5,
		"nsc_imp": 0.5,
		"lig_imp": 0.5,
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	cl := newClient(t, newTestServer(t))
	rec := cl.get("/api/v1/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[HealthResponse](t, rec).Status)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestAPIAnalyzePlant(t *testing.T) {
	cl := newClient(t, newTestServer(t))

	rec := cl.postJSON("/api/v1/analyze/plant", plantBody(5))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[analysis.PlantResult](t, rec)
	assert.Equal(t, analysis.StatusHighStress, res.Status)
	assert.Greater(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 100.0)
	assert.Len(t, res.Recommendations, 3)
	assert.InDelta(t, 6.5, res.SoilPH, 1e-9)
}

func TestAPIRejectsIncompleteReadings(t *testing.T) {
	cl := newClient(t, newTestServer(t))

	partialPlant := plantBody(50)
	delete(partialPlant, "nitrogen")
	nullPlant := plantBody(50)
	nullPlant["humidity"] = nil
	categoricalsOnly := fungalBody(testutil.Species[0])
	for _, k := range []string{"amf", "phn_imp", "nsc_imp", "lig_imp"} {
		delete(categoricalsOnly, k)
	}
	noSpecies := fungalBody(testutil.Species[0])
	delete(noSpecies, "species")

	tests := []struct {
		name    string
		path    string
		body    map[string]any
		missing []string
	}{
		{"empty plant body", "/api/v1/analyze/plant", map[string]any{}, analysis.PlantInputNames()},
		{"plant without nitrogen", "/api/v1/analyze/plant", partialPlant, []string{"nitrogen"}},
		{"plant with null humidity", "/api/v1/analyze/plant", nullPlant, []string{"humidity"}},
		{"empty fungal body", "/api/v1/analyze/fungal", map[string]any{}, analysis.FungalInputNames()},
		{"fungal categoricals only", "/api/v1/analyze/fungal", categoricalsOnly, []string{"amf", "phn_imp", "nsc_imp", "lig_imp"}},
		{"fungal without species", "/api/v1/analyze/fungal", noSpecies, []string{"species"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := cl.postJSON(tt.path, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			body := decode[apiError](t, rec)
			assert.Equal(t, "validation", body.Category)
			assert.Contains(t, body.Error, "incomplete reading")
			for _, name := range tt.missing {
				assert.Contains(t, body.Error, name)
			}
		})
	}

	rec := cl.get("/api/v1/combined")
	require.Equal(t, http.StatusOK, rec.Code)
	combined := decode[CombinedResponse](t, rec)
	assert.Nil(t, combined.Plant, "incomplete readings are never scored")
	assert.Nil(t, combined.Fungal)
}

func TestAPIRejectsOutOfRangeReading(t *testing.T) {
	cl := newClient(t, newTestServer(t))

	rec := cl.postJSON("/api/v1/analyze/plant", plantBody(150))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decode[apiError](t, rec)
	assert.Equal(t, "validation", body.Category)
	assert.Contains(t, body.Error, "SoilMoisture must be <= 100")
}

func TestAPIRejectsUnknownSpecies(t *testing.T) {
	cl := newClient(t, newTestServer(t))

	rec := cl.postJSON("/api/v1/analyze/fungal", fungalBody("Pinus strobus"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[apiError](t, rec).Error, "unknown category")

	rec = cl.get("/api/v1/combined")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[CombinedResponse](t, rec).Fungal, "failed analyses are not stored")
}

func TestAPIHistoryFlow(t *testing.T) {
	cl := newClient(t, newTestServer(t))

	rec := cl.postJSON("/api/v1/history", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code, "saving needs both analyses")

	require.Equal(t, http.StatusOK, cl.postJSON("/api/v1/analyze/plant", plantBody(55)).Code)
	require.Equal(t, http.StatusOK, cl.postJSON("/api/v1/analyze/fungal", fungalBody(testutil.Species[0])).Code)

	combined := decode[CombinedResponse](t, cl.get("/api/v1/combined"))
	require.True(t, combined.Complete)
	require.NotNil(t, combined.Assessment)

	for range 2 {
		rec = cl.postJSON("/api/v1/history", nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	list := decode[HistoryResponse](t, cl.get("/api/v1/history?status=High+Stress"))
	assert.Equal(t, 2, list.Total)
	assert.Empty(t, list.Entries)

	rec = cl.get("/api/v1/history/export")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), history.ExportFilename)
	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 3, "header plus one row per saved result")
	assert.Equal(t, history.ExportHeader, rows[0])

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/history", nil)
	rec = cl.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"removed": 2}, decode[map[string]int](t, rec))
}

func TestSessionsAreIsolated(t *testing.T) {
	s := newTestServer(t)
	alice, bob := newClient(t, s), newClient(t, s)

	require.Equal(t, http.StatusOK, alice.postJSON("/api/v1/analyze/plant", plantBody(55)).Code)

	assert.NotNil(t, decode[CombinedResponse](t, alice.get("/api/v1/combined")).Plant)
	assert.Nil(t, decode[CombinedResponse](t, bob.get("/api/v1/combined")).Plant)
}

func TestSessionCookieIssued(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var found bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionName {
			found = true
		}
	}
	assert.True(t, found, "a new visitor gets a session cookie")
	assert.NoError(t, uuid.Validate(rec.Header().Get(SessionHeader)))
}

func TestPlantPageForm(t *testing.T) {
	cl := newClient(t, newTestServer(t))

	rec := cl.get("/plant")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Plant Health Assessment")
	assert.Contains(t, body, `name="soil_moisture"`)
	assert.Contains(t, body, `name="_csrf"`)

	form := url.Values{}
	for _, f := range analysis.PlantFields {
		form.Set(f.Name, "10")
	}
	form.Set("soil_moisture", "55")
	rec = cl.postForm("/plant", form)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Plant Status: Healthy")
	assert.Contains(t, rec.Body.String(), "Plant: Healthy", "sidebar shows the latest status")
}

func TestPlantFormValidationError(t *testing.T) {
	cl := newClient(t, newTestServer(t))

	form := url.Values{}
	for k, v := range plantBody(50) {
		form.Set(k, toString(v))
	}
	form.Set("soil_ph", "15")
	rec := cl.postForm("/plant", form)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "SoilPH must be &lt;= 14")
}

func TestPlantFormRejectsMissingFields(t *testing.T) {
	cl := newClient(t, newTestServer(t))

	rec := cl.postForm("/plant", url.Values{"soil_moisture": {"50"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "incomplete reading")
	assert.Contains(t, body, "electrochemical_signal")
	assert.NotContains(t, body, "Plant Status:")

	form := url.Values{}
	for k, v := range plantBody(50) {
		form.Set(k, toString(v))
	}
	form.Set("chlorophyll", " ")
	rec = cl.postForm("/plant", form)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing chlorophyll")
}

func TestFungalFormRejectsMissingCategoricals(t *testing.T) {
	cl := newClient(t, newTestServer(t))

	form := url.Values{}
	for k, v := range fungalBody(testutil.Species[0]) {
		form.Set(k, toString(v))
	}
	form.Del("light")
	rec := cl.postForm("/fungal", form)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing light")
}

func TestFormRequiresCSRFToken(t *testing.T) {
	cl := newClient(t, newTestServer(t))

	req := httptest.NewRequest(http.MethodPost, "/plant", strings.NewReader("soil_moisture=50"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := cl.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestFungalPageListsEncoderClasses(t *testing.T) {
	cl := newClient(t, newTestServer(t))

	rec := cl.get("/fungal")
	require.Equal(t, http.StatusOK, rec.Code)
	for _, sp := range testutil.Species {
		assert.Contains(t, rec.Body.String(), sp)
	}

	form := url.Values{}
	for k, v := range fungalBody(testutil.Species[1]) {
		form.Set(k, toString(v))
	}
	rec = cl.postForm("/fungal", form)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Fungal Network Status")
	assert.Contains(t, rec.Body.String(), "/charts/importance/fungal_network")
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}

func TestCombinedSaveAndHistoryPages(t *testing.T) {
	cl := newClient(t, newTestServer(t))

	rec := cl.get("/combined")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please complete both")

	rec = cl.postForm("/combined/save", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.Equal(t, http.StatusOK, cl.postJSON("/api/v1/analyze/plant", plantBody(30)).Code)
	require.Equal(t, http.StatusOK, cl.postJSON("/api/v1/analyze/fungal", fungalBody(testutil.Species[0])).Code)

	rec = cl.get("/combined")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Overall Assessment")

	rec = cl.postForm("/combined/save", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/history", rec.Header().Get(echo.HeaderLocation))

	rec = cl.get("/history")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Showing 1 of 1 saved results")
	assert.Contains(t, rec.Body.String(), "Tests Conducted: <strong>1</strong>")

	rec = cl.postForm("/history/clear", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Contains(t, cl.get("/history").Body.String(), "No saved results yet")
}

func TestResultsPage(t *testing.T) {
	cl := newClient(t, newTestServer(t))

	rec := cl.get("/results")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "/charts/importance/plant_health")
	assert.Contains(t, body, "/charts/importance/fungal_network")
	assert.Contains(t, body, "bundle", "without recorded runs accuracy comes from the bundle")
	assert.Contains(t, body, "Save combined results to see trends")

	models := decode[[]ModelSummary](t, cl.get("/api/v1/models"))
	require.Len(t, models, 2)
	assert.Equal(t, model.PlantHealth, models[0].Info.Name)
	assert.NotEmpty(t, models[1].Info.Importances)
}

func TestTrainingRunHistory(t *testing.T) {
	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "myconet.db")
	store := datastore.New(settings)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	ctx := t.Context()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{model.PlantHealth, model.FungalNetwork, model.PlantHealth} {
		require.NoError(t, store.SaveTrainingRun(ctx, &datastore.TrainingRun{
			Model:      name,
			CleanRows:  95,
			TestRows:   19,
			Accuracy:   0.8 + float64(i)/20,
			Trees:      100,
			Seed:       uint64(40 + i),
			DurationMs: 1200,
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		}))
	}
	cl := newClient(t, newTestServerWithStore(t, store))

	runs := decode[[]datastore.TrainingRun](t, cl.get("/api/v1/training-runs?limit=2"))
	require.Len(t, runs, 2)
	assert.Equal(t, model.PlantHealth, runs[0].Model)
	assert.Equal(t, uint64(42), runs[0].Seed)
	assert.Equal(t, model.FungalNetwork, runs[1].Model)

	assert.Len(t, decode[[]datastore.TrainingRun](t, cl.get("/api/v1/training-runs")), 3)
	assert.Equal(t, http.StatusBadRequest, cl.get("/api/v1/training-runs?limit=0").Code)
	assert.Equal(t, http.StatusBadRequest, cl.get("/api/v1/training-runs?limit=500").Code)

	body := cl.get("/results").Body.String()
	assert.Contains(t, body, "Training History")
	assert.Contains(t, body, "1200 ms")
	assert.Contains(t, body, "training_run", "accuracy comes from the latest recorded run")
}

func TestTrainingRunHistoryWithoutStore(t *testing.T) {
	cl := newClient(t, newTestServer(t))

	rec := cl.get("/api/v1/training-runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
	assert.NotContains(t, cl.get("/results").Body.String(), "Training History")
}

func TestCharts(t *testing.T) {
	cl := newClient(t, newTestServer(t))

	tests := []struct {
		path string
		code int
	}{
		{"/charts/importance/plant_health", http.StatusOK},
		{"/charts/importance/fungal_network", http.StatusOK},
		{"/charts/importance/weather", http.StatusNotFound},
		{"/charts/trend/soil_moisture", http.StatusOK},
		{"/charts/trend/rainfall", http.StatusNotFound},
		{"/charts/status", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := cl.get(tt.path)
			require.Equal(t, tt.code, rec.Code)
			if tt.code == http.StatusOK {
				assert.Equal(t, svgContentType, rec.Header().Get(echo.HeaderContentType))
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	cl := newClient(t, newTestServer(t))
	require.Equal(t, http.StatusOK, cl.postJSON("/api/v1/analyze/plant", plantBody(5)).Code)

	rec := cl.get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `myconet_predictions_total{model="plant_health",status="High Stress"} 1`)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestMetricsDisabled(t *testing.T) {
	s := newTestServer(t, func(s *conf.Settings) { s.Telemetry.Enabled = false })
	rec := newClient(t, s).get("/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	cl := newClient(t, newTestServer(t))

	rec := cl.get("/does-not-exist")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Page not found")

	rec = cl.get("/api/v1/nothing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusNotFound, decode[apiError](t, rec).Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(s *conf.Settings) { s.WebServer.RateLimit = 1 })
	cl := newClient(t, s)

	codes := make([]int, 0, 4)
	for range 4 {
		codes = append(codes, cl.get("/api/v1/health").Code)
	}
	assert.Contains(t, codes, http.StatusTooManyRequests)
	assert.Equal(t, http.StatusOK, codes[0])
}
