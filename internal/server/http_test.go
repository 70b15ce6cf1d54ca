package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/teemow/timeslotseeker/internal/finder"
	"github.com/teemow/timeslotseeker/internal/instrumentation"
)

func newTestAPI(t *testing.T, sc *ServerContext, cfg APIConfig) http.Handler {
	t.Helper()
	api, err := NewAPIServer(sc, NewHealthChecker(sc), cfg)
	require.NoError(t, err)
	return api.Handler()
}

func post(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var raw []byte
	switch b := body.(type) {
	case string:
		raw = []byte(b)
	default:
		var err error
		raw, err = json.Marshal(b)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func TestNewAPIServer_RequiresContext(t *testing.T) {
	_, err := NewAPIServer(nil, nil, APIConfig{})
	assert.Error(t, err)
}

func TestFindTimeslot(t *testing.T) {
	source := aliceBusy()
	h := newTestAPI(t, newStaticContext(t, source), APIConfig{})

	rec := post(t, h, "/find-timeslot", SearchRequest{
		Participants: []string{"alice@example.com", "bob@example.com"},
		SlotLength:   60,
		Weeks:        1,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SearchID)
	assert.Equal(t, "2025-01-06T09:00:00Z", resp.WindowStart)
	assert.Equal(t, "2025-01-13T09:00:00Z", resp.WindowEnd)

	require.GreaterOrEqual(t, len(resp.Slots), 2)
	assert.Equal(t, "2025-01-06T09:00:00Z", resp.Slots[0].Start)
	assert.Equal(t, "2025-01-06T10:00:00Z", resp.Slots[0].End)
	assert.Equal(t, "2025-01-06T11:00:00Z", resp.Slots[1].Start, "busy hour is skipped")

	calls := source.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, calls[0].Participants)
}

func TestFindTimeslot_EmptyResultIsOK(t *testing.T) {
	source := finder.NewStaticSource(nil)
	source.SetBusy("alice@example.com", intervalOf(testNow, testNow.AddDate(0, 0, 30)))
	h := newTestAPI(t, newStaticContext(t, source), APIConfig{})

	rec := post(t, h, "/find-timeslot", SearchRequest{Participants: []string{"alice@example.com"}, SlotLength: 30, Weeks: 1})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(mustField(t, rec.Body.Bytes(), "slots")))
}

func TestTestSlots(t *testing.T) {
	h := newTestAPI(t, newStaticContext(t, aliceBusy()), APIConfig{PreviewLimit: 3})

	rec := post(t, h, "/test-slots", SearchRequest{Participants: []string{"alice@example.com"}, SlotLength: 30, Weeks: 1})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PreviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.PreviewSlots, 3)
	assert.Equal(t, "2025-01-06T09:00:00Z", resp.PreviewSlots[0].UTCStart)
	assert.Equal(t, "2025-01-06 09:00 AM", resp.PreviewSlots[0].LocalStart)
	assert.Equal(t, "2025-01-06 09:30 AM", resp.PreviewSlots[0].LocalEnd)
}

func TestSearch_BadRequests(t *testing.T) {
	h := newTestAPI(t, newStaticContext(t, aliceBusy()), APIConfig{})

	tests := []struct {
		name string
		body any
		kind string
	}{
		{"malformed json", `{"participants": [`, KindBadRequest},
		{"unknown field", `{"participants": ["a@example.com"], "slot_length": 30, "weeks": 1, "zone": "x"}`, KindBadRequest},
		{"no participants", SearchRequest{SlotLength: 30, Weeks: 1}, "invalid_argument"},
		{"empty participant", SearchRequest{Participants: []string{""}, SlotLength: 30, Weeks: 1}, "invalid_argument"},
		{"missing slot length", SearchRequest{Participants: []string{"a@example.com"}, Weeks: 1}, "invalid_argument"},
		{"slot length below bound", SearchRequest{Participants: []string{"a@example.com"}, SlotLength: 4, Weeks: 1}, "invalid_argument"},
		{"slot length above bound", SearchRequest{Participants: []string{"a@example.com"}, SlotLength: 481, Weeks: 1}, "invalid_argument"},
		{"too many weeks", SearchRequest{Participants: []string{"a@example.com"}, SlotLength: 30, Weeks: 5}, "invalid_argument"},
		{"whitespace participant", SearchRequest{Participants: []string{"a b@example.com"}, SlotLength: 30, Weeks: 1}, "invalid_argument"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, h, "/find-timeslot", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			e := decodeError(t, rec)
			assert.Equal(t, tt.kind, e.Kind)
			assert.NotEmpty(t, e.Error)
		})
	}
}

func TestSearch_ValidationMessageUsesJSONNames(t *testing.T) {
	h := newTestAPI(t, newStaticContext(t, aliceBusy()), APIConfig{})

	rec := post(t, h, "/find-timeslot", SearchRequest{SlotLength: 30, Weeks: 1})
	assert.Contains(t, decodeError(t, rec).Error, "participants: failed required")
}

func TestSearch_UpstreamFailure(t *testing.T) {
	source := aliceBusy()
	source.FailWith(errors.New("calendar exploded"))
	h := newTestAPI(t, newStaticContext(t, source), APIConfig{})

	rec := post(t, h, "/find-timeslot", SearchRequest{Participants: []string{"alice@example.com"}, SlotLength: 30, Weeks: 1})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "upstream_unavailable", decodeError(t, rec).Kind)
}

func TestSearch_SourceUnavailable(t *testing.T) {
	h := newTestAPI(t, newFailingContext(t), APIConfig{})

	rec := post(t, h, "/find-timeslot", SearchRequest{Participants: []string{"alice@example.com"}, SlotLength: 30, Weeks: 1})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	e := decodeError(t, rec)
	assert.Equal(t, KindUnavailable, e.Kind)
	assert.NotContains(t, e.Error, "no token", "internal errors are not echoed")
}

func TestSearch_RateLimited(t *testing.T) {
	h := newTestAPI(t, newStaticContext(t, aliceBusy()), APIConfig{RateLimit: 1})
	body := SearchRequest{Participants: []string{"alice@example.com"}, SlotLength: 30, Weeks: 1}

	assert.Equal(t, http.StatusOK, post(t, h, "/find-timeslot", body).Code)

	rec := post(t, h, "/find-timeslot", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, KindRateLimited, decodeError(t, rec).Kind)

	// Probes are not rate limited.
	probe := httptest.NewRecorder()
	h.ServeHTTP(probe, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, probe.Code)
}

func TestSearch_MethodNotAllowed(t *testing.T) {
	h := newTestAPI(t, newStaticContext(t, aliceBusy()), APIConfig{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/find-timeslot", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestAPI(t, newStaticContext(t, aliceBusy()), APIConfig{CORSOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/find-timeslot", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMCPHandlerMounted(t *testing.T) {
	mcp := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	h := newTestAPI(t, newStaticContext(t, aliceBusy()), APIConfig{MCPHandler: mcp})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestMetricsMiddleware_RecordsRoutePattern(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	metrics, err := instrumentation.NewMetrics(mp.Meter("test"), false)
	require.NoError(t, err)

	h := newTestAPI(t, newStaticContext(t, aliceBusy(), WithMetrics(metrics)), APIConfig{})
	post(t, h, "/find-timeslot", SearchRequest{Participants: []string{"alice@example.com"}, SlotLength: 30, Weeks: 1})
	post(t, h, "/find-timeslot", `{}`)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	statuses := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "http_requests_total" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				path, _ := dp.Attributes.Value(attribute.Key("path"))
				assert.Equal(t, "/find-timeslot", path.AsString())
				status, _ := dp.Attributes.Value(attribute.Key("status"))
				statuses[status.AsString()] = true
			}
		}
	}
	assert.Equal(t, map[string]bool{"200": true, "400": true}, statuses)
}

func TestAPIServer_StartAndShutdown(t *testing.T) {
	sc := newStaticContext(t, aliceBusy())
	api, err := NewAPIServer(sc, NewHealthChecker(sc), APIConfig{Addr: "127.0.0.1:0"})
	require.NoError(t, err)

	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- api.StartWithReadySignal(ready) }()

	select {
	case <-ready:
	case err := <-done:
		t.Fatalf("API server failed to start: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("API server startup timed out")
	}

	resp, err := http.Get("http://" + api.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, api.Shutdown(ctx))
	assert.ErrorIs(t, <-done, http.ErrServerClosed)
}

func mustField(t *testing.T, raw []byte, field string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &m))
	return m[field]
}
