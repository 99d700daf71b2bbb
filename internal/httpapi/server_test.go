package httpapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/tickwatch/internal/metrics"
	"github.com/rewired-gh/tickwatch/internal/models"
	"github.com/rewired-gh/tickwatch/internal/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	mu      sync.Mutex
	running bool
	alerts  []models.Alert
	chart   []models.PricePoint
}

func (f *fakeSession) Snapshot() monitor.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := "Paused"
	if f.running {
		status = "Monitoring • TREND • bull bias"
	}
	return monitor.Snapshot{
		Asset:   "BTC-USD",
		Price:   101.5,
		Status:  status,
		Running: f.running,
		Alerts:  append([]models.Alert{}, f.alerts...),
		Chart:   append([]models.PricePoint{}, f.chart...),
		State:   models.NewAnalysisState(),
	}
}

func (f *fakeSession) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = true
}

func (f *fakeSession) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
}

func newFakeSession() *fakeSession {
	t0 := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	return &fakeSession{
		running: true,
		alerts: []models.Alert{
			{ID: "c", Rule: models.RuleBreakout, Timestamp: t0.Add(2 * time.Minute)},
			{ID: "b", Rule: models.RuleLiquiditySweep, Timestamp: t0.Add(time.Minute)},
			{ID: "a", Rule: models.RuleBreakdown, Timestamp: t0},
		},
		chart: []models.PricePoint{
			{Timestamp: t0, Price: 100},
			{Timestamp: t0.Add(5 * time.Second), Price: 100.5},
		},
	}
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), "body %q", rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	h := NewServer(Config{}, newFakeSession(), nil).Handler()
	rec := do(t, h, http.MethodGet, "/health")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	_, err := uuid.Parse(rec.Header().Get("X-Request-ID"))
	assert.NoError(t, err, "X-Request-ID is not a uuid")
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestRequestIDsAreUnique(t *testing.T) {
	h := NewServer(Config{}, newFakeSession(), nil).Handler()
	a := do(t, h, http.MethodGet, "/health").Header().Get("X-Request-ID")
	b := do(t, h, http.MethodGet, "/health").Header().Get("X-Request-ID")
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestStatus(t *testing.T) {
	h := NewServer(Config{}, newFakeSession(), nil).Handler()
	rec := do(t, h, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	snap := decode[monitor.Snapshot](t, rec)
	assert.Equal(t, "BTC-USD", snap.Asset)
	assert.Equal(t, 101.5, snap.Price)
	assert.Equal(t, "Monitoring • TREND • bull bias", snap.Status)
	assert.Len(t, snap.Alerts, 3)
	assert.Len(t, snap.Chart, 2)
}

func TestAlerts(t *testing.T) {
	h := NewServer(Config{}, newFakeSession(), nil).Handler()

	tests := []struct {
		target string
		code   int
		ids    string
	}{
		{"/api/alerts", http.StatusOK, "cba"},
		{"/api/alerts?limit=2", http.StatusOK, "cb"},
		{"/api/alerts?limit=10", http.StatusOK, "cba"},
		{"/api/alerts?limit=0", http.StatusOK, ""},
		{"/api/alerts?limit=-1", http.StatusBadRequest, ""},
		{"/api/alerts?limit=abc", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.target)
			require.Equal(t, tt.code, rec.Code)
			if tt.code != http.StatusOK {
				assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
				return
			}
			var ids string
			for _, a := range decode[[]models.Alert](t, rec) {
				ids += a.ID
			}
			assert.Equal(t, tt.ids, ids)
		})
	}
}

func TestChart(t *testing.T) {
	h := NewServer(Config{}, newFakeSession(), nil).Handler()
	points := decode[[]models.PricePoint](t, do(t, h, http.MethodGet, "/api/chart"))
	require.Len(t, points, 2)
	assert.Equal(t, 100.5, points[1].Price)
}

func TestSessionStartStop(t *testing.T) {
	session := newFakeSession()
	h := NewServer(Config{}, session, nil).Handler()

	rec := do(t, h, http.MethodPost, "/api/session/stop")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[map[string]any](t, rec)
	assert.Equal(t, false, got["running"])
	assert.Equal(t, "Paused", got["status"])

	got = decode[map[string]any](t, do(t, h, http.MethodPost, "/api/session/start"))
	assert.Equal(t, true, got["running"])
}

func TestWrongMethodIsNotAllowed(t *testing.T) {
	session := newFakeSession()
	h := NewServer(Config{}, session, nil).Handler()

	tests := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/api/session/start"},
		{http.MethodGet, "/api/session/stop"},
		{http.MethodPost, "/api/status"},
		{http.MethodPost, "/api/alerts"},
		{http.MethodDelete, "/health"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.target)
			require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, "method not allowed", decode[map[string]string](t, rec)["error"])
		})
	}
	assert.True(t, session.Snapshot().Running, "a rejected request must not reach the session")
}

func TestNotFound(t *testing.T) {
	h := NewServer(Config{}, newFakeSession(), nil).Handler()
	rec := do(t, h, http.MethodGet, "/api/nope")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "not found", decode[map[string]string](t, rec)["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	mt := metrics.New()
	mt.ObserveAlert(models.RuleBreakout)

	h := NewServer(Config{}, newFakeSession(), mt.Handler()).Handler()
	rec := do(t, h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `tickwatch_alerts_total{rule="breakout"} 1`)

	rec = do(t, NewServer(Config{}, newFakeSession(), nil).Handler(), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code, "metrics without a handler")
}

func TestServeAndShutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := NewServer(Config{}, newFakeSession(), nil)

	done := make(chan error, 1)
	go func() { done <- s.Serve(l) }()

	resp, err := http.Get("http://" + l.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.NoError(t, <-done, "Serve after shutdown")
}
