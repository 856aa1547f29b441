package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/annel0/celestial/internal/auth"
	"github.com/annel0/celestial/internal/cache"
	"github.com/annel0/celestial/internal/celestial"
	"github.com/annel0/celestial/internal/eventbus"
	celsync "github.com/annel0/celestial/internal/sync"
	"github.com/annel0/celestial/internal/world"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	rs  *RestServer
	wm  *world.WorldManager
	bus eventbus.EventBus
}

func newTestServer(t *testing.T, observer *celsync.ObserverState) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bus := eventbus.NewMemoryBus(64)
	wm := world.NewWorldManager(world.Options{
		ID:         "overworld",
		Seed:       42,
		Registerer: prometheus.NewRegistry(),
		Store:      cache.NewMemorySnapshotStore(0),
		Bus:        bus,
	}, celestial.DefaultRegistry(), nil)

	hooks, err := NewWebhookManager(context.Background(), bus, "test")
	require.NoError(t, err)
	hooks.backoff = time.Millisecond
	t.Cleanup(hooks.Close)

	reg := prometheus.NewRegistry()
	rs := NewRestServer(Config{
		World:      wm,
		Observer:   observer,
		Webhooks:   hooks,
		Registerer: reg,
		Gatherer:   reg,
	})
	return &testServer{rs: rs, wm: wm, bus: bus}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.rs.Handler().ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w.Code, env
}

func adminToken(t *testing.T, admin bool) string {
	t.Helper()
	tok, err := auth.GenerateJWT("operator", admin, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	code, _ := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestReportUnavailableBeforeFirstTick(t *testing.T) {
	ts := newTestServer(t, nil)
	code, env := ts.do(t, http.MethodGet, "/api/celestial", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, env.Success)
}

func TestReportAfterTick(t *testing.T) {
	ts := newTestServer(t, nil)
	require.NoError(t, ts.wm.SetTime(9*celestial.TicksPerDay+5))
	ts.wm.Step(context.Background(), 1)

	code, env := ts.do(t, http.MethodGet, "/api/celestial", "", nil)
	require.Equal(t, http.StatusOK, code)

	var report ReportResponse
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, "overworld", report.World)
	assert.EqualValues(t, 9*celestial.TicksPerDay+5, report.WorldTime)
	assert.EqualValues(t, 9, report.Day)
	assert.Equal(t, celestial.MoonPhaseForDay(9), report.MoonPhase)
	assert.Len(t, report.Iterations, 3)

	code, env = ts.do(t, http.MethodGet, "/api/celestial/moon", "", nil)
	require.Equal(t, http.StatusOK, code)
	var moon struct {
		Day   int64  `json:"day"`
		Phase string `json:"phase"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &moon))
	assert.Equal(t, celestial.MoonPhaseForDay(9).String(), moon.Phase)
}

func TestConstellationCharge(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.wm.Step(context.Background(), 1)

	code, _ := ts.do(t, http.MethodGet, "/api/celestial/distribution/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, env := ts.do(t, http.MethodGet, "/api/celestial/distribution/discidia", "", nil)
	require.Equal(t, http.StatusOK, code)
	var got struct {
		Tier   int     `json:"tier"`
		Charge float64 `json:"charge"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, 0, got.Tier)
	assert.Equal(t, ts.wm.Handler().CurrentDistribution("discidia"), got.Charge)
}

func TestTiers(t *testing.T) {
	ts := newTestServer(t, nil)
	code, env := ts.do(t, http.MethodGet, "/api/celestial/tiers", "", nil)
	require.Equal(t, http.StatusOK, code)

	var tiers []TierInfo
	require.NoError(t, json.Unmarshal(env.Data, &tiers))
	require.Len(t, tiers, 3)
	assert.Equal(t, "bright", tiers[0].Name)
	assert.Equal(t, 2, tiers[2].Level)
}

func TestEclipsesNextDays(t *testing.T) {
	assert.EqualValues(t, 36, nextEclipseDay(0, celestial.IsSolarEclipseDay))
	assert.EqualValues(t, 36, nextEclipseDay(36, celestial.IsSolarEclipseDay))
	assert.EqualValues(t, 73, nextEclipseDay(37, celestial.IsSolarEclipseDay))
	assert.EqualValues(t, 68, nextEclipseDay(0, celestial.IsLunarEclipseDay))
}

func TestObserver(t *testing.T) {
	ts := newTestServer(t, nil)
	code, _ := ts.do(t, http.MethodGet, "/api/celestial/observer", "", nil)
	assert.Equal(t, http.StatusNotFound, code)

	obs := celsync.NewObserverState()
	obs.Apply(celsync.IterationSet{Source: "eu-1", Seq: 1})
	ts = newTestServer(t, obs)

	code, _ = ts.do(t, http.MethodGet, "/api/celestial/observer?source=eu-1", "", nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = ts.do(t, http.MethodGet, "/api/celestial/observer?source=us-1", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAdminTimeRequiresAdmin(t *testing.T) {
	ts := newTestServer(t, nil)
	body := SetTimeRequest{Day: int64Ptr(5)}

	code, _ := ts.do(t, http.MethodPost, "/api/admin/time", "", body)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = ts.do(t, http.MethodPost, "/api/admin/time", "garbage", body)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = ts.do(t, http.MethodPost, "/api/admin/time", adminToken(t, false), body)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = ts.do(t, http.MethodPost, "/api/admin/time", adminToken(t, true), body)
	require.Equal(t, http.StatusAccepted, code)

	ts.wm.Step(context.Background(), 1)
	assert.EqualValues(t, 5*celestial.TicksPerDay, ts.wm.Time())
	assert.EqualValues(t, 5, ts.wm.Handler().CurrentDay())
}

func TestAdminTimeValidation(t *testing.T) {
	ts := newTestServer(t, nil)
	tok := adminToken(t, true)

	code, _ := ts.do(t, http.MethodPost, "/api/admin/time", tok, SetTimeRequest{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(t, http.MethodPost, "/api/admin/time", tok, SetTimeRequest{Time: int64Ptr(-10)})
	assert.Equal(t, http.StatusBadRequest, code)

	// day * TicksPerDay не должен переполнять int64
	code, _ = ts.do(t, http.MethodPost, "/api/admin/time", tok, SetTimeRequest{Day: int64Ptr(math.MaxInt64 / 1000)})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(t, http.MethodPost, "/api/admin/time", tok, SetTimeRequest{Day: int64Ptr(-1)})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestWebhookReceivesDayEvents(t *testing.T) {
	const secret = "hook-secret"

	var mu sync.Mutex
	var received []WebhookPayload
	var signatureOK bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var p WebhookPayload
		_ = json.Unmarshal(body, &p)

		mu.Lock()
		received = append(received, p)
		signatureOK = r.Header.Get("X-Webhook-Signature") == Sign(body, secret)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ts := newTestServer(t, nil)
	tok := adminToken(t, true)

	code, env := ts.do(t, http.MethodPost, "/api/admin/webhooks", tok, Webhook{
		Name:   "sky",
		URL:    srv.URL,
		Secret: secret,
		Events: []string{eventbus.TypeCelestialDay},
	})
	require.Equal(t, http.StatusCreated, code)
	var created Webhook
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.EqualValues(t, 1, created.ID)

	ts.wm.Step(context.Background(), 1)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, eventbus.TypeCelestialDay, received[0].EventType)
	assert.True(t, signatureOK)
	mu.Unlock()

	code, _ = ts.do(t, http.MethodDelete, "/api/admin/webhooks/1", tok, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = ts.do(t, http.MethodGet, "/api/admin/webhooks/1", tok, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func int64Ptr(v int64) *int64 { return &v }
