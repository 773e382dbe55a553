package poller

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/verdantlabs/plantdash/internal/api"
	"github.com/verdantlabs/plantdash/internal/config"
	"github.com/verdantlabs/plantdash/internal/db"
	"github.com/verdantlabs/plantdash/internal/gateway"
	"github.com/verdantlabs/plantdash/internal/tokenstore"
)

type overviewBackend struct {
	lock         sync.Mutex
	failSensors  bool
	sessionEnded bool
	readingCalls int
	calls        int
}

func (b *overviewBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.calls++
	if b.sessionEnded && r.URL.Path != config.DefaultLogoutPath {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/devices":
		_, _ = w.Write([]byte(`[{"id":"d1","name":"Greenhouse controller","online":true}]`))
	case "/api/sensors":
		if b.failSensors {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"sensor service unavailable"}`))
			return
		}
		_, _ = w.Write([]byte(`[{"id":"s1","deviceId":"d1","kind":"moisture"},{"id":"s2","deviceId":"d1","kind":"temperature"}]`))
	case "/api/sensors/s1/readings", "/api/sensors/s2/readings":
		b.readingCalls++
		if r.URL.Query().Get("limit") != "5" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(fmt.Sprintf(`[{"sensorId":%q,"value":42,"recordedAt":"2024-05-01T08:00:00Z"}]`, r.URL.Path)))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (b *overviewBackend) callCount() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.calls
}

func newTestPoller(t *testing.T, backend *overviewBackend, options ...PollerOption) *Poller {
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)
	baseURL, err := url.Parse(server.URL)
	require.NoError(t, err)
	adapter, err := db.NewMockRedisAdapter()
	require.NoError(t, err)
	store, err := tokenstore.NewTokenStore(tokenstore.WithTokenRepository(adapter))
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), "T1"))
	gw, err := gateway.NewClient(gateway.WithConfig(config.APIConfig{BaseURL: baseURL}), gateway.WithTokenStore(store))
	require.NoError(t, err)
	options = append(
		[]PollerOption{
			WithAPIClient(api.NewClient(gw)),
			WithConfig(config.PollerConfig{Enabled: true, IntervalSeconds: 1, ReadingsLimit: 5}),
		},
		options...,
	)
	p, err := NewPoller(options...)
	require.NoError(t, err)
	return p
}

func TestRefresh(t *testing.T) {
	backend := &overviewBackend{}
	p := newTestPoller(t, backend)
	_, ready := p.Snapshot()
	assert.False(t, ready)

	err := p.Refresh(context.Background())
	require.NoError(t, err)

	overview, ready := p.Snapshot()
	require.True(t, ready)
	assert.Len(t, overview.Devices, 1)
	assert.Len(t, overview.Sensors, 2)
	require.Len(t, overview.Readings["s1"], 1)
	assert.Equal(t, 42.0, overview.Readings["s1"][0].Value)
	assert.Len(t, overview.Readings["s2"], 1)
	assert.False(t, overview.UpdatedAt.IsZero())
	assert.Equal(t, 2, backend.readingCalls)
}

func TestRefreshErrorKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	backend := &overviewBackend{}
	p := newTestPoller(t, backend)
	require.NoError(t, p.Refresh(ctx))
	before, _ := p.Snapshot()

	backend.lock.Lock()
	backend.failSensors = true
	backend.lock.Unlock()
	err := p.Refresh(ctx)

	apiErr, ok := api.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "sensor service unavailable", apiErr.Message)
	after, ready := p.Snapshot()
	assert.True(t, ready)
	assert.Equal(t, before, after)
}

func TestSessionExpiryClearsSnapshot(t *testing.T) {
	ctx := context.Background()
	backend := &overviewBackend{}
	p := newTestPoller(t, backend)
	require.NoError(t, p.Refresh(ctx))

	backend.lock.Lock()
	backend.sessionEnded = true
	backend.lock.Unlock()
	err := p.Refresh(ctx)

	assert.True(t, gateway.IsSessionExpiredError(err))
	_, ready := p.Snapshot()
	assert.False(t, ready)
}

func TestPollSkippedWithoutSession(t *testing.T) {
	backend := &overviewBackend{}
	loggedIn := false
	p := newTestPoller(t, backend, WithSessionCheck(func(context.Context) bool { return loggedIn }))

	p.poll(context.Background())

	assert.Equal(t, 0, backend.callCount())
	_, ready := p.Snapshot()
	assert.False(t, ready)

	loggedIn = true
	p.poll(context.Background())

	assert.Positive(t, backend.callCount())
	_, ready = p.Snapshot()
	assert.True(t, ready)
}

func TestScheduler(t *testing.T) {
	backend := &overviewBackend{}
	p := newTestPoller(t, backend)

	s, err := p.GetScheduler(context.Background())
	require.NoError(t, err)
	s.StartAsync()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		_, ready := p.Snapshot()
		return ready
	}, 5*time.Second, 10*time.Millisecond)
}

func TestNewPollerValidation(t *testing.T) {
	_, err := NewPoller(WithConfig(config.PollerConfig{IntervalSeconds: 10}))
	assert.Error(t, err)

	_, err = NewPoller(WithAPIClient(api.NewClient(nil)), WithConfig(config.PollerConfig{Enabled: true}))
	assert.Error(t, err)

	p, err := NewPoller(WithAPIClient(api.NewClient(nil)))
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	_, err = p.GetScheduler(context.Background())
	assert.Error(t, err)
}
