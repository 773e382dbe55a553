package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/verdantlabs/plantdash/internal/config"
	"github.com/verdantlabs/plantdash/internal/db"
	"github.com/verdantlabs/plantdash/internal/gwerrors"
	"github.com/verdantlabs/plantdash/internal/tokenstore"
)

type recordedRequest struct {
	Path          string
	Authorization string
	RequestID     string
	Cookie        string
	Body          string
}

// fakeBackend accepts the current token on every path except /api/broken, which always answers 401.
type fakeBackend struct {
	lock          sync.Mutex
	validToken    string
	nextToken     string
	refreshStatus int
	refreshCalls  int
	unauthorized  int
	requests      []recordedRequest
	// refreshes wait until this many requests were rejected
	holdRefreshUntil int
	released         chan struct{}

	server *httptest.Server
}

func newFakeBackend(t *testing.T, validToken, nextToken string) *fakeBackend {
	b := &fakeBackend{
		validToken:    validToken,
		nextToken:     nextToken,
		refreshStatus: http.StatusOK,
		released:      make(chan struct{}),
	}
	b.server = httptest.NewServer(http.HandlerFunc(b.handle))
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	b.lock.Lock()
	b.requests = append(b.requests, recordedRequest{
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		RequestID:     r.Header.Get("X-Request-ID"),
		Cookie:        r.Header.Get("Cookie"),
		Body:          string(body),
	})
	b.lock.Unlock()

	switch r.URL.Path {
	case config.DefaultRefreshPath:
		b.handleRefresh(w)
	case config.DefaultLogoutPath:
		w.WriteHeader(http.StatusUnauthorized)
	default:
		b.lock.Lock()
		authorized := r.URL.Path != "/api/broken" && r.Header.Get("Authorization") == "Bearer "+b.validToken
		if !authorized {
			b.unauthorized++
			if b.holdRefreshUntil > 0 && b.unauthorized == b.holdRefreshUntil {
				close(b.released)
			}
		}
		b.lock.Unlock()
		if !authorized {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(fmt.Sprintf(`{"path":%q,"body":%q}`, r.URL.Path, string(body))))
	}
}

func (b *fakeBackend) handleRefresh(w http.ResponseWriter) {
	b.lock.Lock()
	b.refreshCalls++
	hold := b.holdRefreshUntil > 0
	b.lock.Unlock()
	if hold {
		select {
		case <-b.released:
		case <-time.After(5 * time.Second):
		}
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.refreshStatus != http.StatusOK {
		w.WriteHeader(b.refreshStatus)
		return
	}
	b.validToken = b.nextToken
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"access_token": b.nextToken})
}

func (b *fakeBackend) refreshCount() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.refreshCalls
}

func (b *fakeBackend) requestsTo(path string) []recordedRequest {
	b.lock.Lock()
	defer b.lock.Unlock()
	output := []recordedRequest{}
	for _, r := range b.requests {
		if r.Path == path {
			output = append(output, r)
		}
	}
	return output
}

func (b *fakeBackend) apiConfig(t *testing.T) config.APIConfig {
	baseURL, err := url.Parse(b.server.URL)
	require.NoError(t, err)
	return config.APIConfig{BaseURL: baseURL}
}

// memoryStore is a token store whose failures can be switched on
type memoryStore struct {
	lock   sync.Mutex
	value  string
	getErr error
	setErr error
}

func (m *memoryStore) Get(context.Context) (string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	if m.value == "" {
		return "", gwerrors.ErrTokenNotFound
	}
	return m.value, nil
}

func (m *memoryStore) Set(_ context.Context, value string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.value = value
	return nil
}

func (m *memoryStore) Clear(context.Context) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.value = ""
	return nil
}

func newRedisTokenStore(t *testing.T, value string) *tokenstore.TokenStore {
	adapter, err := db.NewMockRedisAdapter()
	require.NoError(t, err)
	store, err := tokenstore.NewTokenStore(tokenstore.WithTokenRepository(adapter))
	require.NoError(t, err)
	if value != "" {
		require.NoError(t, store.Set(context.Background(), value))
	}
	return store
}

type logoutCounter struct {
	lock  sync.Mutex
	count int
}

func (l *logoutCounter) Logout(context.Context) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.count++
}

func (l *logoutCounter) Count() int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.count
}

const testTimeout = 5 * time.Second
const testTick = 10 * time.Millisecond
