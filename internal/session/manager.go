// Package session keeps the dashboard logged in to the backend and tells the gateway how to log out.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"sync"

	"github.com/verdantlabs/plantdash/internal/config"
	"github.com/verdantlabs/plantdash/internal/gateway"
	"github.com/verdantlabs/plantdash/internal/gwerrors"
	"github.com/verdantlabs/plantdash/internal/models"
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenStore interface {
	gateway.TokenStore
	Current(context.Context) (models.AccessToken, error)
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	Error       string `json:"error"`
}

type Manager struct {
	apiConfig  config.APIConfig
	httpClient *http.Client
	tokenStore TokenStore
	gateway    *gateway.Client

	lock    sync.RWMutex
	token   models.AccessToken
	expired bool
}

// Login exchanges the credentials for an access token, the backend also sets the session cookie
// used for refreshing the token in the shared cookie jar.
func (m *Manager) Login(ctx context.Context, credentials Credentials) (models.AccessToken, error) {
	payload, err := json.Marshal(credentials)
	if err != nil {
		return models.AccessToken{}, err
	}
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		m.apiConfig.Endpoint(m.apiConfig.LoginPath),
		bytes.NewReader(payload),
	)
	if err != nil {
		return models.AccessToken{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	res, err := m.httpClient.Do(req)
	if err != nil {
		return models.AccessToken{}, err
	}
	defer res.Body.Close()

	var body loginResponse
	decodeErr := json.NewDecoder(res.Body).Decode(&body)
	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusBadRequest:
		return models.AccessToken{}, gwerrors.ErrInvalidCredentials
	case res.StatusCode < 200 || res.StatusCode >= 300:
		message := body.Error
		if message == "" {
			message = http.StatusText(res.StatusCode)
		}
		return models.AccessToken{}, fmt.Errorf("login failed with status %d: %s", res.StatusCode, message)
	case decodeErr != nil:
		return models.AccessToken{}, fmt.Errorf("cannot decode the login response: %w", decodeErr)
	case body.AccessToken == "":
		return models.AccessToken{}, fmt.Errorf("the login response has no access token")
	}

	err = m.tokenStore.Set(ctx, body.AccessToken)
	if err != nil {
		slog.Error("SESSION", "message", "could not save the access token, keeping it in memory", "error", err)
	}
	if m.gateway != nil {
		m.gateway.ForgetToken()
	}
	token := models.NewAccessToken(m.storageKey(), body.AccessToken)
	m.lock.Lock()
	m.token = token
	m.expired = false
	m.lock.Unlock()
	slog.Info("SESSION", "message", "logged in", "subject", token.Subject)
	return token, nil
}

// Logout ends the session on the backend and removes the local token, even if the backend call fails.
func (m *Manager) Logout(ctx context.Context) error {
	if m.gateway != nil {
		res, err := m.gateway.Request(ctx, m.apiConfig.LogoutPath, gateway.RequestOptions{
			Method:      http.MethodPost,
			Credentials: gateway.CredentialsInclude,
		})
		if err != nil {
			slog.Error("SESSION", "message", "backend logout failed", "error", err)
		} else {
			res.Body.Close()
			if res.StatusCode >= 300 {
				slog.Info("SESSION", "message", "backend logout was rejected", "status", res.StatusCode)
			}
		}
	}
	return m.clearLocal(ctx)
}

func (m *Manager) clearLocal(ctx context.Context) error {
	if m.gateway != nil {
		m.gateway.ForgetToken()
	}
	m.lock.Lock()
	m.token = models.AccessToken{}
	m.lock.Unlock()
	return m.tokenStore.Clear(ctx)
}

// Handlers returns the callbacks the gateway uses to end an unrecoverable session
func (m *Manager) Handlers() gateway.AuthHandlers {
	return gateway.AuthHandlers{
		Logout: func(ctx context.Context) {
			err := m.clearLocal(ctx)
			if err != nil {
				slog.Error("SESSION", "message", "could not clear the token store", "error", err)
			}
			m.lock.Lock()
			m.expired = true
			m.lock.Unlock()
			slog.Info("SESSION", "message", "the session expired")
		},
		GetToken: func() string {
			m.lock.RLock()
			defer m.lock.RUnlock()
			return m.token.Value
		},
	}
}

// Whoami returns the current token with its decoded subject and expiry.
func (m *Manager) Whoami(ctx context.Context) (models.AccessToken, error) {
	token, err := m.tokenStore.Current(ctx)
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, gwerrors.ErrTokenNotFound) {
		slog.Debug("SESSION", "message", "token store is unavailable", "error", err)
	}
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.token.Value == "" {
		return models.AccessToken{}, gwerrors.ErrTokenNotFound
	}
	return m.token, nil
}

// Active reports whether a user is logged in, either through the token store or the in-memory token.
func (m *Manager) Active(ctx context.Context) bool {
	_, err := m.Whoami(ctx)
	return err == nil
}

// Expired reports whether the last session ended because it could not be refreshed
func (m *Manager) Expired() bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.expired
}

// AttachGateway registers the handlers of the manager with the gateway, the manager then logs out through it.
func (m *Manager) AttachGateway(gw *gateway.Client) {
	m.gateway = gw
	gw.SetAuthHandlers(m.Handlers())
}

func (m *Manager) storageKey() string {
	keyed, ok := m.tokenStore.(interface{ Key() string })
	if ok {
		return keyed.Key()
	}
	return config.DefaultTokenStorageKey
}

type ManagerOption func(*Manager) error

func WithConfig(apiConfig config.APIConfig) ManagerOption {
	return func(m *Manager) error {
		m.apiConfig = apiConfig.WithDefaults()
		return nil
	}
}

// WithHTTPClient sets the client used for logging in, it should share the cookie jar of the gateway
func WithHTTPClient(client *http.Client) ManagerOption {
	return func(m *Manager) error {
		m.httpClient = client
		return nil
	}
}

func WithTokenStore(store TokenStore) ManagerOption {
	return func(m *Manager) error {
		m.tokenStore = store
		return nil
	}
}

func WithGateway(gw *gateway.Client) ManagerOption {
	return func(m *Manager) error {
		m.AttachGateway(gw)
		return nil
	}
}

func NewManager(options ...ManagerOption) (*Manager, error) {
	m := &Manager{}
	for _, opt := range options {
		err := opt(m)
		if err != nil {
			return nil, err
		}
	}
	if m.apiConfig.BaseURL == nil {
		return nil, fmt.Errorf("the session manager requires a backend base url")
	}
	if m.tokenStore == nil {
		return nil, fmt.Errorf("the session manager requires a token store")
	}
	if m.httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		m.httpClient = &http.Client{Jar: jar, Timeout: m.apiConfig.RequestTimeout()}
	}
	return m, nil
}
