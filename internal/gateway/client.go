// Package gateway performs the backend calls of the dashboard with the current access token attached,
// refreshing the token once when the backend rejects it.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/verdantlabs/plantdash/internal/gwerrors"
	"github.com/verdantlabs/plantdash/internal/models"
	"golang.org/x/sync/singleflight"
)

const requestIDHeader string = "X-Request-ID"

// CredentialsMode decides whether the ambient session cookies are sent with a request.
type CredentialsMode int

const (
	// CredentialsSameOrigin sends cookies only to the host of the backend base URL
	CredentialsSameOrigin CredentialsMode = iota
	CredentialsInclude
	CredentialsOmit
)

// AuthHandlers are the callbacks of the application shell. Both are optional.
type AuthHandlers struct {
	// Logout is called once when the session cannot be recovered
	Logout func(context.Context)
	// GetToken is asked for the token when the token store has none
	GetToken func() string
}

// TokenStore is the durable storage of the current access token.
type TokenStore interface {
	Get(context.Context) (string, error)
	Set(context.Context, string) error
	Clear(context.Context) error
}

type RequestOptions struct {
	// Defaults to GET
	Method      string
	Header      http.Header
	Body        []byte
	Credentials CredentialsMode
}

type Client struct {
	baseURL        *url.URL
	refreshPath    string
	logoutPath     string
	requestTimeout time.Duration
	refreshTimeout time.Duration

	httpClient     *http.Client
	cookielessHTTP *http.Client
	tokenStore     TokenStore
	metrics        *gatewayMetrics
	// tags refresh operations in the logs
	idGenerator models.IDGenerator

	handlers     AuthHandlers
	handlersLock sync.RWMutex

	refreshGroup singleflight.Group
	// lock guards the fields below
	lock sync.Mutex
	// epoch is incremented every time a refresh settles
	epoch          uint64
	lastRefresh    refreshOutcome
	loggedOutEpoch uint64
	// token obtained by the last refresh, used when the token store cannot provide one
	memToken string
	// incremented by ForgetToken, a refresh started before it does not keep its token
	tokenGeneration uint64
}

// ForgetToken drops the token kept from the last refresh. The application shell calls it when the
// user logs in or out, the token store and the GetToken handler are the only token sources afterwards.
func (c *Client) ForgetToken() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.memToken = ""
	c.tokenGeneration++
}

// SetAuthHandlers replaces the registered callbacks.
func (c *Client) SetAuthHandlers(handlers AuthHandlers) {
	c.handlersLock.Lock()
	defer c.handlersLock.Unlock()
	c.handlers = handlers
}

func (c *Client) authHandlers() AuthHandlers {
	c.handlersLock.RLock()
	defer c.handlersLock.RUnlock()
	return c.handlers
}

// Request calls the backend with the current access token. A 401 response triggers one token
// refresh and one retry, unless the target is the refresh or logout endpoint. When the session
// cannot be recovered the returned error satisfies IsSessionExpiredError.
func (c *Client) Request(ctx context.Context, target string, opts RequestOptions) (*http.Response, error) {
	targetURL, err := c.resolve(target)
	if err != nil {
		return nil, err
	}
	requestID := uuid.NewString()
	epoch := c.currentEpoch()
	token := c.currentToken(ctx)

	res, err := c.send(ctx, targetURL, opts, token, requestID)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusUnauthorized || c.isExempt(targetURL) {
		return res, nil
	}
	discard(res)

	slog.Debug(
		"GATEWAY",
		"message",
		"request was unauthorized, refreshing the access token",
		"url",
		targetURL.String(),
		"requestID",
		requestID,
	)
	newToken, outcomeEpoch, err := c.refresh(ctx, epoch)
	if err != nil {
		return nil, err
	}

	c.metrics.retried()
	res, err = c.send(ctx, targetURL, opts, newToken, requestID)
	if err != nil {
		return nil, err
	}
	if res.StatusCode == http.StatusUnauthorized {
		discard(res)
		c.expireSession(ctx, outcomeEpoch)
		return nil, gwerrors.NewSessionExpiredError("the request is still unauthorized after a token refresh", nil)
	}
	return res, nil
}

// Do sends a prepared request through Request, the body is buffered so that it can be resent.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
	}
	return c.Request(req.Context(), req.URL.String(), RequestOptions{
		Method: req.Method,
		Header: req.Header.Clone(),
		Body:   body,
	})
}

func (c *Client) send(
	ctx context.Context,
	target *url.URL,
	opts RequestOptions,
	token string,
	requestID string,
) (*http.Response, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, err
	}
	if opts.Header != nil {
		req.Header = opts.Header.Clone()
	}
	if token != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if req.Header.Get(requestIDHeader) == "" {
		req.Header.Set(requestIDHeader, requestID)
	}
	return c.clientFor(target, opts.Credentials).Do(req)
}

func (c *Client) clientFor(target *url.URL, mode CredentialsMode) *http.Client {
	switch mode {
	case CredentialsInclude:
		return c.httpClient
	case CredentialsOmit:
		return c.cookielessHTTP
	default:
		if strings.EqualFold(target.Host, c.baseURL.Host) && target.Scheme == c.baseURL.Scheme {
			return c.httpClient
		}
		return c.cookielessHTTP
	}
}

// currentToken reads the token store, then the token of the last refresh, then the GetToken handler
func (c *Client) currentToken(ctx context.Context) string {
	token, err := c.tokenStore.Get(ctx)
	if err != nil && !errors.Is(err, gwerrors.ErrTokenNotFound) {
		slog.Debug("GATEWAY", "message", "token store is unavailable, falling back", "error", err)
	}
	if err == nil && token != "" {
		return token
	}
	c.lock.Lock()
	token = c.memToken
	c.lock.Unlock()
	if token != "" {
		return token
	}
	handlers := c.authHandlers()
	if handlers.GetToken != nil {
		return handlers.GetToken()
	}
	return ""
}

func (c *Client) resolve(target string) (*url.URL, error) {
	parsed, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid request url %q: %w", target, err)
	}
	if parsed.IsAbs() {
		return parsed, nil
	}
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	return url.Parse(c.endpoint(target))
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.baseURL.String(), "/") + path
}

func (c *Client) isExempt(target *url.URL) bool {
	if !strings.EqualFold(target.Host, c.baseURL.Host) {
		return false
	}
	for _, path := range []string{c.refreshPath, c.logoutPath} {
		exempt, err := url.Parse(c.endpoint(path))
		if err != nil {
			continue
		}
		if strings.TrimRight(exempt.Path, "/") == strings.TrimRight(target.Path, "/") {
			return true
		}
	}
	return false
}

// discard drains and closes a response that is not handed back to the caller
func discard(res *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<16))
	res.Body.Close()
}
