package gateway

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/verdantlabs/plantdash/internal/config"
	"github.com/verdantlabs/plantdash/internal/models"
)

type ClientOption func(*Client) error

func WithConfig(apiConfig config.APIConfig) ClientOption {
	return func(c *Client) error {
		if apiConfig.BaseURL == nil {
			return fmt.Errorf("the backend base url is not set")
		}
		apiConfig = apiConfig.WithDefaults()
		c.baseURL = apiConfig.BaseURL
		c.refreshPath = apiConfig.RefreshPath
		c.logoutPath = apiConfig.LogoutPath
		c.requestTimeout = apiConfig.RequestTimeout()
		c.refreshTimeout = apiConfig.RefreshTimeout()
		return nil
	}
}

// WithHTTPClient sets the client used for all calls, its cookie jar holds the session cookie
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) error {
		c.httpClient = client
		return nil
	}
}

func WithTokenStore(store TokenStore) ClientOption {
	return func(c *Client) error {
		c.tokenStore = store
		return nil
	}
}

func WithAuthHandlers(handlers AuthHandlers) ClientOption {
	return func(c *Client) error {
		c.handlers = handlers
		return nil
	}
}

func WithMetrics(reg prometheus.Registerer) ClientOption {
	return func(c *Client) error {
		metrics, err := newGatewayMetrics(reg)
		if err != nil {
			return err
		}
		c.metrics = metrics
		return nil
	}
}

// NewClient creates the gateway client, a base url and a token store are required.
func NewClient(options ...ClientOption) (*Client, error) {
	c := &Client{idGenerator: models.ULIDGenerator{}}
	for _, opt := range options {
		err := opt(c)
		if err != nil {
			return nil, err
		}
	}
	if c.baseURL == nil {
		return nil, fmt.Errorf("the gateway client requires a backend base url")
	}
	if c.tokenStore == nil {
		return nil, fmt.Errorf("the gateway client requires a token store")
	}
	if c.refreshPath == "" {
		c.refreshPath = config.DefaultRefreshPath
	}
	if c.logoutPath == "" {
		c.logoutPath = config.DefaultLogoutPath
	}
	if c.refreshTimeout <= 0 {
		c.refreshTimeout = config.APIConfig{}.RefreshTimeout()
	}
	if c.httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		c.httpClient = &http.Client{Jar: jar}
	}
	withCookies := *c.httpClient
	if withCookies.Timeout == 0 {
		withCookies.Timeout = c.requestTimeout
	}
	c.httpClient = &withCookies
	cookieless := withCookies
	cookieless.Jar = nil
	c.cookielessHTTP = &cookieless
	return c, nil
}

// Endpoint returns the absolute url of a backend path
func (c *Client) Endpoint(path string) string {
	return c.endpoint(path)
}
