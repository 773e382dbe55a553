package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultLoginPath   string = "/api/auth/login"
	DefaultRefreshPath string = "/api/auth/refresh"
	DefaultLogoutPath  string = "/api/auth/logout"
)

const defaultRefreshTimeout time.Duration = 10 * time.Second

// APIConfig describes the backend REST API the dashboard talks to.
type APIConfig struct {
	BaseURL     *url.URL
	LoginPath   string
	RefreshPath string
	LogoutPath  string
	// Zero means no timeout
	RequestTimeoutSeconds int
	RefreshTimeoutSeconds int
}

// WithDefaults returns a copy of the config where the unset endpoint paths are replaced by the defaults.
func (c APIConfig) WithDefaults() APIConfig {
	if c.LoginPath == "" {
		c.LoginPath = DefaultLoginPath
	}
	if c.RefreshPath == "" {
		c.RefreshPath = DefaultRefreshPath
	}
	if c.LogoutPath == "" {
		c.LogoutPath = DefaultLogoutPath
	}
	return c
}

func (c APIConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c APIConfig) RefreshTimeout() time.Duration {
	if c.RefreshTimeoutSeconds <= 0 {
		return defaultRefreshTimeout
	}
	return time.Duration(c.RefreshTimeoutSeconds) * time.Second
}

// Endpoint resolves an endpoint path against the base URL.
func (c APIConfig) Endpoint(path string) string {
	return strings.TrimRight(c.BaseURL.String(), "/") + path
}

func (c APIConfig) Validate() error {
	if c.BaseURL == nil {
		return fmt.Errorf("the api config is missing the base url of the backend")
	}
	if c.BaseURL.Scheme != "http" && c.BaseURL.Scheme != "https" {
		return fmt.Errorf("the api base url must use http or https, got %q", c.BaseURL.Scheme)
	}
	withDefaults := c.WithDefaults()
	for name, path := range map[string]string{
		"login":   withDefaults.LoginPath,
		"refresh": withDefaults.RefreshPath,
		"logout":  withDefaults.LogoutPath,
	} {
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("the %s path must start with a slash, got %q", name, path)
		}
	}
	if c.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("the request timeout cannot be negative (%d)", c.RequestTimeoutSeconds)
	}
	if c.RefreshTimeoutSeconds < 0 {
		return fmt.Errorf("the refresh timeout cannot be negative (%d)", c.RefreshTimeoutSeconds)
	}
	return nil
}
