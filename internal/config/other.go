package config

import (
	"fmt"
	"time"
)

type ServerConfig struct {
	Host        string
	Port        int
	RateLimits  RateLimits
	AllowOrigin []string
}

type SentryConfig struct {
	Enabled     bool
	Dsn         RedactedString
	Environment string
	SampleRate  float64
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

type MonitoringConfig struct {
	Sentry     SentryConfig
	Prometheus PrometheusConfig
}

type RateLimits struct {
	Enabled bool
	Rate    float64
	Burst   int
}

type PollerConfig struct {
	Enabled         bool
	IntervalSeconds int
	// Number of readings fetched per sensor
	ReadingsLimit int
}

func (c PollerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

func (c PollerConfig) Validate() error {
	if c.Enabled && c.IntervalSeconds <= 0 {
		return fmt.Errorf("the poller interval must be positive when the poller is enabled (%d)", c.IntervalSeconds)
	}
	if c.ReadingsLimit < 0 {
		return fmt.Errorf("the poller readings limit cannot be negative (%d)", c.ReadingsLimit)
	}
	return nil
}
