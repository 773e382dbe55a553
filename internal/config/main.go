package config

import "fmt"

type RunningEnvironment string

const Development RunningEnvironment = "development"
const Production RunningEnvironment = "production"

type Config struct {
	RunningEnvironment RunningEnvironment
	DebugMode          bool
	Server             ServerConfig
	API                APIConfig
	TokenStorage       TokenStorageConfig
	Poller             PollerConfig
	Monitoring         MonitoringConfig
}

func (c *Config) Validate() error {
	switch c.RunningEnvironment {
	case Development, Production:
	default:
		return fmt.Errorf("unknown running environment %q (must be one of %s, %s)", c.RunningEnvironment, Development, Production)
	}
	err := c.API.Validate()
	if err != nil {
		return err
	}
	err = c.TokenStorage.Validate(c.RunningEnvironment)
	if err != nil {
		return err
	}
	err = c.Poller.Validate()
	if err != nil {
		return err
	}
	return nil
}
