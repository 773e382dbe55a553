package config

import "fmt"

const DefaultTokenStorageKey string = "plantdash_access_token"

type TokenEncryptionConfig struct {
	Enabled   bool
	SecretKey RedactedString
}

// TokenStorageConfig configures where the current access token is persisted.
type TokenStorageConfig struct {
	Key        string
	Redis      RedisConfig
	Encryption TokenEncryptionConfig
}

func (c TokenStorageConfig) StorageKey() string {
	if c.Key == "" {
		return DefaultTokenStorageKey
	}
	return c.Key
}

func (c TokenStorageConfig) Validate(e RunningEnvironment) error {
	if c.Encryption.Enabled && len(c.Encryption.SecretKey) != 32 {
		return fmt.Errorf(
			"token encryption key has to be 32 bytes long, the provided one is %d long",
			len(c.Encryption.SecretKey),
		)
	}
	return c.Redis.Validate(e)
}
