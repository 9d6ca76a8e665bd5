package app

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/nimbridge/internal/anthropicadapter/nvidianim"
	"github.com/florianilch/nimbridge/internal/proxy"
	"github.com/florianilch/nimbridge/internal/ratelimit"
	"github.com/florianilch/nimbridge/internal/tokensource"
)

// KeyringService is the credential-manager entry the proxy's API key lives
// under.
const KeyringService = "nimbridge"

// EnvAPIKey is the environment variable consulted by the read-only env
// storage backend.
const EnvAPIKey = "NVIDIA_API_KEY"

// TokenStorageType selects where the backend API key is stored.
type TokenStorageType string

const (
	TokenStorageTypeEnv     TokenStorageType = "env"
	TokenStorageTypeFile    TokenStorageType = "file"
	TokenStorageTypeKeyring TokenStorageType = "keyring"
)

// Config is the application configuration, merged from defaults, an
// optional TOML file, NIMBRIDGE_* environment variables and flags.
type Config struct {
	Listen          string `koanf:"listen" validate:"required,hostname_port"`
	MaxRequestBytes int64  `koanf:"max_request_bytes" validate:"gt=0"`

	Backend   BackendConfig   `koanf:"backend"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Models    ModelsConfig    `koanf:"models"`
	Auth      AuthConfig      `koanf:"auth"`
}

// BackendConfig points the proxy at the OpenAI-compatible backend and tunes
// the retry schedule for calls to it.
type BackendConfig struct {
	BaseURL              string        `koanf:"base_url" validate:"required,url"`
	RetryMaxAttempts     uint          `koanf:"retry_max_attempts" validate:"gte=1"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval" validate:"gt=0"`
	RetryMaxInterval     time.Duration `koanf:"retry_max_interval" validate:"gtefield=RetryInitialInterval"`
}

// RateLimitConfig tunes the client-side admission limiter. Requests 0
// disables the sliding window; the reactive cooldown stays active.
type RateLimitConfig struct {
	Requests        int           `koanf:"requests" validate:"gte=0"`
	Window          time.Duration `koanf:"window" validate:"gte=0"`
	MaxAttempts     int           `koanf:"max_attempts" validate:"gte=1"`
	InitialCooldown time.Duration `koanf:"initial_cooldown" validate:"gt=0"`
	MaxCooldown     time.Duration `koanf:"max_cooldown" validate:"gtefield=InitialCooldown"`
}

// ModelsConfig carries the alias table mapping the model ids clients send
// to backend model ids.
type ModelsConfig struct {
	Aliases map[string]string `koanf:"aliases" validate:"required,min=1"`
}

// AuthConfig selects the API key storage backend.
type AuthConfig struct {
	Storage TokenStorageType `koanf:"storage" validate:"required,oneof=env file keyring"`
	File    string           `koanf:"file" validate:"required_if=Storage file"`
}

// NewTokenStore builds the credential store the configuration selects.
func (c AuthConfig) NewTokenStore() (tokensource.Store, error) {
	switch c.Storage {
	case TokenStorageTypeEnv:
		return tokensource.NewEnvStore(EnvAPIKey), nil
	case TokenStorageTypeFile:
		return tokensource.NewFileStore(c.File), nil
	case TokenStorageTypeKeyring:
		return tokensource.NewKeyringStore(KeyringService), nil
	default:
		return nil, fmt.Errorf("unsupported token storage %q", c.Storage)
	}
}

// Defaults returns the built-in configuration preceding file, environment
// and flag overrides, as flat dotted keys for the confmap provider.
func Defaults() map[string]any {
	return map[string]any{
		"listen":            "127.0.0.1:4000",
		"max_request_bytes": int64(10 << 20),

		"backend.base_url":               nvidianim.DefaultBaseURL,
		"backend.retry_max_attempts":     uint(3),
		"backend.retry_initial_interval": 500 * time.Millisecond,
		"backend.retry_max_interval":     10 * time.Second,

		"rate_limit.requests":         60,
		"rate_limit.window":           time.Minute,
		"rate_limit.max_attempts":     3,
		"rate_limit.initial_cooldown": time.Second,
		"rate_limit.max_cooldown":     time.Minute,

		// Reasoning-capable default for the think-tag pipeline, plus a small
		// fast model. Deployments override this table with their own ids.
		"models.aliases": map[string]string{
			"claude-sonnet": "deepseek-ai/deepseek-r1",
			"claude-haiku":  "meta/llama-3.1-8b-instruct",
		},

		"auth.storage": string(TokenStorageTypeKeyring),
	}
}

// Validate checks the merged configuration.
func (c Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ProxyConfig assembles the proxy settings from the merged configuration.
func (c Config) ProxyConfig() proxy.Config {
	return proxy.Config{
		BaseURL:         c.Backend.BaseURL,
		Aliases:         c.Models.Aliases,
		MaxRequestBytes: c.MaxRequestBytes,
		RateLimit: ratelimit.Config{
			Requests:        c.RateLimit.Requests,
			Window:          c.RateLimit.Window,
			MaxAttempts:     c.RateLimit.MaxAttempts,
			InitialCooldown: c.RateLimit.InitialCooldown,
			MaxCooldown:     c.RateLimit.MaxCooldown,
		},
		Retry: nvidianim.RetryConfig{
			MaxAttempts:     c.Backend.RetryMaxAttempts,
			InitialInterval: c.Backend.RetryInitialInterval,
			MaxInterval:     c.Backend.RetryMaxInterval,
		},
	}
}
