package authvault

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Config is the full configuration tree for an Engine. Values are read
// once during Build and treated as immutable afterwards.
type Config struct {
	Production bool

	Redis   RedisConfig
	Session SessionConfig
	Secrets SecretsConfig
	Token   TokenConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

// RedisConfig describes the distributed backend connection. An empty
// Addr means local-only operation with no fallback logic engaged.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	ConnectTimeout time.Duration
	OpTimeout      time.Duration
	ProbeInterval  time.Duration
}

// SessionConfig controls session lifetime and hardening behavior.
type SessionConfig struct {
	DefaultMaxAge            time.Duration
	MaxConcurrentSessions    int
	RequireDeviceConsistency bool
}

// SecretsConfig seeds the secret store and controls rotation. SMTP,
// OAuth, and external API credentials are optional; the signing key is
// mandatory.
type SecretsConfig struct {
	EncryptionKey     string
	SigningKey        string
	RefreshSigningKey string
	DatabaseURL       string

	SMTPUser     string
	SMTPPassword string

	OAuthClientSecrets map[string]string
	ExternalAPIKeys    map[string]string

	RotationSchedule    string
	SigningRotationDays int
	APIKeyRotationDays  int
	RotateTimeout       time.Duration
}

// TokenConfig controls access-token issuance.
type TokenConfig struct {
	TTL      time.Duration
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the counter registry.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Redis: RedisConfig{
			ConnectTimeout: 5 * time.Second,
			OpTimeout:      2 * time.Second,
			ProbeInterval:  15 * time.Second,
		},
		Session: SessionConfig{
			DefaultMaxAge:         24 * time.Hour,
			MaxConcurrentSessions: 0,
		},
		Secrets: SecretsConfig{
			RotationSchedule:    "0 3 * * *",
			SigningRotationDays: 90,
			APIKeyRotationDays:  180,
			RotateTimeout:       10 * time.Second,
		},
		Token: TokenConfig{
			TTL:    15 * time.Minute,
			Issuer: "authvault",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

const minKeyLength = 32

// forbiddenKeyValues are placeholder strings that ship in example env
// files and must never reach a running deployment. The gate rejects an
// exact (case-insensitive) match regardless of how strong the string
// scores.
var forbiddenKeyValues = []string{
	"secret",
	"changeme",
	"change-me",
	"password",
	"default",
	"your-secret-key",
	"your-secret-key-here",
	"your-256-bit-secret",
	"insecure",
	"dev-secret",
	"test-secret",
	"development-signing-key-change-in-production",
	"0000000000000000000000000000000000000000000000000000000000000000",
}

func isForbiddenValue(v string) bool {
	lowered := strings.ToLower(strings.TrimSpace(v))
	for _, f := range forbiddenKeyValues {
		if lowered == f {
			return true
		}
	}
	return false
}

// Validate checks structural configuration problems. Strength scoring
// of key material happens later, during Build, where production posture
// decides between hard failure and a warning.
func (c *Config) Validate() error {
	if c.Redis.Addr != "" {
		if c.Redis.ConnectTimeout <= 0 {
			return fmt.Errorf("%w: redis connect timeout must be > 0", ErrInvalidConfig)
		}
		if c.Redis.OpTimeout <= 0 {
			return fmt.Errorf("%w: redis op timeout must be > 0", ErrInvalidConfig)
		}
		if c.Redis.ProbeInterval < 0 {
			return fmt.Errorf("%w: redis probe interval must be >= 0", ErrInvalidConfig)
		}
	}

	if c.Session.DefaultMaxAge <= 0 {
		return fmt.Errorf("%w: session default max age must be > 0", ErrInvalidConfig)
	}
	if c.Session.MaxConcurrentSessions < 0 {
		return fmt.Errorf("%w: max concurrent sessions must be >= 0", ErrInvalidConfig)
	}

	if c.Secrets.SigningKey == "" {
		return fmt.Errorf("%w: signing key is required", ErrInvalidConfig)
	}
	if len(c.Secrets.SigningKey) < minKeyLength {
		return fmt.Errorf("%w: signing key must be at least %d characters", ErrInvalidConfig, minKeyLength)
	}
	if c.Secrets.RefreshSigningKey != "" && len(c.Secrets.RefreshSigningKey) < minKeyLength {
		return fmt.Errorf("%w: refresh signing key must be at least %d characters", ErrInvalidConfig, minKeyLength)
	}

	if c.Secrets.EncryptionKey != "" {
		if len(c.Secrets.EncryptionKey) != 64 {
			return fmt.Errorf("%w: encryption key must be 64 hex characters", ErrInvalidConfig)
		}
		if _, err := hex.DecodeString(c.Secrets.EncryptionKey); err != nil {
			return fmt.Errorf("%w: encryption key is not valid hex", ErrInvalidConfig)
		}
	} else if c.Production {
		return fmt.Errorf("%w: encryption key is required in production", ErrInvalidConfig)
	}

	if c.Secrets.SigningRotationDays <= 0 {
		return fmt.Errorf("%w: signing rotation days must be > 0", ErrInvalidConfig)
	}
	if c.Secrets.APIKeyRotationDays <= 0 {
		return fmt.Errorf("%w: api key rotation days must be > 0", ErrInvalidConfig)
	}
	if c.Secrets.RotateTimeout <= 0 {
		return fmt.Errorf("%w: rotate timeout must be > 0", ErrInvalidConfig)
	}

	if c.Token.TTL <= 0 {
		return fmt.Errorf("%w: token TTL must be > 0", ErrInvalidConfig)
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return fmt.Errorf("%w: token leeway out of range", ErrInvalidConfig)
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return fmt.Errorf("%w: audit buffer size must be > 0", ErrInvalidConfig)
	}

	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Secrets.OAuthClientSecrets = cloneStringMap(cfg.Secrets.OAuthClientSecrets)
	out.Secrets.ExternalAPIKeys = cloneStringMap(cfg.Secrets.ExternalAPIKeys)
	return out
}

func cloneStringMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
