package authvault

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type envConfig struct {
	Production bool `env:"AUTHVAULT_PRODUCTION" envDefault:"false"`

	RedisAddr           string        `env:"REDIS_ADDR"`
	RedisPassword       string        `env:"REDIS_PASSWORD"`
	RedisDB             int           `env:"REDIS_DB" envDefault:"0"`
	RedisConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"5s"`
	RedisOpTimeout      time.Duration `env:"REDIS_OP_TIMEOUT" envDefault:"2s"`
	RedisProbeInterval  time.Duration `env:"REDIS_PROBE_INTERVAL" envDefault:"15s"`

	SessionMaxAge            time.Duration `env:"SESSION_MAX_AGE" envDefault:"24h"`
	MaxConcurrentSessions    int           `env:"SESSION_MAX_CONCURRENT" envDefault:"0"`
	RequireDeviceConsistency bool          `env:"SESSION_REQUIRE_DEVICE_CONSISTENCY" envDefault:"false"`

	EncryptionKey     string `env:"SECRETS_ENCRYPTION_KEY"`
	SigningKey        string `env:"JWT_SIGNING_KEY"`
	RefreshSigningKey string `env:"JWT_REFRESH_SIGNING_KEY"`
	DatabaseURL       string `env:"DATABASE_URL"`
	SMTPUser          string `env:"SMTP_USERNAME"`
	SMTPPassword      string `env:"SMTP_PASSWORD"`

	OAuthClientSecrets map[string]string `env:"OAUTH_CLIENT_SECRETS"`
	ExternalAPIKeys    map[string]string `env:"EXTERNAL_API_KEYS"`

	RotationSchedule    string        `env:"SECRETS_ROTATION_SCHEDULE" envDefault:"0 3 * * *"`
	SigningRotationDays int           `env:"SECRETS_SIGNING_ROTATION_DAYS" envDefault:"90"`
	APIKeyRotationDays  int           `env:"SECRETS_API_KEY_ROTATION_DAYS" envDefault:"180"`
	RotateTimeout       time.Duration `env:"SECRETS_ROTATE_TIMEOUT" envDefault:"10s"`

	TokenTTL      time.Duration `env:"TOKEN_TTL" envDefault:"15m"`
	TokenIssuer   string        `env:"TOKEN_ISSUER" envDefault:"authvault"`
	TokenAudience string        `env:"TOKEN_AUDIENCE"`

	AuditEnabled    bool `env:"AUDIT_ENABLED" envDefault:"true"`
	AuditBufferSize int  `env:"AUDIT_BUFFER_SIZE" envDefault:"256"`
	MetricsEnabled  bool `env:"METRICS_ENABLED" envDefault:"true"`
}

// LoadEnv builds a Config from the process environment. Files passed in
// envFiles are loaded first without overriding variables already set, so
// a local .env never shadows real deployment configuration. A missing
// .env file is not an error.
func LoadEnv(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	cfg := defaultConfig()
	cfg.Production = ec.Production
	cfg.Redis = RedisConfig{
		Addr:           ec.RedisAddr,
		Password:       ec.RedisPassword,
		DB:             ec.RedisDB,
		ConnectTimeout: ec.RedisConnectTimeout,
		OpTimeout:      ec.RedisOpTimeout,
		ProbeInterval:  ec.RedisProbeInterval,
	}
	cfg.Session = SessionConfig{
		DefaultMaxAge:            ec.SessionMaxAge,
		MaxConcurrentSessions:    ec.MaxConcurrentSessions,
		RequireDeviceConsistency: ec.RequireDeviceConsistency,
	}
	cfg.Secrets = SecretsConfig{
		EncryptionKey:       ec.EncryptionKey,
		SigningKey:          ec.SigningKey,
		RefreshSigningKey:   ec.RefreshSigningKey,
		DatabaseURL:         ec.DatabaseURL,
		SMTPUser:            ec.SMTPUser,
		SMTPPassword:        ec.SMTPPassword,
		OAuthClientSecrets:  ec.OAuthClientSecrets,
		ExternalAPIKeys:     ec.ExternalAPIKeys,
		RotationSchedule:    ec.RotationSchedule,
		SigningRotationDays: ec.SigningRotationDays,
		APIKeyRotationDays:  ec.APIKeyRotationDays,
		RotateTimeout:       ec.RotateTimeout,
	}
	cfg.Token = TokenConfig{
		TTL:      ec.TokenTTL,
		Issuer:   ec.TokenIssuer,
		Audience: ec.TokenAudience,
	}
	cfg.Audit.Enabled = ec.AuditEnabled
	cfg.Audit.BufferSize = ec.AuditBufferSize
	cfg.Metrics.Enabled = ec.MetricsEnabled

	return cfg, nil
}
