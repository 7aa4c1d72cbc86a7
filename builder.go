package authvault

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/iaminawe/authvault/backend"
	"github.com/iaminawe/authvault/secrets"
	"github.com/iaminawe/authvault/session"
	"github.com/iaminawe/authvault/token"
)

// Builder assembles an Engine. Zero or more With methods, then Build
// exactly once.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	logger    *slog.Logger
	auditSink AuditSink

	built bool
}

func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies an existing client, bypassing the Addr-based dial.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// Build validates configuration, runs the production secret gate, wires
// the backends, and starts the engine's background work (rotation sweep
// in production, health probing when a distributed backend exists).
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	// -------- PRODUCTION GATE --------
	findings := VerifyProductionSecrets(mandatorySecrets(&cfg.Secrets))
	if len(findings) > 0 {
		if cfg.Production {
			f := findings[0]
			if f.Level == "" {
				return nil, fmt.Errorf("%w: %s %s", ErrForbiddenSecret, f.Name, f.Reason)
			}
			return nil, fmt.Errorf("%w: %s %s", ErrWeakSecret, f.Name, f.Reason)
		}
		for _, f := range findings {
			logger.Warn("mandatory secret failed strength check",
				"secret", f.Name, "reason", f.Reason)
		}
		// Audited below once the dispatcher exists.
	}

	// -------- BACKENDS --------
	local := backend.NewMemory()
	var dist *backend.Redis
	switch {
	case b.redis != nil:
		dist = backend.NewRedis(b.redis, cfg.Redis.ConnectTimeout, cfg.Redis.OpTimeout, logger)
	case cfg.Redis.Addr != "":
		dist = backend.DialRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			cfg.Redis.ConnectTimeout, cfg.Redis.OpTimeout, logger)
	}
	backends := backend.NewSelector(dist, local)

	engine := &Engine{
		config:   cfg,
		logger:   logger,
		backends: backends,
		audit:    newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:  NewMetrics(cfg.Metrics),
	}
	engine.background, engine.stopBackground = context.WithCancel(context.Background())

	for _, f := range findings {
		engine.emitAudit(AuditEvent{
			EventType: AuditWeakSecret,
			SecretKey: f.Name,
			Error:     f.Reason,
		})
	}

	// -------- SECRETS --------
	box, err := secrets.NewCipherBox(cfg.Secrets.EncryptionKey, cfg.Production)
	if err != nil {
		engine.shutdownOnBuildFailure()
		return nil, err
	}
	store := secrets.NewStore(backends, box, cfg.Production, logger)
	engine.secrets = secrets.NewManager(store, logger, (*secretAuditor)(engine))

	bootstrap := secrets.Bootstrap{
		SigningKey:          cfg.Secrets.SigningKey,
		RefreshSigningKey:   cfg.Secrets.RefreshSigningKey,
		DatabaseURL:         cfg.Secrets.DatabaseURL,
		SMTPUser:            cfg.Secrets.SMTPUser,
		SMTPPassword:        cfg.Secrets.SMTPPassword,
		OAuthClientSecrets:  cfg.Secrets.OAuthClientSecrets,
		ExternalAPIKeys:     cfg.Secrets.ExternalAPIKeys,
		SigningRotationDays: cfg.Secrets.SigningRotationDays,
		APIKeyRotationDays:  cfg.Secrets.APIKeyRotationDays,
	}
	if err := engine.secrets.Bootstrap(engine.background, bootstrap); err != nil {
		engine.shutdownOnBuildFailure()
		return nil, fmt.Errorf("bootstrap secrets: %w", err)
	}

	// -------- SESSIONS --------
	engine.sessions = session.NewManager(backends, cfg.Session.DefaultMaxAge, logger, (*sessionAuditor)(engine))

	// -------- TOKENS --------
	issuer, err := token.NewIssuer(token.Config{
		TTL:      cfg.Token.TTL,
		Issuer:   cfg.Token.Issuer,
		Audience: cfg.Token.Audience,
		Leeway:   cfg.Token.Leeway,
	}, engine.secrets.SigningKey)
	if err != nil {
		engine.shutdownOnBuildFailure()
		return nil, err
	}
	engine.tokens = issuer

	// -------- BACKGROUND WORK --------
	if cfg.Production {
		engine.sweeper = secrets.NewSweeper(engine.secrets, cfg.Secrets.RotationSchedule,
			cfg.Secrets.RotateTimeout, logger)
		if err := engine.sweeper.Start(engine.background); err != nil {
			engine.shutdownOnBuildFailure()
			return nil, fmt.Errorf("start rotation sweeper: %w", err)
		}
	}
	if dist != nil && cfg.Redis.ProbeInterval > 0 {
		engine.wg.Add(1)
		go engine.probeLoop(cfg.Redis.ProbeInterval)
	}

	b.built = true

	return engine, nil
}
