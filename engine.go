package authvault

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iaminawe/authvault/backend"
	"github.com/iaminawe/authvault/secrets"
	"github.com/iaminawe/authvault/session"
	"github.com/iaminawe/authvault/token"
)

// Engine is the assembled session and secret lifecycle core. Obtain one
// through New().…Build(); all methods are safe for concurrent use.
type Engine struct {
	config   Config
	logger   *slog.Logger
	backends *backend.Selector
	sessions *session.Manager
	secrets  *secrets.Manager
	tokens   *token.Issuer
	sweeper  *secrets.Sweeper
	audit    *auditDispatcher
	metrics  *Metrics

	background     context.Context
	stopBackground context.CancelFunc
	wg             sync.WaitGroup
	closed         atomic.Bool
}

// Sessions exposes the session manager.
func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Secrets exposes the secrets manager.
func (e *Engine) Secrets() *secrets.Manager {
	return e.secrets
}

// Tokens exposes the access-token issuer.
func (e *Engine) Tokens() *token.Issuer {
	return e.tokens
}

// Metrics exposes the counter registry.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// AuditDropped reports how many audit events were dropped because the
// dispatch buffer was full.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

// UsingFallback reports whether session and secret traffic is currently
// served by the local in-process backend.
func (e *Engine) UsingFallback() bool {
	return e.backends.UsingFallback()
}

// SessionOptions returns the per-create options derived from config.
func (e *Engine) SessionOptions() session.Options {
	return session.Options{
		MaxAge:                   e.config.Session.DefaultMaxAge,
		MaxConcurrent:            e.config.Session.MaxConcurrentSessions,
		RequireDeviceConsistency: e.config.Session.RequireDeviceConsistency,
	}
}

// CreateSession creates a session under the configured policy.
func (e *Engine) CreateSession(ctx context.Context, sessionID string, rec session.Record) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	return e.sessions.Create(ctx, sessionID, rec, e.SessionOptions())
}

// StartSession mints a fresh session ID, creates the session under the
// configured policy, and returns the ID.
func (e *Engine) StartSession(ctx context.Context, rec session.Record) (string, error) {
	if e.closed.Load() {
		return "", ErrEngineClosed
	}
	sessionID, err := session.NewID()
	if err != nil {
		return "", err
	}
	if err := e.sessions.Create(ctx, sessionID, rec, e.SessionOptions()); err != nil {
		return "", err
	}
	return sessionID, nil
}

// ValidateSession checks a session against the stored record.
func (e *Engine) ValidateSession(ctx context.Context, sessionID, deviceFingerprint, ip string) session.ValidationResult {
	res := e.sessions.Validate(ctx, sessionID, deviceFingerprint, ip)
	if res.Valid {
		e.metrics.Inc(MetricValidateSuccess)
	} else {
		switch res.Reason {
		case session.ReasonNotFound:
			e.metrics.Inc(MetricValidateNotFound)
		case session.ReasonInactive:
			e.metrics.Inc(MetricValidateInactive)
		}
	}
	return res
}

// IssueToken mints an access token for a validated session.
func (e *Engine) IssueToken(ctx context.Context, rec *session.Record) (string, error) {
	raw, err := e.tokens.Issue(ctx, rec.UserID, rec.SessionID, rec.UserRole, rec.UserEmail)
	if err != nil {
		e.metrics.Inc(MetricTokenRejected)
		return "", err
	}
	e.metrics.Inc(MetricTokenIssued)
	return raw, nil
}

// Close stops background work and flushes the audit pipeline. Sessions
// and secrets already persisted in the distributed backend survive.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.stopBackground()
	if e.sweeper != nil {
		e.sweeper.Stop()
	}
	e.wg.Wait()
	e.audit.Close()
	if dist := e.backends.Distributed(); dist != nil {
		return dist.Close()
	}
	return nil
}

// shutdownOnBuildFailure releases whatever a partially built engine had
// already started.
func (e *Engine) shutdownOnBuildFailure() {
	e.stopBackground()
	e.wg.Wait()
	e.audit.Close()
}

// probeLoop re-pings the distributed backend on an interval so the
// selector can route traffic back after an outage. Sessions created on
// the local backend during the outage are not migrated.
func (e *Engine) probeLoop(interval time.Duration) {
	defer e.wg.Done()

	dist := e.backends.Distributed()
	wasHealthy := dist.Healthy()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.background.Done():
			return
		case <-ticker.C:
			_ = dist.Probe(e.background)
			healthy := dist.Healthy()
			if healthy == wasHealthy {
				continue
			}
			wasHealthy = healthy
			if healthy {
				e.logger.Info("distributed backend recovered")
				e.metrics.Inc(MetricBackendRecovered)
				e.emitAudit(AuditEvent{EventType: AuditBackendRecovered, Success: true})
			} else {
				e.logger.Warn("distributed backend unavailable, serving from local fallback")
				e.metrics.Inc(MetricBackendFallback)
				e.emitAudit(AuditEvent{EventType: AuditBackendFallback})
			}
		}
	}
}

func (e *Engine) emitAudit(event AuditEvent) {
	event.Timestamp = time.Now()
	e.audit.Emit(e.background, event)
}

// sessionAuditor adapts the engine onto the session manager's audit
// interface.
type sessionAuditor Engine

func (a *sessionAuditor) SessionEvent(ctx context.Context, event string, rec *session.Record) {
	e := (*Engine)(a)

	switch event {
	case session.EventCreated:
		e.metrics.Inc(MetricSessionCreated)
	case session.EventRevoked:
		e.metrics.Inc(MetricSessionRevoked)
	case session.EventLimitEvicted:
		e.metrics.Inc(MetricSessionLimitEvicted)
	case session.EventDeviceMismatch:
		e.metrics.Inc(MetricDeviceMismatch)
	case session.EventIPChange:
		e.metrics.Inc(MetricIPChange)
	}

	audit := AuditEvent{
		Timestamp: time.Now(),
		EventType: event,
		Success:   event == session.EventCreated,
	}
	if rec != nil {
		audit.UserID = rec.UserID
		audit.SessionID = rec.SessionID
		audit.IP = rec.IPAddress
	}
	e.audit.Emit(ctx, audit)
}

// secretAuditor adapts the engine onto the secrets manager's audit
// interface.
type secretAuditor Engine

func (a *secretAuditor) SecretEvent(ctx context.Context, event, key string, err error) {
	e := (*Engine)(a)

	audit := AuditEvent{
		Timestamp: time.Now(),
		EventType: event,
		SecretKey: key,
		Success:   err == nil,
	}
	if err != nil {
		audit.Error = err.Error()
	}

	switch event {
	case secrets.EventRotated:
		e.metrics.Inc(MetricSecretRotated)
	case secrets.EventRotationFailed:
		e.metrics.Inc(MetricSecretRotationFailed)
	}
	e.audit.Emit(ctx, audit)
}
