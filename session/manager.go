package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/iaminawe/authvault/backend"
	"github.com/iaminawe/authvault/internal"
)

// ErrInvalidRecord is returned by Create when the record is missing its
// required identity fields.
var ErrInvalidRecord = errors.New("session record requires a session id and user id")

// Auditor receives security-relevant session events. rec may carry partial
// fields depending on the event.
type Auditor interface {
	SessionEvent(ctx context.Context, event string, rec *Record)
}

// Session event names emitted to the Auditor.
const (
	EventCreated        = "session_created"
	EventRevoked        = "session_revoked"
	EventLimitEvicted   = "session_limit_evicted"
	EventDeviceMismatch = "device_mismatch"
	EventIPChange       = "ip_change"
)

const (
	sessionKeyPrefix = "sess:"
	userIndexPrefix  = "usess:"
)

// Manager owns the session record and per-user index lifecycle over the
// shared backend selection. Per-session writes are last-writer-wins; the
// read-and-touch path in Get uses the backend's Replace so the TTL clock set
// at creation is never extended by a read.
type Manager struct {
	backends      *backend.Selector
	defaultMaxAge time.Duration
	logger        *slog.Logger
	auditor       Auditor
	creating      *internal.KeyedMutex
	now           func() time.Time
}

// NewManager builds a session manager. defaultMaxAge applies when Create is
// called without an explicit MaxAge; auditor may be nil.
func NewManager(backends *backend.Selector, defaultMaxAge time.Duration, logger *slog.Logger, auditor Auditor) *Manager {
	if defaultMaxAge <= 0 {
		defaultMaxAge = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		backends:      backends,
		defaultMaxAge: defaultMaxAge,
		logger:        logger.With("component", "session.manager"),
		auditor:       auditor,
		creating:      internal.NewKeyedMutex(),
		now:           time.Now,
	}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func userKey(userID string) string {
	return userIndexPrefix + userID
}

// Create writes a new session record with TTL MaxAge and registers it in the
// owner's index. When MaxConcurrent is set, older sessions beyond the cap
// are evicted first; the per-user lock keeps concurrent creations for the
// same user from transiently exceeding the cap, though the limit remains
// best-effort across instances.
func (m *Manager) Create(ctx context.Context, sessionID string, rec Record, opts Options) error {
	if sessionID == "" || rec.UserID == "" {
		return ErrInvalidRecord
	}

	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = m.defaultMaxAge
	}

	m.creating.Lock(rec.UserID)
	defer m.creating.Unlock(rec.UserID)

	if opts.MaxConcurrent > 0 {
		if err := m.enforceLimit(ctx, rec.UserID, opts.MaxConcurrent); err != nil {
			m.logger.Warn("session limit enforcement failed", "user_id", rec.UserID, "error", err)
		}
	}

	now := m.now()
	rec.SessionID = sessionID
	rec.CreatedAt = now
	rec.LastAccessedAt = now
	rec.IsActive = true
	if !opts.RequireDeviceConsistency {
		rec.DeviceFingerprint = ""
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", sessionID, err)
	}

	b := m.backends.Current()
	if err := b.Put(ctx, sessionKey(sessionID), data, maxAge); err != nil {
		m.logger.Error("session write failed", "session_id", sessionID, "error", err)
		return err
	}
	if err := b.AddToSet(ctx, userKey(rec.UserID), sessionID); err != nil {
		m.logger.Error("session index write failed", "session_id", sessionID, "error", err)
		return err
	}
	if err := b.ExpireSet(ctx, userKey(rec.UserID), maxAge); err != nil {
		m.logger.Warn("session index expiry failed", "user_id", rec.UserID, "error", err)
	}

	m.emit(ctx, EventCreated, &rec)
	return nil
}

// Get returns the session or nil when absent or expired. A hit refreshes
// LastAccessedAt through a TTL-preserving write-back; losing that write-back
// race only loses timestamp freshness, never the record itself.
func (m *Manager) Get(ctx context.Context, sessionID string) (*Record, error) {
	rec, err := m.fetch(ctx, sessionID)
	if err != nil || rec == nil {
		return nil, err
	}

	rec.LastAccessedAt = m.now()
	if data, err := json.Marshal(rec); err == nil {
		if _, err := m.backends.Current().Replace(ctx, sessionKey(sessionID), data); err != nil {
			m.logger.Warn("last-access write-back failed", "session_id", sessionID, "error", err)
		}
	}

	return rec, nil
}

// Patch carries the partial fields Update merges into an existing record.
type Patch struct {
	UserRole          *string
	UserEmail         *string
	IPAddress         *string
	DeviceFingerprint *string
	IsActive          *bool
}

// Update merges the patch into the existing record and rewrites it with the
// remaining TTL preserved. It reports false when the session no longer
// exists or its TTL has already elapsed.
func (m *Manager) Update(ctx context.Context, sessionID string, patch Patch) (bool, error) {
	rec, err := m.fetch(ctx, sessionID)
	if err != nil || rec == nil {
		return false, err
	}

	if patch.UserRole != nil {
		rec.UserRole = *patch.UserRole
	}
	if patch.UserEmail != nil {
		rec.UserEmail = *patch.UserEmail
	}
	if patch.IPAddress != nil {
		rec.IPAddress = *patch.IPAddress
	}
	if patch.DeviceFingerprint != nil {
		rec.DeviceFingerprint = *patch.DeviceFingerprint
	}
	if patch.IsActive != nil {
		rec.IsActive = *patch.IsActive
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("marshal session %s: %w", sessionID, err)
	}
	return m.backends.Current().Replace(ctx, sessionKey(sessionID), data)
}

// Delete removes the record and its index membership, reporting whether a
// live session was actually deleted. Idempotent.
func (m *Manager) Delete(ctx context.Context, sessionID string) (bool, error) {
	rec, err := m.fetch(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}

	b := m.backends.Current()
	if err := b.Delete(ctx, sessionKey(sessionID)); err != nil {
		return false, err
	}
	if err := b.RemoveFromSet(ctx, userKey(rec.UserID), sessionID); err != nil {
		m.logger.Warn("session index removal failed", "session_id", sessionID, "error", err)
	}

	m.emit(ctx, EventRevoked, rec)
	return true, nil
}

// UserSessions resolves every live session for a user. Index members that no
// longer resolve are pruned here; the index is not strongly consistent with
// the record store, so this lazy pruning is the reconciliation point.
func (m *Manager) UserSessions(ctx context.Context, userID string) ([]*Record, error) {
	b := m.backends.Current()
	ids, err := b.SetMembers(ctx, userKey(userID))
	if err != nil {
		return nil, err
	}

	records := make([]*Record, 0, len(ids))
	for _, id := range ids {
		rec, err := m.fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			if err := b.RemoveFromSet(ctx, userKey(userID), id); err != nil {
				m.logger.Warn("stale index prune failed", "session_id", id, "error", err)
			}
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// RevokeAll deletes every session for a user and clears the index,
// returning the number of sessions actually deleted.
func (m *Manager) RevokeAll(ctx context.Context, userID string) (int, error) {
	sessions, err := m.UserSessions(ctx, userID)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, rec := range sessions {
		ok, err := m.Delete(ctx, rec.SessionID)
		if err != nil {
			m.logger.Error("session revocation failed", "session_id", rec.SessionID, "error", err)
			continue
		}
		if ok {
			deleted++
		}
	}

	if err := m.backends.Current().Delete(ctx, userKey(userID)); err != nil {
		m.logger.Warn("session index clear failed", "user_id", userID, "error", err)
	}
	return deleted, nil
}

// Validate fetches the session and checks it against the caller's current
// device fingerprint and IP. A fingerprint mismatch is a hard failure and a
// possible theft signal; an IP change alone is logged and audited but does
// not invalidate the session, because IP churn is common and legitimate.
func (m *Manager) Validate(ctx context.Context, sessionID, deviceFingerprint, ip string) ValidationResult {
	rec, err := m.Get(ctx, sessionID)
	if err != nil || rec == nil {
		return ValidationResult{Valid: false, Reason: ReasonNotFound}
	}

	if !rec.IsActive {
		return ValidationResult{Valid: false, Reason: ReasonInactive}
	}

	if rec.DeviceFingerprint != "" && deviceFingerprint != rec.DeviceFingerprint {
		m.logger.Warn("session device mismatch, possible theft",
			"session_id", sessionID,
			"user_id", rec.UserID,
		)
		m.emit(ctx, EventDeviceMismatch, rec)
		return ValidationResult{Valid: false, Reason: ReasonDeviceMismatch}
	}

	if rec.IPAddress != "" && ip != "" && ip != rec.IPAddress {
		m.logger.Warn("session ip changed",
			"session_id", sessionID,
			"user_id", rec.UserID,
			"recorded_ip", rec.IPAddress,
			"current_ip", ip,
		)
		m.emit(ctx, EventIPChange, rec)
	}

	return ValidationResult{Valid: true, Session: rec}
}

// enforceLimit evicts the oldest sessions (by LastAccessedAt, ascending) so
// that after one more creation the user holds at most max sessions.
func (m *Manager) enforceLimit(ctx context.Context, userID string, max int) error {
	sessions, err := m.UserSessions(ctx, userID)
	if err != nil {
		return err
	}
	excess := len(sessions) - max + 1
	if excess <= 0 {
		return nil
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastAccessedAt.Before(sessions[j].LastAccessedAt)
	})

	for _, rec := range sessions[:excess] {
		if _, err := m.Delete(ctx, rec.SessionID); err != nil {
			return err
		}
		m.emit(ctx, EventLimitEvicted, rec)
	}
	return nil
}

// fetch reads and decodes a record without touching LastAccessedAt. Absence
// and corruption both report nil; corrupt blobs are deleted.
func (m *Manager) fetch(ctx context.Context, sessionID string) (*Record, error) {
	data, found, err := m.backends.Current().Get(ctx, sessionKey(sessionID))
	if err != nil {
		m.logger.Error("session read failed", "session_id", sessionID, "error", err)
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		m.logger.Error("corrupt session record", "session_id", sessionID, "error", err)
		if delErr := m.backends.Current().Delete(ctx, sessionKey(sessionID)); delErr != nil {
			m.logger.Warn("corrupt session cleanup failed", "session_id", sessionID, "error", delErr)
		}
		return nil, nil
	}
	rec.SessionID = sessionID
	return &rec, nil
}

func (m *Manager) emit(ctx context.Context, event string, rec *Record) {
	if m.auditor == nil {
		return
	}
	m.auditor.SessionEvent(ctx, event, rec)
}
