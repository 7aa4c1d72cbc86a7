package session

import (
	"time"

	"github.com/iaminawe/authvault/internal"
)

// NewID mints an opaque session identifier: 128 random bits in compact
// base64url form.
func NewID() (string, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return "", err
	}
	return sid.String(), nil
}

// Record is the server-side session state bound to an opaque session ID.
// The ID is stored inside the record so that enumeration (per-user index
// reads) always yields a deletable key; eviction and revocation depend on
// this.
type Record struct {
	SessionID         string    `json:"session_id"`
	UserID            string    `json:"user_id"`
	UserRole          string    `json:"user_role,omitempty"`
	UserEmail         string    `json:"user_email,omitempty"`
	DeviceFingerprint string    `json:"device_fingerprint,omitempty"`
	IPAddress         string    `json:"ip_address,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	LastAccessedAt    time.Time `json:"last_accessed_at"`
	IsActive          bool      `json:"is_active"`
}

// Options controls session creation.
type Options struct {
	// MaxAge is the session TTL; zero uses the manager's configured default.
	MaxAge time.Duration
	// MaxConcurrent caps live sessions per user; zero means unlimited. When
	// a new session would exceed the cap, the oldest sessions by
	// LastAccessedAt are evicted first.
	MaxConcurrent int
	// RequireDeviceConsistency records the device fingerprint at creation so
	// that validation hard-fails on a later mismatch. When false the
	// fingerprint is not recorded and never enforced.
	RequireDeviceConsistency bool
}

// Validation failure reasons returned by Manager.Validate.
const (
	ReasonNotFound       = "not found"
	ReasonInactive       = "inactive"
	ReasonDeviceMismatch = "device mismatch"
)

// ValidationResult is the outcome of validating one request's session.
// Invalid sessions are an expected, frequent outcome, so the result is
// always a value, never an error.
type ValidationResult struct {
	Valid   bool
	Reason  string
	Session *Record
}
