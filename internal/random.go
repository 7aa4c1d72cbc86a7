package internal

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

// SessionID is the raw form of an opaque session identifier.
type SessionID [16]byte

// NewSessionID returns a cryptographically random session identifier.
func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

func (s SessionID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(s[:])
}

// NewHexToken returns size random bytes hex-encoded (2*size characters).
// Used for signing and encryption key material, where a wide hex token is
// the expected shape.
func NewHexToken(size int) (string, error) {
	if size <= 0 {
		return "", errors.New("invalid token size")
	}
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// NewURLToken returns size random bytes base64url-encoded without padding.
func NewURLToken(size int) (string, error) {
	if size <= 0 {
		return "", errors.New("invalid token size")
	}
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
