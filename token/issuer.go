package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrMissingKeyFunc is returned by NewIssuer when no key source is
	// configured.
	ErrMissingKeyFunc = errors.New("token: key func is required")
	// ErrInvalidToken covers parse results with a wrong claims type.
	ErrInvalidToken = errors.New("token: invalid token")
)

// KeyFunc resolves the current HS256 signing key. It is called on every
// issue and parse so that rotated keys take effect without a restart.
type KeyFunc func(ctx context.Context) (string, error)

// Config controls token issuance and verification.
type Config struct {
	TTL        time.Duration
	Issuer     string
	Audience   string
	Leeway     time.Duration
	RequireIAT bool
}

// Claims carries the session identity embedded in access tokens.
type Claims struct {
	UserID    string `json:"uid"`
	SessionID string `json:"sid"`
	Role      string `json:"role,omitempty"`
	Email     string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies HS256 access tokens bound to sessions.
type Issuer struct {
	config  Config
	keyFunc KeyFunc
	now     func() time.Time
}

func NewIssuer(cfg Config, keyFunc KeyFunc) (*Issuer, error) {
	if keyFunc == nil {
		return nil, ErrMissingKeyFunc
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("token: invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("token: invalid leeway configuration")
	}
	return &Issuer{config: cfg, keyFunc: keyFunc, now: time.Now}, nil
}

// Issue signs a token for the given session identity. Each token gets a
// fresh jti so individual tokens remain distinguishable in audit trails.
func (i *Issuer) Issue(ctx context.Context, userID, sessionID, role, email string) (string, error) {
	if userID == "" || sessionID == "" {
		return "", errors.New("token: user and session ids are required")
	}

	key, err := i.keyFunc(ctx)
	if err != nil {
		return "", fmt.Errorf("token: resolve signing key: %w", err)
	}

	now := i.now()
	claims := Claims{
		UserID:    userID,
		SessionID: sessionID,
		Role:      role,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.config.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    i.config.Issuer,
		},
	}
	if i.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{i.config.Audience}
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(key))
}

// Parse verifies a token string and returns its claims. Tokens signed
// with any algorithm other than HS256 are rejected before key lookup.
func (i *Issuer) Parse(ctx context.Context, tokenStr string) (*Claims, error) {
	key, err := i.keyFunc(ctx)
	if err != nil {
		return nil, fmt.Errorf("token: resolve signing key: %w", err)
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	}
	if i.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(i.config.Leeway))
	}
	if i.config.RequireIAT {
		options = append(options, jwt.WithIssuedAt())
	}
	if i.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(i.config.Issuer))
	}
	if i.config.Audience != "" {
		options = append(options, jwt.WithAudience(i.config.Audience))
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return []byte(key), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
