package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"quiz-session-engine/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT payload; the subject carries the username.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Provider issues and verifies HS256 bearer credentials.
type Provider struct {
	hmac   []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewProvider(secret, issuer string, ttl time.Duration) *Provider {
	return NewProviderWithClock(secret, issuer, ttl, time.Now)
}

// NewProviderWithClock is used by tests that need deterministic expiry.
func NewProviderWithClock(secret, issuer string, ttl time.Duration, now func() time.Time) *Provider {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Provider{hmac: []byte(secret), issuer: issuer, ttl: ttl, now: now}
}

// Issue signs a token for username.
func (p *Provider) Issue(username, role string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", fmt.Errorf("%w: username is required", domain.ErrAuthMissing)
	}
	now := p.now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(p.hmac)
}

// Authenticate verifies a token and returns the identity it carries.
func (p *Provider) Authenticate(token string) (domain.AuthContext, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.AuthContext{}, domain.ErrAuthMissing
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return p.hmac, nil
	}, opts...)
	if err != nil {
		return domain.AuthContext{}, fmt.Errorf("%w: %w", domain.ErrAuthMissing, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return domain.AuthContext{}, fmt.Errorf("%w: invalid token", domain.ErrAuthMissing)
	}
	if claims.Subject == "" {
		return domain.AuthContext{}, fmt.Errorf("%w: token has no subject", domain.ErrAuthMissing)
	}
	return domain.AuthContext{
		Token:    token,
		Username: claims.Subject,
		Role:     claims.Role,
	}, nil
}

// IsExpired reports whether err came from an expired token.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
