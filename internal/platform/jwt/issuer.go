// Package jwtmw issues and verifies the stateless bearer tokens used for
// authenticated requests, and provides the gin middleware that enforces them.
package jwtmw

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// EnvKeyJWTSecret is the environment variable holding the HMAC secret.
	EnvKeyJWTSecret = "JWT_SECRET"
	// EnvKeyJWTExpiresIn is the environment variable holding the token lifetime (Go duration).
	EnvKeyJWTExpiresIn = "JWT_EXPIRES_IN"

	// DefaultExpiration is the absolute lifetime of an issued token.
	DefaultExpiration = time.Hour
)

// ErrInvalidToken is returned for every verification failure: bad signature,
// unexpected algorithm, malformed input or expiry. Callers never learn which.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the identity fields bound into a token.
type Claims struct {
	UserID uint   `json:"-"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Config holds issuer settings.
type Config struct {
	Secret     string
	Expiration time.Duration
}

// LoadConfigFromEnv reads JWT_SECRET and JWT_EXPIRES_IN.
func LoadConfigFromEnv() Config {
	cfg := Config{
		Secret:     os.Getenv(EnvKeyJWTSecret),
		Expiration: DefaultExpiration,
	}
	if v := os.Getenv(EnvKeyJWTExpiresIn); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Expiration = d
		}
	}
	return cfg
}

// Issuer signs and verifies HS256 tokens. It holds no per-session state.
type Issuer struct {
	secret     []byte
	expiration time.Duration
	now        func() time.Time
}

// NewIssuer creates an Issuer with the provided secret and expiration duration.
func NewIssuer(secret string, expiration time.Duration) *Issuer {
	if expiration <= 0 {
		expiration = DefaultExpiration
	}
	return &Issuer{
		secret:     []byte(secret),
		expiration: expiration,
		now:        time.Now,
	}
}

// Expiration returns how long issued tokens stay valid.
func (i *Issuer) Expiration() time.Duration {
	return i.expiration
}

// GenerateToken creates a signed token for the given user.
func (i *Issuer) GenerateToken(userID uint, email string) (string, error) {
	now := i.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.expiration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies the signature and expiry and returns the bound identity.
func (i *Issuer) ParseToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return i.secret, nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return nil, ErrInvalidToken
	}
	claims.UserID = uint(id)
	return claims, nil
}
