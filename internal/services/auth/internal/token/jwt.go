package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid session token")

// SessionClaims are carried by session tokens. Subject is the lowercase wallet address.
type SessionClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

type Session struct {
	Token     string
	ExpiresAt time.Time
}

type JwtIssuer struct {
	secret secretProvider
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

type JwtConfig struct {
	Secret secretProvider
	Issuer string
	TTL    time.Duration
}

func NewJWTIssuer(cfg JwtConfig) *JwtIssuer {
	return &JwtIssuer{
		secret: cfg.Secret,
		issuer: cfg.Issuer,
		ttl:    cfg.TTL,
		now:    time.Now,
	}
}

// Issue signs an HS256 session token for wallet.
func (ti *JwtIssuer) Issue(wallet, role string) (Session, error) {
	now := ti.now()
	exp := now.Add(ti.ttl)

	tk, err := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   wallet,
			Issuer:    ti.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role: role,
	}).SignedString(ti.secret.Get())
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}

	return Session{Token: tk, ExpiresAt: exp}, nil
}

func (ti *JwtIssuer) Validate(raw string) (SessionClaims, error) {
	var claims SessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return ti.secret.Get(), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(ti.issuer),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil {
		return SessionClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return claims, nil
}
