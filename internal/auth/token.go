package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultIssuer   = "petcare-api"
	DefaultAudience = "petcare-clients"
	DefaultTokenTTL = 7 * 24 * time.Hour
)

// Identity is what a verified token asserts.
type Identity struct {
	UserID   int
	Email    string
	IssuedAt time.Time
}

type tokenClaims struct {
	UserID int    `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// TokenCodec issues and verifies HS256 tokens scoped by issuer and audience.
type TokenCodec struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// TokenOption customises a TokenCodec.
type TokenOption func(*TokenCodec)

// WithIssuer sets the iss claim written and required.
func WithIssuer(issuer string) TokenOption {
	return func(c *TokenCodec) {
		if strings.TrimSpace(issuer) != "" {
			c.issuer = issuer
		}
	}
}

// WithAudience sets the aud claim written and required.
func WithAudience(audience string) TokenOption {
	return func(c *TokenCodec) {
		if strings.TrimSpace(audience) != "" {
			c.audience = audience
		}
	}
}

// WithTTL sets the token lifetime.
func WithTTL(ttl time.Duration) TokenOption {
	return func(c *TokenCodec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) TokenOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewTokenCodec constructs a codec signing with secret.
func NewTokenCodec(secret string, opts ...TokenOption) *TokenCodec {
	c := &TokenCodec{
		secret:   []byte(secret),
		issuer:   DefaultIssuer,
		audience: DefaultAudience,
		ttl:      DefaultTokenTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured token lifetime.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for the given user.
func (c *TokenCodec) Issue(userID int, email string) (string, error) {
	if userID < 1 {
		return "", errors.New("invalid user id")
	}
	now := c.now()
	claims := tokenClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Verify checks signature, issuer, audience and expiry and returns the identity.
func (c *TokenCodec) Verify(tokenString string) (Identity, error) {
	claims := tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return c.secret, nil
	},
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return Identity{}, classifyTokenError(err)
	}
	if !token.Valid {
		return Identity{}, ErrMalformedToken
	}
	if claims.UserID < 1 {
		return Identity{}, ErrMalformedToken.Wrap(errors.New("missing user id"))
	}

	identity := Identity{UserID: claims.UserID, Email: claims.Email}
	if claims.IssuedAt != nil {
		identity.IssuedAt = claims.IssuedAt.Time
	}
	return identity, nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpiredToken.Wrap(err)
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrMalformedToken.Wrap(err)
	default:
		return ErrVerificationFailed.Wrap(err)
	}
}
