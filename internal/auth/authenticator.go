package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/petcare/apiserver/internal/store"
	"github.com/petcare/apiserver/types"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID   int
	Email    string
	FullName string
	Role     types.Role
}

// CredentialStore looks up the current state of an account.
type CredentialStore interface {
	GetByID(ctx context.Context, id int) (types.User, error)
}

// Authenticator turns a bearer header into a Principal, re-reading the
// account on every call so role changes and deactivation apply to tokens
// that were issued earlier.
type Authenticator struct {
	codec  *TokenCodec
	users  CredentialStore
	logger *slog.Logger
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(codec *TokenCodec, users CredentialStore, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{codec: codec, users: users, logger: logger}
}

// Authenticate validates the raw Authorization header value.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (Principal, error) {
	tokenString, err := BearerToken(header)
	if err != nil {
		return Principal{}, err
	}

	identity, err := a.codec.Verify(tokenString)
	if err != nil {
		return Principal{}, err
	}

	user, err := a.users.GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Principal{}, ErrAccountNotFound
		}
		return Principal{}, err
	}
	if !user.IsActive {
		return Principal{}, ErrAccountDeactivated
	}

	return Principal{
		UserID:   user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Role:     user.Role,
	}, nil
}

// OptionalAuthenticate behaves like Authenticate but reports "no principal"
// instead of failing. It never returns an error.
func (a *Authenticator) OptionalAuthenticate(ctx context.Context, header string) (Principal, bool) {
	if strings.TrimSpace(header) == "" {
		return Principal{}, false
	}
	principal, err := a.Authenticate(ctx, header)
	if err != nil {
		a.logger.DebugContext(ctx, "optional authentication failed", "error", err)
		return Principal{}, false
	}
	return principal, true
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrMissingToken
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
