package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/petcare/apiserver/types"
)

// RequireRole allows principal when its role is one of allowed.
func RequireRole(principal Principal, allowed ...types.Role) error {
	for _, role := range allowed {
		if principal.Role == role {
			return nil
		}
	}
	names := make([]string, 0, len(allowed))
	for _, role := range allowed {
		names = append(names, string(role))
	}
	return ErrInsufficientRole.WithMessage(
		fmt.Sprintf("access denied, required role: %s", strings.Join(names, " or ")),
	)
}

// RequireOwnership allows principal only when it is the resource owner.
// There is no administrative bypass.
func RequireOwnership(principal Principal, ownerID int) error {
	if principal.UserID < 1 || principal.UserID != ownerID {
		return ErrNotOwner
	}
	return nil
}

type principalKey struct{}

// WithPrincipal stores principal in ctx.
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// PrincipalFromContext returns the principal stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || principal.UserID < 1 {
		return Principal{}, false
	}
	return principal, true
}
