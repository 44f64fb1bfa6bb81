package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petcare/apiserver/internal/errs"
	"github.com/petcare/apiserver/types"
)

func TestRequireOwnership(t *testing.T) {
	ids := []int{0, 1, 10, 20, 99}
	for _, userID := range ids {
		for _, ownerID := range ids {
			err := RequireOwnership(Principal{UserID: userID, Role: types.RoleOwner}, ownerID)
			if userID > 0 && userID == ownerID {
				assert.NoError(t, err, "user %d owner %d", userID, ownerID)
				continue
			}
			assert.ErrorIs(t, err, ErrNotOwner, "user %d owner %d", userID, ownerID)
		}
	}
}

func TestRequireRole(t *testing.T) {
	adopter := Principal{UserID: 1, Role: types.RoleAdopter}
	owner := Principal{UserID: 2, Role: types.RoleOwner}

	require.NoError(t, RequireRole(adopter, types.RoleAdopter))
	require.NoError(t, RequireRole(owner, types.RoleAdopter, types.RoleOwner))

	err := RequireRole(adopter, types.RoleOwner)
	require.ErrorIs(t, err, ErrInsufficientRole)
	assert.Equal(t, errs.KindAuthorization, errs.KindOf(err))
	assert.Contains(t, errs.MessageOf(err), "Owner")

	err = RequireRole(Principal{UserID: 3, Role: "Admin"}, types.RoleAdopter, types.RoleOwner)
	require.ErrorIs(t, err, ErrInsufficientRole)
	assert.Contains(t, errs.MessageOf(err), "Adopter or Owner")
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{UserID: 5, Role: types.RoleOwner})
	principal, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, 5, principal.UserID)
}
