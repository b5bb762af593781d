package user_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentals/internal/domain/user"
)

func TestNewUserDefaultsToGuest(t *testing.T) {
	u, err := user.NewUser(user.CreateParams{ID: "u1", Email: " Ana@Example.COM ", Name: "Ana", PasswordHash: "$2a$hash"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.Equal(t, []user.Role{user.RoleGuest}, u.Roles)
	assert.False(t, u.HasRole(user.RoleAdmin))
}

func TestNewUserRoles(t *testing.T) {
	u, err := user.NewUser(user.CreateParams{
		ID: "u1", Email: "a@b.c", Name: "A", PasswordHash: "h",
		Roles: []user.Role{"Guest", "host", "guest"},
	})
	require.NoError(t, err)
	assert.Equal(t, []user.Role{user.RoleGuest, user.RoleHost}, u.Roles)

	_, err = user.NewUser(user.CreateParams{ID: "u1", Email: "a@b.c", Name: "A", PasswordHash: "h", Roles: []user.Role{"owner"}})
	assert.ErrorIs(t, err, user.ErrInvalidRole)
}

func TestNewUserRequiresHash(t *testing.T) {
	_, err := user.NewUser(user.CreateParams{ID: "u1", Email: "a@b.c", Name: "A"})
	assert.ErrorIs(t, err, user.ErrPasswordHashMissing)

	_, err = user.NewUser(user.CreateParams{ID: "u1", Name: "A", PasswordHash: "h"})
	assert.ErrorIs(t, err, user.ErrEmailRequired)
}
