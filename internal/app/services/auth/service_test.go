package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"rentals/internal/app/services/auth"
	"rentals/internal/domain/shared/errs"
	domainuser "rentals/internal/domain/user"
	"rentals/internal/infra/security"
	"rentals/internal/infra/storage/memory"
)

func newService(t *testing.T) *auth.Service {
	t.Helper()
	issuer, err := security.NewJWTIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	return &auth.Service{
		Users:     memory.NewUserRepository(),
		Passwords: security.BcryptHasher{Cost: bcrypt.MinCost},
		Tokens:    issuer,
	}
}

func TestRegisterLoginResolve(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, auth.RegisterParams{Email: " Ana@Example.com ", Name: "Ana", Password: "longenough", WantToHost: true})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", reg.User.Email)
	assert.NotEqual(t, "longenough", reg.User.PasswordHash)
	assert.True(t, reg.User.HasRole(domainuser.RoleHost))
	assert.NotEmpty(t, reg.Token)

	login, err := svc.Login(ctx, auth.LoginParams{Email: "ana@example.com", Password: "longenough"})
	require.NoError(t, err)

	principal, err := svc.Resolve(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, principal.UserID)
	assert.True(t, principal.Has(domainuser.RoleGuest))
	assert.False(t, principal.Has(domainuser.RoleAdmin))
}

func TestRegisterRejections(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, auth.RegisterParams{Email: "a@b.c", Name: "A", Password: "short"})
	assert.ErrorIs(t, err, auth.ErrPasswordTooShort)

	_, err = svc.Register(ctx, auth.RegisterParams{Email: "a@b.c", Name: "A", Password: "longenough"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, auth.RegisterParams{Email: "A@B.C", Name: "B", Password: "longenough"})
	assert.ErrorIs(t, err, domainuser.ErrEmailAlreadyUsed)
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestLoginFailures(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, auth.RegisterParams{Email: "a@b.c", Name: "A", Password: "longenough"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, auth.LoginParams{Email: "a@b.c", Password: "wrong-password"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = svc.Login(ctx, auth.LoginParams{Email: "nobody@b.c", Password: "longenough"})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = svc.Resolve(ctx, "garbage")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
	_, err = svc.Resolve(ctx, " ")
	assert.ErrorIs(t, err, auth.ErrTokenRequired)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	first, err := svc.EnsureAdmin(ctx, "admin@rentals.local", "Admin", "changeme123")
	require.NoError(t, err)
	assert.True(t, first.HasRole(domainuser.RoleAdmin))

	second, err := svc.EnsureAdmin(ctx, "admin@rentals.local", "Admin", "changeme123")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}
