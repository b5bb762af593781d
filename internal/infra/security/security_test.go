package security_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	domainuser "rentals/internal/domain/user"
	"rentals/internal/infra/security"
)

func TestBcryptHasher(t *testing.T) {
	h := security.BcryptHasher{Cost: bcrypt.MinCost}
	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)
	assert.NoError(t, h.Compare(hash, "correct horse"))
	assert.Error(t, h.Compare(hash, "battery staple"))
}

func TestJWTIssuerRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	issuer, err := security.NewJWTIssuer("s3cret", time.Hour)
	require.NoError(t, err)

	user := &domainuser.User{ID: "u-1", Roles: []domainuser.Role{domainuser.RoleGuest, domainuser.RoleHost}}
	token, exp, err := issuer.Issue(user, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), exp)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, domainuser.ID("u-1"), claims.UserID)
	assert.Equal(t, user.Roles, claims.Roles)

	other, _ := security.NewJWTIssuer("different", time.Hour)
	_, err = other.Parse(token)
	assert.Error(t, err)
}

func TestJWTIssuerRejectsExpired(t *testing.T) {
	issuer, err := security.NewJWTIssuer("s3cret", time.Minute)
	require.NoError(t, err)
	token, _, err := issuer.Issue(&domainuser.User{ID: "u-1"}, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = issuer.Parse(token)
	assert.Error(t, err)

	_, err = security.NewJWTIssuer("", time.Minute)
	assert.ErrorIs(t, err, security.ErrSecretRequired)
}
