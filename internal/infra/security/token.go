package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"rentals/internal/app/services/auth"
	domainuser "rentals/internal/domain/user"
)

var ErrSecretRequired = errors.New("security: jwt secret is required")

type accessClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// JWTIssuer signs HS256 access tokens carrying the user id and roles.
type JWTIssuer struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
	Now    func() time.Time
}

func NewJWTIssuer(secret string, ttl time.Duration) (*JWTIssuer, error) {
	if secret == "" {
		return nil, ErrSecretRequired
	}
	return &JWTIssuer{Secret: []byte(secret), TTL: ttl, Issuer: "rentals"}, nil
}

func (i *JWTIssuer) Issue(user *domainuser.User, now time.Time) (string, time.Time, error) {
	if len(i.Secret) == 0 {
		return "", time.Time{}, ErrSecretRequired
	}
	expiresAt := now.Add(i.ttl())
	roles := make([]string, 0, len(user.Roles))
	for _, r := range user.Roles {
		roles = append(roles, string(r))
	}
	claims := &accessClaims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(user.ID),
			Issuer:    i.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (i *JWTIssuer) Parse(raw string) (auth.Claims, error) {
	claims := &accessClaims{}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if i.Now != nil {
		opts = append(opts, jwt.WithTimeFunc(i.Now))
	}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return i.Secret, nil
	}, opts...)
	if err != nil {
		return auth.Claims{}, err
	}
	if !token.Valid || claims.Subject == "" {
		return auth.Claims{}, errors.New("security: invalid token")
	}
	out := auth.Claims{UserID: domainuser.ID(claims.Subject)}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	for _, r := range claims.Roles {
		out.Roles = append(out.Roles, domainuser.Role(r))
	}
	return out, nil
}

func (i *JWTIssuer) ttl() time.Duration {
	if i.TTL > 0 {
		return i.TTL
	}
	return 24 * time.Hour
}

var _ auth.TokenIssuer = (*JWTIssuer)(nil)
