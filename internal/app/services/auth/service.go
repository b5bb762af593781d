package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"rentals/internal/domain/shared/errs"
	domainuser "rentals/internal/domain/user"
)

var (
	ErrInvalidCredentials = errs.Validation("auth: invalid credentials")
	ErrPasswordTooShort   = errs.Validation("auth: password must be at least 8 characters")
	ErrTokenRequired      = errs.Validation("auth: token is required")
	ErrInvalidToken       = errs.Forbidden("auth: token is invalid or expired")
	errMisconfigured      = errors.New("auth: service dependencies missing")
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// Claims is what an access token asserts about its bearer.
type Claims struct {
	UserID    domainuser.ID
	Roles     []domainuser.Role
	ExpiresAt time.Time
}

type TokenIssuer interface {
	Issue(user *domainuser.User, now time.Time) (token string, expiresAt time.Time, err error)
	Parse(token string) (Claims, error)
}

type Service struct {
	Users     domainuser.Repository
	Passwords PasswordHasher
	Tokens    TokenIssuer
	Now       func() time.Time
	Logger    *slog.Logger
}

type RegisterParams struct {
	Email      string
	Name       string
	Password   string
	WantToHost bool
}

type LoginParams struct {
	Email    string
	Password string
}

type AuthResult struct {
	User      *domainuser.User
	Token     string
	ExpiresAt time.Time
}

// Principal is the resolved identity behind a token.
type Principal struct {
	UserID domainuser.ID
	Roles  []domainuser.Role
}

func (p Principal) Has(role domainuser.Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (s *Service) Register(ctx context.Context, params RegisterParams) (*AuthResult, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(params.Password) < 8 {
		return nil, ErrPasswordTooShort
	}
	roles := []domainuser.Role{domainuser.RoleGuest}
	if params.WantToHost {
		roles = append(roles, domainuser.RoleHost)
	}
	user, err := s.create(ctx, params.Email, params.Name, params.Password, roles)
	if err != nil {
		return nil, err
	}
	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("user registered", "user_id", user.ID, "email", user.Email, "roles", user.Roles)
	}
	return result, nil
}

// EnsureAdmin creates the admin account if the email is not taken yet.
func (s *Service) EnsureAdmin(ctx context.Context, email, name, password string) (*domainuser.User, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	existing, err := s.Users.ByEmail(ctx, domainuser.NormalizeEmail(email))
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domainuser.ErrNotFound) {
		return nil, err
	}
	user, err := s.create(ctx, email, name, password, []domainuser.Role{domainuser.RoleGuest, domainuser.RoleHost, domainuser.RoleAdmin})
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("admin seeded", "user_id", user.ID, "email", user.Email)
	}
	return user, nil
}

func (s *Service) Login(ctx context.Context, params LoginParams) (*AuthResult, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	email := domainuser.NormalizeEmail(params.Email)
	if email == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.Users.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domainuser.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := s.Passwords.Compare(user.PasswordHash, params.Password); err != nil {
		return nil, ErrInvalidCredentials
	}
	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("user authenticated", "user_id", user.ID)
	}
	return result, nil
}

// Resolve validates a bearer token and returns the current roles of its user.
func (s *Service) Resolve(ctx context.Context, token string) (Principal, error) {
	if err := s.ensureDependencies(); err != nil {
		return Principal{}, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, ErrTokenRequired
	}
	claims, err := s.Tokens.Parse(token)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	user, err := s.Users.ByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domainuser.ErrNotFound) {
			return Principal{}, ErrInvalidToken
		}
		return Principal{}, err
	}
	return Principal{UserID: user.ID, Roles: append([]domainuser.Role(nil), user.Roles...)}, nil
}

func (s *Service) Profile(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	return s.Users.ByID(ctx, id)
}

func (s *Service) create(ctx context.Context, email, name, password string, roles []domainuser.Role) (*domainuser.User, error) {
	hash, err := s.Passwords.Hash(password)
	if err != nil {
		return nil, err
	}
	user, err := domainuser.NewUser(domainuser.CreateParams{
		ID:           domainuser.ID(uuid.NewString()),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Roles:        roles,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) issue(user *domainuser.User) (*AuthResult, error) {
	token, expiresAt, err := s.Tokens.Issue(user, s.now())
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) ensureDependencies() error {
	if s.Users == nil || s.Passwords == nil || s.Tokens == nil {
		return errMisconfigured
	}
	return nil
}
