package user

import (
	"context"
	"strings"
	"time"

	"rentals/internal/domain/shared/errs"
)

var (
	ErrIDRequired          = errs.Validation("user: id is required")
	ErrEmailRequired       = errs.Validation("user: email is required")
	ErrPasswordHashMissing = errs.Validation("user: password hash is required")
	ErrNameRequired        = errs.Validation("user: name is required")
	ErrInvalidRole         = errs.Validation("user: invalid role")
	ErrEmailAlreadyUsed    = errs.Conflict("user: email already used")
	ErrNotFound            = errs.NotFound("user: not found")
)

type ID string

type Role string

const (
	RoleGuest Role = "guest"
	RoleHost  Role = "host"
	RoleAdmin Role = "admin"
)

type User struct {
	ID           ID
	Email        string
	Name         string
	PasswordHash string
	Roles        []Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*User, error)
	ByEmail(ctx context.Context, email string) (*User, error)
	// Create stores a new user; ErrEmailAlreadyUsed when the email is taken.
	Create(ctx context.Context, user *User) error
}

type CreateParams struct {
	ID           ID
	Email        string
	Name         string
	PasswordHash string
	Roles        []Role
	CreatedAt    time.Time
}

// NewUser expects an already hashed password.
func NewUser(params CreateParams) (*User, error) {
	id := strings.TrimSpace(string(params.ID))
	if id == "" {
		return nil, ErrIDRequired
	}
	email := NormalizeEmail(params.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if strings.TrimSpace(params.PasswordHash) == "" {
		return nil, ErrPasswordHashMissing
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, ErrNameRequired
	}

	now := params.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	roles, err := NormalizeRoles(params.Roles)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		roles = []Role{RoleGuest}
	}

	return &User{
		ID:           ID(id),
		Email:        email,
		Name:         name,
		PasswordHash: params.PasswordHash,
		Roles:        roles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (u *User) HasRole(role Role) bool {
	for _, current := range u.Roles {
		if current == role {
			return true
		}
	}
	return false
}

func NormalizeRoles(roles []Role) ([]Role, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	seen := make(map[Role]struct{}, len(roles))
	normalized := make([]Role, 0, len(roles))
	for _, role := range roles {
		r, err := ParseRole(string(role))
		if err != nil {
			return nil, err
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		normalized = append(normalized, r)
	}
	return normalized, nil
}

func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleGuest:
		return RoleGuest, nil
	case RoleHost:
		return RoleHost, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", ErrInvalidRole
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
