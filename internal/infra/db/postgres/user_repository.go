package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	domainuser "rentals/internal/domain/user"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) ByID(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	return r.one(ctx, `WHERE id = $1`, string(id))
}

func (r *UserRepository) ByEmail(ctx context.Context, email string) (*domainuser.User, error) {
	return r.one(ctx, `WHERE email = $1`, domainuser.NormalizeEmail(email))
}

func (r *UserRepository) Create(ctx context.Context, u *domainuser.User) error {
	roles := make([]string, 0, len(u.Roles))
	for _, role := range u.Roles {
		roles = append(roles, string(role))
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO users (id, email, name, password_hash, roles, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, string(u.ID), domainuser.NormalizeEmail(u.Email), u.Name, u.PasswordHash, pq.Array(roles), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domainuser.ErrEmailAlreadyUsed
		}
		return fmt.Errorf("postgres insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) one(ctx context.Context, where string, args ...any) (*domainuser.User, error) {
	var (
		u     domainuser.User
		id    string
		roles pq.StringArray
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, email, name, password_hash, roles, created_at, updated_at FROM users `+where, args...).
		Scan(&id, &u.Email, &u.Name, &u.PasswordHash, &roles, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainuser.ErrNotFound
		}
		return nil, fmt.Errorf("postgres user: %w", err)
	}
	u.ID = domainuser.ID(id)
	for _, role := range roles {
		u.Roles = append(u.Roles, domainuser.Role(role))
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

var _ domainuser.Repository = (*UserRepository)(nil)
