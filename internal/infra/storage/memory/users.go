package memory

import (
	"context"
	"sync"

	domainuser "rentals/internal/domain/user"
)

type UserRepository struct {
	mu      sync.RWMutex
	byID    map[domainuser.ID]*domainuser.User
	byEmail map[string]domainuser.ID
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[domainuser.ID]*domainuser.User),
		byEmail: make(map[string]domainuser.ID),
	}
}

func (r *UserRepository) ByID(_ context.Context, id domainuser.ID) (*domainuser.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, domainuser.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *UserRepository) ByEmail(_ context.Context, email string) (*domainuser.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[domainuser.NormalizeEmail(email)]
	if !ok {
		return nil, domainuser.ErrNotFound
	}
	return cloneUser(r.byID[id]), nil
}

func (r *UserRepository) Create(_ context.Context, u *domainuser.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := domainuser.NormalizeEmail(u.Email)
	if _, taken := r.byEmail[email]; taken {
		return domainuser.ErrEmailAlreadyUsed
	}
	r.byID[u.ID] = cloneUser(u)
	r.byEmail[email] = u.ID
	return nil
}

func cloneUser(u *domainuser.User) *domainuser.User {
	cp := *u
	cp.Roles = append([]domainuser.Role(nil), u.Roles...)
	return &cp
}
