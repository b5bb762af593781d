package support

import (
	"strings"
	"time"

	"github.com/google/uuid"

	domainuser "rentals/internal/domain/user"
)

// Actor is the authenticated caller as handlers see it.
type Actor struct {
	ID    string
	Roles []domainuser.Role
}

func (a Actor) Has(role domainuser.Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (a Actor) IsAdmin() bool {
	return a.Has(domainuser.RoleAdmin)
}

func (a Actor) Anonymous() bool {
	return strings.TrimSpace(a.ID) == ""
}

// Now returns clock() in UTC, falling back to the wall clock.
func Now(clock func() time.Time) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock().UTC()
}

// NewID returns gen() or a random UUID.
func NewID(gen func() string) string {
	if gen == nil {
		return uuid.NewString()
	}
	return gen()
}
