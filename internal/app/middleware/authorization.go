package middleware

import (
	"context"

	"rentals/internal/app/commands"
	"rentals/internal/app/queries"
	"rentals/internal/domain/shared/errs"
	domainuser "rentals/internal/domain/user"
)

var ErrRoleRequired = errs.Forbidden("middleware: actor lacks the required role")

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// RoleRestricted messages can only be sent by actors holding RequiredRole.
type RoleRestricted interface {
	RequiredRole() domainuser.Role
	ActorRoles() []domainuser.Role
}

// RoleAuthorizer enforces RoleRestricted. Admins pass every check.
type RoleAuthorizer struct{}

func (RoleAuthorizer) Authorize(_ context.Context, message any) error {
	restricted, ok := message.(RoleRestricted)
	if !ok {
		return nil
	}
	required := restricted.RequiredRole()
	for _, role := range restricted.ActorRoles() {
		if role == required || role == domainuser.RoleAdmin {
			return nil
		}
	}
	return ErrRoleRequired
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := a.Authorize(ctx, q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}
