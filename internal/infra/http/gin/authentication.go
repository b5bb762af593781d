package ginserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	authsvc "rentals/internal/app/services/auth"
	domainuser "rentals/internal/domain/user"
)

const principalContextKey = "rentals.principal"

type principal struct {
	ID    string
	Roles []domainuser.Role
	Token string
}

func (p principal) HasRole(role domainuser.Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// TokenResolver turns a bearer token into the caller's identity.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (authsvc.Principal, error)
}

type AuthMiddleware struct {
	Service TokenResolver
	Logger  *slog.Logger
}

// Handle attaches the principal when a valid bearer token is present.
// Anonymous requests pass through; handlers decide whether they need a caller.
func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" || m.Service == nil {
		c.Next()
		return
	}
	resolved, err := m.Service.Resolve(c.Request.Context(), token)
	if err != nil {
		if !errors.Is(err, authsvc.ErrInvalidToken) && m.Logger != nil {
			m.Logger.Warn("token resolution failed", "err", err)
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return
	}
	c.Set(principalContextKey, principal{
		ID:    string(resolved.UserID),
		Roles: append([]domainuser.Role(nil), resolved.Roles...),
		Token: token,
	})
	c.Next()
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

// requireRole aborts with 401 for anonymous callers and 403 when role is set and missing.
func requireRole(c *gin.Context, role domainuser.Role) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return principal{}, false
	}
	if role != "" && !p.HasRole(role) {
		c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions", "kind": "forbidden"})
		return principal{}, false
	}
	return p, true
}

func extractBearerToken(header string) string {
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
