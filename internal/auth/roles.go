package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/bug-snapshot-service/internal/domain"
	apperrors "github.com/spec-kit/bug-snapshot-service/pkg/util"
)

// RequireRole ensures the client holds one of the allowed roles.
func RequireRole(allowed ...domain.ClientRole) fiber.Handler {
	allowedSet := make(map[domain.ClientRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Client.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireAdmin ensures the client may run corpus maintenance.
func RequireAdmin() fiber.Handler {
	return RequireRole(domain.ClientRoleAdmin)
}
