package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/maintenance-ticket-service/pkg/util"
)

// RequirePrincipal rejects requests that reached a route without an authenticated caller.
func RequirePrincipal() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}

// PersonID returns the authenticated person id or an UNAUTHORIZED error.
func PersonID(c *fiber.Ctx) (string, error) {
	principal, ok := PrincipalFromContext(c)
	if !ok || principal.Person == nil {
		return "", apperrors.NewUnauthorized("authentication required")
	}
	return principal.Person.ID, nil
}
