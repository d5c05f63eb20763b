package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/npmart/storefront/internal/session"
)

// LocalAccountID is the fiber.Ctx local holding the authenticated account id.
const LocalAccountID = "account_id"

// SessionAuth validates bearer session tokens issued after registration.
func SessionAuth(issuer *session.Issuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		claims, err := issuer.Parse(strings.TrimSpace(authz[len("Bearer "):]))
		if errors.Is(err, session.ErrTokenExpired) {
			return fiber.NewError(http.StatusUnauthorized, "session expired")
		}
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		c.Locals(LocalAccountID, claims.AccountID())
		c.Locals("claims", claims)
		return c.Next()
	}
}

// AccountIDFrom returns the account id stored by SessionAuth.
func AccountIDFrom(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalAccountID).(string)
	return id
}
