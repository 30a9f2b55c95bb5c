package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"custodia/internal/adapter/storage"
	"custodia/internal/core/security"
)

// AccountLocal is the fiber.Ctx locals key holding the authenticated
// account number.
const AccountLocal = "account_number"

// Protected resolves the bearer session token to an account number and
// stores it in the request locals. Handlers behind it trust that identifier
// without re-checking credentials.
func Protected(sessions *storage.SessionRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Missing session token"})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid header format"})
		}

		// Only the hash ever touches the database.
		accountNumber, err := sessions.Resolve(c.Context(), security.HashToken(parts[1]))
		if err != nil {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired session"})
		}

		c.Locals(AccountLocal, accountNumber)
		return c.Next()
	}
}

// Account returns the authenticated account number set by Protected.
func Account(c *fiber.Ctx) string {
	if v, ok := c.Locals(AccountLocal).(string); ok {
		return v
	}
	return ""
}
