package middleware

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"custodia/internal/adapter/storage"
	"custodia/internal/core/security"
)

// RequirePIN verifies the transaction PIN before any money movement handler
// runs. A failed check stops the request here, so the coordinator is never
// invoked with unverified credentials. The PIN itself is never logged.
func RequirePIN(accounts *storage.AccountRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		account := Account(c)
		if account == "" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Not authenticated"})
		}

		pin := c.Get("X-Transaction-PIN")
		if pin == "" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Transaction PIN is required"})
		}

		hash, err := accounts.PinHash(c.Context(), account)
		if err != nil {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Could not verify PIN"})
		}

		if !security.CheckPIN(pin, hash) {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Incorrect transaction PIN"})
		}

		return c.Next()
	}
}
