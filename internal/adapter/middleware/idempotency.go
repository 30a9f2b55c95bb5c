package middleware

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Idempotency replays the cached response for a repeated Idempotency-Key, so
// a retried deposit or transfer is applied at most once. Keys must be UUIDs;
// requests without one pass straight through.
func Idempotency(db *pgxpool.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get("Idempotency-Key")
		if key == "" {
			return c.Next()
		}

		keyID, err := uuid.Parse(key)
		if err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Idempotency-Key must be a UUID"})
		}

		var status int
		var body []byte
		err = db.QueryRow(c.Context(),
			"SELECT response_status, response_body FROM idempotency_keys WHERE key_id = $1",
			keyID).Scan(&status, &body)
		if err == nil {
			slog.Info("idempotency hit, returning cached response", "key", keyID)
			c.Set("X-Idempotency-Hit", "true")
			c.Set("Content-Type", "application/json")
			return c.Status(status).Send(body)
		}

		if err := c.Next(); err != nil {
			return err
		}

		resStatus := c.Response().StatusCode()
		resBody := c.Response().Body()

		_, insertErr := db.Exec(c.Context(),
			"INSERT INTO idempotency_keys (key_id, response_status, response_body) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING",
			keyID, resStatus, resBody)
		if insertErr != nil {
			slog.Error("failed to save idempotency key", "error", insertErr, "key", keyID)
		}

		return nil
	}
}
