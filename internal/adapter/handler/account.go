package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"custodia/internal/adapter/storage"
	"custodia/internal/core/security"
)

// AccountHandler covers provisioning and login. Both sit outside the ledger
// core: they never touch balances, only credential and session rows.
type AccountHandler struct {
	Accounts   *storage.AccountRepository
	Sessions   *storage.SessionRepository
	SessionTTL time.Duration
}

type RegisterRequest struct {
	OwnerName string `json:"owner_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	PIN       string `json:"pin"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AccountHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	req.OwnerName = strings.TrimSpace(req.OwnerName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.OwnerName == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Owner name is required"})
	}
	if !strings.Contains(req.Email, "@") {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "A valid email is required"})
	}

	passwordHash, err := security.HashPassword(req.Password)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	pinHash, err := security.HashPIN(req.PIN)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	account, err := h.Accounts.CreateAccount(c.Context(), req.OwnerName, req.Email, passwordHash, pinHash)
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			return c.Status(http.StatusConflict).JSON(fiber.Map{"error": "Email is already registered"})
		}
		slog.Error("failed to create account", "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Could not create account"})
	}

	slog.Info("account created", "account_number", account.Number)
	return c.Status(http.StatusCreated).JSON(account)
}

func (h *AccountHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	number, passwordHash, err := h.Accounts.Credentials(c.Context(), email)
	if err != nil || !security.CheckPassword(req.Password, passwordHash) {
		// Same answer for unknown email and wrong password.
		return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid email or password"})
	}

	rawToken, tokenHash, err := security.GenerateSessionToken()
	if err != nil {
		slog.Error("failed to generate session token", "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Could not create session"})
	}

	if err := h.Sessions.Create(c.Context(), tokenHash, number, h.SessionTTL); err != nil {
		slog.Error("failed to store session", "error", err, "account_number", number)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Could not create session"})
	}

	slog.Info("login", "account_number", number)
	return c.JSON(fiber.Map{
		"token":          rawToken,
		"account_number": number,
	})
}
