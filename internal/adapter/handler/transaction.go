package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"custodia/internal/adapter/middleware"
	"custodia/internal/core/domain"
	"custodia/internal/core/ledger"
)

// TransactionHandler exposes the three money movements plus the two read
// operations. The initiating account always comes from the session, never
// from the request body, so a caller can only ever move their own funds.
type TransactionHandler struct {
	Svc *ledger.Service
}

type MovementRequest struct {
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

type TransferRequest struct {
	ToAccount   string `json:"to_account"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

func (h *TransactionHandler) Deposit(c *fiber.Ctx) error {
	var req MovementRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	res, err := h.Svc.Deposit(c.Context(), middleware.Account(c), req.Amount, req.Description)
	if err != nil {
		return movementError(c, err)
	}
	return movementResponse(c, res)
}

func (h *TransactionHandler) Withdraw(c *fiber.Ctx) error {
	var req MovementRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	res, err := h.Svc.Withdraw(c.Context(), middleware.Account(c), req.Amount, req.Description)
	if err != nil {
		return movementError(c, err)
	}
	return movementResponse(c, res)
}

func (h *TransactionHandler) Transfer(c *fiber.Ctx) error {
	var req TransferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	res, err := h.Svc.Transfer(c.Context(), middleware.Account(c), req.ToAccount, req.Amount, req.Description)
	if err != nil {
		return movementError(c, err)
	}
	return movementResponse(c, res)
}

func (h *TransactionHandler) Balance(c *fiber.Ctx) error {
	balance, err := h.Svc.GetBalance(c.Context(), middleware.Account(c))
	if err != nil {
		return movementError(c, err)
	}
	return c.JSON(fiber.Map{
		"account_number": middleware.Account(c),
		"balance":        domain.FormatAmount(balance),
		"currency":       domain.Currency,
	})
}

func (h *TransactionHandler) History(c *fiber.Ctx) error {
	limit := c.QueryInt("limit")
	records, err := h.Svc.History(c.Context(), middleware.Account(c), limit)
	if err != nil {
		slog.Error("failed to fetch history", "error", err, "account_number", middleware.Account(c))
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Could not fetch history"})
	}
	if records == nil {
		records = []domain.TransactionRecord{}
	}
	return c.JSON(fiber.Map{"transactions": records})
}

func movementResponse(c *fiber.Ctx, res *ledger.Result) error {
	return c.JSON(fiber.Map{
		"status":         "success",
		"transaction_id": res.Record.ID,
		"kind":           res.Record.Kind,
		"balance":        domain.FormatAmount(res.Balance),
		"currency":       domain.Currency,
	})
}

// movementError maps the coordinator's error taxonomy onto HTTP statuses.
// Lock timeouts and commit failures are retryable, so they answer 503 with a
// hint instead of pretending the request was bad.
func movementError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrSelfTransfer):
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, domain.ErrAccountNotFound), errors.Is(err, domain.ErrRecipientNotFound):
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, domain.ErrInsufficientFunds):
		return c.Status(http.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, domain.ErrLockTimeout), errors.Is(err, domain.ErrCommitFailure):
		c.Set("Retry-After", "1")
		return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error(), "retryable": true})
	default:
		slog.Error("movement failed", "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Internal error"})
	}
}
