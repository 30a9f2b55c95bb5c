package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"custodia/internal/adapter/handler"
	"custodia/internal/adapter/middleware"
	"custodia/internal/adapter/storage"
	"custodia/internal/core/config"
	"custodia/internal/core/ledger"
	"custodia/internal/core/worker"
)

func main() {
	cfg := config.LoadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := storage.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}

	if err := storage.InitSchema(ctx, dbPool); err != nil {
		slog.Error("schema init failed", "error", err)
		os.Exit(1)
	}

	// The pool is the only shared handle; everything below receives it
	// explicitly, nothing reaches for globals.
	accountRepo := storage.NewAccountRepository(dbPool)
	ledgerRepo := storage.NewLedgerRepository(dbPool)
	sessionRepo := storage.NewSessionRepository(dbPool)

	store := storage.NewPostgresStore(dbPool, accountRepo, ledgerRepo, cfg.LockTimeout, cfg.WebhookURL)
	svc := ledger.NewService(store)

	accountHandler := &handler.AccountHandler{
		Accounts:   accountRepo,
		Sessions:   sessionRepo,
		SessionTTL: cfg.SessionTTL,
	}
	transactionHandler := &handler.TransactionHandler{Svc: svc}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(cors.New())
	app.Static("/", "./public")

	api := app.Group("/v1")

	// Public
	api.Post("/accounts", accountHandler.Register)
	api.Post("/login", accountHandler.Login)

	// Protected: session resolves the acting account; movements additionally
	// require the transaction PIN and honor idempotency keys.
	private := api.Use(middleware.Protected(sessionRepo))
	private.Get("/balance", transactionHandler.Balance)
	private.Get("/transactions", transactionHandler.History)
	private.Post("/deposit", middleware.RequirePIN(accountRepo), middleware.Idempotency(dbPool), transactionHandler.Deposit)
	private.Post("/withdraw", middleware.RequirePIN(accountRepo), middleware.Idempotency(dbPool), transactionHandler.Withdraw)
	private.Post("/transfer", middleware.RequirePIN(accountRepo), middleware.Idempotency(dbPool), transactionHandler.Transfer)

	if cfg.WebhookURL != "" {
		worker.StartWebhookWorker(ctx, dbPool, cfg.WebhookSecret)
	}
	worker.StartSessionJanitor(ctx, sessionRepo, time.Hour)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "env", cfg.Env, "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server stopped", "error", err)
		}
	}()

	<-stop
	slog.Info("shutting down")

	cancel() // stops the webhook worker

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	dbPool.Close()
	slog.Info("server exited")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
