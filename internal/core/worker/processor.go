package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"custodia/internal/core/notifications"
)

const (
	pollInterval = 5 * time.Second
	maxAttempts  = 5
)

// StartWebhookWorker drains the webhook_jobs outbox in the background until
// the context is cancelled. Jobs are claimed with FOR UPDATE SKIP LOCKED, so
// several instances can run side by side without double delivery.
func StartWebhookWorker(ctx context.Context, db *pgxpool.Pool, secret string) {
	go func() {
		slog.Info("webhook worker started")
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Info("webhook worker stopped")
				return
			case <-ticker.C:
				for processJob(ctx, db, secret) {
				}
			}
		}
	}()
}

// processJob claims and delivers one pending job. It reports whether it did
// any work, so the caller can keep draining a backlog without waiting for
// the next tick.
func processJob(ctx context.Context, db *pgxpool.Pool, secret string) bool {
	tx, err := db.Begin(ctx)
	if err != nil {
		return false
	}
	defer tx.Rollback(ctx)

	var id string
	var url string
	var payload []byte
	var attempts int
	err = tx.QueryRow(ctx, `
		SELECT id, url, payload, attempts
		FROM webhook_jobs
		WHERE status = 'PENDING' AND next_run_at <= NOW()
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`).Scan(&id, &url, &payload, &attempts)
	if err != nil {
		return false // nothing pending
	}

	sendErr := notifications.SendWebhook(url, rawJSON(payload), secret)
	if sendErr != nil {
		attempts++
		slog.Error("webhook delivery failed", "error", sendErr, "job_id", id, "attempts", attempts)
		if attempts >= maxAttempts {
			_, err = tx.Exec(ctx, `UPDATE webhook_jobs SET status = 'FAILED', attempts = $2 WHERE id = $1`, id, attempts)
			slog.Error("webhook job abandoned after max attempts", "job_id", id)
		} else {
			nextRun := time.Now().Add(time.Duration(attempts*10) * time.Second)
			_, err = tx.Exec(ctx, `
				UPDATE webhook_jobs SET attempts = $2, next_run_at = $3 WHERE id = $1
			`, id, attempts, nextRun)
		}
	} else {
		slog.Info("webhook delivered", "job_id", id)
		_, err = tx.Exec(ctx, `UPDATE webhook_jobs SET status = 'COMPLETED' WHERE id = $1`, id)
	}
	if err != nil {
		slog.Error("failed to update webhook job", "error", err, "job_id", id)
		return false
	}

	if err := tx.Commit(ctx); err != nil {
		slog.Error("failed to commit webhook job update", "error", err, "job_id", id)
		return false
	}
	return true
}

// rawJSON passes the stored JSONB payload through untouched, so the signed
// body is exactly what was committed with the movement.
type rawJSON []byte

func (r rawJSON) MarshalJSON() ([]byte, error) { return r, nil }
