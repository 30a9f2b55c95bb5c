package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"custodia/internal/core/domain"
	"custodia/internal/core/ledger"
)

// lockNotAvailable is the SQLSTATE Postgres raises when lock_timeout fires.
const lockNotAvailable = "55P03"

// PostgresStore implements ledger.Store on top of the accounts and
// transactions tables, leaning on native row locking (FOR UPDATE) for the
// per-account exclusivity the coordinator relies on. The lock timeout ceiling
// is applied per transaction with SET LOCAL so it rolls back with everything
// else.
type PostgresStore struct {
	pool        *pgxpool.Pool
	accounts    *AccountRepository
	ledger      *LedgerRepository
	lockTimeout time.Duration

	// webhookURL, when set, makes every Append also stage an outbox job in
	// the same transaction. The worker delivers them after commit.
	webhookURL string
}

func NewPostgresStore(pool *pgxpool.Pool, accounts *AccountRepository, ledgerRepo *LedgerRepository, lockTimeout time.Duration, webhookURL string) *PostgresStore {
	return &PostgresStore{
		pool:        pool,
		accounts:    accounts,
		ledger:      ledgerRepo,
		lockTimeout: lockTimeout,
		webhookURL:  webhookURL,
	}
}

func (s *PostgresStore) Begin(ctx context.Context) (ledger.UnitOfWork, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin unit of work: %w", err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("set lock timeout: %w", err)
	}
	return &pgUnitOfWork{store: s, tx: tx}, nil
}

func (s *PostgresStore) GetBalance(ctx context.Context, id string) (int64, error) {
	return s.accounts.GetBalance(ctx, id)
}

func (s *PostgresStore) ListFor(ctx context.Context, id string, limit int) ([]domain.TransactionRecord, error) {
	return s.ledger.ListFor(ctx, id, limit)
}

type pgUnitOfWork struct {
	store *PostgresStore
	tx    pgx.Tx
}

func (u *pgUnitOfWork) GetForUpdate(ctx context.Context, ids []string) (map[string]int64, error) {
	balances, err := u.store.accounts.getForUpdate(ctx, u.tx, ids)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == lockNotAvailable {
			return nil, domain.ErrLockTimeout
		}
		return nil, fmt.Errorf("lock accounts: %w", err)
	}
	return balances, nil
}

func (u *pgUnitOfWork) SetBalance(ctx context.Context, id string, balance int64) error {
	return u.store.accounts.setBalance(ctx, u.tx, id, balance)
}

func (u *pgUnitOfWork) Append(ctx context.Context, rec *domain.TransactionRecord) (int64, error) {
	id, err := u.store.ledger.append(ctx, u.tx, rec)
	if err != nil {
		return 0, fmt.Errorf("append record: %w", err)
	}
	if u.store.webhookURL != "" {
		if err := u.enqueueWebhook(ctx, rec); err != nil {
			return 0, fmt.Errorf("enqueue webhook job: %w", err)
		}
	}
	return id, nil
}

// enqueueWebhook stages a delivery job in the same transaction as the ledger
// record, so a rolled-back movement never produces a notification.
func (u *pgUnitOfWork) enqueueWebhook(ctx context.Context, rec *domain.TransactionRecord) error {
	payload := map[string]any{
		"event":          "transaction.completed",
		"transaction_id": rec.ID,
		"kind":           rec.Kind,
		"from_account":   rec.FromAccount,
		"to_account":     rec.ToAccount,
		"amount":         domain.FormatAmount(rec.Amount),
		"currency":       domain.Currency,
		"description":    rec.Description,
	}
	_, err := u.tx.Exec(ctx, `
		INSERT INTO webhook_jobs (id, url, payload) VALUES ($1, $2, $3)
	`, uuid.New(), u.store.webhookURL, payload)
	return err
}

func (u *pgUnitOfWork) Commit(ctx context.Context) error {
	return u.tx.Commit(ctx)
}

func (u *pgUnitOfWork) Rollback(ctx context.Context) error {
	err := u.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}
