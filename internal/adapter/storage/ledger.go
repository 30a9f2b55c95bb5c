package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"custodia/internal/core/domain"
)

type LedgerRepository struct {
	db *pgxpool.Pool
}

func NewLedgerRepository(db *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// append writes one record inside the given transaction. The sequence id
// comes from the BIGSERIAL, so it is monotonic and never reused even when a
// unit of work later rolls back (gaps are fine, reuse is not).
func (r *LedgerRepository) append(ctx context.Context, tx pgx.Tx, rec *domain.TransactionRecord) (int64, error) {
	var from *string
	if rec.FromAccount != "" {
		from = &rec.FromAccount
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO transactions (from_account, to_account, amount, kind, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, from, rec.ToAccount, rec.Amount, string(rec.Kind), rec.Description).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return 0, err
	}
	return rec.ID, nil
}

// ListFor fetches the account's movements, newest first, matching either
// side of the record.
func (r *LedgerRepository) ListFor(ctx context.Context, account string, limit int) ([]domain.TransactionRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, from_account, to_account, amount, kind, description, created_at
		FROM transactions
		WHERE from_account = $1 OR to_account = $1
		ORDER BY id DESC
		LIMIT $2
	`, account, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.TransactionRecord
	for rows.Next() {
		var rec domain.TransactionRecord
		var from *string
		var kind string
		if err := rows.Scan(&rec.ID, &from, &rec.ToAccount, &rec.Amount, &kind, &rec.Description, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if from != nil {
			rec.FromAccount = *from
		}
		rec.Kind = domain.Kind(kind)
		records = append(records, rec)
	}
	return records, rows.Err()
}
