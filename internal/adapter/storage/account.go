package storage

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"custodia/internal/core/domain"
)

type AccountRepository struct {
	db *pgxpool.Pool
}

func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

// CreateAccount provisions a new row with a fresh 12-digit account number and
// a zero balance. Credential hashes are produced upstream; this layer never
// sees a plaintext password or PIN. Number collisions are vanishingly rare
// but retried a few times anyway.
func (r *AccountRepository) CreateAccount(ctx context.Context, ownerName, email, passwordHash, pinHash string) (*domain.Account, error) {
	query := `
		INSERT INTO accounts (account_number, owner_name, email, password_hash, pin_hash, balance)
		VALUES ($1, $2, $3, $4, $5, 0)
		RETURNING account_number, owner_name, email, balance, created_at
	`
	for attempt := 0; attempt < 3; attempt++ {
		number, err := newAccountNumber()
		if err != nil {
			return nil, err
		}

		var acc domain.Account
		err = r.db.QueryRow(ctx, query, number, ownerName, email, passwordHash, pinHash).Scan(
			&acc.Number, &acc.OwnerName, &acc.Email, &acc.Balance, &acc.CreatedAt,
		)
		if err == nil {
			return &acc, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == "accounts_pkey" {
				continue // number collision, draw again
			}
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return nil, fmt.Errorf("could not allocate a unique account number")
}

// GetByNumber returns the account row without credential hashes.
func (r *AccountRepository) GetByNumber(ctx context.Context, number string) (*domain.Account, error) {
	query := `SELECT account_number, owner_name, email, balance, created_at FROM accounts WHERE account_number = $1`
	var acc domain.Account
	err := r.db.QueryRow(ctx, query, number).Scan(
		&acc.Number, &acc.OwnerName, &acc.Email, &acc.Balance, &acc.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// GetBalance reads a committed balance outside any unit of work.
func (r *AccountRepository) GetBalance(ctx context.Context, number string) (int64, error) {
	var balance int64
	err := r.db.QueryRow(ctx, `SELECT balance FROM accounts WHERE account_number = $1`, number).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrAccountNotFound
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// Credentials resolves a login email to the account number and password hash.
func (r *AccountRepository) Credentials(ctx context.Context, email string) (number, passwordHash string, err error) {
	err = r.db.QueryRow(ctx,
		`SELECT account_number, password_hash FROM accounts WHERE email = $1`, email,
	).Scan(&number, &passwordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", domain.ErrAccountNotFound
	}
	if err != nil {
		return "", "", err
	}
	return number, passwordHash, nil
}

// PinHash returns the stored transaction-PIN hash for the account.
func (r *AccountRepository) PinHash(ctx context.Context, number string) (string, error) {
	var hash string
	err := r.db.QueryRow(ctx, `SELECT pin_hash FROM accounts WHERE account_number = $1`, number).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrAccountNotFound
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}

// getForUpdate locks the requested rows inside the given transaction. The
// ids arrive pre-sorted from the coordinator and the ORDER BY keeps the
// row-lock acquisition order identical for every concurrent unit of work.
// Unknown account numbers are simply absent from the result.
func (r *AccountRepository) getForUpdate(ctx context.Context, tx pgx.Tx, ids []string) (map[string]int64, error) {
	rows, err := tx.Query(ctx, `
		SELECT account_number, balance FROM accounts
		WHERE account_number = ANY($1)
		ORDER BY account_number
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	balances := make(map[string]int64, len(ids))
	for rows.Next() {
		var number string
		var balance int64
		if err := rows.Scan(&number, &balance); err != nil {
			return nil, err
		}
		balances[number] = balance
	}
	return balances, rows.Err()
}

func (r *AccountRepository) setBalance(ctx context.Context, tx pgx.Tx, number string, balance int64) error {
	tag, err := tx.Exec(ctx, `UPDATE accounts SET balance = $1 WHERE account_number = $2`, balance, number)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// ErrEmailTaken is returned by CreateAccount when the email is already
// registered. It lives here rather than in domain because uniqueness is a
// provisioning concern, not a ledger one.
var ErrEmailTaken = errors.New("email is already registered")

// newAccountNumber draws 12 random digits. The leading digit is forced
// non-zero so the number never renders shorter than 12 characters.
func newAccountNumber() (string, error) {
	digits := make([]byte, 12)
	for i := range digits {
		max := int64(10)
		if i == 0 {
			max = 9
		}
		n, err := rand.Int(rand.Reader, big.NewInt(max))
		if err != nil {
			return "", fmt.Errorf("failed to generate account number: %w", err)
		}
		d := byte(n.Int64())
		if i == 0 {
			d++
		}
		digits[i] = '0' + d
	}
	return string(digits), nil
}
