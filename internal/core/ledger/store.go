package ledger

import (
	"context"

	"custodia/internal/core/domain"
)

// UnitOfWork is one atomic group of balance reads/writes and ledger appends.
// It is scoped to a single coordinator call: opened, used, and then committed
// or rolled back, never held across caller think-time.
type UnitOfWork interface {
	// GetForUpdate locks the given account rows and returns their current
	// balances. The ids must be passed pre-sorted and all in one call; that
	// global ordering is the deadlock-avoidance mechanism, so acquiring rows
	// one at a time through separate calls is not allowed. Unknown ids are
	// simply absent from the returned map.
	GetForUpdate(ctx context.Context, ids []string) (map[string]int64, error)

	// SetBalance stages a new balance for a row locked by GetForUpdate.
	SetBalance(ctx context.Context, id string, balance int64) error

	// Append stages exactly one transaction record. The assigned sequence id
	// is monotonically increasing and never reused; the record only becomes
	// visible if the unit of work commits.
	Append(ctx context.Context, rec *domain.TransactionRecord) (int64, error)

	// Commit makes every staged mutation durable and releases all row locks.
	Commit(ctx context.Context) error

	// Rollback discards staged mutations and releases all row locks. It is a
	// no-op after Commit, so it is safe to defer unconditionally.
	Rollback(ctx context.Context) error
}

// Store is the persistence boundary of the ledger core. The Postgres
// implementation lives in internal/adapter/storage; an in-memory one backs
// the tests.
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)

	// GetBalance reads a committed balance outside any unit of work.
	GetBalance(ctx context.Context, id string) (int64, error)

	// ListFor returns committed records touching the account (as sender or
	// receiver), newest first.
	ListFor(ctx context.Context, id string, limit int) ([]domain.TransactionRecord, error)
}
