package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"custodia/internal/core/domain"
	"custodia/internal/core/ledger"
)

// MemoryStore implements ledger.Store without a database so the coordinator
// and handlers can be exercised in unit tests. Row locking is an explicit
// lock manager: one capacity-1 channel per account, acquired in the sorted
// order the coordinator hands in, with the same configurable ceiling the
// Postgres store gets from lock_timeout.
type MemoryStore struct {
	mu          sync.Mutex
	accounts    map[string]*memAccount
	records     []domain.TransactionRecord
	nextID      int64
	lockTimeout time.Duration

	commitErr error // injected failure for rollback tests
}

type memAccount struct {
	balance int64
	lock    chan struct{}
}

func NewMemoryStore(lockTimeout time.Duration) *MemoryStore {
	return &MemoryStore{
		accounts:    make(map[string]*memAccount),
		lockTimeout: lockTimeout,
	}
}

// CreateAccount seeds an account row. Provisioning is an upstream concern in
// production; tests use this directly.
func (s *MemoryStore) CreateAccount(number string, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[number] = &memAccount{
		balance: balance,
		lock:    make(chan struct{}, 1),
	}
}

// FailNextCommit makes the next Commit return err, leaving the unit of work
// rolled back.
func (s *MemoryStore) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErr = err
}

func (s *MemoryStore) Begin(ctx context.Context) (ledger.UnitOfWork, error) {
	return &memUnitOfWork{
		store:    s,
		balances: make(map[string]int64),
	}, nil
}

func (s *MemoryStore) GetBalance(ctx context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	return acc.balance, nil
}

func (s *MemoryStore) ListFor(ctx context.Context, id string, limit int) ([]domain.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TransactionRecord
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		rec := s.records[i]
		if rec.FromAccount == id || rec.ToAccount == id {
			out = append(out, rec)
		}
	}
	return out, nil
}

type memUnitOfWork struct {
	store    *MemoryStore
	locked   []string // acquisition order, released in reverse
	balances map[string]int64
	records  []domain.TransactionRecord
	done     bool
}

// GetForUpdate acquires the per-account locks in the order given (the
// coordinator pre-sorts, which is what makes this deadlock-free) and reads
// the balances only once every lock is held. One timer bounds the whole
// acquisition, mirroring lock_timeout on a Postgres transaction.
func (u *memUnitOfWork) GetForUpdate(ctx context.Context, ids []string) (map[string]int64, error) {
	timer := time.NewTimer(u.store.lockTimeout)
	defer timer.Stop()

	for _, id := range ids {
		u.store.mu.Lock()
		acc, ok := u.store.accounts[id]
		u.store.mu.Unlock()
		if !ok {
			continue // absent rows are reported by omission
		}

		select {
		case acc.lock <- struct{}{}:
			u.locked = append(u.locked, id)
		case <-timer.C:
			u.release()
			return nil, domain.ErrLockTimeout
		case <-ctx.Done():
			u.release()
			return nil, ctx.Err()
		}
	}

	out := make(map[string]int64, len(u.locked))
	for _, id := range u.locked {
		u.store.mu.Lock()
		out[id] = u.store.accounts[id].balance
		u.store.mu.Unlock()
	}
	return out, nil
}

func (u *memUnitOfWork) SetBalance(ctx context.Context, id string, balance int64) error {
	if !u.holds(id) {
		return errors.New("SetBalance on a row that is not locked: " + id)
	}
	u.balances[id] = balance
	return nil
}

func (u *memUnitOfWork) Append(ctx context.Context, rec *domain.TransactionRecord) (int64, error) {
	u.store.mu.Lock()
	u.store.nextID++
	rec.ID = u.store.nextID
	u.store.mu.Unlock()

	rec.CreatedAt = time.Now().UTC()
	u.records = append(u.records, *rec)
	return rec.ID, nil
}

func (u *memUnitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return errors.New("unit of work is already closed")
	}

	u.store.mu.Lock()
	if err := u.store.commitErr; err != nil {
		u.store.commitErr = nil
		u.store.mu.Unlock()
		u.done = true
		u.release()
		return err
	}
	for id, balance := range u.balances {
		u.store.accounts[id].balance = balance
	}
	u.store.records = append(u.store.records, u.records...)
	u.store.mu.Unlock()

	u.done = true
	u.release()
	return nil
}

func (u *memUnitOfWork) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	u.release()
	return nil
}

func (u *memUnitOfWork) holds(id string) bool {
	for _, held := range u.locked {
		if held == id {
			return true
		}
	}
	return false
}

func (u *memUnitOfWork) release() {
	for i := len(u.locked) - 1; i >= 0; i-- {
		u.store.mu.Lock()
		acc := u.store.accounts[u.locked[i]]
		u.store.mu.Unlock()
		<-acc.lock
	}
	u.locked = nil
}
