package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custodia/internal/adapter/storage"
	"custodia/internal/core/domain"
	"custodia/internal/core/ledger"
)

const (
	acctX = "100000000001"
	acctY = "100000000002"
)

func newTestService(t *testing.T) (*ledger.Service, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore(2 * time.Second)
	return ledger.NewService(store), store
}

func TestDeposit(t *testing.T) {
	svc, store := newTestService(t)
	store.CreateAccount(acctX, 10_000)

	res, err := svc.Deposit(context.Background(), acctX, "50.00", "payday")
	require.NoError(t, err)
	assert.Equal(t, int64(15_000), res.Balance)

	balance, err := svc.GetBalance(context.Background(), acctX)
	require.NoError(t, err)
	assert.Equal(t, int64(15_000), balance)

	records, err := svc.History(context.Background(), acctX, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.KindDeposit, records[0].Kind)
	assert.Equal(t, acctX, records[0].ToAccount)
	assert.Empty(t, records[0].FromAccount)
	assert.Equal(t, int64(5_000), records[0].Amount)
	assert.Equal(t, "payday", records[0].Description)
}

func TestWithdraw(t *testing.T) {
	svc, store := newTestService(t)
	store.CreateAccount(acctX, 10_000)

	res, err := svc.Withdraw(context.Background(), acctX, "40.00", "")
	require.NoError(t, err)
	assert.Equal(t, int64(6_000), res.Balance)

	records, err := svc.History(context.Background(), acctX, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.KindWithdraw, records[0].Kind)
	assert.Equal(t, acctX, records[0].FromAccount)
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	svc, store := newTestService(t)
	store.CreateAccount(acctX, 10_000)

	_, err := svc.Withdraw(context.Background(), acctX, "100.01", "")
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// Balance untouched, nothing appended.
	balance, err := svc.GetBalance(context.Background(), acctX)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), balance)

	records, err := svc.History(context.Background(), acctX, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestTransfer(t *testing.T) {
	svc, store := newTestService(t)
	store.CreateAccount(acctX, 10_000)
	store.CreateAccount(acctY, 2_500)

	res, err := svc.Transfer(context.Background(), acctX, acctY, "75.00", "rent")
	require.NoError(t, err)
	assert.Equal(t, int64(2_500), res.Balance)

	balX, _ := svc.GetBalance(context.Background(), acctX)
	balY, _ := svc.GetBalance(context.Background(), acctY)
	assert.Equal(t, int64(2_500), balX)
	assert.Equal(t, int64(10_000), balY)
	assert.Equal(t, int64(12_500), balX+balY, "transfer must conserve the total")

	// Exactly one record, visible from both sides.
	recsX, err := svc.History(context.Background(), acctX, 10)
	require.NoError(t, err)
	require.Len(t, recsX, 1)
	recsY, err := svc.History(context.Background(), acctY, 10)
	require.NoError(t, err)
	require.Len(t, recsY, 1)
	assert.Equal(t, recsX[0].ID, recsY[0].ID)
	assert.Equal(t, domain.KindTransfer, recsX[0].Kind)
	assert.Equal(t, acctX, recsX[0].FromAccount)
	assert.Equal(t, acctY, recsX[0].ToAccount)
}

func TestTransferToSelf(t *testing.T) {
	svc, store := newTestService(t)
	store.CreateAccount(acctX, 10_000)

	_, err := svc.Transfer(context.Background(), acctX, acctX, "10.00", "")
	require.ErrorIs(t, err, domain.ErrSelfTransfer)

	balance, _ := svc.GetBalance(context.Background(), acctX)
	assert.Equal(t, int64(10_000), balance)
}

func TestTransferToUnknownRecipient(t *testing.T) {
	svc, store := newTestService(t)
	store.CreateAccount(acctX, 10_000)

	_, err := svc.Transfer(context.Background(), acctX, "999999999999", "10.00", "")
	require.ErrorIs(t, err, domain.ErrRecipientNotFound)

	balance, _ := svc.GetBalance(context.Background(), acctX)
	assert.Equal(t, int64(10_000), balance)

	records, _ := svc.History(context.Background(), acctX, 10)
	assert.Empty(t, records)
}

func TestMovementOnUnknownAccount(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Withdraw(context.Background(), "999999999999", "10.00", "")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = svc.Deposit(context.Background(), "999999999999", "10.00", "")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestInvalidAmounts(t *testing.T) {
	svc, store := newTestService(t)
	store.CreateAccount(acctX, 10_000)

	for _, amount := range []string{"", "0", "-5.00", "0.001", "1.005", "abc", "1e100000"} {
		_, err := svc.Deposit(context.Background(), acctX, amount, "")
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, "amount %q", amount)
	}

	balance, _ := svc.GetBalance(context.Background(), acctX)
	assert.Equal(t, int64(10_000), balance)
}

func TestCommitFailureRollsBack(t *testing.T) {
	svc, store := newTestService(t)
	store.CreateAccount(acctX, 10_000)

	store.FailNextCommit(errors.New("disk on fire"))

	_, err := svc.Deposit(context.Background(), acctX, "50.00", "")
	require.ErrorIs(t, err, domain.ErrCommitFailure)

	balance, _ := svc.GetBalance(context.Background(), acctX)
	assert.Equal(t, int64(10_000), balance)
	records, _ := svc.History(context.Background(), acctX, 10)
	assert.Empty(t, records)

	// The store is usable again afterwards: locks were released.
	_, err = svc.Deposit(context.Background(), acctX, "50.00", "")
	require.NoError(t, err)
}

func TestLockTimeout(t *testing.T) {
	store := storage.NewMemoryStore(50 * time.Millisecond)
	svc := ledger.NewService(store)
	store.CreateAccount(acctX, 10_000)

	// Hold the row lock from a competing unit of work.
	uow, err := store.Begin(context.Background())
	require.NoError(t, err)
	_, err = uow.GetForUpdate(context.Background(), []string{acctX})
	require.NoError(t, err)

	_, err = svc.Withdraw(context.Background(), acctX, "10.00", "")
	require.ErrorIs(t, err, domain.ErrLockTimeout)

	// Releasing the lock makes the operation succeed.
	require.NoError(t, uow.Rollback(context.Background()))
	_, err = svc.Withdraw(context.Background(), acctX, "10.00", "")
	require.NoError(t, err)
}

// Full walk-through: deposit, failed withdraw, then a transfer of the whole
// balance, checking the ledger after each step.
func TestMovementSequence(t *testing.T) {
	svc, store := newTestService(t)
	store.CreateAccount(acctX, 10_000)
	store.CreateAccount(acctY, 0)

	res, err := svc.Deposit(context.Background(), acctX, "50.00", "")
	require.NoError(t, err)
	assert.Equal(t, int64(15_000), res.Balance)

	_, err = svc.Withdraw(context.Background(), acctX, "200.00", "")
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	records, _ := svc.History(context.Background(), acctX, 10)
	assert.Len(t, records, 1)

	res, err = svc.Transfer(context.Background(), acctX, acctY, "150.00", "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Balance)

	balY, _ := svc.GetBalance(context.Background(), acctY)
	assert.Equal(t, int64(15_000), balY)
	records, _ = svc.History(context.Background(), acctX, 10)
	assert.Len(t, records, 2)
}

func TestConcurrentWithdrawals(t *testing.T) {
	svc, store := newTestService(t)
	store.CreateAccount(acctX, 10_000) // 100.00

	const workers = 20 // each tries to take 30.00; only 3 can succeed

	var wg sync.WaitGroup
	var mu sync.Mutex
	var succeeded, insufficient int

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Withdraw(context.Background(), acctX, "30.00", "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrInsufficientFunds):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, workers-3, insufficient)

	balance, err := svc.GetBalance(context.Background(), acctX)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000), balance, "100.00 - 3*30.00 = 10.00, never negative")

	records, err := svc.History(context.Background(), acctX, 100)
	require.NoError(t, err)
	assert.Len(t, records, 3, "exactly one record per successful withdrawal")
}

// Opposite-direction transfers over the same pair must serialize without
// deadlocking and conserve the combined balance.
func TestConcurrentOppositeTransfers(t *testing.T) {
	svc, store := newTestService(t)
	store.CreateAccount(acctX, 100_000)
	store.CreateAccount(acctY, 100_000)

	const rounds = 50

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, err := svc.Transfer(context.Background(), acctX, acctY, "1.00", "")
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, err := svc.Transfer(context.Background(), acctY, acctX, "1.00", "")
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	balX, _ := svc.GetBalance(context.Background(), acctX)
	balY, _ := svc.GetBalance(context.Background(), acctY)
	assert.Equal(t, int64(200_000), balX+balY)
	assert.GreaterOrEqual(t, balX, int64(0))
	assert.GreaterOrEqual(t, balY, int64(0))
}

// Disjoint account pairs proceed independently; nothing observable leaks
// between them.
func TestConcurrentDisjointTransfers(t *testing.T) {
	svc, store := newTestService(t)
	accounts := []string{"200000000001", "200000000002", "200000000003", "200000000004"}
	for _, a := range accounts {
		store.CreateAccount(a, 50_000)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 25; i++ {
			_, err := svc.Transfer(context.Background(), accounts[0], accounts[1], "2.00", "")
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 25; i++ {
			_, err := svc.Transfer(context.Background(), accounts[2], accounts[3], "2.00", "")
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	var total int64
	for _, a := range accounts {
		b, err := svc.GetBalance(context.Background(), a)
		require.NoError(t, err)
		total += b
	}
	assert.Equal(t, int64(200_000), total)

	b0, _ := svc.GetBalance(context.Background(), accounts[0])
	b1, _ := svc.GetBalance(context.Background(), accounts[1])
	assert.Equal(t, int64(45_000), b0, "25 transfers of 2.00 left the pair")
	assert.Equal(t, int64(55_000), b1)
}

func TestHistoryNewestFirstAndLimited(t *testing.T) {
	svc, store := newTestService(t)
	store.CreateAccount(acctX, 0)

	for i := 0; i < 5; i++ {
		_, err := svc.Deposit(context.Background(), acctX, "1.00", "")
		require.NoError(t, err)
	}

	records, err := svc.History(context.Background(), acctX, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Greater(t, records[0].ID, records[1].ID)
	assert.Greater(t, records[1].ID, records[2].ID)
}
