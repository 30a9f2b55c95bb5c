package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"custodia/internal/core/domain"
)

// Operation describes one requested money movement. From is empty for
// deposits, To is empty for withdrawals; transfers carry both.
type Operation struct {
	Kind        domain.Kind
	From        string
	To          string
	AmountMinor int64
	Description string
}

// Result is what a committed movement hands back to the caller: the
// post-operation balance of the initiating account and the ledger record
// that was appended for it.
type Result struct {
	Balance int64
	Record  domain.TransactionRecord
}

// Coordinator is the sole path by which balances change. Every movement runs
// as one unit of work: lock the involved rows in sorted order, re-read the
// balances, validate, mutate, append the ledger record, commit. Any failure
// after lock acquisition rolls the whole unit of work back, so no partial
// balance or ledger state is ever observable.
type Coordinator struct {
	store Store
}

func NewCoordinator(store Store) *Coordinator {
	return &Coordinator{store: store}
}

// Execute runs one money movement atomically.
func (c *Coordinator) Execute(ctx context.Context, op Operation) (*Result, error) {
	if op.AmountMinor <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	initiating, lockSet, err := participants(op)
	if err != nil {
		return nil, err
	}

	uow, err := c.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	// Rollback must run even when the caller's context is already gone,
	// otherwise row locks leak. It is a no-op after a successful commit.
	defer uow.Rollback(context.WithoutCancel(ctx))

	balances, err := uow.GetForUpdate(ctx, lockSet)
	if err != nil {
		return nil, err
	}

	balance, ok := balances[initiating]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	rec := domain.TransactionRecord{
		Kind:        op.Kind,
		Amount:      op.AmountMinor,
		Description: op.Description,
	}

	switch op.Kind {
	case domain.KindDeposit:
		balance += op.AmountMinor
		rec.ToAccount = op.To

	case domain.KindWithdraw:
		if balance < op.AmountMinor {
			return nil, domain.ErrInsufficientFunds
		}
		balance -= op.AmountMinor
		rec.FromAccount = op.From
		rec.ToAccount = op.From

	case domain.KindTransfer:
		toBalance, ok := balances[op.To]
		if !ok {
			return nil, domain.ErrRecipientNotFound
		}
		if balance < op.AmountMinor {
			return nil, domain.ErrInsufficientFunds
		}
		balance -= op.AmountMinor
		rec.FromAccount = op.From
		rec.ToAccount = op.To
		if err := uow.SetBalance(ctx, op.To, toBalance+op.AmountMinor); err != nil {
			return nil, err
		}
	}

	if err := uow.SetBalance(ctx, initiating, balance); err != nil {
		return nil, err
	}

	if _, err := uow.Append(ctx, &rec); err != nil {
		return nil, err
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCommitFailure, err)
	}

	return &Result{Balance: balance, Record: rec}, nil
}

// participants resolves the initiating account and the sorted distinct set
// of rows to lock. Sorting happens here, before any lock is taken: two
// opposite-direction transfers over the same pair of accounts always acquire
// in the same order, which is what rules out the classic transfer deadlock.
func participants(op Operation) (string, []string, error) {
	switch op.Kind {
	case domain.KindDeposit:
		return op.To, []string{op.To}, nil
	case domain.KindWithdraw:
		return op.From, []string{op.From}, nil
	case domain.KindTransfer:
		if op.From == op.To {
			return "", nil, domain.ErrSelfTransfer
		}
		set := []string{op.From, op.To}
		sort.Strings(set)
		return op.From, set, nil
	default:
		return "", nil, errors.New("unknown movement kind: " + string(op.Kind))
	}
}
