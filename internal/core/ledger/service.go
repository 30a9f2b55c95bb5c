package ledger

import (
	"context"
	"log/slog"

	"custodia/internal/core/domain"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

// Service is the money-movement API: Deposit, Withdraw and Transfer, plus
// the two read operations the presentation layer needs. Amounts arrive as
// decimal strings exactly as the caller typed them ("25.00") and are parsed
// and scale-checked before anything is locked. Credential checks (session,
// transaction PIN) happen upstream in middleware; by the time a Service
// method runs, the account number is trusted.
type Service struct {
	coord *Coordinator
	store Store
}

func NewService(store Store) *Service {
	return &Service{coord: NewCoordinator(store), store: store}
}

// Deposit credits the account and appends a Deposit record.
func (s *Service) Deposit(ctx context.Context, account, amount, description string) (*Result, error) {
	minor, err := domain.ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	if description == "" {
		description = "Deposit"
	}
	res, err := s.coord.Execute(ctx, Operation{
		Kind:        domain.KindDeposit,
		To:          account,
		AmountMinor: minor,
		Description: description,
	})
	if err != nil {
		return nil, err
	}
	s.logMovement(res)
	return res, nil
}

// Withdraw debits the account if funds cover it and appends a Withdraw record.
func (s *Service) Withdraw(ctx context.Context, account, amount, description string) (*Result, error) {
	minor, err := domain.ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	if description == "" {
		description = "Withdrawal"
	}
	res, err := s.coord.Execute(ctx, Operation{
		Kind:        domain.KindWithdraw,
		From:        account,
		AmountMinor: minor,
		Description: description,
	})
	if err != nil {
		return nil, err
	}
	s.logMovement(res)
	return res, nil
}

// Transfer moves funds between two distinct accounts in one atomic unit of
// work: debit, credit and the single Transfer record commit together or not
// at all.
func (s *Service) Transfer(ctx context.Context, from, to, amount, description string) (*Result, error) {
	if to == "" {
		return nil, domain.ErrRecipientNotFound
	}
	minor, err := domain.ParseAmount(amount)
	if err != nil {
		return nil, err
	}
	if description == "" {
		description = "Transfer"
	}
	res, err := s.coord.Execute(ctx, Operation{
		Kind:        domain.KindTransfer,
		From:        from,
		To:          to,
		AmountMinor: minor,
		Description: description,
	})
	if err != nil {
		return nil, err
	}
	s.logMovement(res)
	return res, nil
}

// GetBalance reads the committed balance of an account.
func (s *Service) GetBalance(ctx context.Context, account string) (int64, error) {
	return s.store.GetBalance(ctx, account)
}

// History returns the account's committed movements, newest first.
func (s *Service) History(ctx context.Context, account string, limit int) ([]domain.TransactionRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.store.ListFor(ctx, account, limit)
}

func (s *Service) logMovement(res *Result) {
	slog.Info("movement committed",
		"kind", res.Record.Kind,
		"transaction_id", res.Record.ID,
		"from", res.Record.FromAccount,
		"to", res.Record.ToAccount,
		"amount", domain.FormatAmount(res.Record.Amount),
	)
}
