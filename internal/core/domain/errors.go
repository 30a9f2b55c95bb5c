package domain

import "errors"

// Domain errors returned by the coordinator and the stores. Every one of
// them is scoped to a single unit of work; none is fatal to the process.
// Handlers map these to HTTP statuses, the core never does.
var (
	// ErrInvalidAmount: amount is zero, negative, or carries more precision
	// than the currency's minor unit (fractional cents).
	ErrInvalidAmount = errors.New("amount must be a positive value in whole cents")

	// ErrAccountNotFound: the initiating account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrSelfTransfer: transfer where from and to are the same account.
	ErrSelfTransfer = errors.New("cannot transfer to the same account")

	// ErrRecipientNotFound: transfer destination does not exist.
	ErrRecipientNotFound = errors.New("recipient account not found")

	// ErrInsufficientFunds: withdraw or transfer exceeds the locked balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrLockTimeout: row locks were not acquired within the configured
	// ceiling. Safe to retry.
	ErrLockTimeout = errors.New("timed out waiting for account locks")

	// ErrCommitFailure: the durable write failed after validation passed.
	// The unit of work was rolled back; safe to retry.
	ErrCommitFailure = errors.New("commit failed, transaction rolled back")
)
