package domain

import "time"

// Kind classifies a money movement.
type Kind string

const (
	KindDeposit  Kind = "DEPOSIT"
	KindWithdraw Kind = "WITHDRAW"
	KindTransfer Kind = "TRANSFER"
)

// Currency is fixed for the whole ledger. Balances are stored in minor
// units of this currency, so nothing ever converts.
const Currency = "USD"

// Account is a customer's row in the custodial ledger. Balance is in minor
// units (cents) and only ever changes inside a coordinator unit of work; it
// never goes negative.
type Account struct {
	Number    string    `json:"account_number"`
	OwnerName string    `json:"owner_name"`
	Email     string    `json:"email"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// TransactionRecord is one committed money movement. Records are append-only:
// once written they are never updated or deleted. FromAccount is empty for
// deposits.
type TransactionRecord struct {
	ID          int64     `json:"id"`
	FromAccount string    `json:"from_account,omitempty"`
	ToAccount   string    `json:"to_account"`
	Amount      int64     `json:"amount"`
	Kind        Kind      `json:"kind"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
