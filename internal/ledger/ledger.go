package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInsufficientFunds occurs when an account's spendable balance cannot
	// cover a requested deduction.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvariantViolation indicates the ledger was asked to release or settle
	// more escrow than an account holds. It signals a ledger bug or data
	// corruption and must be surfaced loudly, never clamped or retried.
	ErrInvariantViolation = errors.New("ledger invariant violation")

	// ErrAccountNotFound occurs when no account row exists for the given
	// user and currency.
	ErrAccountNotFound = errors.New("account not found")

	// ErrTransactionNotFound occurs when settling a withdrawal whose pending
	// transaction does not exist.
	ErrTransactionNotFound = errors.New("transaction not found")
)

// Currency identifies a balance family. Both are integer minor units:
// whole points and cash cents.
type Currency string

const (
	CurrencyPoints Currency = "points"
	CurrencyCash   Currency = "cash"
)

// Valid reports whether the currency is a recognised balance family.
func (c Currency) Valid() bool {
	return c == CurrencyPoints || c == CurrencyCash
}

// Transaction kinds recorded in the append-only log.
const (
	KindWagerStake     = "wager_stake"
	KindWagerRefund    = "wager_refund"
	KindWagerCancelled = "wager_cancelled"
	KindWagerWon       = "wager_won"
	KindWagerLost      = "wager_lost"
	KindPurchase       = "purchase"
	KindWithdrawal     = "withdrawal"
	KindWelcomeBonus   = "welcome_bonus"
	KindJudgeFee       = "judge_fee"
)

// Transaction statuses. Pending is only used by async settlement flows
// (cash withdrawals); everything else is written completed.
const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
	StatusFailed    = "failed"
)

// Account is the durable per-user balance record for one currency family.
// Spendable and Escrow are never negative after any committed operation;
// LifetimeEarned only grows.
type Account struct {
	UserID         string
	Currency       Currency
	Spendable      int64
	Escrow         int64
	LifetimeEarned int64
}

// Transaction is an immutable balance-affecting fact. Amount is signed:
// negative for value leaving spendable, positive for value entering it.
type Transaction struct {
	ID          string
	UserID      string
	Kind        string
	Amount      int64
	Currency    Currency
	Description string
	Reference   string
	Status      string
	CreatedAt   time.Time
}

// Entry carries the audit metadata written alongside each balance mutation.
type Entry struct {
	Kind        string
	Description string
	Reference   string
}

// TxFilter narrows transaction history queries.
type TxFilter struct {
	Kind   string
	Limit  int
	Offset int
}

// Ledger is the contract implemented by ledger backends. Every balance
// mutation is atomic with its transaction-log append; concurrent operations
// on the same account serialise.
type Ledger interface {
	// EnsureAccounts provisions zeroed point and cash accounts for a user.
	EnsureAccounts(ctx context.Context, userID string) error
	// Account returns the balance record for one currency family.
	Account(ctx context.Context, userID string, currency Currency) (Account, error)
	// Transactions lists a user's transaction history, newest first.
	Transactions(ctx context.Context, userID string, filter TxFilter) ([]Transaction, error)

	// Deduct atomically moves amount from spendable to escrow, rejecting the
	// move with ErrInsufficientFunds if spendable < amount.
	Deduct(ctx context.Context, userID string, currency Currency, amount int64, entry Entry) error
	// Release moves amount from escrow back to spendable. Escrow short of
	// amount is ErrInvariantViolation.
	Release(ctx context.Context, userID string, currency Currency, amount int64, entry Entry) error
	// Settle converts escrowAmount of escrow into a payout of payoutAmount to
	// spendable, growing LifetimeEarned when the payout is positive.
	Settle(ctx context.Context, userID string, currency Currency, escrowAmount, payoutAmount int64, entry Entry) error
	// Credit adds amount directly to spendable with no escrow involvement.
	Credit(ctx context.Context, userID string, currency Currency, amount int64, entry Entry) error

	// Withdraw deducts spendable and records a pending transaction, returning
	// its id for later settlement by the payment gateway callback.
	Withdraw(ctx context.Context, userID string, currency Currency, amount int64, entry Entry) (string, error)
	// SettleWithdrawal flips a pending withdrawal to completed, or to failed
	// with the held amount returned to spendable.
	SettleWithdrawal(ctx context.Context, transactionID string, succeeded bool) error
}
