package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type acctKey struct {
	userID   string
	currency Currency
}

type inMemoryLedger struct {
	mu       sync.Mutex
	accounts map[acctKey]*Account
	txns     []Transaction
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit
// tests and local development without Postgres.
func NewInMemory() Ledger {
	return &inMemoryLedger{accounts: make(map[acctKey]*Account)}
}

func (l *inMemoryLedger) EnsureAccounts(_ context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, currency := range []Currency{CurrencyPoints, CurrencyCash} {
		key := acctKey{userID, currency}
		if _, exists := l.accounts[key]; !exists {
			l.accounts[key] = &Account{UserID: userID, Currency: currency}
		}
	}
	return nil
}

func (l *inMemoryLedger) Account(_ context.Context, userID string, currency Currency) (Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[acctKey{userID, currency}]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return *acct, nil
}

func (l *inMemoryLedger) Transactions(_ context.Context, userID string, filter TxFilter) ([]Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var out []Transaction
	skipped := 0
	for i := len(l.txns) - 1; i >= 0 && len(out) < limit; i-- {
		txn := l.txns[i]
		if txn.UserID != userID {
			continue
		}
		if filter.Kind != "" && txn.Kind != filter.Kind {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, txn)
	}
	return out, nil
}

func (l *inMemoryLedger) Deduct(_ context.Context, userID string, currency Currency, amount int64, entry Entry) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[acctKey{userID, currency}]
	if !ok {
		return ErrAccountNotFound
	}
	if acct.Spendable < amount {
		return ErrInsufficientFunds
	}
	acct.Spendable -= amount
	acct.Escrow += amount
	l.append(userID, currency, -amount, entry, StatusCompleted)
	return nil
}

func (l *inMemoryLedger) Release(_ context.Context, userID string, currency Currency, amount int64, entry Entry) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[acctKey{userID, currency}]
	if !ok {
		return ErrAccountNotFound
	}
	if acct.Escrow < amount {
		return ErrInvariantViolation
	}
	acct.Escrow -= amount
	acct.Spendable += amount
	l.append(userID, currency, amount, entry, StatusCompleted)
	return nil
}

func (l *inMemoryLedger) Settle(_ context.Context, userID string, currency Currency, escrowAmount, payoutAmount int64, entry Entry) error {
	if escrowAmount <= 0 || payoutAmount < 0 {
		return fmt.Errorf("invalid settlement amounts")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[acctKey{userID, currency}]
	if !ok {
		return ErrAccountNotFound
	}
	if acct.Escrow < escrowAmount {
		return ErrInvariantViolation
	}
	acct.Escrow -= escrowAmount
	acct.Spendable += payoutAmount
	if payoutAmount > 0 {
		acct.LifetimeEarned += payoutAmount
	}
	l.append(userID, currency, payoutAmount, entry, StatusCompleted)
	return nil
}

func (l *inMemoryLedger) Credit(_ context.Context, userID string, currency Currency, amount int64, entry Entry) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[acctKey{userID, currency}]
	if !ok {
		return ErrAccountNotFound
	}
	acct.Spendable += amount
	l.append(userID, currency, amount, entry, StatusCompleted)
	return nil
}

func (l *inMemoryLedger) Withdraw(_ context.Context, userID string, currency Currency, amount int64, entry Entry) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("amount must be positive")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[acctKey{userID, currency}]
	if !ok {
		return "", ErrAccountNotFound
	}
	if acct.Spendable < amount {
		return "", ErrInsufficientFunds
	}
	acct.Spendable -= amount
	return l.append(userID, currency, -amount, entry, StatusPending), nil
}

func (l *inMemoryLedger) SettleWithdrawal(_ context.Context, transactionID string, succeeded bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.txns {
		txn := &l.txns[i]
		if txn.ID != transactionID || txn.Kind != KindWithdrawal || txn.Status != StatusPending {
			continue
		}
		if succeeded {
			txn.Status = StatusCompleted
			return nil
		}
		txn.Status = StatusFailed
		if acct, ok := l.accounts[acctKey{txn.UserID, txn.Currency}]; ok {
			acct.Spendable += -txn.Amount
		}
		return nil
	}
	return ErrTransactionNotFound
}

// append records a transaction; callers must hold the mutex.
func (l *inMemoryLedger) append(userID string, currency Currency, amount int64, entry Entry, status string) string {
	txn := Transaction{
		ID:          uuid.NewString(),
		UserID:      userID,
		Kind:        entry.Kind,
		Amount:      amount,
		Currency:    currency,
		Description: entry.Description,
		Reference:   entry.Reference,
		Status:      status,
		CreatedAt:   time.Now().UTC(),
	}
	l.txns = append(l.txns, txn)
	return txn.ID
}
