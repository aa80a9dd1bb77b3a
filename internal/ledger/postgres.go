package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greenside-app/greenside/internal/infra"
)

// PostgresLedger persists accounts and the append-only transaction log in
// PostgreSQL. Balance mutations are conditional single-statement updates, so
// concurrent callers against one account serialise on the row and a guard
// failing means zero rows changed rather than a negative balance.
type PostgresLedger struct {
	db      *pgxpool.Pool
	tracker *infra.CheckoutTracker
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool, tracker *infra.CheckoutTracker) *PostgresLedger {
	return &PostgresLedger{db: db, tracker: tracker}
}

// EnsureAccounts provisions zeroed point and cash accounts for the user.
func (l *PostgresLedger) EnsureAccounts(ctx context.Context, userID string) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("parse user id: %w", err)
	}
	for _, currency := range []Currency{CurrencyPoints, CurrencyCash} {
		_, err := l.db.Exec(ctx, `INSERT INTO accounts (user_id, currency, spendable, escrow, lifetime_earned)
            VALUES ($1, $2, 0, 0, 0) ON CONFLICT (user_id, currency) DO NOTHING`, uid, currency)
		if err != nil {
			return err
		}
	}
	return nil
}

// Account returns the balance record for one currency family.
func (l *PostgresLedger) Account(ctx context.Context, userID string, currency Currency) (Account, error) {
	const query = `SELECT user_id, currency, spendable, escrow, lifetime_earned
        FROM accounts WHERE user_id = $1 AND currency = $2`
	var (
		acct Account
		uid  uuid.UUID
	)
	if err := l.db.QueryRow(ctx, query, userID, currency).Scan(&uid, &acct.Currency, &acct.Spendable, &acct.Escrow, &acct.LifetimeEarned); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	acct.UserID = uid.String()
	return acct, nil
}

// Transactions lists a user's transaction history, newest first.
func (l *PostgresLedger) Transactions(ctx context.Context, userID string, filter TxFilter) ([]Transaction, error) {
	query := `SELECT id, user_id, kind, amount, currency, description, reference, status, created_at
        FROM transactions WHERE user_id = $1`
	args := []any{userID}
	if filter.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", len(args)+1)
		args = append(args, filter.Kind)
	}
	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, filter.Offset)

	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []Transaction
	for rows.Next() {
		var (
			txn    Transaction
			id     uuid.UUID
			userID uuid.UUID
		)
		if err := rows.Scan(&id, &userID, &txn.Kind, &txn.Amount, &txn.Currency, &txn.Description, &txn.Reference, &txn.Status, &txn.CreatedAt); err != nil {
			return nil, err
		}
		txn.ID = id.String()
		txn.UserID = userID.String()
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

// Deduct atomically moves amount from spendable to escrow.
func (l *PostgresLedger) Deduct(ctx context.Context, userID string, currency Currency, amount int64, entry Entry) error {
	return l.inTx(ctx, "ledger.deduct", func(tx pgx.Tx) error {
		return DeductTx(ctx, tx, userID, currency, amount, entry)
	})
}

// Release moves amount from escrow back to spendable.
func (l *PostgresLedger) Release(ctx context.Context, userID string, currency Currency, amount int64, entry Entry) error {
	return l.inTx(ctx, "ledger.release", func(tx pgx.Tx) error {
		return ReleaseTx(ctx, tx, userID, currency, amount, entry)
	})
}

// Settle converts escrow into a payout at wager completion.
func (l *PostgresLedger) Settle(ctx context.Context, userID string, currency Currency, escrowAmount, payoutAmount int64, entry Entry) error {
	return l.inTx(ctx, "ledger.settle", func(tx pgx.Tx) error {
		return SettleTx(ctx, tx, userID, currency, escrowAmount, payoutAmount, entry)
	})
}

// Credit adds amount directly to spendable.
func (l *PostgresLedger) Credit(ctx context.Context, userID string, currency Currency, amount int64, entry Entry) error {
	return l.inTx(ctx, "ledger.credit", func(tx pgx.Tx) error {
		return CreditTx(ctx, tx, userID, currency, amount, entry)
	})
}

// Withdraw deducts spendable and records a pending withdrawal transaction.
func (l *PostgresLedger) Withdraw(ctx context.Context, userID string, currency Currency, amount int64, entry Entry) (string, error) {
	var txnID string
	err := l.inTx(ctx, "ledger.withdraw", func(tx pgx.Tx) error {
		if amount <= 0 {
			return fmt.Errorf("amount must be positive")
		}
		tag, err := tx.Exec(ctx, `UPDATE accounts SET spendable = spendable - $3
            WHERE user_id = $1 AND currency = $2 AND spendable >= $3`, userID, currency, amount)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return guardFailure(ctx, tx, userID, currency, ErrInsufficientFunds)
		}
		id, err := appendTx(ctx, tx, userID, currency, -amount, entry, StatusPending)
		if err != nil {
			return err
		}
		txnID = id
		return nil
	})
	return txnID, err
}

// SettleWithdrawal resolves a pending withdrawal: completed on success, or
// failed with the held amount returned to spendable.
func (l *PostgresLedger) SettleWithdrawal(ctx context.Context, transactionID string, succeeded bool) error {
	return l.inTx(ctx, "ledger.settle_withdrawal", func(tx pgx.Tx) error {
		var (
			userID   uuid.UUID
			currency Currency
			amount   int64
		)
		err := tx.QueryRow(ctx, `SELECT user_id, currency, amount FROM transactions
            WHERE id = $1 AND kind = $2 AND status = $3 FOR UPDATE`,
			transactionID, KindWithdrawal, StatusPending).Scan(&userID, &currency, &amount)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrTransactionNotFound
			}
			return err
		}

		status := StatusCompleted
		if !succeeded {
			status = StatusFailed
			// Amount was stored negative at withdrawal time.
			if _, err := tx.Exec(ctx, `UPDATE accounts SET spendable = spendable + $3
                WHERE user_id = $1 AND currency = $2`, userID, currency, -amount); err != nil {
				return err
			}
		}
		_, err = tx.Exec(ctx, `UPDATE transactions SET status = $2 WHERE id = $1`, transactionID, status)
		return err
	})
}

func (l *PostgresLedger) inTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	done := l.tracker.Track(op)
	defer done()

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// DeductTx applies a spendable-to-escrow move inside the caller's transaction.
// It exists so the wager and dispute stores can compose ledger postings with
// their own row mutations in one atomic unit.
func DeductTx(ctx context.Context, tx pgx.Tx, userID string, currency Currency, amount int64, entry Entry) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	tag, err := tx.Exec(ctx, `UPDATE accounts SET spendable = spendable - $3, escrow = escrow + $3
        WHERE user_id = $1 AND currency = $2 AND spendable >= $3`, userID, currency, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return guardFailure(ctx, tx, userID, currency, ErrInsufficientFunds)
	}
	_, err = appendTx(ctx, tx, userID, currency, -amount, entry, StatusCompleted)
	return err
}

// ReleaseTx applies an escrow-to-spendable move inside the caller's transaction.
func ReleaseTx(ctx context.Context, tx pgx.Tx, userID string, currency Currency, amount int64, entry Entry) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	tag, err := tx.Exec(ctx, `UPDATE accounts SET escrow = escrow - $3, spendable = spendable + $3
        WHERE user_id = $1 AND currency = $2 AND escrow >= $3`, userID, currency, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return guardFailure(ctx, tx, userID, currency, ErrInvariantViolation)
	}
	_, err = appendTx(ctx, tx, userID, currency, amount, entry, StatusCompleted)
	return err
}

// SettleTx converts escrowAmount of escrow into payoutAmount of spendable
// inside the caller's transaction, growing lifetime_earned for positive
// payouts.
func SettleTx(ctx context.Context, tx pgx.Tx, userID string, currency Currency, escrowAmount, payoutAmount int64, entry Entry) error {
	if escrowAmount <= 0 || payoutAmount < 0 {
		return fmt.Errorf("invalid settlement amounts")
	}
	tag, err := tx.Exec(ctx, `UPDATE accounts SET escrow = escrow - $3,
            spendable = spendable + $4,
            lifetime_earned = lifetime_earned + CASE WHEN $4 > 0 THEN $4 ELSE 0 END
        WHERE user_id = $1 AND currency = $2 AND escrow >= $3`,
		userID, currency, escrowAmount, payoutAmount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return guardFailure(ctx, tx, userID, currency, ErrInvariantViolation)
	}
	_, err = appendTx(ctx, tx, userID, currency, payoutAmount, entry, StatusCompleted)
	return err
}

// CreditTx adds amount to spendable inside the caller's transaction.
func CreditTx(ctx context.Context, tx pgx.Tx, userID string, currency Currency, amount int64, entry Entry) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	tag, err := tx.Exec(ctx, `UPDATE accounts SET spendable = spendable + $3
        WHERE user_id = $1 AND currency = $2`, userID, currency, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	_, err = appendTx(ctx, tx, userID, currency, amount, entry, StatusCompleted)
	return err
}

func appendTx(ctx context.Context, tx pgx.Tx, userID string, currency Currency, amount int64, entry Entry, status string) (string, error) {
	id := uuid.New()
	_, err := tx.Exec(ctx, `INSERT INTO transactions (id, user_id, kind, amount, currency, description, reference, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, userID, entry.Kind, amount, currency, entry.Description, entry.Reference, status)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// guardFailure distinguishes a missing account from a failed balance guard
// after a conditional update touched zero rows.
func guardFailure(ctx context.Context, tx pgx.Tx, userID string, currency Currency, guardErr error) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE user_id = $1 AND currency = $2)`,
		userID, currency).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrAccountNotFound
	}
	return guardErr
}
