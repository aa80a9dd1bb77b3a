package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestDeductMovesSpendableToEscrow(t *testing.T) {
	ctx := context.Background()
	led := NewInMemory()
	userID := uuid.NewString()
	SeedSpendable(led, userID, CurrencyPoints, 1_000)

	if err := led.Deduct(ctx, userID, CurrencyPoints, 100, Entry{Kind: KindWagerStake}); err != nil {
		t.Fatalf("deduct: %v", err)
	}

	acct, err := led.Account(ctx, userID, CurrencyPoints)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if acct.Spendable != 900 || acct.Escrow != 100 {
		t.Fatalf("unexpected balances: %+v", acct)
	}
}

func TestDeductInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	led := NewInMemory()
	userID := uuid.NewString()
	SeedSpendable(led, userID, CurrencyPoints, 50)

	if err := led.Deduct(ctx, userID, CurrencyPoints, 100, Entry{Kind: KindWagerStake}); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	acct, _ := led.Account(ctx, userID, CurrencyPoints)
	if acct.Spendable != 50 || acct.Escrow != 0 {
		t.Fatalf("balances changed on rejected deduct: %+v", acct)
	}
}

func TestReleasePastEscrowIsInvariantViolation(t *testing.T) {
	ctx := context.Background()
	led := NewInMemory()
	userID := uuid.NewString()
	SeedSpendable(led, userID, CurrencyPoints, 100)
	if err := led.Deduct(ctx, userID, CurrencyPoints, 100, Entry{Kind: KindWagerStake}); err != nil {
		t.Fatalf("deduct: %v", err)
	}

	if err := led.Release(ctx, userID, CurrencyPoints, 200, Entry{Kind: KindWagerRefund}); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("expected invariant violation, got %v", err)
	}
}

func TestSettleGrowsLifetimeEarnedOnPositivePayout(t *testing.T) {
	ctx := context.Background()
	led := NewInMemory()
	winner := uuid.NewString()
	loser := uuid.NewString()
	SeedSpendable(led, winner, CurrencyPoints, 100)
	SeedSpendable(led, loser, CurrencyPoints, 100)

	for _, userID := range []string{winner, loser} {
		if err := led.Deduct(ctx, userID, CurrencyPoints, 100, Entry{Kind: KindWagerStake}); err != nil {
			t.Fatalf("deduct: %v", err)
		}
	}

	if err := led.Settle(ctx, winner, CurrencyPoints, 100, 200, Entry{Kind: KindWagerWon}); err != nil {
		t.Fatalf("settle winner: %v", err)
	}
	if err := led.Settle(ctx, loser, CurrencyPoints, 100, 0, Entry{Kind: KindWagerLost}); err != nil {
		t.Fatalf("settle loser: %v", err)
	}

	w, _ := led.Account(ctx, winner, CurrencyPoints)
	if w.Spendable != 200 || w.Escrow != 0 || w.LifetimeEarned != 200 {
		t.Fatalf("unexpected winner account: %+v", w)
	}
	l, _ := led.Account(ctx, loser, CurrencyPoints)
	if l.Spendable != 0 || l.Escrow != 0 || l.LifetimeEarned != 0 {
		t.Fatalf("unexpected loser account: %+v", l)
	}
}

func TestConcurrentDeductsNeverGoNegative(t *testing.T) {
	ctx := context.Background()
	led := NewInMemory()
	userID := uuid.NewString()
	SeedSpendable(led, userID, CurrencyPoints, 500)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = led.Deduct(ctx, userID, CurrencyPoints, 100, Entry{Kind: KindWagerStake})
		}()
	}
	wg.Wait()

	acct, _ := led.Account(ctx, userID, CurrencyPoints)
	if acct.Spendable != 0 || acct.Escrow != 500 {
		t.Fatalf("expected exactly five deducts to win, got %+v", acct)
	}
}

func TestWithdrawSettlement(t *testing.T) {
	ctx := context.Background()
	led := NewInMemory()
	userID := uuid.NewString()
	SeedSpendable(led, userID, CurrencyCash, 5_000)

	txnID, err := led.Withdraw(ctx, userID, CurrencyCash, 2_000, Entry{Kind: KindWithdrawal, Description: "cash out"})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	txns, _ := led.Transactions(ctx, userID, TxFilter{Kind: KindWithdrawal})
	if len(txns) != 1 || txns[0].Status != StatusPending || txns[0].Amount != -2_000 {
		t.Fatalf("unexpected pending withdrawal: %+v", txns)
	}

	if err := led.SettleWithdrawal(ctx, txnID, false); err != nil {
		t.Fatalf("settle withdrawal: %v", err)
	}
	acct, _ := led.Account(ctx, userID, CurrencyCash)
	if acct.Spendable != 5_000 {
		t.Fatalf("failed withdrawal should refund spendable, got %+v", acct)
	}

	if err := led.SettleWithdrawal(ctx, txnID, true); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected transaction not found on double settle, got %v", err)
	}
}

func TestTransactionsAppendOnePerMutation(t *testing.T) {
	ctx := context.Background()
	led := NewInMemory()
	userID := uuid.NewString()
	SeedSpendable(led, userID, CurrencyPoints, 300)

	_ = led.Deduct(ctx, userID, CurrencyPoints, 100, Entry{Kind: KindWagerStake, Reference: "w1"})
	_ = led.Release(ctx, userID, CurrencyPoints, 100, Entry{Kind: KindWagerCancelled, Reference: "w1"})
	_ = led.Credit(ctx, userID, CurrencyPoints, 500, Entry{Kind: KindPurchase})

	txns, err := led.Transactions(ctx, userID, TxFilter{})
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(txns) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txns))
	}
	// Newest first.
	if txns[0].Kind != KindPurchase || txns[2].Kind != KindWagerStake {
		t.Fatalf("unexpected ordering: %+v", txns)
	}
}
