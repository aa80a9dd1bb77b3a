package wallet

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/greenside-app/greenside/internal/ledger"
)

func TestBalancesCoverBothCurrencies(t *testing.T) {
	led := ledger.NewInMemory()
	ctx := context.Background()
	userID := uuid.NewString()
	if err := led.EnsureAccounts(ctx, userID); err != nil {
		t.Fatalf("ensure accounts: %v", err)
	}
	if err := led.Credit(ctx, userID, ledger.CurrencyPoints, 500, ledger.Entry{Kind: ledger.KindWelcomeBonus}); err != nil {
		t.Fatalf("credit: %v", err)
	}

	svc := NewService(led)
	balances, err := svc.Balances(ctx, userID)
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if len(balances) != 2 {
		t.Fatalf("expected two balances, got %d", len(balances))
	}
	if balances[0].Currency != ledger.CurrencyPoints || balances[0].Spendable != 500 {
		t.Fatalf("unexpected points balance: %+v", balances[0])
	}
	if balances[1].Currency != ledger.CurrencyCash || balances[1].Spendable != 0 {
		t.Fatalf("unexpected cash balance: %+v", balances[1])
	}
}

func TestTransactionsFilterAndPage(t *testing.T) {
	led := ledger.NewInMemory()
	ctx := context.Background()
	userID := uuid.NewString()
	ledger.SeedSpendable(led, userID, ledger.CurrencyPoints, 1_000)

	for i := 0; i < 3; i++ {
		if err := led.Deduct(ctx, userID, ledger.CurrencyPoints, 100, ledger.Entry{Kind: ledger.KindWagerStake, Reference: uuid.NewString()}); err != nil {
			t.Fatalf("deduct: %v", err)
		}
	}
	if err := led.Credit(ctx, userID, ledger.CurrencyPoints, 50, ledger.Entry{Kind: ledger.KindPurchase}); err != nil {
		t.Fatalf("credit: %v", err)
	}

	svc := NewService(led)
	stakes, err := svc.Transactions(ctx, userID, ledger.KindWagerStake, 0, 0)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(stakes) != 3 {
		t.Fatalf("expected 3 stake transactions, got %d", len(stakes))
	}
	for _, tx := range stakes {
		if tx.Kind != ledger.KindWagerStake || tx.Amount != -100 {
			t.Fatalf("unexpected transaction: %+v", tx)
		}
	}

	page, err := svc.Transactions(ctx, userID, "", 2, 0)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected page of 2, got %d", len(page))
	}
}

func TestStatsDerivedFromLog(t *testing.T) {
	led := ledger.NewInMemory()
	ctx := context.Background()
	userID := uuid.NewString()
	ledger.SeedSpendable(led, userID, ledger.CurrencyPoints, 1_000)

	wagerID := uuid.NewString()
	if err := led.Deduct(ctx, userID, ledger.CurrencyPoints, 100, ledger.Entry{Kind: ledger.KindWagerStake, Reference: wagerID}); err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if err := led.Settle(ctx, userID, ledger.CurrencyPoints, 100, 200, ledger.Entry{Kind: ledger.KindWagerWon, Reference: wagerID}); err != nil {
		t.Fatalf("settle win: %v", err)
	}

	lost := uuid.NewString()
	if err := led.Deduct(ctx, userID, ledger.CurrencyPoints, 50, ledger.Entry{Kind: ledger.KindWagerStake, Reference: lost}); err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if err := led.Settle(ctx, userID, ledger.CurrencyPoints, 50, 0, ledger.Entry{Kind: ledger.KindWagerLost, Reference: lost}); err != nil {
		t.Fatalf("settle loss: %v", err)
	}

	svc := NewService(led)
	stats, err := svc.Stats(ctx, userID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.WagersWon != 1 || stats.WagersLost != 1 {
		t.Fatalf("unexpected win/loss counts: %+v", stats)
	}
	if stats.TotalStaked != 150 || stats.TotalWon != 200 || stats.LifetimeEarned != 200 {
		t.Fatalf("unexpected totals: %+v", stats)
	}
}
