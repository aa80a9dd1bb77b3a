package funding

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/greenside-app/greenside/internal/ledger"
)

type rejectingAcquirer struct{}

func (rejectingAcquirer) AuthorizeCharge(_ context.Context, _ ChargeAuthorization) (AuthorizationDecision, error) {
	return AuthorizationDecision{}, fmt.Errorf("charge declined")
}

func (rejectingAcquirer) AuthorizePayout(_ context.Context, _ PayoutAuthorization) (AuthorizationDecision, error) {
	return AuthorizationDecision{}, fmt.Errorf("payout declined")
}

func TestPurchaseCreditsPackagePoints(t *testing.T) {
	ctx := context.Background()
	led := ledger.NewInMemory()
	userID := uuid.NewString()
	if err := led.EnsureAccounts(ctx, userID); err != nil {
		t.Fatalf("ensure accounts: %v", err)
	}

	service := NewService(led, StaticAcquirer{})
	res, err := service.PurchasePoints(ctx, PurchaseInput{
		UserID:     userID,
		PackageID:  "medium",
		CardNumber: "4111111111111111",
		Expiry:     "12/29",
		CVV:        "123",
	})
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if res.PointsCredited != 1_000 || res.ChargedCents != 899 {
		t.Fatalf("unexpected result: %+v", res)
	}

	acct, _ := led.Account(ctx, userID, ledger.CurrencyPoints)
	if acct.Spendable != 1_000 {
		t.Fatalf("expected 1000 points, got %d", acct.Spendable)
	}
	txns, _ := led.Transactions(ctx, userID, ledger.TxFilter{Kind: ledger.KindPurchase})
	if len(txns) != 1 || txns[0].Amount != 1_000 {
		t.Fatalf("unexpected purchase transactions: %+v", txns)
	}

	if _, err := service.PurchasePoints(ctx, PurchaseInput{
		UserID:     userID,
		PackageID:  "jumbo",
		CardNumber: "4111111111111111",
	}); !errors.Is(err, ErrUnknownPackage) {
		t.Fatalf("expected unknown package, got %v", err)
	}
}

func TestPurchaseDeclinedLeavesBalanceUntouched(t *testing.T) {
	ctx := context.Background()
	led := ledger.NewInMemory()
	userID := uuid.NewString()
	if err := led.EnsureAccounts(ctx, userID); err != nil {
		t.Fatalf("ensure accounts: %v", err)
	}

	service := NewService(led, rejectingAcquirer{})
	if _, err := service.PurchasePoints(ctx, PurchaseInput{
		UserID:     userID,
		PackageID:  "small",
		CardNumber: "4111111111111111",
	}); err == nil {
		t.Fatal("expected declined charge")
	}

	acct, _ := led.Account(ctx, userID, ledger.CurrencyPoints)
	if acct.Spendable != 0 {
		t.Fatalf("points credited on declined charge: %d", acct.Spendable)
	}
}

func TestWithdrawHoldsCashPending(t *testing.T) {
	ctx := context.Background()
	led := ledger.NewInMemory()
	userID := uuid.NewString()
	ledger.SeedSpendable(led, userID, ledger.CurrencyCash, 5_000)

	service := NewService(led, nil)
	res, err := service.Withdraw(ctx, WithdrawInput{
		UserID:     userID,
		Amount:     2_000,
		CardNumber: "4111111111111111",
	})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if res.Status != ledger.StatusPending || res.TransactionID == "" {
		t.Fatalf("unexpected result: %+v", res)
	}

	acct, _ := led.Account(ctx, userID, ledger.CurrencyCash)
	if acct.Spendable != 3_000 {
		t.Fatalf("expected 3000 held out, got %d", acct.Spendable)
	}

	if err := service.SettleWithdrawal(ctx, res.TransactionID, false); err != nil {
		t.Fatalf("settle: %v", err)
	}
	acct, _ = led.Account(ctx, userID, ledger.CurrencyCash)
	if acct.Spendable != 5_000 {
		t.Fatalf("failed settlement did not refund: %d", acct.Spendable)
	}
}

func TestWithdrawBelowMinimumRejected(t *testing.T) {
	ctx := context.Background()
	led := ledger.NewInMemory()
	userID := uuid.NewString()
	ledger.SeedSpendable(led, userID, ledger.CurrencyCash, 5_000)

	service := NewService(led, nil)
	if _, err := service.Withdraw(ctx, WithdrawInput{
		UserID:     userID,
		Amount:     500,
		CardNumber: "4111111111111111",
	}); err == nil {
		t.Fatal("expected minimum rejection")
	}

	if _, err := service.Withdraw(ctx, WithdrawInput{
		UserID:     userID,
		Amount:     10_000,
		CardNumber: "4111111111111111",
	}); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestWithdrawPayoutDeclinedRefundsHold(t *testing.T) {
	ctx := context.Background()
	led := ledger.NewInMemory()
	userID := uuid.NewString()
	ledger.SeedSpendable(led, userID, ledger.CurrencyCash, 5_000)

	service := NewService(led, rejectingAcquirer{})
	if _, err := service.Withdraw(ctx, WithdrawInput{
		UserID:     userID,
		Amount:     2_000,
		CardNumber: "4111111111111111",
	}); err == nil {
		t.Fatal("expected declined payout")
	}

	acct, _ := led.Account(ctx, userID, ledger.CurrencyCash)
	if acct.Spendable != 5_000 {
		t.Fatalf("declined payout did not refund hold: %d", acct.Spendable)
	}
}
