package funding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/greenside-app/greenside/internal/ledger"
)

// minWithdrawalCents is the smallest cash-out the payout rail accepts.
const minWithdrawalCents = 1_000

// ErrUnknownPackage occurs when a purchase names a package id that is not
// on offer.
var ErrUnknownPackage = errors.New("unknown point package")

// Package is one purchasable bundle of points priced in cash cents.
type Package struct {
	ID         string `json:"id"`
	Points     int64  `json:"points"`
	PriceCents int64  `json:"price_cents"`
}

// Catalogue order is presentation order.
var packages = []Package{
	{ID: "small", Points: 500, PriceCents: 499},
	{ID: "medium", Points: 1_000, PriceCents: 899},
	{ID: "large", Points: 5_000, PriceCents: 3_999},
}

// Service coordinates point purchases and cash withdrawals through the
// ledger and the acquirer connector.
type Service struct {
	ledger   ledger.Ledger
	acquirer Acquirer
}

// NewService builds a funding service. A nil acquirer falls back to the
// static simulator.
func NewService(ledgerBackend ledger.Ledger, acquirer Acquirer) *Service {
	if acquirer == nil {
		acquirer = StaticAcquirer{}
	}
	return &Service{ledger: ledgerBackend, acquirer: acquirer}
}

// Packages lists the purchasable point bundles.
func (s *Service) Packages() []Package {
	out := make([]Package, len(packages))
	copy(out, packages)
	return out
}

// PurchaseInput captures the data required to buy a point package.
type PurchaseInput struct {
	UserID     string
	PackageID  string
	CardNumber string
	Expiry     string
	CVV        string
}

// PurchaseResult is the domain outcome of a completed purchase.
type PurchaseResult struct {
	PackageID         string
	PointsCredited    int64
	ChargedCents      int64
	AcquirerReference string
	CompletedAt       time.Time
}

// PurchasePoints charges the card for a package and credits its points.
func (s *Service) PurchasePoints(ctx context.Context, input PurchaseInput) (PurchaseResult, error) {
	if err := validateCardNumber(input.CardNumber); err != nil {
		return PurchaseResult{}, err
	}
	var pkg Package
	found := false
	for _, p := range packages {
		if p.ID == input.PackageID {
			pkg, found = p, true
			break
		}
	}
	if !found {
		return PurchaseResult{}, fmt.Errorf("%w: %q", ErrUnknownPackage, input.PackageID)
	}

	decision, err := s.acquirer.AuthorizeCharge(ctx, ChargeAuthorization{
		CardNumber: input.CardNumber,
		Expiry:     input.Expiry,
		CVV:        input.CVV,
		Amount:     pkg.PriceCents,
	})
	if err != nil {
		return PurchaseResult{}, err
	}

	err = s.ledger.Credit(ctx, input.UserID, ledger.CurrencyPoints, pkg.Points, ledger.Entry{
		Kind:        ledger.KindPurchase,
		Description: fmt.Sprintf("Purchased %s point package", pkg.ID),
		Reference:   decision.Reference,
	})
	if err != nil {
		return PurchaseResult{}, err
	}

	return PurchaseResult{
		PackageID:         pkg.ID,
		PointsCredited:    pkg.Points,
		ChargedCents:      pkg.PriceCents,
		AcquirerReference: decision.Reference,
		CompletedAt:       time.Now().UTC(),
	}, nil
}

// WithdrawInput captures the data required for a cash-out to card.
type WithdrawInput struct {
	UserID     string
	Amount     int64
	CardNumber string
}

// WithdrawResult is the pending outcome of a withdrawal request. The
// transaction stays pending until the payout rail settles it.
type WithdrawResult struct {
	TransactionID     string
	Status            string
	AcquirerReference string
	RequestedAt       time.Time
}

// Withdraw holds cash out of spendable as a pending transaction and submits
// the payout for authorization.
func (s *Service) Withdraw(ctx context.Context, input WithdrawInput) (WithdrawResult, error) {
	if err := validateCardNumber(input.CardNumber); err != nil {
		return WithdrawResult{}, err
	}
	if input.Amount < minWithdrawalCents {
		return WithdrawResult{}, fmt.Errorf("minimum withdrawal is %d cents", minWithdrawalCents)
	}

	txID, err := s.ledger.Withdraw(ctx, input.UserID, ledger.CurrencyCash, input.Amount, ledger.Entry{
		Kind:        ledger.KindWithdrawal,
		Description: "Cash withdrawal to card",
		Reference:   uuid.NewString(),
	})
	if err != nil {
		return WithdrawResult{}, err
	}

	decision, err := s.acquirer.AuthorizePayout(ctx, PayoutAuthorization{
		CardNumber: input.CardNumber,
		Amount:     input.Amount,
	})
	if err != nil {
		// The payout never reached the rail; refund the hold.
		if settleErr := s.ledger.SettleWithdrawal(ctx, txID, false); settleErr != nil {
			return WithdrawResult{}, fmt.Errorf("payout rejected and refund failed: %w", settleErr)
		}
		return WithdrawResult{}, err
	}

	return WithdrawResult{
		TransactionID:     txID,
		Status:            ledger.StatusPending,
		AcquirerReference: decision.Reference,
		RequestedAt:       time.Now().UTC(),
	}, nil
}

// SettleWithdrawal finalizes a pending withdrawal from the payout rail's
// settlement signal. A failed settlement returns the held cash to spendable.
func (s *Service) SettleWithdrawal(ctx context.Context, transactionID string, succeeded bool) error {
	return s.ledger.SettleWithdrawal(ctx, transactionID, succeeded)
}

func validateCardNumber(card string) error {
	digits := strings.ReplaceAll(card, " ", "")
	if len(digits) < 12 || len(digits) > 19 {
		return fmt.Errorf("card number must be between 12 and 19 digits")
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return fmt.Errorf("card number must be numeric")
		}
	}
	return nil
}
