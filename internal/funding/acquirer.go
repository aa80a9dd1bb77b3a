package funding

import (
	"context"

	"github.com/google/uuid"
)

// Acquirer represents a connector to an external card processor.
type Acquirer interface {
	AuthorizeCharge(ctx context.Context, input ChargeAuthorization) (AuthorizationDecision, error)
	AuthorizePayout(ctx context.Context, input PayoutAuthorization) (AuthorizationDecision, error)
}

// AuthorizationDecision captures the response from the acquirer.
type AuthorizationDecision struct {
	Reference string
	Status    string
}

// ChargeAuthorization carries the details of a card charge for a point
// package purchase. Amount is in cash cents.
type ChargeAuthorization struct {
	CardNumber string
	Expiry     string
	CVV        string
	Amount     int64
}

// PayoutAuthorization carries the details of a push-to-card cash payout.
type PayoutAuthorization struct {
	CardNumber string
	Amount     int64
}

// StaticAcquirer simulates a successful acquirer integration.
type StaticAcquirer struct{}

// AuthorizeCharge approves the purchase with a synthetic reference.
func (StaticAcquirer) AuthorizeCharge(_ context.Context, _ ChargeAuthorization) (AuthorizationDecision, error) {
	return AuthorizationDecision{Reference: uuid.NewString(), Status: "approved"}, nil
}

// AuthorizePayout approves the withdrawal with a synthetic reference.
func (StaticAcquirer) AuthorizePayout(_ context.Context, _ PayoutAuthorization) (AuthorizationDecision, error) {
	return AuthorizationDecision{Reference: uuid.NewString(), Status: "approved"}, nil
}
