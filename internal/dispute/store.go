package dispute

import (
	"context"

	"github.com/greenside-app/greenside/internal/ledger"
)

// Settlement carries the judge's ruling and the fee owed for it.
type Settlement struct {
	JudgeID    string
	Decision   string
	Resolution string
	Fee        int64
	Currency   ledger.Currency
	FeeEntry   ledger.Entry
}

// Store persists dispute records. State transitions are guarded at the
// store so two judges cannot accept the same dispute.
type Store interface {
	// Create files a dispute, rejecting a second unresolved dispute for the
	// same wager with ErrDisputeExists.
	Create(ctx context.Context, d Dispute) error
	Get(ctx context.Context, id string) (Dispute, error)
	// Assign moves an open dispute to assigned under the given judge.
	Assign(ctx context.Context, id, judgeID string) (Dispute, error)
	// Resolve finalizes an assigned dispute: the resolved mark, the judge
	// fee credit and the judge's dispute counter commit as one unit, or
	// none of them do.
	Resolve(ctx context.Context, id string, st Settlement) (Dispute, error)
	// Open lists unassigned disputes, oldest first.
	Open(ctx context.Context, limit int) ([]Dispute, error)
	// ByWager lists every dispute filed against a wager, newest first.
	ByWager(ctx context.Context, wagerID string) ([]Dispute, error)
}
