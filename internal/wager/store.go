package wager

import "context"

// Store is the contract implemented by wager backends. Mutating operations
// are composite atomic units: the state-machine checks, participant roster
// changes, pot arithmetic, and nested ledger postings of one call either all
// commit or all roll back, and operations on the same wager serialise.
type Store interface {
	// Create inserts the wager, its creator participant row, and collects the
	// creator's stake, all-or-nothing. Returns ErrCodeCollision when the share
	// code is taken.
	Create(ctx context.Context, w Wager) error
	// Join adds a participant and collects their stake, growing the pot.
	Join(ctx context.Context, wagerID, userID string) (Wager, error)
	// Leave removes a participant and refunds their stake. A creator may only
	// leave as sole participant, which cancels the wager.
	Leave(ctx context.Context, wagerID, userID string) (Wager, error)
	// SetReady flips a participant's readiness flag. Idempotent, no ledger
	// effect.
	SetReady(ctx context.Context, wagerID, userID string, ready bool) error
	// Start transitions open -> in_progress once every participant is ready.
	Start(ctx context.Context, wagerID, actorID string) (Wager, error)
	// RecordScore upserts one hole result for a participant of an in-progress
	// wager.
	RecordScore(ctx context.Context, score Score) error
	// Complete settles every participant's escrow against the supplied
	// results and transitions to completed. The summed payouts must not
	// exceed the pot.
	Complete(ctx context.Context, wagerID, actorID string, results []Result) (Wager, error)
	// Cancel refunds every stake and transitions open -> cancelled.
	Cancel(ctx context.Context, wagerID, actorID string) (Wager, error)

	Get(ctx context.Context, id string) (Wager, error)
	GetByCode(ctx context.Context, code string) (Wager, error)
	Participants(ctx context.Context, wagerID string) ([]Participant, error)
	Scores(ctx context.Context, wagerID string) ([]Score, error)
	// PublicOpen lists open wagers whose settings mark them public.
	PublicOpen(ctx context.Context, limit, offset int) ([]Wager, error)
	// ByUser lists wagers the user participates in, optionally filtered by
	// status.
	ByUser(ctx context.Context, userID, status string) ([]Wager, error)
}
