package dispute

import (
	"errors"
	"time"
)

// Dispute lifecycle states.
const (
	StatusOpen     = "open"
	StatusAssigned = "assigned"
	StatusResolved = "resolved"
)

// judgeFeePercent of the disputed pot is credited to the resolving judge.
const judgeFeePercent = 3

var (
	// ErrNotFound occurs when no dispute matches the lookup.
	ErrNotFound = errors.New("dispute not found")
	// ErrNotJudge occurs when a non-judge tries to accept a dispute.
	ErrNotJudge = errors.New("user is not a judge")
	// ErrNotAssigned occurs when someone other than the assigned judge tries
	// to resolve a dispute, or the dispute was never accepted.
	ErrNotAssigned = errors.New("dispute not assigned to this judge")
	// ErrAlreadyAssigned occurs when a judge accepts a dispute that another
	// judge already holds.
	ErrAlreadyAssigned = errors.New("dispute already assigned")
	// ErrAlreadyResolved occurs on any mutation of a resolved dispute.
	ErrAlreadyResolved = errors.New("dispute already resolved")
	// ErrDisputeExists occurs when a wager already has an unresolved dispute.
	ErrDisputeExists = errors.New("wager already has an unresolved dispute")
	// ErrConflictOfInterest occurs when a wager participant tries to judge
	// their own wager.
	ErrConflictOfInterest = errors.New("judge is a participant in this wager")
)

// Dispute is one contested wager outcome awaiting neutral resolution.
type Dispute struct {
	ID          string    `json:"id"`
	WagerID     string    `json:"wager_id"`
	ReporterID  string    `json:"reporter_id"`
	AccusedID   string    `json:"accused_id,omitempty"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Evidence    []string  `json:"evidence,omitempty"`
	Status      string    `json:"status"`
	JudgeID     string    `json:"judge_id,omitempty"`
	Decision    string    `json:"decision,omitempty"`
	Resolution  string    `json:"resolution,omitempty"`
	JudgeFee    int64     `json:"judge_fee,omitempty"`
	FiledAt     time.Time `json:"filed_at"`
	ResolvedAt  time.Time `json:"resolved_at,omitempty"`
}
