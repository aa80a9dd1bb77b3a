package wager

import (
	"errors"
	"time"

	"github.com/greenside-app/greenside/internal/ledger"
)

// Wager statuses. open is initial; completed and cancelled are terminal.
const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

var (
	// ErrNotFound occurs when no wager matches the lookup.
	ErrNotFound = errors.New("wager not found")
	// ErrNotOpen occurs when an operation requires an open wager.
	ErrNotOpen = errors.New("wager is not open")
	// ErrNotInProgress occurs when scores are recorded outside an active round.
	ErrNotInProgress = errors.New("wager is not in progress")
	// ErrAlreadyJoined occurs when a user already holds a participant row.
	ErrAlreadyJoined = errors.New("already joined this wager")
	// ErrFull occurs when the participant roster is at max capacity.
	ErrFull = errors.New("wager is full")
	// ErrCreatorBlocked occurs when the creator tries to leave while other
	// participants remain.
	ErrCreatorBlocked = errors.New("creator cannot leave while others remain")
	// ErrForbidden occurs when a non-creator invokes a creator-only operation.
	ErrForbidden = errors.New("only the creator may do this")
	// ErrNotAllReady occurs when start is attempted before every participant
	// has readied up.
	ErrNotAllReady = errors.New("all participants must be ready")
	// ErrNotAParticipant occurs when the user has no participant row.
	ErrNotAParticipant = errors.New("not a participant in this wager")
	// ErrPayoutExceedsPot occurs when completion results distribute more than
	// the collected pot.
	ErrPayoutExceedsPot = errors.New("payouts exceed total pot")
	// ErrCodeCollision occurs when a generated share code is already taken.
	ErrCodeCollision = errors.New("wager code already exists")
)

// Settings is the closed per-wager configuration value. Recognised keys only;
// unrecognised input is rejected at the handler boundary.
type Settings struct {
	Location            string    `json:"location,omitempty"`
	CourseName          string    `json:"course_name,omitempty"`
	Latitude            float64   `json:"latitude,omitempty"`
	Longitude           float64   `json:"longitude,omitempty"`
	ScheduledStart      time.Time `json:"scheduled_start,omitempty"`
	Public              bool      `json:"public,omitempty"`
	AllowOutsideBackers bool      `json:"allow_outside_backers,omitempty"`
	HolesPerRound       int       `json:"holes_per_round,omitempty"`
}

// Wager is one skill contest with an escrowed pot. TotalPot is the running
// sum of collected stakes; before completion it equals the escrowed stakes of
// all active participants, and at completion it bounds the distributed
// payouts.
type Wager struct {
	ID              string
	Code            string
	CreatorID       string
	Name            string
	Description     string
	Type            string
	StakeAmount     int64
	StakeCurrency   ledger.Currency
	TotalPot        int64
	MaxParticipants int
	Participants    int
	Status          string
	Settings        Settings
	CreatedAt       time.Time
	StartedAt       time.Time
	EndedAt         time.Time
}

// Participant is one (wager, user) membership row.
type Participant struct {
	WagerID        string
	UserID         string
	IsCreator      bool
	IsReady        bool
	FinalScore     int
	FinalPosition  int
	PayoutAmount   int64
	PayoutReceived bool
	JoinedAt       time.Time
}

// Score is one recorded hole result. Keyed by (wager, user, hole);
// resubmission overwrites.
type Score struct {
	WagerID    string
	UserID     string
	Hole       int
	Par        int
	Strokes    int
	RecordedAt time.Time
}

// Result is one participant's final outcome supplied to Complete.
type Result struct {
	UserID        string
	FinalScore    int
	FinalPosition int
	Payout        int64
}
