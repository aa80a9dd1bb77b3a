package wager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/greenside-app/greenside/internal/ledger"
	"github.com/greenside-app/greenside/internal/notification"
)

const (
	maxCodeAttempts = 5
	minParticipants = 2
	maxRosterSize   = 16
	maxHoles        = 18
)

// Service drives the wager lifecycle. It validates input before any
// transaction begins, delegates the atomic work to the store, and emits
// lifecycle events after the store commits. Event delivery is best-effort and
// never affects the outcome of the operation it follows.
type Service struct {
	store   Store
	emitter notification.Emitter
	logger  *slog.Logger
}

// NewService builds a wager service instance.
func NewService(store Store, emitter notification.Emitter, logger *slog.Logger) *Service {
	return &Service{store: store, emitter: emitter, logger: logger}
}

// CreateInput captures data required to open a wager.
type CreateInput struct {
	CreatorID       string
	Name            string
	Description     string
	Type            string
	StakeAmount     int64
	StakeCurrency   ledger.Currency
	MaxParticipants int
	Settings        Settings
}

// Create opens a wager with the creator as its first, staked participant.
func (s *Service) Create(ctx context.Context, input CreateInput) (Wager, error) {
	if strings.TrimSpace(input.Name) == "" {
		return Wager{}, fmt.Errorf("name is required")
	}
	if input.StakeAmount <= 0 {
		return Wager{}, fmt.Errorf("stake amount must be positive")
	}
	currency := input.StakeCurrency
	if currency == "" {
		currency = ledger.CurrencyPoints
	}
	if !currency.Valid() {
		return Wager{}, fmt.Errorf("unknown stake currency %q", currency)
	}
	if input.MaxParticipants < minParticipants || input.MaxParticipants > maxRosterSize {
		return Wager{}, fmt.Errorf("max participants must be between %d and %d", minParticipants, maxRosterSize)
	}

	w := Wager{
		ID:              uuid.NewString(),
		CreatorID:       input.CreatorID,
		Name:            strings.TrimSpace(input.Name),
		Description:     input.Description,
		Type:            input.Type,
		StakeAmount:     input.StakeAmount,
		StakeCurrency:   currency,
		MaxParticipants: input.MaxParticipants,
		Settings:        input.Settings,
		CreatedAt:       time.Now().UTC(),
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := NewCode()
		if err != nil {
			return Wager{}, err
		}
		w.Code = code

		err = s.store.Create(ctx, w)
		if errors.Is(err, ErrCodeCollision) {
			continue
		}
		if err != nil {
			return Wager{}, err
		}

		w.Status = StatusOpen
		w.TotalPot = w.StakeAmount
		w.Participants = 1
		s.logger.Info("wager created", slog.String("wager_id", w.ID), slog.String("code", w.Code))
		return w, nil
	}
	return Wager{}, fmt.Errorf("could not allocate a unique wager code")
}

// Join adds the user to an open wager, collecting their stake.
func (s *Service) Join(ctx context.Context, wagerID, userID string) (Wager, error) {
	w, err := s.store.Join(ctx, wagerID, userID)
	if err != nil {
		return Wager{}, err
	}
	s.emitter.Emit(ctx, notification.Event{
		Name:    notification.EventParticipantJoined,
		WagerID: wagerID,
		UserID:  userID,
		Payload: map[string]any{"participants": w.Participants, "total_pot": w.TotalPot},
	})
	return w, nil
}

// Leave removes the user from an open wager, refunding their stake.
func (s *Service) Leave(ctx context.Context, wagerID, userID string) (Wager, error) {
	w, err := s.store.Leave(ctx, wagerID, userID)
	if err != nil {
		return Wager{}, err
	}
	s.emitter.Emit(ctx, notification.Event{
		Name:    notification.EventParticipantLeft,
		WagerID: wagerID,
		UserID:  userID,
		Payload: map[string]any{"participants": w.Participants, "total_pot": w.TotalPot},
	})
	return w, nil
}

// SetReady flips the user's readiness flag.
func (s *Service) SetReady(ctx context.Context, wagerID, userID string, ready bool) error {
	if err := s.store.SetReady(ctx, wagerID, userID, ready); err != nil {
		return err
	}
	s.emitter.Emit(ctx, notification.Event{
		Name:    notification.EventReadyStatusChanged,
		WagerID: wagerID,
		UserID:  userID,
		Payload: map[string]any{"is_ready": ready},
	})
	return nil
}

// Start begins the contest once every participant is ready. Creator only.
func (s *Service) Start(ctx context.Context, wagerID, actorID string) (Wager, error) {
	w, err := s.store.Start(ctx, wagerID, actorID)
	if err != nil {
		return Wager{}, err
	}
	s.logger.Info("wager started", slog.String("wager_id", wagerID))
	s.emitter.Emit(ctx, notification.Event{
		Name:    notification.EventBetStarted,
		WagerID: wagerID,
	})
	return w, nil
}

// RecordScore upserts one hole result for a participant.
func (s *Service) RecordScore(ctx context.Context, wagerID, userID string, hole, strokes, par int) error {
	if hole < 1 || hole > maxHoles {
		return fmt.Errorf("hole must be between 1 and %d", maxHoles)
	}
	if strokes < 1 || par < 1 {
		return fmt.Errorf("strokes and par must be positive")
	}

	err := s.store.RecordScore(ctx, Score{
		WagerID: wagerID,
		UserID:  userID,
		Hole:    hole,
		Par:     par,
		Strokes: strokes,
	})
	if err != nil {
		return err
	}
	s.emitter.Emit(ctx, notification.Event{
		Name:    notification.EventScoreSubmitted,
		WagerID: wagerID,
		UserID:  userID,
		Payload: map[string]any{"hole": hole, "strokes": strokes},
	})
	return nil
}

// Complete settles the wager against the supplied results. Creator only; the
// payout sum is bounded by the pot and a violation rolls every settlement
// back.
func (s *Service) Complete(ctx context.Context, wagerID, actorID string, results []Result) (Wager, error) {
	if len(results) == 0 {
		return Wager{}, fmt.Errorf("results are required")
	}
	w, err := s.store.Complete(ctx, wagerID, actorID, results)
	if err != nil {
		return Wager{}, err
	}
	s.logger.Info("wager completed", slog.String("wager_id", wagerID), slog.Int64("total_pot", w.TotalPot))
	s.emitter.Emit(ctx, notification.Event{
		Name:    notification.EventBetCompleted,
		WagerID: wagerID,
		Payload: map[string]any{"total_pot": w.TotalPot},
	})
	return w, nil
}

// Cancel refunds every stake of an open wager. Creator only.
func (s *Service) Cancel(ctx context.Context, wagerID, actorID string) (Wager, error) {
	w, err := s.store.Cancel(ctx, wagerID, actorID)
	if err != nil {
		return Wager{}, err
	}
	s.logger.Info("wager cancelled", slog.String("wager_id", wagerID))
	s.emitter.Emit(ctx, notification.Event{
		Name:    notification.EventBetCancelled,
		WagerID: wagerID,
	})
	return w, nil
}

// Get fetches a wager by identifier.
func (s *Service) Get(ctx context.Context, id string) (Wager, error) {
	return s.store.Get(ctx, id)
}

// GetByCode fetches a wager by its share code, case-insensitively.
func (s *Service) GetByCode(ctx context.Context, code string) (Wager, error) {
	return s.store.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
}

// Participants lists the wager's roster.
func (s *Service) Participants(ctx context.Context, wagerID string) ([]Participant, error) {
	return s.store.Participants(ctx, wagerID)
}

// Scores lists the wager's recorded hole results.
func (s *Service) Scores(ctx context.Context, wagerID string) ([]Score, error) {
	return s.store.Scores(ctx, wagerID)
}

// PublicOpen lists joinable public wagers.
func (s *Service) PublicOpen(ctx context.Context, limit, offset int) ([]Wager, error) {
	return s.store.PublicOpen(ctx, limit, offset)
}

// ByUser lists the user's wagers, optionally filtered by status.
func (s *Service) ByUser(ctx context.Context, userID, status string) ([]Wager, error) {
	return s.store.ByUser(ctx, userID, status)
}
