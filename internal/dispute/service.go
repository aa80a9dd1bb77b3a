package dispute

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/greenside-app/greenside/internal/identity"
	"github.com/greenside-app/greenside/internal/ledger"
	"github.com/greenside-app/greenside/internal/notification"
	"github.com/greenside-app/greenside/internal/wager"
)

// Service drives the dispute lifecycle. Resolution settles the disputed
// wager with the judge's results and pays the judge a fee cut of the pot
// as a platform-funded credit.
type Service struct {
	disputes Store
	wagers   wager.Store
	users    identity.Repository
	emitter  notification.Emitter
	logger   *slog.Logger
}

// NewService builds a dispute service instance.
func NewService(disputes Store, wagers wager.Store, users identity.Repository, emitter notification.Emitter, logger *slog.Logger) *Service {
	return &Service{disputes: disputes, wagers: wagers, users: users, emitter: emitter, logger: logger}
}

// Filing is the reporter's account of what went wrong.
type Filing struct {
	WagerID     string
	AccusedID   string
	Type        string
	Description string
	Evidence    []string
}

// File opens a dispute against a running wager. Only participants may
// file, and the accused, when named, must be a participant too.
func (s *Service) File(ctx context.Context, reporterID string, f Filing) (Dispute, error) {
	if strings.TrimSpace(f.Description) == "" {
		return Dispute{}, fmt.Errorf("description is required")
	}
	w, err := s.wagers.Get(ctx, f.WagerID)
	if err != nil {
		return Dispute{}, err
	}
	if w.Status != wager.StatusInProgress {
		return Dispute{}, wager.ErrNotInProgress
	}
	if ok, err := s.isParticipant(ctx, f.WagerID, reporterID); err != nil {
		return Dispute{}, err
	} else if !ok {
		return Dispute{}, wager.ErrNotAParticipant
	}
	if f.AccusedID != "" {
		if ok, err := s.isParticipant(ctx, f.WagerID, f.AccusedID); err != nil {
			return Dispute{}, err
		} else if !ok {
			return Dispute{}, wager.ErrNotAParticipant
		}
	}
	if strings.TrimSpace(f.Type) == "" {
		f.Type = "general"
	}

	d := Dispute{
		ID:          uuid.NewString(),
		WagerID:     f.WagerID,
		ReporterID:  reporterID,
		AccusedID:   f.AccusedID,
		Type:        f.Type,
		Description: strings.TrimSpace(f.Description),
		Evidence:    f.Evidence,
		Status:      StatusOpen,
		FiledAt:     time.Now().UTC(),
	}
	if err := s.disputes.Create(ctx, d); err != nil {
		return Dispute{}, err
	}
	s.logger.Info("dispute filed",
		slog.String("dispute_id", d.ID), slog.String("wager_id", f.WagerID))
	return d, nil
}

// Accept assigns an open dispute to a judge. Participants of the disputed
// wager cannot judge it.
func (s *Service) Accept(ctx context.Context, disputeID, judgeID string) (Dispute, error) {
	judge, err := s.users.FindByID(ctx, judgeID)
	if err != nil {
		return Dispute{}, err
	}
	if !judge.IsJudge {
		return Dispute{}, ErrNotJudge
	}
	d, err := s.disputes.Get(ctx, disputeID)
	if err != nil {
		return Dispute{}, err
	}
	if ok, err := s.isParticipant(ctx, d.WagerID, judgeID); err != nil {
		return Dispute{}, err
	} else if ok {
		return Dispute{}, ErrConflictOfInterest
	}
	return s.disputes.Assign(ctx, disputeID, judgeID)
}

// Resolve settles the disputed wager with the judge's results, then closes
// the dispute: the resolved mark, the fee credit and the judge's counter
// commit together, so a failed fee credit leaves the dispute assigned and
// retryable. Payouts are bounded by the pot exactly as for a
// creator-driven completion.
func (s *Service) Resolve(ctx context.Context, disputeID, judgeID, decision, resolution string, results []wager.Result) (Dispute, error) {
	d, err := s.disputes.Get(ctx, disputeID)
	if err != nil {
		return Dispute{}, err
	}
	if d.Status == StatusResolved {
		return Dispute{}, ErrAlreadyResolved
	}
	if d.Status != StatusAssigned || d.JudgeID != judgeID {
		return Dispute{}, ErrNotAssigned
	}

	w, err := s.wagers.Get(ctx, d.WagerID)
	if err != nil {
		return Dispute{}, err
	}
	// The judge acts with the creator's settlement authority. A wager the
	// creator already settled while the dispute sat assigned stays as
	// settled; the dispute still closes and the fee is still owed.
	if w.Status != wager.StatusCompleted {
		w, err = s.wagers.Complete(ctx, d.WagerID, w.CreatorID, results)
		if err != nil {
			return Dispute{}, err
		}
	}

	resolved, err := s.disputes.Resolve(ctx, disputeID, Settlement{
		JudgeID:    judgeID,
		Decision:   decision,
		Resolution: resolution,
		Fee:        w.TotalPot * judgeFeePercent / 100,
		Currency:   w.StakeCurrency,
		FeeEntry: ledger.Entry{
			Kind:        ledger.KindJudgeFee,
			Description: fmt.Sprintf("Judge fee for dispute on wager: %s", w.Name),
			Reference:   d.WagerID,
		},
	})
	if err != nil {
		return Dispute{}, err
	}

	s.emitter.Emit(ctx, notification.Event{
		Name:    notification.EventBetCompleted,
		WagerID: d.WagerID,
		UserID:  judgeID,
		Payload: map[string]any{"dispute_id": disputeID, "resolved_by_judge": true},
	})
	s.logger.Info("dispute resolved",
		slog.String("dispute_id", disputeID), slog.String("judge_id", judgeID))
	return resolved, nil
}

// Get returns one dispute by id.
func (s *Service) Get(ctx context.Context, id string) (Dispute, error) {
	return s.disputes.Get(ctx, id)
}

// Open lists unassigned disputes for the judge queue.
func (s *Service) Open(ctx context.Context, limit int) ([]Dispute, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.disputes.Open(ctx, limit)
}

// ByWager lists disputes filed against a wager.
func (s *Service) ByWager(ctx context.Context, wagerID string) ([]Dispute, error) {
	return s.disputes.ByWager(ctx, wagerID)
}

// Judges lists the best-rated judges available to accept disputes.
func (s *Service) Judges(ctx context.Context, limit int) ([]identity.User, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	return s.users.Judges(ctx, limit)
}

func (s *Service) isParticipant(ctx context.Context, wagerID, userID string) (bool, error) {
	roster, err := s.wagers.Participants(ctx, wagerID)
	if err != nil {
		return false, err
	}
	for _, p := range roster {
		if p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}
