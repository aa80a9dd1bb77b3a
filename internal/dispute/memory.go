package dispute

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/greenside-app/greenside/internal/identity"
	"github.com/greenside-app/greenside/internal/ledger"
)

// memoryStore is the dev and test double for the Postgres store. Resolve
// validates the judge's account and user record before any mutation, so a
// rejected settlement leaves the dispute assigned and nothing paid.
type memoryStore struct {
	mu       sync.Mutex
	ledger   ledger.Ledger
	users    identity.Repository
	disputes map[string]*Dispute
}

// NewMemoryStore builds an in-memory dispute store posting judge fees
// against the provided ledger.
func NewMemoryStore(led ledger.Ledger, users identity.Repository) Store {
	return &memoryStore{ledger: led, users: users, disputes: make(map[string]*Dispute)}
}

func (s *memoryStore) Create(_ context.Context, d Dispute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.disputes {
		if existing.WagerID == d.WagerID && existing.Status != StatusResolved {
			return ErrDisputeExists
		}
	}
	d.Status = StatusOpen
	s.disputes[d.ID] = &d
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.disputes[id]
	if !ok {
		return Dispute{}, ErrNotFound
	}
	return *d, nil
}

func (s *memoryStore) Assign(_ context.Context, id, judgeID string) (Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.disputes[id]
	if !ok {
		return Dispute{}, ErrNotFound
	}
	switch d.Status {
	case StatusResolved:
		return Dispute{}, ErrAlreadyResolved
	case StatusAssigned:
		return Dispute{}, ErrAlreadyAssigned
	}
	d.Status = StatusAssigned
	d.JudgeID = judgeID
	return *d, nil
}

func (s *memoryStore) Resolve(ctx context.Context, id string, st Settlement) (Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.disputes[id]
	if !ok {
		return Dispute{}, ErrNotFound
	}
	switch d.Status {
	case StatusResolved:
		return Dispute{}, ErrAlreadyResolved
	case StatusOpen:
		return Dispute{}, ErrNotAssigned
	}
	if d.JudgeID != st.JudgeID {
		return Dispute{}, ErrNotAssigned
	}

	// Check the judge's records first; once the fee posts, nothing below
	// can fail.
	if _, err := s.users.FindByID(ctx, st.JudgeID); err != nil {
		return Dispute{}, err
	}
	if st.Fee > 0 {
		if _, err := s.ledger.Account(ctx, st.JudgeID, st.Currency); err != nil {
			return Dispute{}, err
		}
		if err := s.ledger.Credit(ctx, st.JudgeID, st.Currency, st.Fee, st.FeeEntry); err != nil {
			return Dispute{}, err
		}
	}
	if err := s.users.IncrementDisputesJudged(ctx, st.JudgeID); err != nil {
		return Dispute{}, err
	}

	d.Status = StatusResolved
	d.Decision = st.Decision
	d.Resolution = st.Resolution
	d.JudgeFee = st.Fee
	d.ResolvedAt = time.Now().UTC()
	return *d, nil
}

func (s *memoryStore) Open(_ context.Context, limit int) ([]Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Dispute
	for _, d := range s.disputes {
		if d.Status == StatusOpen {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiledAt.Before(out[j].FiledAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) ByWager(_ context.Context, wagerID string) ([]Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Dispute
	for _, d := range s.disputes {
		if d.WagerID == wagerID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiledAt.After(out[j].FiledAt) })
	return out, nil
}
