package wager

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/greenside-app/greenside/internal/ledger"
)

type scoreKey struct {
	userID string
	hole   int
}

// memoryStore is an in-memory wager backend for unit tests and local
// development. A single mutex serialises all mutating operations; validation
// runs before the one failable ledger call so a rejected operation leaves no
// partial state behind.
type memoryStore struct {
	mu           sync.Mutex
	ledger       ledger.Ledger
	wagers       map[string]*Wager
	byCode       map[string]string
	participants map[string][]*Participant
	scores       map[string]map[scoreKey]Score
}

// NewMemoryStore constructs an in-memory wager store posting against the
// provided ledger.
func NewMemoryStore(led ledger.Ledger) Store {
	return &memoryStore{
		ledger:       led,
		wagers:       make(map[string]*Wager),
		byCode:       make(map[string]string),
		participants: make(map[string][]*Participant),
		scores:       make(map[string]map[scoreKey]Score),
	}
}

func (s *memoryStore) Create(ctx context.Context, w Wager) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byCode[w.Code]; taken {
		return ErrCodeCollision
	}

	if err := s.ledger.Deduct(ctx, w.CreatorID, w.StakeCurrency, w.StakeAmount, ledger.Entry{
		Kind:        ledger.KindWagerStake,
		Description: fmt.Sprintf("Wager stake: %s", w.Name),
		Reference:   w.ID,
	}); err != nil {
		return err
	}

	stored := w
	stored.Status = StatusOpen
	stored.TotalPot = w.StakeAmount
	stored.Participants = 1
	s.wagers[w.ID] = &stored
	s.byCode[w.Code] = w.ID
	s.participants[w.ID] = []*Participant{{
		WagerID:   w.ID,
		UserID:    w.CreatorID,
		IsCreator: true,
		JoinedAt:  time.Now().UTC(),
	}}
	return nil
}

func (s *memoryStore) Join(ctx context.Context, wagerID, userID string) (Wager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wagers[wagerID]
	if !ok {
		return Wager{}, ErrNotFound
	}
	if w.Status != StatusOpen {
		return Wager{}, ErrNotOpen
	}
	if s.findParticipant(wagerID, userID) != nil {
		return Wager{}, ErrAlreadyJoined
	}
	if w.Participants >= w.MaxParticipants {
		return Wager{}, ErrFull
	}

	if err := s.ledger.Deduct(ctx, userID, w.StakeCurrency, w.StakeAmount, ledger.Entry{
		Kind:        ledger.KindWagerStake,
		Description: fmt.Sprintf("Joined wager: %s", w.Name),
		Reference:   wagerID,
	}); err != nil {
		return Wager{}, err
	}

	s.participants[wagerID] = append(s.participants[wagerID], &Participant{
		WagerID:  wagerID,
		UserID:   userID,
		JoinedAt: time.Now().UTC(),
	})
	w.TotalPot += w.StakeAmount
	w.Participants++
	return *w, nil
}

func (s *memoryStore) Leave(ctx context.Context, wagerID, userID string) (Wager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wagers[wagerID]
	if !ok {
		return Wager{}, ErrNotFound
	}
	if w.Status != StatusOpen {
		return Wager{}, ErrNotOpen
	}
	p := s.findParticipant(wagerID, userID)
	if p == nil {
		return Wager{}, ErrNotAParticipant
	}
	if p.IsCreator && w.Participants > 1 {
		return Wager{}, ErrCreatorBlocked
	}

	if err := s.ledger.Release(ctx, userID, w.StakeCurrency, w.StakeAmount, ledger.Entry{
		Kind:        ledger.KindWagerRefund,
		Description: fmt.Sprintf("Left wager: %s", w.Name),
		Reference:   wagerID,
	}); err != nil {
		return Wager{}, err
	}

	roster := s.participants[wagerID]
	for i, member := range roster {
		if member.UserID == userID {
			s.participants[wagerID] = append(roster[:i], roster[i+1:]...)
			break
		}
	}
	w.TotalPot -= w.StakeAmount
	w.Participants--
	if p.IsCreator {
		w.Status = StatusCancelled
		w.EndedAt = time.Now().UTC()
	}
	return *w, nil
}

func (s *memoryStore) SetReady(_ context.Context, wagerID, userID string, ready bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.wagers[wagerID]; !ok {
		return ErrNotFound
	}
	p := s.findParticipant(wagerID, userID)
	if p == nil {
		return ErrNotAParticipant
	}
	p.IsReady = ready
	return nil
}

func (s *memoryStore) Start(_ context.Context, wagerID, actorID string) (Wager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wagers[wagerID]
	if !ok {
		return Wager{}, ErrNotFound
	}
	if w.CreatorID != actorID {
		return Wager{}, ErrForbidden
	}
	if w.Status != StatusOpen {
		return Wager{}, ErrNotOpen
	}
	for _, p := range s.participants[wagerID] {
		if !p.IsReady {
			return Wager{}, ErrNotAllReady
		}
	}
	w.Status = StatusInProgress
	w.StartedAt = time.Now().UTC()
	return *w, nil
}

func (s *memoryStore) RecordScore(_ context.Context, score Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wagers[score.WagerID]
	if !ok {
		return ErrNotFound
	}
	if w.Status != StatusInProgress {
		return ErrNotInProgress
	}
	if s.findParticipant(score.WagerID, score.UserID) == nil {
		return ErrNotAParticipant
	}

	if s.scores[score.WagerID] == nil {
		s.scores[score.WagerID] = make(map[scoreKey]Score)
	}
	score.RecordedAt = time.Now().UTC()
	s.scores[score.WagerID][scoreKey{score.UserID, score.Hole}] = score
	return nil
}

func (s *memoryStore) Complete(ctx context.Context, wagerID, actorID string, results []Result) (Wager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wagers[wagerID]
	if !ok {
		return Wager{}, ErrNotFound
	}
	if w.CreatorID != actorID {
		return Wager{}, ErrForbidden
	}
	if w.Status == StatusCompleted || w.Status == StatusCancelled {
		return Wager{}, ErrNotOpen
	}

	roster := make(map[string]bool, w.Participants)
	for _, p := range s.participants[wagerID] {
		roster[p.UserID] = false
	}
	if err := checkResults(*w, roster, results); err != nil {
		return Wager{}, err
	}
	if err := s.checkEscrow(ctx, w); err != nil {
		return Wager{}, err
	}

	for _, res := range results {
		kind := ledger.KindWagerWon
		description := fmt.Sprintf("Won wager: %s", w.Name)
		if res.Payout == 0 {
			kind = ledger.KindWagerLost
			description = fmt.Sprintf("Lost wager: %s", w.Name)
		}
		if err := s.ledger.Settle(ctx, res.UserID, w.StakeCurrency, w.StakeAmount, res.Payout, ledger.Entry{
			Kind:        kind,
			Description: description,
			Reference:   wagerID,
		}); err != nil {
			return Wager{}, err
		}
		p := s.findParticipant(wagerID, res.UserID)
		p.FinalScore = res.FinalScore
		p.FinalPosition = res.FinalPosition
		p.PayoutAmount = res.Payout
		p.PayoutReceived = true
	}

	w.Status = StatusCompleted
	w.EndedAt = time.Now().UTC()
	return *w, nil
}

func (s *memoryStore) Cancel(ctx context.Context, wagerID, actorID string) (Wager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wagers[wagerID]
	if !ok {
		return Wager{}, ErrNotFound
	}
	if w.CreatorID != actorID {
		return Wager{}, ErrForbidden
	}
	if w.Status != StatusOpen {
		return Wager{}, ErrNotOpen
	}
	if err := s.checkEscrow(ctx, w); err != nil {
		return Wager{}, err
	}

	for _, p := range s.participants[wagerID] {
		if err := s.ledger.Release(ctx, p.UserID, w.StakeCurrency, w.StakeAmount, ledger.Entry{
			Kind:        ledger.KindWagerCancelled,
			Description: fmt.Sprintf("Wager cancelled: %s", w.Name),
			Reference:   wagerID,
		}); err != nil {
			return Wager{}, err
		}
	}

	w.Status = StatusCancelled
	w.EndedAt = time.Now().UTC()
	return *w, nil
}

func (s *memoryStore) Get(_ context.Context, id string) (Wager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wagers[id]
	if !ok {
		return Wager{}, ErrNotFound
	}
	return *w, nil
}

func (s *memoryStore) GetByCode(_ context.Context, code string) (Wager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byCode[code]
	if !ok {
		return Wager{}, ErrNotFound
	}
	return *s.wagers[id], nil
}

func (s *memoryStore) Participants(_ context.Context, wagerID string) ([]Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wagers[wagerID]; !ok {
		return nil, ErrNotFound
	}
	roster := s.participants[wagerID]
	out := make([]Participant, 0, len(roster))
	for _, p := range roster {
		out = append(out, *p)
	}
	return out, nil
}

func (s *memoryStore) Scores(_ context.Context, wagerID string) ([]Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wagers[wagerID]; !ok {
		return nil, ErrNotFound
	}
	var out []Score
	for _, sc := range s.scores[wagerID] {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hole != out[j].Hole {
			return out[i].Hole < out[j].Hole
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (s *memoryStore) PublicOpen(_ context.Context, limit, offset int) ([]Wager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 20
	}
	var open []Wager
	for _, w := range s.wagers {
		if w.Status == StatusOpen && w.Settings.Public {
			open = append(open, *w)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].CreatedAt.After(open[j].CreatedAt) })
	if offset >= len(open) {
		return nil, nil
	}
	open = open[offset:]
	if len(open) > limit {
		open = open[:limit]
	}
	return open, nil
}

func (s *memoryStore) ByUser(_ context.Context, userID, status string) ([]Wager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Wager
	for id, roster := range s.participants {
		for _, p := range roster {
			if p.UserID != userID {
				continue
			}
			w := s.wagers[id]
			if status == "" || w.Status == status {
				out = append(out, *w)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// checkEscrow verifies every participant's escrow covers the stake before
// Complete or Cancel touches the ledger. The loops there must not fail
// midway: unlike the Postgres store there is no transaction to roll the
// earlier postings back. Callers must hold the mutex.
func (s *memoryStore) checkEscrow(ctx context.Context, w *Wager) error {
	for _, p := range s.participants[w.ID] {
		acct, err := s.ledger.Account(ctx, p.UserID, w.StakeCurrency)
		if err != nil {
			return err
		}
		if acct.Escrow < w.StakeAmount {
			return ledger.ErrInvariantViolation
		}
	}
	return nil
}

// findParticipant returns the live roster entry; callers must hold the mutex.
func (s *memoryStore) findParticipant(wagerID, userID string) *Participant {
	for _, p := range s.participants[wagerID] {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}
