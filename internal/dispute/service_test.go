package dispute

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/greenside-app/greenside/internal/identity"
	"github.com/greenside-app/greenside/internal/ledger"
	"github.com/greenside-app/greenside/internal/logging"
	"github.com/greenside-app/greenside/internal/notification"
	"github.com/greenside-app/greenside/internal/wager"
)

type fixture struct {
	service *Service
	wagers  wager.Store
	ledger  ledger.Ledger
	users   identity.Repository
}

func newFixture() fixture {
	led := ledger.NewInMemory()
	wagers := wager.NewMemoryStore(led)
	users := identity.NewMemoryRepository()
	svc := NewService(NewMemoryStore(led, users), wagers, users, notification.NewLoggerEmitter(logging.Discard()), logging.Discard())
	return fixture{service: svc, wagers: wagers, ledger: led, users: users}
}

func (f fixture) addUser(t *testing.T, isJudge bool) string {
	t.Helper()
	user := identity.User{
		ID:        uuid.NewString(),
		Username:  "u-" + uuid.NewString()[:8],
		Email:     uuid.NewString() + "@example.com",
		IsJudge:   isJudge,
		CreatedAt: time.Now().UTC(),
	}
	if err := f.users.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	ledger.SeedSpendable(f.ledger, user.ID, ledger.CurrencyPoints, 1_000)
	return user.ID
}

// startedWager opens a two-player wager staked at 100 each and moves it
// into play.
func (f fixture) startedWager(t *testing.T, creatorID, joinerID string) wager.Wager {
	t.Helper()
	ctx := context.Background()
	w := wager.Wager{
		ID:              uuid.NewString(),
		Code:            "ABC234",
		CreatorID:       creatorID,
		Name:            "Back nine",
		StakeAmount:     100,
		StakeCurrency:   ledger.CurrencyPoints,
		MaxParticipants: 4,
		CreatedAt:       time.Now().UTC(),
	}
	if err := f.wagers.Create(ctx, w); err != nil {
		t.Fatalf("create wager: %v", err)
	}
	if _, err := f.wagers.Join(ctx, w.ID, joinerID); err != nil {
		t.Fatalf("join: %v", err)
	}
	for _, userID := range []string{creatorID, joinerID} {
		if err := f.wagers.SetReady(ctx, w.ID, userID, true); err != nil {
			t.Fatalf("set ready: %v", err)
		}
	}
	started, err := f.wagers.Start(ctx, w.ID, creatorID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return started
}

func TestFileRequiresRunningWagerAndMembership(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	creatorID := f.addUser(t, false)
	joinerID := f.addUser(t, false)
	outsiderID := f.addUser(t, false)
	w := f.startedWager(t, creatorID, joinerID)

	if _, err := f.service.File(ctx, outsiderID, Filing{WagerID: w.ID, Description: "bad score"}); !errors.Is(err, wager.ErrNotAParticipant) {
		t.Fatalf("expected not a participant, got %v", err)
	}
	if _, err := f.service.File(ctx, joinerID, Filing{WagerID: w.ID, Description: "  "}); err == nil {
		t.Fatal("expected description validation error")
	}

	d, err := f.service.File(ctx, joinerID, Filing{WagerID: w.ID, AccusedID: creatorID, Type: "score", Description: "creator entered wrong scores"})
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if d.Status != StatusOpen || d.WagerID != w.ID || d.Type != "score" || d.AccusedID != creatorID {
		t.Fatalf("unexpected dispute: %+v", d)
	}

	if _, err := f.service.File(ctx, creatorID, Filing{WagerID: w.ID, Description: "me too"}); !errors.Is(err, ErrDisputeExists) {
		t.Fatalf("expected dispute exists, got %v", err)
	}
}

func TestAcceptRequiresNeutralJudge(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	creatorID := f.addUser(t, true)
	joinerID := f.addUser(t, false)
	judgeID := f.addUser(t, true)
	plainID := f.addUser(t, false)
	w := f.startedWager(t, creatorID, joinerID)

	d, err := f.service.File(ctx, joinerID, Filing{WagerID: w.ID, Description: "contested result"})
	if err != nil {
		t.Fatalf("file: %v", err)
	}

	if _, err := f.service.Accept(ctx, d.ID, plainID); !errors.Is(err, ErrNotJudge) {
		t.Fatalf("expected not judge, got %v", err)
	}
	// A participant with the judge flag still cannot take their own wager.
	if _, err := f.service.Accept(ctx, d.ID, creatorID); !errors.Is(err, ErrConflictOfInterest) {
		t.Fatalf("expected conflict of interest, got %v", err)
	}

	assigned, err := f.service.Accept(ctx, d.ID, judgeID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if assigned.Status != StatusAssigned || assigned.JudgeID != judgeID {
		t.Fatalf("unexpected dispute: %+v", assigned)
	}

	otherJudgeID := f.addUser(t, true)
	if _, err := f.service.Accept(ctx, d.ID, otherJudgeID); !errors.Is(err, ErrAlreadyAssigned) {
		t.Fatalf("expected already assigned, got %v", err)
	}
}

func TestResolveSettlesWagerAndPaysJudgeFee(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	creatorID := f.addUser(t, false)
	joinerID := f.addUser(t, false)
	judgeID := f.addUser(t, true)
	w := f.startedWager(t, creatorID, joinerID)

	d, err := f.service.File(ctx, joinerID, Filing{WagerID: w.ID, Description: "contested result"})
	if err != nil {
		t.Fatalf("file: %v", err)
	}

	results := []wager.Result{
		{UserID: joinerID, FinalScore: 40, FinalPosition: 1, Payout: 200},
		{UserID: creatorID, FinalScore: 44, FinalPosition: 2, Payout: 0},
	}

	if _, err := f.service.Resolve(ctx, d.ID, judgeID, "reporter_wins", "joiner's card stands", results); !errors.Is(err, ErrNotAssigned) {
		t.Fatalf("expected not assigned before accept, got %v", err)
	}
	if _, err := f.service.Accept(ctx, d.ID, judgeID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	resolved, err := f.service.Resolve(ctx, d.ID, judgeID, "reporter_wins", "joiner's card stands", results)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != StatusResolved || resolved.Decision != "reporter_wins" || resolved.JudgeFee != 6 {
		t.Fatalf("unexpected dispute: %+v", resolved)
	}

	settled, err := f.wagers.Get(ctx, w.ID)
	if err != nil {
		t.Fatalf("get wager: %v", err)
	}
	if settled.Status != wager.StatusCompleted {
		t.Fatalf("wager not completed: %s", settled.Status)
	}

	winner, _ := f.ledger.Account(ctx, joinerID, ledger.CurrencyPoints)
	if winner.Spendable != 1_100 || winner.Escrow != 0 {
		t.Fatalf("unexpected winner balances: %+v", winner)
	}

	// Judge fee is 3% of the 200 pot, floored.
	judgeAcct, _ := f.ledger.Account(ctx, judgeID, ledger.CurrencyPoints)
	if judgeAcct.Spendable != 1_006 {
		t.Fatalf("unexpected judge balance: %d", judgeAcct.Spendable)
	}
	fees, _ := f.ledger.Transactions(ctx, judgeID, ledger.TxFilter{Kind: ledger.KindJudgeFee})
	if len(fees) != 1 || fees[0].Amount != 6 {
		t.Fatalf("unexpected judge fee transactions: %+v", fees)
	}

	judge, _ := f.users.FindByID(ctx, judgeID)
	if judge.DisputesJudged != 1 {
		t.Fatalf("disputes judged not incremented: %d", judge.DisputesJudged)
	}

	if _, err := f.service.Resolve(ctx, d.ID, judgeID, "reporter_wins", "again", results); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected already resolved, got %v", err)
	}
}

func TestResolveRejectsWrongJudge(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	creatorID := f.addUser(t, false)
	joinerID := f.addUser(t, false)
	judgeID := f.addUser(t, true)
	impostorID := f.addUser(t, true)
	w := f.startedWager(t, creatorID, joinerID)

	d, err := f.service.File(ctx, creatorID, Filing{WagerID: w.ID, Description: "contested result"})
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if _, err := f.service.Accept(ctx, d.ID, judgeID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	results := []wager.Result{
		{UserID: creatorID, FinalPosition: 1, Payout: 200},
		{UserID: joinerID, FinalPosition: 2, Payout: 0},
	}
	if _, err := f.service.Resolve(ctx, d.ID, impostorID, "reporter_wins", "mine now", results); !errors.Is(err, ErrNotAssigned) {
		t.Fatalf("expected not assigned, got %v", err)
	}
}

func TestResolveIsRetryableWhenFeeCreditFails(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	creatorID := f.addUser(t, false)
	joinerID := f.addUser(t, false)
	w := f.startedWager(t, creatorID, joinerID)

	// A judge without ledger accounts: the fee credit has nowhere to land.
	judge := identity.User{
		ID:        uuid.NewString(),
		Username:  "u-" + uuid.NewString()[:8],
		Email:     uuid.NewString() + "@example.com",
		IsJudge:   true,
		CreatedAt: time.Now().UTC(),
	}
	if err := f.users.Create(ctx, judge); err != nil {
		t.Fatalf("create judge: %v", err)
	}

	d, err := f.service.File(ctx, joinerID, Filing{WagerID: w.ID, Description: "contested result"})
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if _, err := f.service.Accept(ctx, d.ID, judge.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	results := []wager.Result{
		{UserID: joinerID, FinalPosition: 1, Payout: 200},
		{UserID: creatorID, FinalPosition: 2, Payout: 0},
	}
	if _, err := f.service.Resolve(ctx, d.ID, judge.ID, "reporter_wins", "card stands", results); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected account not found, got %v", err)
	}

	// The failed settlement must leave the dispute assigned, the fee
	// unpaid and the counter untouched.
	stuck, err := f.service.Get(ctx, d.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stuck.Status != StatusAssigned || stuck.JudgeFee != 0 || stuck.Decision != "" {
		t.Fatalf("dispute mutated by failed resolve: %+v", stuck)
	}
	if u, _ := f.users.FindByID(ctx, judge.ID); u.DisputesJudged != 0 {
		t.Fatalf("counter bumped by failed resolve: %d", u.DisputesJudged)
	}

	// Retrying once the judge has an account succeeds without settling the
	// already-completed pot a second time.
	ledger.SeedSpendable(f.ledger, judge.ID, ledger.CurrencyPoints, 0)
	resolved, err := f.service.Resolve(ctx, d.ID, judge.ID, "reporter_wins", "card stands", results)
	if err != nil {
		t.Fatalf("retry resolve: %v", err)
	}
	if resolved.Status != StatusResolved || resolved.JudgeFee != 6 {
		t.Fatalf("unexpected dispute: %+v", resolved)
	}
	winner, _ := f.ledger.Account(ctx, joinerID, ledger.CurrencyPoints)
	if winner.Spendable != 1_100 || winner.Escrow != 0 {
		t.Fatalf("pot settled twice: %+v", winner)
	}
	judgeAcct, _ := f.ledger.Account(ctx, judge.ID, ledger.CurrencyPoints)
	if judgeAcct.Spendable != 6 {
		t.Fatalf("unexpected judge balance: %d", judgeAcct.Spendable)
	}
	if u, _ := f.users.FindByID(ctx, judge.ID); u.DisputesJudged != 1 {
		t.Fatalf("disputes judged not incremented once: %d", u.DisputesJudged)
	}
}

func TestResolveClosesDisputeAfterCreatorCompletes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	creatorID := f.addUser(t, false)
	joinerID := f.addUser(t, false)
	judgeID := f.addUser(t, true)
	w := f.startedWager(t, creatorID, joinerID)

	d, err := f.service.File(ctx, joinerID, Filing{WagerID: w.ID, Description: "contested result"})
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if _, err := f.service.Accept(ctx, d.ID, judgeID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// The creator settles the pot while the dispute sits assigned.
	results := []wager.Result{
		{UserID: creatorID, FinalPosition: 1, Payout: 200},
		{UserID: joinerID, FinalPosition: 2, Payout: 0},
	}
	if _, err := f.wagers.Complete(ctx, w.ID, creatorID, results); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// The judge can still close the dispute and collect the fee; the
	// existing settlement stands.
	resolved, err := f.service.Resolve(ctx, d.ID, judgeID, "settlement_stands", "creator's results confirmed", nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != StatusResolved || resolved.JudgeFee != 6 {
		t.Fatalf("unexpected dispute: %+v", resolved)
	}

	creator, _ := f.ledger.Account(ctx, creatorID, ledger.CurrencyPoints)
	if creator.Spendable != 1_100 || creator.Escrow != 0 {
		t.Fatalf("unexpected creator balances: %+v", creator)
	}
	judgeAcct, _ := f.ledger.Account(ctx, judgeID, ledger.CurrencyPoints)
	if judgeAcct.Spendable != 1_006 {
		t.Fatalf("unexpected judge balance: %d", judgeAcct.Spendable)
	}
}

func TestOpenQueueOrdersOldestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ledger.NewInMemory(), identity.NewMemoryRepository())

	first := Dispute{ID: uuid.NewString(), WagerID: uuid.NewString(), ReporterID: uuid.NewString(), Description: "a", FiledAt: time.Now().Add(-time.Hour)}
	second := Dispute{ID: uuid.NewString(), WagerID: uuid.NewString(), ReporterID: uuid.NewString(), Description: "b", FiledAt: time.Now()}
	for _, d := range []Dispute{second, first} {
		if err := store.Create(ctx, d); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	queue, err := store.Open(ctx, 10)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(queue) != 2 || queue[0].ID != first.ID {
		t.Fatalf("unexpected queue order: %+v", queue)
	}
}
