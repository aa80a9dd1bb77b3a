package wager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greenside-app/greenside/internal/infra"
	"github.com/greenside-app/greenside/internal/ledger"
)

const uniqueViolation = "23505"

// PostgresStore persists wagers in PostgreSQL. Every mutating operation locks
// the wager row with SELECT ... FOR UPDATE for the duration of its
// transaction, so concurrent joins, leaves, starts, and completions against
// one wager serialise and pot arithmetic never loses updates.
type PostgresStore struct {
	db      *pgxpool.Pool
	tracker *infra.CheckoutTracker
}

// NewPostgresStore builds a wager store backed by PostgreSQL.
func NewPostgresStore(db *pgxpool.Pool, tracker *infra.CheckoutTracker) *PostgresStore {
	return &PostgresStore{db: db, tracker: tracker}
}

// Create inserts the wager row, the creator's participant row, and the
// creator's stake deduction in one transaction. A failed stake collection
// rolls the whole creation back, leaving no orphan wager row.
func (s *PostgresStore) Create(ctx context.Context, w Wager) error {
	return s.inTx(ctx, "wager.create", func(tx pgx.Tx) error {
		settings, err := json.Marshal(w.Settings)
		if err != nil {
			return fmt.Errorf("encode settings: %w", err)
		}
		_, err = tx.Exec(ctx, `INSERT INTO wagers (id, code, creator_id, name, description, wager_type,
                stake_amount, stake_currency, total_pot, max_participants, participant_count, status, settings, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			w.ID, w.Code, w.CreatorID, w.Name, w.Description, w.Type,
			w.StakeAmount, w.StakeCurrency, w.StakeAmount, w.MaxParticipants, 1, StatusOpen, settings, w.CreatedAt.UTC())
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return ErrCodeCollision
			}
			return err
		}

		if _, err := tx.Exec(ctx, `INSERT INTO wager_participants (wager_id, user_id, is_creator, is_ready, joined_at)
            VALUES ($1, $2, true, false, NOW())`, w.ID, w.CreatorID); err != nil {
			return err
		}

		return ledger.DeductTx(ctx, tx, w.CreatorID, w.StakeCurrency, w.StakeAmount, ledger.Entry{
			Kind:        ledger.KindWagerStake,
			Description: fmt.Sprintf("Wager stake: %s", w.Name),
			Reference:   w.ID,
		})
	})
}

// Join adds the user to the roster and collects their stake as one atomic
// unit; a partial join is never observable.
func (s *PostgresStore) Join(ctx context.Context, wagerID, userID string) (Wager, error) {
	var out Wager
	err := s.inTx(ctx, "wager.join", func(tx pgx.Tx) error {
		w, err := lockWager(ctx, tx, wagerID)
		if err != nil {
			return err
		}
		if w.Status != StatusOpen {
			return ErrNotOpen
		}

		var joined bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wager_participants WHERE wager_id = $1 AND user_id = $2)`,
			wagerID, userID).Scan(&joined); err != nil {
			return err
		}
		if joined {
			return ErrAlreadyJoined
		}
		if w.Participants >= w.MaxParticipants {
			return ErrFull
		}

		if _, err := tx.Exec(ctx, `INSERT INTO wager_participants (wager_id, user_id, is_creator, is_ready, joined_at)
            VALUES ($1, $2, false, false, NOW())`, wagerID, userID); err != nil {
			return err
		}

		if err := ledger.DeductTx(ctx, tx, userID, w.StakeCurrency, w.StakeAmount, ledger.Entry{
			Kind:        ledger.KindWagerStake,
			Description: fmt.Sprintf("Joined wager: %s", w.Name),
			Reference:   wagerID,
		}); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `UPDATE wagers SET total_pot = total_pot + $2, participant_count = participant_count + 1
            WHERE id = $1`, wagerID, w.StakeAmount); err != nil {
			return err
		}

		w.TotalPot += w.StakeAmount
		w.Participants++
		out = w
		return nil
	})
	return out, err
}

// Leave removes the participant and releases their stake. The creator leaving
// as sole participant cancels the wager.
func (s *PostgresStore) Leave(ctx context.Context, wagerID, userID string) (Wager, error) {
	var out Wager
	err := s.inTx(ctx, "wager.leave", func(tx pgx.Tx) error {
		w, err := lockWager(ctx, tx, wagerID)
		if err != nil {
			return err
		}
		if w.Status != StatusOpen {
			return ErrNotOpen
		}

		var isCreator bool
		if err := tx.QueryRow(ctx, `SELECT is_creator FROM wager_participants WHERE wager_id = $1 AND user_id = $2`,
			wagerID, userID).Scan(&isCreator); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotAParticipant
			}
			return err
		}
		if isCreator && w.Participants > 1 {
			return ErrCreatorBlocked
		}

		if _, err := tx.Exec(ctx, `DELETE FROM wager_participants WHERE wager_id = $1 AND user_id = $2`, wagerID, userID); err != nil {
			return err
		}

		if err := ledger.ReleaseTx(ctx, tx, userID, w.StakeCurrency, w.StakeAmount, ledger.Entry{
			Kind:        ledger.KindWagerRefund,
			Description: fmt.Sprintf("Left wager: %s", w.Name),
			Reference:   wagerID,
		}); err != nil {
			return err
		}

		if isCreator {
			// Sole participant walking away: the wager dies with them.
			if _, err := tx.Exec(ctx, `UPDATE wagers SET status = $2, total_pot = total_pot - $3,
                participant_count = participant_count - 1, ended_at = NOW() WHERE id = $1`,
				wagerID, StatusCancelled, w.StakeAmount); err != nil {
				return err
			}
			w.Status = StatusCancelled
		} else {
			if _, err := tx.Exec(ctx, `UPDATE wagers SET total_pot = total_pot - $2, participant_count = participant_count - 1
                WHERE id = $1`, wagerID, w.StakeAmount); err != nil {
				return err
			}
		}
		w.TotalPot -= w.StakeAmount
		w.Participants--
		out = w
		return nil
	})
	return out, err
}

// SetReady flips the participant's readiness flag.
func (s *PostgresStore) SetReady(ctx context.Context, wagerID, userID string, ready bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE wager_participants SET is_ready = $3 WHERE wager_id = $1 AND user_id = $2`,
		wagerID, userID, ready)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, wagerID); err != nil {
			return err
		}
		return ErrNotAParticipant
	}
	return nil
}

// Start transitions the wager to in_progress once everyone is ready.
func (s *PostgresStore) Start(ctx context.Context, wagerID, actorID string) (Wager, error) {
	var out Wager
	err := s.inTx(ctx, "wager.start", func(tx pgx.Tx) error {
		w, err := lockWager(ctx, tx, wagerID)
		if err != nil {
			return err
		}
		if w.CreatorID != actorID {
			return ErrForbidden
		}
		if w.Status != StatusOpen {
			return ErrNotOpen
		}

		var notReady bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wager_participants WHERE wager_id = $1 AND NOT is_ready)`,
			wagerID).Scan(&notReady); err != nil {
			return err
		}
		if notReady {
			return ErrNotAllReady
		}

		now := time.Now().UTC()
		if _, err := tx.Exec(ctx, `UPDATE wagers SET status = $2, started_at = $3 WHERE id = $1`,
			wagerID, StatusInProgress, now); err != nil {
			return err
		}
		w.Status = StatusInProgress
		w.StartedAt = now
		out = w
		return nil
	})
	return out, err
}

// RecordScore upserts one hole result. Resubmitting the same hole overwrites,
// making score correction idempotent.
func (s *PostgresStore) RecordScore(ctx context.Context, score Score) error {
	return s.inTx(ctx, "wager.record_score", func(tx pgx.Tx) error {
		var status string
		if err := tx.QueryRow(ctx, `SELECT status FROM wagers WHERE id = $1`, score.WagerID).Scan(&status); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if status != StatusInProgress {
			return ErrNotInProgress
		}

		var joined bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM wager_participants WHERE wager_id = $1 AND user_id = $2)`,
			score.WagerID, score.UserID).Scan(&joined); err != nil {
			return err
		}
		if !joined {
			return ErrNotAParticipant
		}

		_, err := tx.Exec(ctx, `INSERT INTO wager_scores (wager_id, user_id, hole, par, strokes, recorded_at)
            VALUES ($1, $2, $3, $4, $5, NOW())
            ON CONFLICT (wager_id, user_id, hole) DO UPDATE SET par = $4, strokes = $5, recorded_at = NOW()`,
			score.WagerID, score.UserID, score.Hole, score.Par, score.Strokes)
		return err
	})
}

// Complete settles every participant against the supplied results in one
// transaction; a payout sum past the pot rolls everything back with no
// partial winners.
func (s *PostgresStore) Complete(ctx context.Context, wagerID, actorID string, results []Result) (Wager, error) {
	var out Wager
	err := s.inTx(ctx, "wager.complete", func(tx pgx.Tx) error {
		w, err := lockWager(ctx, tx, wagerID)
		if err != nil {
			return err
		}
		if w.CreatorID != actorID {
			return ErrForbidden
		}
		if w.Status == StatusCompleted || w.Status == StatusCancelled {
			return ErrNotOpen
		}

		roster := make(map[string]bool, w.Participants)
		rows, err := tx.Query(ctx, `SELECT user_id FROM wager_participants WHERE wager_id = $1`, wagerID)
		if err != nil {
			return err
		}
		for rows.Next() {
			var uid uuid.UUID
			if err := rows.Scan(&uid); err != nil {
				rows.Close()
				return err
			}
			roster[uid.String()] = false
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if err := checkResults(w, roster, results); err != nil {
			return err
		}

		for _, res := range results {
			kind := ledger.KindWagerWon
			description := fmt.Sprintf("Won wager: %s", w.Name)
			if res.Payout == 0 {
				kind = ledger.KindWagerLost
				description = fmt.Sprintf("Lost wager: %s", w.Name)
			}

			if _, err := tx.Exec(ctx, `UPDATE wager_participants SET final_score = $3, final_position = $4,
                payout_amount = $5, payout_received = true WHERE wager_id = $1 AND user_id = $2`,
				wagerID, res.UserID, res.FinalScore, res.FinalPosition, res.Payout); err != nil {
				return err
			}

			if err := ledger.SettleTx(ctx, tx, res.UserID, w.StakeCurrency, w.StakeAmount, res.Payout, ledger.Entry{
				Kind:        kind,
				Description: description,
				Reference:   wagerID,
			}); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		if _, err := tx.Exec(ctx, `UPDATE wagers SET status = $2, ended_at = $3 WHERE id = $1`,
			wagerID, StatusCompleted, now); err != nil {
			return err
		}
		w.Status = StatusCompleted
		w.EndedAt = now
		out = w
		return nil
	})
	return out, err
}

// Cancel refunds every participant's stake and transitions to cancelled. The
// pot value is retained as a historical record of what was staked.
func (s *PostgresStore) Cancel(ctx context.Context, wagerID, actorID string) (Wager, error) {
	var out Wager
	err := s.inTx(ctx, "wager.cancel", func(tx pgx.Tx) error {
		w, err := lockWager(ctx, tx, wagerID)
		if err != nil {
			return err
		}
		if w.CreatorID != actorID {
			return ErrForbidden
		}
		if w.Status != StatusOpen {
			return ErrNotOpen
		}

		rows, err := tx.Query(ctx, `SELECT user_id FROM wager_participants WHERE wager_id = $1`, wagerID)
		if err != nil {
			return err
		}
		var userIDs []string
		for rows.Next() {
			var uid uuid.UUID
			if err := rows.Scan(&uid); err != nil {
				rows.Close()
				return err
			}
			userIDs = append(userIDs, uid.String())
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, userID := range userIDs {
			if err := ledger.ReleaseTx(ctx, tx, userID, w.StakeCurrency, w.StakeAmount, ledger.Entry{
				Kind:        ledger.KindWagerCancelled,
				Description: fmt.Sprintf("Wager cancelled: %s", w.Name),
				Reference:   wagerID,
			}); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		if _, err := tx.Exec(ctx, `UPDATE wagers SET status = $2, ended_at = $3 WHERE id = $1`,
			wagerID, StatusCancelled, now); err != nil {
			return err
		}
		w.Status = StatusCancelled
		w.EndedAt = now
		out = w
		return nil
	})
	return out, err
}

// Get fetches a wager by identifier.
func (s *PostgresStore) Get(ctx context.Context, id string) (Wager, error) {
	row := s.db.QueryRow(ctx, selectWager+` WHERE id = $1`, id)
	return scanWager(row)
}

// GetByCode fetches a wager by its share code.
func (s *PostgresStore) GetByCode(ctx context.Context, code string) (Wager, error) {
	row := s.db.QueryRow(ctx, selectWager+` WHERE code = $1`, code)
	return scanWager(row)
}

// Participants lists the roster in join order.
func (s *PostgresStore) Participants(ctx context.Context, wagerID string) ([]Participant, error) {
	rows, err := s.db.Query(ctx, `SELECT wager_id, user_id, is_creator, is_ready,
            COALESCE(final_score, 0), COALESCE(final_position, 0), COALESCE(payout_amount, 0), payout_received, joined_at
        FROM wager_participants WHERE wager_id = $1 ORDER BY joined_at ASC`, wagerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []Participant
	for rows.Next() {
		var (
			p   Participant
			wid uuid.UUID
			uid uuid.UUID
		)
		if err := rows.Scan(&wid, &uid, &p.IsCreator, &p.IsReady, &p.FinalScore, &p.FinalPosition, &p.PayoutAmount, &p.PayoutReceived, &p.JoinedAt); err != nil {
			return nil, err
		}
		p.WagerID = wid.String()
		p.UserID = uid.String()
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// Scores lists recorded hole results ordered by hole.
func (s *PostgresStore) Scores(ctx context.Context, wagerID string) ([]Score, error) {
	rows, err := s.db.Query(ctx, `SELECT wager_id, user_id, hole, par, strokes, recorded_at
        FROM wager_scores WHERE wager_id = $1 ORDER BY hole ASC, user_id ASC`, wagerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []Score
	for rows.Next() {
		var (
			sc  Score
			wid uuid.UUID
			uid uuid.UUID
		)
		if err := rows.Scan(&wid, &uid, &sc.Hole, &sc.Par, &sc.Strokes, &sc.RecordedAt); err != nil {
			return nil, err
		}
		sc.WagerID = wid.String()
		sc.UserID = uid.String()
		scores = append(scores, sc)
	}
	return scores, rows.Err()
}

// PublicOpen lists open wagers whose settings mark them public, newest first.
func (s *PostgresStore) PublicOpen(ctx context.Context, limit, offset int) ([]Wager, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, selectWager+` WHERE status = $1 AND (settings->>'public')::boolean
        ORDER BY created_at DESC LIMIT $2 OFFSET $3`, StatusOpen, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanWagers(rows)
}

// ByUser lists wagers the user participates in, newest first.
func (s *PostgresStore) ByUser(ctx context.Context, userID, status string) ([]Wager, error) {
	query := selectWager + ` JOIN wager_participants wp ON wp.wager_id = wagers.id WHERE wp.user_id = $1`
	args := []any{userID}
	if status != "" {
		query += " AND wagers.status = $2"
		args = append(args, status)
	}
	query += " ORDER BY wagers.created_at DESC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanWagers(rows)
}

func (s *PostgresStore) inTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	done := s.tracker.Track(op)
	defer done()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const selectWager = `SELECT wagers.id, wagers.code, wagers.creator_id, wagers.name, wagers.description, wagers.wager_type,
    wagers.stake_amount, wagers.stake_currency, wagers.total_pot, wagers.max_participants, wagers.participant_count,
    wagers.status, wagers.settings, wagers.created_at,
    COALESCE(wagers.started_at, 'epoch'::timestamptz), COALESCE(wagers.ended_at, 'epoch'::timestamptz)
    FROM wagers`

// lockWager reads the wager row under FOR UPDATE, serialising all mutating
// operations on the same wager for the transaction's duration.
func lockWager(ctx context.Context, tx pgx.Tx, wagerID string) (Wager, error) {
	row := tx.QueryRow(ctx, selectWager+` WHERE wagers.id = $1 FOR UPDATE OF wagers`, wagerID)
	return scanWager(row)
}

func scanWager(row pgx.Row) (Wager, error) {
	var (
		w         Wager
		id        uuid.UUID
		creatorID uuid.UUID
		settings  []byte
		startedAt time.Time
		endedAt   time.Time
	)
	err := row.Scan(&id, &w.Code, &creatorID, &w.Name, &w.Description, &w.Type,
		&w.StakeAmount, &w.StakeCurrency, &w.TotalPot, &w.MaxParticipants, &w.Participants,
		&w.Status, &settings, &w.CreatedAt, &startedAt, &endedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wager{}, ErrNotFound
		}
		return Wager{}, err
	}
	w.ID = id.String()
	w.CreatorID = creatorID.String()
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &w.Settings); err != nil {
			return Wager{}, fmt.Errorf("decode settings: %w", err)
		}
	}
	if !startedAt.IsZero() && startedAt.Unix() > 0 {
		w.StartedAt = startedAt.UTC()
	}
	if !endedAt.IsZero() && endedAt.Unix() > 0 {
		w.EndedAt = endedAt.UTC()
	}
	return w, nil
}

func scanWagers(rows pgx.Rows) ([]Wager, error) {
	defer rows.Close()
	var wagers []Wager
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, err
		}
		wagers = append(wagers, w)
	}
	return wagers, rows.Err()
}

// checkResults enforces the completion contract: every participant settled
// exactly once, nobody from outside the roster, and the summed payouts
// bounded by the pot.
func checkResults(w Wager, roster map[string]bool, results []Result) error {
	var total int64
	for _, res := range results {
		seen, ok := roster[res.UserID]
		if !ok {
			return ErrNotAParticipant
		}
		if seen {
			return fmt.Errorf("duplicate result for user %s", res.UserID)
		}
		roster[res.UserID] = true
		if res.Payout < 0 {
			return fmt.Errorf("payout must not be negative")
		}
		if res.Payout > w.TotalPot {
			return ErrPayoutExceedsPot
		}
		total += res.Payout
		if total > w.TotalPot {
			return ErrPayoutExceedsPot
		}
	}
	if len(results) != len(roster) {
		return fmt.Errorf("results must cover every participant")
	}
	return nil
}
