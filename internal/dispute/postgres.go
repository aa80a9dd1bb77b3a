package dispute

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greenside-app/greenside/internal/identity"
	"github.com/greenside-app/greenside/internal/infra"
	"github.com/greenside-app/greenside/internal/ledger"
)

const uniqueViolation = "23505"

// PostgresStore keeps disputes in PostgreSQL. A partial unique index on
// wager_id over unresolved rows enforces one live dispute per wager.
type PostgresStore struct {
	db      *pgxpool.Pool
	tracker *infra.CheckoutTracker
}

// NewPostgresStore builds a dispute store backed by PostgreSQL.
func NewPostgresStore(db *pgxpool.Pool, tracker *infra.CheckoutTracker) *PostgresStore {
	return &PostgresStore{db: db, tracker: tracker}
}

func (s *PostgresStore) Create(ctx context.Context, d Dispute) error {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `INSERT INTO disputes (id, wager_id, reporter_id, accused_id, dispute_type, description, evidence, status, filed_at)
        VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9)`,
		id, d.WagerID, d.ReporterID, d.AccusedID, d.Type, d.Description, d.Evidence, StatusOpen, d.FiledAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDisputeExists
		}
		return err
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Dispute, error) {
	return s.scanOne(s.db.QueryRow(ctx, selectDispute+` WHERE id = $1`, id))
}

func (s *PostgresStore) Assign(ctx context.Context, id, judgeID string) (Dispute, error) {
	row := s.db.QueryRow(ctx, `UPDATE disputes SET status = $3, judge_id = $2
        WHERE id = $1 AND status = $4
        RETURNING `+disputeColumns,
		id, judgeID, StatusAssigned, StatusOpen)
	d, err := s.scanOne(row)
	if errors.Is(err, ErrNotFound) {
		return Dispute{}, s.transitionFailure(ctx, id, StatusOpen)
	}
	return d, err
}

// Resolve commits the resolved mark, the judge fee credit and the judge's
// dispute counter in one transaction. A failed fee credit rolls the
// dispute back to assigned so the judge can retry.
func (s *PostgresStore) Resolve(ctx context.Context, id string, st Settlement) (Dispute, error) {
	done := s.tracker.Track("dispute.resolve")
	defer done()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Dispute{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	row := tx.QueryRow(ctx, `UPDATE disputes SET status = $4, decision = $2, resolution = $3, judge_fee = $5, resolved_at = $6
        WHERE id = $1 AND status = $7 AND judge_id = $8
        RETURNING `+disputeColumns,
		id, st.Decision, st.Resolution, StatusResolved, st.Fee, time.Now().UTC(), StatusAssigned, st.JudgeID)
	d, err := s.scanOne(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Dispute{}, s.transitionFailure(ctx, id, StatusAssigned)
		}
		return Dispute{}, err
	}
	if st.Fee > 0 {
		if err := ledger.CreditTx(ctx, tx, st.JudgeID, st.Currency, st.Fee, st.FeeEntry); err != nil {
			return Dispute{}, err
		}
	}
	if err := identity.IncrementDisputesJudgedTx(ctx, tx, st.JudgeID); err != nil {
		return Dispute{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Dispute{}, err
	}
	return d, nil
}

func (s *PostgresStore) Open(ctx context.Context, limit int) ([]Dispute, error) {
	rows, err := s.db.Query(ctx, selectDispute+` WHERE status = $1 ORDER BY filed_at ASC LIMIT $2`,
		StatusOpen, limit)
	if err != nil {
		return nil, err
	}
	return s.scanAll(rows)
}

func (s *PostgresStore) ByWager(ctx context.Context, wagerID string) ([]Dispute, error) {
	rows, err := s.db.Query(ctx, selectDispute+` WHERE wager_id = $1 ORDER BY filed_at DESC`, wagerID)
	if err != nil {
		return nil, err
	}
	return s.scanAll(rows)
}

const disputeColumns = `id, wager_id, reporter_id, COALESCE(accused_id, ''),
    dispute_type, description, COALESCE(evidence, '{}'::text[]), status,
    COALESCE(judge_id, ''), COALESCE(decision, ''), COALESCE(resolution, ''),
    COALESCE(judge_fee, 0), filed_at, COALESCE(resolved_at, 'epoch'::timestamptz)`

const selectDispute = `SELECT ` + disputeColumns + ` FROM disputes`

// transitionFailure explains a zero-row guarded update.
func (s *PostgresStore) transitionFailure(ctx context.Context, id, wantStatus string) error {
	d, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	switch d.Status {
	case StatusResolved:
		return ErrAlreadyResolved
	case StatusAssigned:
		if wantStatus == StatusOpen {
			return ErrAlreadyAssigned
		}
		return ErrNotAssigned
	default:
		return ErrNotAssigned
	}
}

func (s *PostgresStore) scanOne(row pgx.Row) (Dispute, error) {
	var d Dispute
	err := row.Scan(&d.ID, &d.WagerID, &d.ReporterID, &d.AccusedID,
		&d.Type, &d.Description, &d.Evidence, &d.Status,
		&d.JudgeID, &d.Decision, &d.Resolution,
		&d.JudgeFee, &d.FiledAt, &d.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Dispute{}, ErrNotFound
		}
		return Dispute{}, err
	}
	if d.ResolvedAt.Unix() == 0 {
		d.ResolvedAt = time.Time{}
	}
	return d, nil
}

func (s *PostgresStore) scanAll(rows pgx.Rows) ([]Dispute, error) {
	defer rows.Close()
	var out []Dispute
	for rows.Next() {
		d, err := s.scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
