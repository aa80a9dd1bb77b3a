package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound occurs when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateUser occurs when the username or email is already taken.
	ErrDuplicateUser = errors.New("username or email already registered")
)

// Repository persists user records.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByID(ctx context.Context, id string) (User, error)
	FindByUsername(ctx context.Context, username string) (User, error)
	TouchLastLogin(ctx context.Context, id string) error
	// Judges lists users with the judge flag set, best rated first.
	Judges(ctx context.Context, limit int) ([]User, error)
	// IncrementDisputesJudged bumps a judge's lifetime resolved-dispute count.
	IncrementDisputesJudged(ctx context.Context, id string) error
}

// PostgresRepository stores users in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a user record.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	id, err := uuid.Parse(user.ID)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `INSERT INTO users (id, username, email, password_hash, is_judge, judge_rating, disputes_judged, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT DO NOTHING`,
		id, user.Username, user.Email, user.PasswordHash, user.IsJudge, user.JudgeRating, user.DisputesJudged, user.CreatedAt.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateUser
	}
	return nil
}

// FindByID fetches a user by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

// FindByUsername fetches a user by username.
func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (User, error) {
	return r.findOne(ctx, `WHERE username = $1`, username)
}

// TouchLastLogin stamps the user's last successful login.
func (r *PostgresRepository) TouchLastLogin(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_login = NOW() WHERE id = $1`, id)
	return err
}

// Judges lists judge users, best rated first.
func (r *PostgresRepository) Judges(ctx context.Context, limit int) ([]User, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, `SELECT id, username, email, password_hash, is_judge, judge_rating, disputes_judged, created_at, COALESCE(last_login, created_at)
        FROM users WHERE is_judge = true
        ORDER BY judge_rating DESC, disputes_judged DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var judges []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		judges = append(judges, user)
	}
	return judges, rows.Err()
}

// IncrementDisputesJudged bumps a judge's resolved-dispute counter.
func (r *PostgresRepository) IncrementDisputesJudged(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET disputes_judged = disputes_judged + 1 WHERE id = $1`, id)
	return err
}

// IncrementDisputesJudgedTx bumps the counter inside the caller's
// transaction, so dispute resolution commits it together with the fee
// credit and the resolved mark.
func IncrementDisputesJudgedTx(ctx context.Context, tx pgx.Tx, id string) error {
	tag, err := tx.Exec(ctx, `UPDATE users SET disputes_judged = disputes_judged + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) findOne(ctx context.Context, where string, arg any) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT id, username, email, password_hash, is_judge, judge_rating, disputes_judged, created_at, COALESCE(last_login, created_at)
        FROM users `+where, arg)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user      User
		id        uuid.UUID
		createdAt time.Time
		lastLogin time.Time
	)
	if err := row.Scan(&id, &user.Username, &user.Email, &user.PasswordHash, &user.IsJudge, &user.JudgeRating, &user.DisputesJudged, &createdAt, &lastLogin); err != nil {
		return User{}, err
	}
	user.ID = id.String()
	user.CreatedAt = createdAt.UTC()
	user.LastLogin = lastLogin.UTC()
	return user, nil
}
