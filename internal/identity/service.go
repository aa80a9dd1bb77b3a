package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/greenside-app/greenside/internal/ledger"
)

const welcomeBonusPoints = 500

// ErrInvalidCredentials occurs when a login attempt fails verification.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service manages user lifecycle: registration provisions ledger accounts and
// grants the welcome bonus; authentication verifies stored password hashes.
type Service struct {
	repo   Repository
	ledger ledger.Ledger
}

// NewService creates a new identity service.
func NewService(repo Repository, led ledger.Ledger) *Service {
	return &Service{repo: repo, ledger: led}
}

// Credentials carries registration or login input.
type Credentials struct {
	Username string
	Email    string
	Password string
}

// Register creates a user, provisions point and cash accounts, and credits
// the welcome bonus.
func (s *Service) Register(ctx context.Context, creds Credentials) (User, error) {
	username := strings.TrimSpace(creds.Username)
	if len(username) < 3 {
		return User{}, fmt.Errorf("username must be at least 3 characters")
	}
	if len(creds.Password) < 8 {
		return User{}, fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        strings.ToLower(strings.TrimSpace(creds.Email)),
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	if err := s.ledger.EnsureAccounts(ctx, user.ID); err != nil {
		return User{}, err
	}
	if err := s.ledger.Credit(ctx, user.ID, ledger.CurrencyPoints, welcomeBonusPoints, ledger.Entry{
		Kind:        ledger.KindWelcomeBonus,
		Description: "Welcome bonus",
	}); err != nil {
		return User{}, err
	}

	return user, nil
}

// Authenticate verifies a username/password pair and stamps the login time.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	user, err := s.repo.FindByUsername(ctx, strings.TrimSpace(creds.Username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(creds.Password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	_ = s.repo.TouchLastLogin(ctx, user.ID)
	return user, nil
}

// Get fetches a user by identifier.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// Judges lists the judge directory, best rated first.
func (s *Service) Judges(ctx context.Context, limit int) ([]User, error) {
	return s.repo.Judges(ctx, limit)
}
