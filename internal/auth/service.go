package auth

import (
	"time"

	"github.com/greenside-app/greenside/internal/config"
	"github.com/greenside-app/greenside/internal/identity"
)

const tokenTTL = 24 * time.Hour

// Service issues access tokens for authenticated users.
type Service struct {
	secret []byte
}

// NewService creates an auth service from the configured signing secret.
func NewService(cfg config.Config) *Service {
	return &Service{secret: []byte(cfg.JWTSecret)}
}

// IssueToken signs an access token for the user.
func (s *Service) IssueToken(user identity.User) (string, error) {
	now := time.Now().UTC()
	claims := map[string]any{
		"sub": user.ID,
		"iat": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
	}
	return SignHS256(claims, s.secret)
}

// VerifyToken checks a token and returns the subject user id.
func (s *Service) VerifyToken(token string) (string, error) {
	claims, err := ParseAndVerifyHS256(token, s.secret)
	if err != nil {
		return "", err
	}
	if exp, ok := claims["exp"].(float64); ok && time.Now().UTC().Unix() > int64(exp) {
		return "", ErrTokenExpired
	}
	sub, _ := claims["sub"].(string)
	return sub, nil
}
