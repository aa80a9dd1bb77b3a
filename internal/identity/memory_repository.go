package identity

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{users: make(map[string]User)}
}

func (r *memoryRepository) Create(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return ErrDuplicateUser
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *memoryRepository) FindByUsername(_ context.Context, username string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *memoryRepository) TouchLastLogin(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	user.LastLogin = time.Now().UTC()
	r.users[id] = user
	return nil
}

func (r *memoryRepository) Judges(_ context.Context, limit int) ([]User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 {
		limit = 20
	}
	var judges []User
	for _, user := range r.users {
		if user.IsJudge {
			judges = append(judges, user)
		}
	}
	sort.Slice(judges, func(i, j int) bool {
		if judges[i].JudgeRating != judges[j].JudgeRating {
			return judges[i].JudgeRating > judges[j].JudgeRating
		}
		return judges[i].DisputesJudged > judges[j].DisputesJudged
	})
	if len(judges) > limit {
		judges = judges[:limit]
	}
	return judges, nil
}

func (r *memoryRepository) IncrementDisputesJudged(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	user.DisputesJudged++
	r.users[id] = user
	return nil
}
