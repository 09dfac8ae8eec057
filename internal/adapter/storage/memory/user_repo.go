package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"courier-dispatch/internal/core/domain"
	"courier-dispatch/internal/core/ports"
)

// UserRepo implements ports.UserRepository in memory.
type UserRepo struct {
	mu    sync.RWMutex
	users map[string]*domain.UserAccount
}

// NewUserRepo creates an empty user directory.
func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[string]*domain.UserAccount)}
}

func (r *UserRepo) Create(ctx context.Context, u *domain.UserAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ports.ErrDuplicateEmail
		}
	}
	r.users[u.ID] = u.Clone()
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.UserAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.users[id].Clone(), nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.UserAccount, error) {
	return r.find(func(u *domain.UserAccount) bool { return strings.EqualFold(u.Email, email) }), nil
}

func (r *UserRepo) Update(ctx context.Context, u *domain.UserAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.users[u.ID]
	if !ok {
		return fmt.Errorf("update %s: %w", u.ID, ports.ErrUserNotFound)
	}
	updated := u.Clone()
	updated.Email = existing.Email
	updated.Role = existing.Role
	updated.PasswordHash = existing.PasswordHash
	updated.CreatedAt = existing.CreatedAt
	r.users[u.ID] = updated
	return nil
}

// ListRiders returns riders ordered by signup time.
func (r *UserRepo) ListRiders(ctx context.Context) ([]*domain.UserAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var riders []*domain.UserAccount
	for _, u := range r.users {
		if u.IsRider() {
			riders = append(riders, u.Clone())
		}
	}
	sort.Slice(riders, func(i, j int) bool {
		if riders[i].CreatedAt.Equal(riders[j].CreatedAt) {
			return riders[i].ID < riders[j].ID
		}
		return riders[i].CreatedAt.Before(riders[j].CreatedAt)
	})
	return riders, nil
}

func (r *UserRepo) find(match func(*domain.UserAccount) bool) *domain.UserAccount {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			return u.Clone()
		}
	}
	return nil
}
