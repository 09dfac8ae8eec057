package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"courier-dispatch/internal/core/domain"
	"courier-dispatch/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// UserRepo implements ports.UserRepository. Accounts live in one hash keyed
// by id; a second hash maps lowercased emails to ids.
type UserRepo struct {
	client   *goredis.Client
	usersKey string
	emailKey string
	log      zerolog.Logger
}

// NewUserRepo creates a Redis-backed user directory.
func NewUserRepo(client *goredis.Client, log zerolog.Logger) *UserRepo {
	return &UserRepo{
		client:   client,
		usersKey: keyPrefix + "users",
		emailKey: keyPrefix + "users:email",
		log:      log,
	}
}

func (r *UserRepo) Create(ctx context.Context, u *domain.UserAccount) error {
	payload, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user %s: %w", u.ID, err)
	}

	claimed, err := r.client.HSetNX(ctx, r.emailKey, strings.ToLower(u.Email), u.ID).Result()
	if err != nil {
		return fmt.Errorf("redis user email index: %w", err)
	}
	if !claimed {
		return ports.ErrDuplicateEmail
	}
	if err := r.client.HSet(ctx, r.usersKey, u.ID, payload).Err(); err != nil {
		r.client.HDel(ctx, r.emailKey, strings.ToLower(u.Email))
		return fmt.Errorf("redis user set: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.UserAccount, error) {
	raw, err := r.client.HGet(ctx, r.usersKey, id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis user get: %w", err)
	}
	return r.decode(id, raw), nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.UserAccount, error) {
	id, err := r.client.HGet(ctx, r.emailKey, strings.ToLower(email)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis user email lookup: %w", err)
	}
	return r.GetByID(ctx, id)
}

// Update rewrites the record under WATCH; a concurrent write to the users
// hash aborts it with goredis.TxFailedErr.
func (r *UserRepo) Update(ctx context.Context, u *domain.UserAccount) error {
	err := r.client.Watch(ctx, func(tx *goredis.Tx) error {
		raw, err := tx.HGet(ctx, r.usersKey, u.ID).Bytes()
		if err != nil {
			if errors.Is(err, goredis.Nil) {
				return fmt.Errorf("update %s: %w", u.ID, ports.ErrUserNotFound)
			}
			return fmt.Errorf("redis user get: %w", err)
		}
		var existing domain.UserAccount
		if err := json.Unmarshal(raw, &existing); err != nil {
			return fmt.Errorf("decode user %s: %w", u.ID, err)
		}

		updated := u.Clone()
		updated.Email = existing.Email
		updated.Role = existing.Role
		updated.PasswordHash = existing.PasswordHash
		updated.CreatedAt = existing.CreatedAt
		payload, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("encode user %s: %w", u.ID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, r.usersKey, u.ID, payload)
			return nil
		})
		return err
	}, r.usersKey)
	if err != nil && !errors.Is(err, ports.ErrUserNotFound) {
		return fmt.Errorf("redis user update: %w", err)
	}
	return err
}

// ListRiders returns riders ordered by signup time.
func (r *UserRepo) ListRiders(ctx context.Context) ([]*domain.UserAccount, error) {
	users, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
	var riders []*domain.UserAccount
	for _, u := range users {
		if u.IsRider() {
			riders = append(riders, u)
		}
	}
	return riders, nil
}

func (r *UserRepo) all(ctx context.Context) ([]*domain.UserAccount, error) {
	entries, err := r.client.HGetAll(ctx, r.usersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis user list: %w", err)
	}
	users := make([]*domain.UserAccount, 0, len(entries))
	for id, raw := range entries {
		if u := r.decode(id, []byte(raw)); u != nil {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (r *UserRepo) decode(id string, raw []byte) *domain.UserAccount {
	var u domain.UserAccount
	if err := json.Unmarshal(raw, &u); err != nil {
		r.log.Warn().Err(err).Str("user_id", id).Msg("skipping corrupt user record")
		return nil
	}
	return &u
}
