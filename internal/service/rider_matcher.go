package service

import (
	"context"
	"fmt"
	"time"

	"courier-dispatch/internal/core/domain"
	"courier-dispatch/internal/core/ports"
	"courier-dispatch/pkg/apperror"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
)

// DirectoryMatcher implements ports.RiderMatcher by picking an available
// rider from the user directory. The pick is a stable function of the
// pickup address so repeated bookings from one place spread predictably.
type DirectoryMatcher struct {
	users ports.UserRepository
	delay time.Duration
	log   zerolog.Logger
}

// NewDirectoryMatcher creates a matcher that waits delay before answering.
func NewDirectoryMatcher(users ports.UserRepository, delay time.Duration, log zerolog.Logger) *DirectoryMatcher {
	return &DirectoryMatcher{users: users, delay: delay, log: log}
}

func (m *DirectoryMatcher) Match(ctx context.Context, pickup string) (*domain.UserAccount, error) {
	if m.delay > 0 {
		timer := time.NewTimer(m.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	riders, err := m.users.ListRiders(ctx)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("list riders: %w", err))
	}

	available := make([]*domain.UserAccount, 0, len(riders))
	for _, r := range riders {
		if r.IsAvailable {
			available = append(available, r)
		}
	}
	if len(available) == 0 {
		return nil, apperror.ErrNoRiderAvailable()
	}

	idx := xxhash.Sum64String(domain.NormalizeAddress(pickup)) % uint64(len(available))
	rider := available[idx]
	m.log.Debug().Str("rider_id", rider.ID).Int("candidates", len(available)).Msg("rider matched")
	return rider, nil
}
