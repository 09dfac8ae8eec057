package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"courier-dispatch/internal/adapter/storage/memory"
	"courier-dispatch/internal/core/domain"
	"courier-dispatch/internal/core/ports/mocks"
	"courier-dispatch/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var lagos = func() *time.Location {
	loc, err := time.LoadLocation("Africa/Lagos")
	if err != nil {
		panic(err)
	}
	return loc
}()

var trip = domain.QuoteRequest{Pickup: "12 Marina, Lagos", Dropoff: "3 Admiralty Way, Lekki", Items: []string{"Documents"}}

func TestLocalEstimator_Deterministic(t *testing.T) {
	e := NewLocalEstimator()
	ctx := context.Background()

	a, err := e.Estimate(ctx, trip)
	require.NoError(t, err)
	b, err := e.Estimate(ctx, domain.QuoteRequest{Pickup: "12  MARINA, lagos", Dropoff: " 3 Admiralty Way, Lekki "})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, domain.SourceLocal, a.Source)
	assert.GreaterOrEqual(t, a.DistanceKm, 1.0)
	assert.LessOrEqual(t, a.DistanceKm, 9.0)
	assert.Equal(t, a.DurationMin, float64(int(a.DistanceKm*4+5+0.5)))
	assert.True(t, a.Usable())
}

func TestLocalEstimator_RejectsBlankAddresses(t *testing.T) {
	_, err := NewLocalEstimator().Estimate(context.Background(), domain.QuoteRequest{Pickup: "  ", Dropoff: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func newTestQuoteService(t *testing.T, provider *mocks.MockQuoteProvider, at time.Time) (*QuoteServiceImpl, *memory.QuoteStore) {
	t.Helper()
	store := memory.NewQuoteStore()
	svc := NewQuoteService(provider, store, 15*time.Minute, lagos, newTestLogger())
	svc.now = fixedClock(at)
	return svc, store
}

func TestQuoteService_RequestQuote_PricesEstimate(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockQuoteProvider(ctrl)
	svc, _ := newTestQuoteService(t, provider, t0)
	ctx := context.Background()

	provider.EXPECT().Estimate(gomock.Any(), gomock.Any()).
		Return(domain.Estimate{DistanceKm: 10, DurationMin: 20, Reasoning: "grid", Source: domain.SourceRemote}, nil)

	q, err := svc.RequestQuote(ctx, "sender-1", trip)
	require.NoError(t, err)
	assert.NotEmpty(t, q.ID)
	assert.Equal(t, int64(500), q.Breakdown.Base)
	assert.Equal(t, int64(1500), q.Breakdown.DistanceCost)
	assert.Equal(t, int64(1000), q.Breakdown.TimeCost)
	assert.Equal(t, 1.0, q.Breakdown.Multiplier)
	assert.Equal(t, int64(3000), q.Price)
	assert.Equal(t, "10.0 km", q.Distance)
	assert.Equal(t, "20 mins", q.Duration)
	assert.Equal(t, domain.SourceRemote, q.Source)
	assert.Equal(t, t0.Add(15*time.Minute), q.ExpiresAt)

	stored, err := svc.GetQuote(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, q.Price, stored.Price)
}

func TestQuoteService_RequestQuote_SurgeUsesLocalHour(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockQuoteProvider(ctrl)
	// 07:30 UTC is 08:30 in Lagos.
	svc, _ := newTestQuoteService(t, provider, time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC))

	provider.EXPECT().Estimate(gomock.Any(), gomock.Any()).
		Return(domain.Estimate{DistanceKm: 10, DurationMin: 20}, nil)

	q, err := svc.RequestQuote(context.Background(), "sender-1", trip)
	require.NoError(t, err)
	assert.Equal(t, 1.65, q.Breakdown.Multiplier)
	assert.Equal(t, int64(4950), q.Price)
}

func TestQuoteService_RequestQuote_FallsBackToDefault(t *testing.T) {
	tests := map[string]struct {
		est domain.Estimate
		err error
	}{
		"provider error":    {err: errors.New("quota exceeded")},
		"unusable estimate": {est: domain.Estimate{DistanceKm: 0, DurationMin: 12}},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			provider := mocks.NewMockQuoteProvider(ctrl)
			svc, _ := newTestQuoteService(t, provider, t0)

			provider.EXPECT().Estimate(gomock.Any(), gomock.Any()).Return(tc.est, tc.err)

			q, err := svc.RequestQuote(context.Background(), "sender-1", trip)
			require.NoError(t, err)
			assert.Equal(t, 4.2, q.DistanceKm)
			assert.Equal(t, 18.0, q.DurationMin)
			assert.Equal(t, domain.SourceDefault, q.Source)
			// 500 + 630 + 900
			assert.Equal(t, int64(2030), q.Price)
		})
	}
}

func TestQuoteService_RequestQuote_RequiresAddresses(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc, _ := newTestQuoteService(t, mocks.NewMockQuoteProvider(ctrl), t0)

	_, err := svc.RequestQuote(context.Background(), "sender-1", domain.QuoteRequest{Pickup: "a"})
	assert.True(t, apperror.HasCode(err, "GEN_400"))
}

func TestQuoteService_GetQuote_Unknown(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc, _ := newTestQuoteService(t, mocks.NewMockQuoteProvider(ctrl), t0)

	_, err := svc.GetQuote(context.Background(), "missing")
	assert.True(t, apperror.HasCode(err, "DLV_004"))
}

func TestDirectoryMatcher(t *testing.T) {
	users := memory.NewUserRepo()
	ctx := context.Background()
	matcher := NewDirectoryMatcher(users, 0, newTestLogger())

	_, err := matcher.Match(ctx, "12 Marina")
	assert.True(t, apperror.HasCode(err, "DLV_002"))

	require.NoError(t, users.Create(ctx, &domain.UserAccount{ID: "r-off", Email: "off@x.com", Role: domain.RoleRider, CreatedAt: t0}))
	_, err = matcher.Match(ctx, "12 Marina")
	assert.True(t, apperror.HasCode(err, "DLV_002"))

	require.NoError(t, users.Create(ctx, &domain.UserAccount{ID: "r-1", Email: "r1@x.com", Role: domain.RoleRider, IsAvailable: true, CreatedAt: t0.Add(time.Second)}))
	require.NoError(t, users.Create(ctx, &domain.UserAccount{ID: "r-2", Email: "r2@x.com", Role: domain.RoleRider, IsAvailable: true, CreatedAt: t0.Add(2 * time.Second)}))
	require.NoError(t, users.Create(ctx, &domain.UserAccount{ID: "s-1", Email: "s1@x.com", Role: domain.RoleSender, IsAvailable: true, CreatedAt: t0}))

	first, err := matcher.Match(ctx, "12 Marina")
	require.NoError(t, err)
	assert.Contains(t, []string{"r-1", "r-2"}, first.ID)

	again, err := matcher.Match(ctx, "12  marina")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
}

func TestDirectoryMatcher_OfflineRiderNeverMatched(t *testing.T) {
	users := memory.NewUserRepo()
	ctx := context.Background()
	auth := NewAuthService(users, nil, nil, newTestLogger())
	matcher := NewDirectoryMatcher(users, 0, newTestLogger())

	tunde := &domain.UserAccount{ID: "r-1", Email: "tunde@x.com", Role: domain.RoleRider, IsAvailable: true, CreatedAt: t0}
	bola := &domain.UserAccount{ID: "r-2", Email: "bola@x.com", Role: domain.RoleRider, IsAvailable: true, CreatedAt: t0.Add(time.Second)}
	require.NoError(t, users.Create(ctx, tunde))
	require.NoError(t, users.Create(ctx, bola))

	_, err := auth.SetAvailability(ctx, tunde, false)
	require.NoError(t, err)

	for _, pickup := range []string{"12 Marina", "4 Allen Avenue", "Lekki Phase 1", "Yaba Market", "Ikeja City Mall"} {
		rider, err := matcher.Match(ctx, pickup)
		require.NoError(t, err)
		assert.Equal(t, "r-2", rider.ID, pickup)
	}

	_, err = auth.SetAvailability(ctx, bola, false)
	require.NoError(t, err)
	_, err = matcher.Match(ctx, "12 Marina")
	assert.True(t, apperror.HasCode(err, "DLV_002"))
}

func TestDirectoryMatcher_DelayHonoursContext(t *testing.T) {
	matcher := NewDirectoryMatcher(memory.NewUserRepo(), time.Hour, newTestLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := matcher.Match(ctx, "anywhere")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
