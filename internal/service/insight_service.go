package service

import (
	"context"

	"courier-dispatch/internal/core/domain"
	"courier-dispatch/internal/core/ports"
	"courier-dispatch/pkg/apperror"

	"github.com/rs/zerolog"
)

// InsightServiceImpl implements ports.InsightService.
type InsightServiceImpl struct {
	provider   ports.InsightProvider
	deliveries ports.DeliveryService
	log        zerolog.Logger
}

// NewInsightService creates a new InsightServiceImpl. With a nil provider
// every rider gets the static tips.
func NewInsightService(provider ports.InsightProvider, deliveries ports.DeliveryService, log zerolog.Logger) *InsightServiceImpl {
	return &InsightServiceImpl{provider: provider, deliveries: deliveries, log: log}
}

func (s *InsightServiceImpl) Insights(ctx context.Context, rider *domain.UserAccount) ([]domain.Insight, error) {
	if rider == nil || !rider.IsRider() {
		return nil, apperror.ErrForbidden()
	}
	if s.provider == nil {
		return domain.DefaultInsights(), nil
	}

	all, err := s.deliveries.List(ctx)
	if err != nil {
		return nil, err
	}
	mine := make([]*domain.Delivery, 0)
	for _, d := range all {
		if d.IsAssignedTo(rider.ID) {
			mine = append(mine, d)
		}
	}

	insights, err := s.provider.Insights(ctx, mine)
	if err != nil || len(insights) == 0 {
		s.log.Warn().Err(err).Str("rider_id", rider.ID).Msg("insight provider failed, using defaults")
		return domain.DefaultInsights(), nil
	}
	return insights, nil
}
