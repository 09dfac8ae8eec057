package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"courier-dispatch/internal/core/domain"
	"courier-dispatch/internal/core/ports"
	"courier-dispatch/pkg/apperror"

	"github.com/rs/zerolog"
)

// DeliveryServiceImpl implements ports.DeliveryService.
type DeliveryServiceImpl struct {
	repo   ports.DeliveryRepository
	locker ports.Locker
	events ports.EventPublisher
	now    func() time.Time
	log    zerolog.Logger
}

// NewDeliveryService creates a new DeliveryServiceImpl. events may be nil.
func NewDeliveryService(repo ports.DeliveryRepository, locker ports.Locker, events ports.EventPublisher, log zerolog.Logger) *DeliveryServiceImpl {
	return &DeliveryServiceImpl{
		repo:   repo,
		locker: locker,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
		log:    log,
	}
}

// Create stores a new PENDING delivery.
func (s *DeliveryServiceImpl) Create(ctx context.Context, req ports.CreateDeliveryRequest) (*domain.Delivery, error) {
	if strings.TrimSpace(req.SenderID) == "" {
		return nil, apperror.ErrInvalidInput("sender is required")
	}
	if strings.TrimSpace(req.PickupAddress) == "" || strings.TrimSpace(req.DropoffAddress) == "" {
		return nil, apperror.ErrInvalidInput("pickup and dropoff addresses are required")
	}
	if req.Price < 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if req.DistanceKm < 0 || req.DurationMin < 0 {
		return nil, apperror.ErrInvalidInput("distance and duration must not be negative")
	}
	priority, err := domain.ParsePriority(string(req.Priority))
	if err != nil {
		return nil, apperror.ErrInvalidInput(err.Error())
	}

	d := domain.NewDelivery(domain.NewDeliveryParams{
		ID:             req.ID,
		SenderID:       req.SenderID,
		CustomerName:   strings.TrimSpace(req.CustomerName),
		PickupAddress:  strings.TrimSpace(req.PickupAddress),
		DropoffAddress: strings.TrimSpace(req.DropoffAddress),
		Items:          req.Items,
		Priority:       priority,
		DistanceKm:     req.DistanceKm,
		DurationMin:    req.DurationMin,
		Price:          req.Price,
		FareBreakdown:  req.FareBreakdown,
		Rider:          req.Rider,
	}, s.now())

	if err := s.repo.Create(ctx, d); err != nil {
		if errors.Is(err, ports.ErrDuplicateDelivery) {
			return nil, apperror.ErrDeliveryExists()
		}
		return nil, apperror.ErrStorage(fmt.Errorf("create delivery: %w", err))
	}

	s.log.Info().Str("delivery_id", d.ID).Str("sender_id", d.SenderID).Int64("price", d.Price).Msg("delivery created")
	s.publish(ctx, domain.EventDeliveryCreated, d)
	return d, nil
}

func (s *DeliveryServiceImpl) Get(ctx context.Context, id string) (*domain.Delivery, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("get delivery: %w", err))
	}
	if d == nil {
		return nil, apperror.ErrNotFound("Delivery")
	}
	return d, nil
}

// List returns every delivery, newest first.
func (s *DeliveryServiceImpl) List(ctx context.Context) ([]*domain.Delivery, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("list deliveries: %w", err))
	}
	return list, nil
}

func (s *DeliveryServiceImpl) ListBySender(ctx context.Context, senderID string) ([]*domain.Delivery, error) {
	list, err := s.repo.ListBySender(ctx, senderID)
	if err != nil {
		return nil, apperror.ErrStorage(fmt.Errorf("list deliveries: %w", err))
	}
	return list, nil
}

// ActiveJobs returns deliveries that are neither delivered nor cancelled.
func (s *DeliveryServiceImpl) ActiveJobs(ctx context.Context) ([]*domain.Delivery, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]*domain.Delivery, 0, len(list))
	for _, d := range list {
		if d.IsActive() {
			active = append(active, d)
		}
	}
	return active, nil
}

// Advance moves a delivery one step forward. When rider is set it must be
// the stamped rider, or the delivery must not have one yet; another rider's
// job is reported as not found.
func (s *DeliveryServiceImpl) Advance(ctx context.Context, id string, target domain.DeliveryStatus, rider *domain.RiderStamp) (*domain.Delivery, error) {
	if !target.IsValid() {
		return nil, apperror.ErrInvalidInput(fmt.Sprintf("unknown status %q", target))
	}

	return s.mutate(ctx, id, domain.EventDeliveryAdvanced, func(d *domain.Delivery) error {
		if rider != nil && d.Rider != nil && d.Rider.ID != rider.ID {
			return apperror.ErrNotFound("Delivery")
		}
		from := d.Status
		if err := d.Advance(target, s.now(), rider); err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				return apperror.ErrInvalidTransition(string(from), string(target))
			}
			return apperror.InternalError(err)
		}
		return nil
	})
}

// Cancel moves any non-terminal delivery to CANCELLED.
func (s *DeliveryServiceImpl) Cancel(ctx context.Context, id string, reason string) (*domain.Delivery, error) {
	return s.mutate(ctx, id, domain.EventDeliveryCancelled, func(d *domain.Delivery) error {
		from := d.Status
		if err := d.Cancel(strings.TrimSpace(reason), s.now()); err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				return apperror.ErrInvalidTransition(string(from), string(domain.StatusCancelled))
			}
			return apperror.InternalError(err)
		}
		return nil
	})
}

// RiderSummary aggregates the deliveries stamped with rider.
func (s *DeliveryServiceImpl) RiderSummary(ctx context.Context, rider *domain.UserAccount) (*ports.RiderSummary, error) {
	if rider == nil {
		return nil, apperror.ErrInvalidInput("rider is required")
	}
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	summary := &ports.RiderSummary{RiderID: rider.ID}
	for _, d := range list {
		if !d.IsAssignedTo(rider.ID) {
			continue
		}
		switch {
		case d.Status == domain.StatusDelivered:
			summary.Completed++
			summary.Earnings += d.Price
		case d.IsActive():
			summary.ActiveJobs++
			if summary.CurrentJob == nil {
				summary.CurrentJob = d
			}
		}
	}
	return summary, nil
}

// mutate runs fn on the locked delivery and persists the result. fn leaves
// d untouched when it fails.
func (s *DeliveryServiceImpl) mutate(ctx context.Context, id string, evType domain.DeliveryEventType, fn func(d *domain.Delivery) error) (*domain.Delivery, error) {
	unlock, err := acquire(ctx, s.locker, deliveryLockKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(d); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, d); err != nil {
		if errors.Is(err, ports.ErrDeliveryNotFound) {
			return nil, apperror.ErrNotFound("Delivery")
		}
		return nil, apperror.ErrStorage(fmt.Errorf("update delivery: %w", err))
	}

	s.log.Info().Str("delivery_id", d.ID).Str("status", string(d.Status)).Int("progress", d.Progress).Msg("delivery updated")
	s.publish(ctx, evType, d)
	return d, nil
}

func (s *DeliveryServiceImpl) publish(ctx context.Context, t domain.DeliveryEventType, d *domain.Delivery) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, domain.NewDeliveryEvent(t, d))
}
