// Package memory holds process-local implementations of the storage ports.
// It backs the single-node simulation and the service tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"courier-dispatch/internal/core/domain"
	"courier-dispatch/internal/core/ports"
)

// DeliveryRepo implements ports.DeliveryRepository in memory.
type DeliveryRepo struct {
	mu    sync.RWMutex
	byID  map[string]*domain.Delivery
	order []string // newest first
}

// NewDeliveryRepo creates an empty delivery repository.
func NewDeliveryRepo() *DeliveryRepo {
	return &DeliveryRepo{byID: make(map[string]*domain.Delivery)}
}

func (r *DeliveryRepo) Create(ctx context.Context, d *domain.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[d.ID]; ok {
		return fmt.Errorf("create %s: %w", d.ID, ports.ErrDuplicateDelivery)
	}
	r.byID[d.ID] = d.Clone()
	r.order = append([]string{d.ID}, r.order...)
	return nil
}

func (r *DeliveryRepo) GetByID(ctx context.Context, id string) (*domain.Delivery, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id].Clone(), nil
}

func (r *DeliveryRepo) Update(ctx context.Context, d *domain.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[d.ID]; !ok {
		return fmt.Errorf("update %s: %w", d.ID, ports.ErrDeliveryNotFound)
	}
	r.byID[d.ID] = d.Clone()
	return nil
}

func (r *DeliveryRepo) List(ctx context.Context) ([]*domain.Delivery, error) {
	return r.filter(func(*domain.Delivery) bool { return true }), nil
}

func (r *DeliveryRepo) ListBySender(ctx context.Context, senderID string) ([]*domain.Delivery, error) {
	return r.filter(func(d *domain.Delivery) bool { return d.SenderID == senderID }), nil
}

func (r *DeliveryRepo) filter(keep func(*domain.Delivery) bool) []*domain.Delivery {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Delivery, 0, len(r.order))
	for _, id := range r.order {
		if d := r.byID[id]; keep(d) {
			out = append(out, d.Clone())
		}
	}
	return out
}
