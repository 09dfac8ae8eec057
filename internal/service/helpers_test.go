package service

import (
	"context"
	"time"

	"courier-dispatch/internal/adapter/storage/memory"
	"courier-dispatch/internal/core/domain"
	"courier-dispatch/internal/core/ports"
)

// 10:00 UTC is 11:00 in Lagos, outside the surge windows.
var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestWalletService() (*WalletServiceImpl, *memory.WalletRepo) {
	repo := memory.NewWalletRepo()
	svc := NewWalletService(repo, memory.NewLocker(), 5000, newTestLogger())
	svc.now = fixedClock(t0)
	return svc, repo
}

func newTestDeliveryService(events ports.EventPublisher) (*DeliveryServiceImpl, *memory.DeliveryRepo) {
	repo := memory.NewDeliveryRepo()
	svc := NewDeliveryService(repo, memory.NewLocker(), events, newTestLogger())
	svc.now = fixedClock(t0)
	return svc, repo
}

func createPending(svc *DeliveryServiceImpl, rider *domain.RiderStamp) (*domain.Delivery, error) {
	return svc.Create(context.Background(), ports.CreateDeliveryRequest{
		SenderID:       "sender-1",
		CustomerName:   "Ada",
		PickupAddress:  "12 Marina, Lagos",
		DropoffAddress: "3 Admiralty Way, Lekki",
		Items:          []string{"Documents"},
		DistanceKm:     4.2,
		DurationMin:    18,
		Price:          2030,
		Rider:          rider,
	})
}

// recordingPublisher collects published events.
type recordingPublisher struct {
	events []domain.DeliveryEvent
}

func (r *recordingPublisher) Publish(_ context.Context, ev domain.DeliveryEvent) {
	r.events = append(r.events, ev)
}
