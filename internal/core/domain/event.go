package domain

import "time"

// DeliveryEventType names a delivery mutation.
type DeliveryEventType string

const (
	EventDeliveryCreated   DeliveryEventType = "delivery.created"
	EventDeliveryAdvanced  DeliveryEventType = "delivery.advanced"
	EventDeliveryCancelled DeliveryEventType = "delivery.cancelled"
)

// DeliveryEvent is published after a delivery mutation has been persisted.
type DeliveryEvent struct {
	Type       DeliveryEventType `json:"type"`
	DeliveryID string            `json:"delivery_id"`
	SenderID   string            `json:"sender_id"`
	Status     DeliveryStatus    `json:"status"`
	Label      string            `json:"status_label"`
	Progress   int               `json:"progress"`
	Rider      *RiderStamp       `json:"rider,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// NewDeliveryEvent snapshots d into an event.
func NewDeliveryEvent(t DeliveryEventType, d *Delivery) DeliveryEvent {
	ev := DeliveryEvent{
		Type:       t,
		DeliveryID: d.ID,
		SenderID:   d.SenderID,
		Status:     d.Status,
		Label:      d.Status.Label(),
		Progress:   d.Progress,
		OccurredAt: d.UpdatedAt,
	}
	if d.Rider != nil {
		r := *d.Rider
		ev.Rider = &r
	}
	return ev
}
