package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// StatusChange is one entry of a delivery's append-only history.
type StatusChange struct {
	Status DeliveryStatus `json:"status"`
	At     time.Time      `json:"at"`
}

// RiderStamp identifies the rider attached to a delivery.
type RiderStamp struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Plate  string `json:"plate,omitempty"`
}

// Delivery is a booked pickup-to-dropoff job.
type Delivery struct {
	ID             string         `json:"id"`
	SenderID       string         `json:"sender_id"`
	CustomerName   string         `json:"customer_name"`
	PickupAddress  string         `json:"pickup_address"`
	DropoffAddress string         `json:"dropoff_address"`
	Items          []string       `json:"items"`
	Status         DeliveryStatus `json:"status"`
	Priority       Priority       `json:"priority"`
	DistanceKm     float64        `json:"distance_km"`
	DurationMin    float64        `json:"duration_min"`
	Distance       string         `json:"distance"`
	EstTime        string         `json:"est_time"`
	Price          int64          `json:"price"`
	FareBreakdown  *FareBreakdown `json:"fare_breakdown,omitempty"`
	Rider          *RiderStamp    `json:"rider,omitempty"`
	Progress       int            `json:"progress"`
	History        []StatusChange `json:"history"`
	CancelReason   string         `json:"cancel_reason,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NewDeliveryParams carries the sender-supplied fields of a new delivery.
type NewDeliveryParams struct {
	ID             string
	SenderID       string
	CustomerName   string
	PickupAddress  string
	DropoffAddress string
	Items          []string
	Priority       Priority
	DistanceKm     float64
	DurationMin    float64
	Price          int64
	FareBreakdown  *FareBreakdown
	Rider          *RiderStamp
}

// NewDelivery builds a PENDING delivery whose history holds the creation step.
func NewDelivery(p NewDeliveryParams, now time.Time) *Delivery {
	id := p.ID
	if id == "" {
		id = NewDeliveryID()
	}
	priority := p.Priority
	if priority == "" {
		priority = PriorityMedium
	}

	d := &Delivery{
		ID:             id,
		SenderID:       p.SenderID,
		CustomerName:   p.CustomerName,
		PickupAddress:  p.PickupAddress,
		DropoffAddress: p.DropoffAddress,
		Items:          append([]string{}, p.Items...),
		Status:         StatusPending,
		Priority:       priority,
		DistanceKm:     p.DistanceKm,
		DurationMin:    p.DurationMin,
		Distance:       FormatDistance(p.DistanceKm),
		EstTime:        FormatDuration(p.DurationMin),
		Price:          p.Price,
		Progress:       ProgressFor(StatusPending, 0),
		History:        []StatusChange{{Status: StatusPending, At: now}},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if p.FareBreakdown != nil {
		fb := *p.FareBreakdown
		d.FareBreakdown = &fb
	}
	if p.Rider != nil {
		r := *p.Rider
		d.Rider = &r
	}
	return d
}

// Advance moves the delivery one step forward. On error d is untouched.
func (d *Delivery) Advance(to DeliveryStatus, at time.Time, rider *RiderStamp) error {
	if !CanAdvance(d.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, to)
	}
	d.apply(to, at)
	if rider != nil {
		r := *rider
		d.Rider = &r
	}
	return nil
}

// Cancel moves any non-terminal delivery to CANCELLED, freezing progress.
func (d *Delivery) Cancel(reason string, at time.Time) error {
	if !CanCancel(d.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, StatusCancelled)
	}
	d.apply(StatusCancelled, at)
	d.CancelReason = reason
	return nil
}

func (d *Delivery) apply(to DeliveryStatus, at time.Time) {
	d.Status = to
	d.Progress = ProgressFor(to, d.Progress)
	d.History = append(d.History, StatusChange{Status: to, At: at})
	d.UpdatedAt = at
}

// IsActive reports whether the delivery still needs work.
func (d *Delivery) IsActive() bool {
	return !d.Status.IsTerminal()
}

// IsAssignedTo reports whether the stamped rider is riderID.
func (d *Delivery) IsAssignedTo(riderID string) bool {
	return d.Rider != nil && d.Rider.ID == riderID
}

// Consistent reports whether history, status and progress agree.
func (d *Delivery) Consistent() bool {
	if len(d.History) == 0 || d.History[len(d.History)-1].Status != d.Status {
		return false
	}
	if d.Status == StatusCancelled {
		return true
	}
	return d.Progress == statusProgress[d.Status]
}

// Clone returns a deep copy so callers never share slices with a store.
func (d *Delivery) Clone() *Delivery {
	if d == nil {
		return nil
	}
	c := *d
	c.Items = append([]string(nil), d.Items...)
	c.History = append([]StatusChange(nil), d.History...)
	if d.FareBreakdown != nil {
		fb := *d.FareBreakdown
		c.FareBreakdown = &fb
	}
	if d.Rider != nil {
		r := *d.Rider
		c.Rider = &r
	}
	return &c
}

// FormatDistance renders a distance the way tracking screens show it: "4.2 km".
func FormatDistance(km float64) string {
	return strconv.FormatFloat(km, 'f', 1, 64) + " km"
}

// FormatDuration renders minutes as "18 mins".
func FormatDuration(minutes float64) string {
	return strconv.FormatFloat(minutes, 'f', 0, 64) + " mins"
}

// NormalizeAddress folds an address for comparison and hashing.
func NormalizeAddress(addr string) string {
	return strings.Join(strings.Fields(strings.ToLower(addr)), " ")
}
