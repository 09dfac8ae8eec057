package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DeliveryStatus is the lifecycle state of a delivery.
type DeliveryStatus string

const (
	StatusPending   DeliveryStatus = "PENDING"
	StatusAccepted  DeliveryStatus = "ACCEPTED"
	StatusPickedUp  DeliveryStatus = "PICKED_UP"
	StatusInTransit DeliveryStatus = "IN_TRANSIT"
	StatusDelivered DeliveryStatus = "DELIVERED"
	StatusCancelled DeliveryStatus = "CANCELLED"

	// StatusInProgress is a legacy bucket for active, not yet picked up
	// records. It is read but never written by new transitions.
	StatusInProgress DeliveryStatus = "IN_PROGRESS"
)

// nextStatus is the single legal forward step from each non-terminal state.
var nextStatus = map[DeliveryStatus]DeliveryStatus{
	StatusPending:    StatusAccepted,
	StatusAccepted:   StatusPickedUp,
	StatusInProgress: StatusPickedUp,
	StatusPickedUp:   StatusInTransit,
	StatusInTransit:  StatusDelivered,
}

var statusProgress = map[DeliveryStatus]int{
	StatusPending:    0,
	StatusAccepted:   5,
	StatusPickedUp:   25,
	StatusInProgress: 40,
	StatusInTransit:  50,
	StatusDelivered:  100,
}

var statusLabels = map[DeliveryStatus]string{
	StatusPending:    "Pending",
	StatusAccepted:   "Accepted",
	StatusPickedUp:   "Picked Up",
	StatusInProgress: "In Progress",
	StatusInTransit:  "In Transit",
	StatusDelivered:  "Delivered",
	StatusCancelled:  "Cancelled",
}

// IsValid reports whether s is one of the known states.
func (s DeliveryStatus) IsValid() bool {
	_, ok := statusLabels[s]
	return ok
}

// IsTerminal reports whether no further transition is possible from s.
func (s DeliveryStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Label is the human readable form shown to senders and riders.
func (s DeliveryStatus) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Next returns the legal successor of s, if any.
func (s DeliveryStatus) Next() (DeliveryStatus, bool) {
	next, ok := nextStatus[s]
	return next, ok
}

// CanAdvance reports whether moving from -> to is the single permitted forward step.
// CANCELLED is never reachable this way; see CanCancel.
func CanAdvance(from, to DeliveryStatus) bool {
	next, ok := nextStatus[from]
	return ok && next == to
}

// CanCancel reports whether a delivery in status s may be cancelled.
func CanCancel(s DeliveryStatus) bool {
	return s.IsValid() && !s.IsTerminal()
}

// ProgressFor returns the completion percentage for s. Cancellation keeps the
// progress the delivery had reached.
func ProgressFor(s DeliveryStatus, current int) int {
	if s == StatusCancelled {
		return current
	}
	return statusProgress[s]
}

// ParseDeliveryStatus accepts canonical names ("PICKED_UP") as well as the
// display labels written by older clients ("Picked Up", "in transit").
func ParseDeliveryStatus(raw string) (DeliveryStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)

	s := DeliveryStatus(normalized)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	return s, nil
}

// UnmarshalJSON normalizes legacy labels on decode.
func (s *DeliveryStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseDeliveryStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Priority is the sender-chosen urgency of a delivery.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// ParsePriority parses a priority case-insensitively. Empty input means MEDIUM.
func ParsePriority(raw string) (Priority, error) {
	switch p := Priority(strings.ToUpper(strings.TrimSpace(raw))); p {
	case "":
		return PriorityMedium, nil
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, raw)
	}
}
