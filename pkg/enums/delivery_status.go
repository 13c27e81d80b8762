package enums

import "fmt"

// DeliveryStatus tracks courier assignment and movement for a delivery.
type DeliveryStatus string

const (
	DeliveryStatusFindingDriver  DeliveryStatus = "FINDING_DRIVER"
	DeliveryStatusDriverAssigned DeliveryStatus = "DRIVER_ASSIGNED"
	DeliveryStatusDriverArrived  DeliveryStatus = "DRIVER_ARRIVED"
	DeliveryStatusPickedUp       DeliveryStatus = "PICKED_UP"
	DeliveryStatusOnTheWay       DeliveryStatus = "ON_THE_WAY"
	DeliveryStatusDelivered      DeliveryStatus = "DELIVERED"
	DeliveryStatusFailed         DeliveryStatus = "FAILED"
)

// validDeliveryStatuses is ordered along the happy path; FAILED sits outside it.
var validDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusFindingDriver,
	DeliveryStatusDriverAssigned,
	DeliveryStatusDriverArrived,
	DeliveryStatusPickedUp,
	DeliveryStatusOnTheWay,
	DeliveryStatusDelivered,
	DeliveryStatusFailed,
}

// String implements fmt.Stringer.
func (s DeliveryStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known DeliveryStatus.
func (s DeliveryStatus) IsValid() bool {
	return s.rank() >= 0
}

func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryStatusDelivered || s == DeliveryStatusFailed
}

// RequiresCourier reports whether a delivery in this status must have a courier attached.
func (s DeliveryStatus) RequiresCourier() bool {
	switch s {
	case DeliveryStatusDriverAssigned, DeliveryStatusDriverArrived, DeliveryStatusPickedUp,
		DeliveryStatusOnTheWay, DeliveryStatusDelivered:
		return true
	}
	return false
}

// CanAdvanceTo reports whether next is strictly ahead of s. FAILED is reachable
// from every non-terminal status.
func (s DeliveryStatus) CanAdvanceTo(next DeliveryStatus) bool {
	if !s.IsValid() || !next.IsValid() || s.IsTerminal() {
		return false
	}
	if next == DeliveryStatusFailed {
		return true
	}
	return next.rank() > s.rank()
}

func (s DeliveryStatus) rank() int {
	for i, candidate := range validDeliveryStatuses {
		if candidate == s {
			return i
		}
	}
	return -1
}

// ParseDeliveryStatus converts raw input into a DeliveryStatus.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	for _, candidate := range validDeliveryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery status %q", value)
}
