// Package order implements the lifecycle state machine and placement flow
// for orders.
package order

import (
	"errors"

	"github.com/noah-isme/backend-khana/internal/store"
)

// Status is an order lifecycle state. The numeric values are the wire codes
// persisted and exchanged with clients.
type Status int

const (
	StatusPlaced          Status = store.StatusPlaced
	StatusPreparing       Status = store.StatusPreparing
	StatusAssigned        Status = store.StatusAssigned
	StatusDelivered       Status = store.StatusDelivered
	StatusAccepted        Status = store.StatusAccepted
	StatusRejected        Status = store.StatusRejected
	StatusPickupConfirmed Status = store.StatusPickupConfirmed
	StatusCancelled       Status = store.StatusCancelled
)

// ErrInvalidTransition is returned for transitions the state machine does
// not admit, including any exit from a terminal state.
var ErrInvalidTransition = errors.New("invalid order status transition")

var transitions = map[Status][]Status{
	StatusPlaced:          {StatusPreparing, StatusCancelled},
	StatusPreparing:       {StatusAssigned, StatusCancelled},
	StatusAssigned:        {StatusAccepted, StatusRejected},
	StatusAccepted:        {StatusPickupConfirmed, StatusCancelled},
	StatusPickupConfirmed: {StatusDelivered},
}

// Allowed reports whether the machine admits a transition from one state to
// another.
func Allowed(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the state admits no further transitions.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0 && s.Known()
}

// Known reports whether the value is a recognised status code.
func (s Status) Known() bool {
	switch s {
	case StatusPlaced, StatusPreparing, StatusAssigned, StatusDelivered,
		StatusAccepted, StatusRejected, StatusPickupConfirmed, StatusCancelled:
		return true
	}
	return false
}

// String returns the human-readable status label used in timelines.
func (s Status) String() string {
	switch s {
	case StatusPlaced:
		return "PLACED"
	case StatusPreparing:
		return "PREPARING"
	case StatusAssigned:
		return "ASSIGNED"
	case StatusDelivered:
		return "DELIVERED"
	case StatusAccepted:
		return "ACCEPTED"
	case StatusRejected:
		return "REJECTED"
	case StatusPickupConfirmed:
		return "PICKUP_CONFIRMED"
	case StatusCancelled:
		return "CANCELLED"
	}
	return "UNKNOWN"
}

// timelineTitle is the human-readable line appended to the order timeline
// when the order enters the state.
func (s Status) timelineTitle() string {
	switch s {
	case StatusPlaced:
		return "Order placed"
	case StatusPreparing:
		return "Order is being prepared"
	case StatusAssigned:
		return "Delivery partner assigned"
	case StatusAccepted:
		return "Delivery partner accepted the order"
	case StatusRejected:
		return "Order rejected"
	case StatusPickupConfirmed:
		return "Pickup confirmed"
	case StatusDelivered:
		return "Order delivered"
	case StatusCancelled:
		return "Order cancelled"
	}
	return "Status updated"
}
