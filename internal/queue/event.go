// Package queue defines message payloads exchanged over the message broker
// and the consumer that records them.
package queue

import "time"

// ReservationQueueName is the durable queue reservation events are routed to.
const ReservationQueueName = "reservation.events"

// Event types carried in ReservationEvent.Type.
const (
	EventReservationCreated   = "reservation.created"
	EventReservationUpdated   = "reservation.updated"
	EventReservationCancelled = "reservation.cancelled"
)

// ReservationEvent is published after a reservation write commits.  It holds
// enough of the reservation for consumers to log or notify without querying
// the primary database.  Lines is empty for cancellations.
type ReservationEvent struct {
	EventID       string      `json:"event_id"`
	Type          string      `json:"type"`
	ReservationID uint64      `json:"reservation_id"`
	CustomerID    uint64      `json:"customer_id"`
	RestaurantID  uint64      `json:"restaurant_id"`
	StartTime     time.Time   `json:"start_time"`
	EndTime       time.Time   `json:"end_time"`
	PartySize     int         `json:"party_size"`
	Lines         []EventLine `json:"menus,omitempty"`
	OccurredAt    time.Time   `json:"occurred_at"`
}

// EventLine is a menu selection as carried in an event.
type EventLine struct {
	MenuID   uint64 `json:"menu_id"`
	Quantity int    `json:"quantity"`
}
