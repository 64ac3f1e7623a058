package model

import "time"

// Reservation is one booked interval [StartTime, EndTime) at one restaurant
// for one customer.  The interval is half-open: a reservation ending at T does
// not conflict with one starting at T.
//
// Restaurant and Customer are populated only by list queries that join them.
type Reservation struct {
	ID           uint64            `json:"id"`
	RestaurantID uint64            `json:"restaurantId"`
	CustomerID   uint64            `json:"customerId"`
	StartTime    time.Time         `json:"startTime"`
	EndTime      time.Time         `json:"endTime"`
	PartySize    int               `json:"partySize"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	Lines        []ReservationLine `json:"menus"`
	Restaurant   *RestaurantRef    `json:"restaurant,omitempty"`
	Customer     *CustomerRef      `json:"customer,omitempty"`
}

// Overlaps reports whether r intersects [start, end) under half-open semantics.
func (r Reservation) Overlaps(start, end time.Time) bool {
	return r.StartTime.Before(end) && r.EndTime.After(start)
}

// ReservationLine is a menu selection inside a reservation, keyed by
// (ReservationID, MenuID).  Menu is filled in when lines are read back with
// their catalog details.
type ReservationLine struct {
	ReservationID uint64   `json:"reservationId"`
	MenuID        uint64   `json:"menuId"`
	Quantity      int      `json:"quantity"`
	Menu          *MenuRef `json:"menu,omitempty"`
}

// MenuRef is the slice of catalog data shown next to a line.
type MenuRef struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	Price    uint32 `json:"price"`
	Category string `json:"category"`
}

type RestaurantRef struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

type CustomerRef struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
}
