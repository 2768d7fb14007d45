package model

import "time"

type BookingStatus string

const (
	BookingPending    BookingStatus = "PENDING"
	BookingConfirmed  BookingStatus = "CONFIRMED"
	BookingInProgress BookingStatus = "IN_PROGRESS"
	BookingCompleted  BookingStatus = "COMPLETED"
	BookingCancelled  BookingStatus = "CANCELLED"
)

// Occupies reports whether a booking in this status holds its bay interval.
func (s BookingStatus) Occupies() bool {
	return s != BookingCancelled
}

// Booking reserves [StartAt, EndAt) on one bay. Items are owned by the booking.
type Booking struct {
	ID             string
	BayID          string
	BranchID       string
	CustomerID     string
	VehicleID      string
	StartAt        time.Time
	EndAt          time.Time
	Status         BookingStatus
	Items          []BookingItem
	TotalPrice     int64
	Notes          string
	IdempotencyKey string
	CancelReason   string
	CancelledAt    *time.Time
	CreatedAt      time.Time
}

// BookingItem is one ordered service line of a booking.
type BookingItem struct {
	Position        int
	ServiceID       string
	ServiceName     string
	DurationMinutes int
	Price           int64
}
