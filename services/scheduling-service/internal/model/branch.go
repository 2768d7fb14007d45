package model

import "time"

// Branch is a physical garage location. Hours holds at most one entry per weekday;
// a weekday without an entry is a closed day.
type Branch struct {
	ID       string
	Name     string
	Address  string
	Timezone string
	Active   bool
	Hours    []WorkingHours
}

// WorkingHours is the opening window of a weekday in minutes after local midnight.
type WorkingHours struct {
	Weekday     time.Weekday
	OpenMinute  int
	CloseMinute int
}

// HoursFor returns the entry configured for weekday.
func (b Branch) HoursFor(weekday time.Weekday) (WorkingHours, bool) {
	for _, h := range b.Hours {
		if h.Weekday == weekday {
			return h, true
		}
	}
	return WorkingHours{}, false
}

// Location resolves the branch timezone, falling back to fallback when the name is empty or unknown.
func (b Branch) Location(fallback *time.Location) *time.Location {
	if b.Timezone != "" {
		if loc, err := time.LoadLocation(b.Timezone); err == nil {
			return loc
		}
	}
	if fallback == nil {
		return time.UTC
	}
	return fallback
}

type BayStatus string

const (
	BayActive      BayStatus = "ACTIVE"
	BayMaintenance BayStatus = "MAINTENANCE"
	BayClosed      BayStatus = "CLOSED"
)

// ServiceBay is one service stall. It refers to its branch by id only.
type ServiceBay struct {
	ID           string
	BranchID     string
	Name         string
	Status       BayStatus
	AllowBooking bool
	CreatedAt    time.Time
}

// Bookable reports whether the bay takes part in availability search and commits.
func (b ServiceBay) Bookable() bool {
	return b.Status == BayActive && b.AllowBooking
}

// MaintenanceBlock takes a bay out of service for [StartAt, EndAt).
type MaintenanceBlock struct {
	BayID   string
	StartAt time.Time
	EndAt   time.Time
	Reason  string
}
