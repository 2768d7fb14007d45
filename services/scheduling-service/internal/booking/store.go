package booking

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/outbox"
)

// Tx is the unit of work of one commit or cancel. Everything read through it is
// consistent with what it writes.
type Tx interface {
	// LockBay loads the bay and holds its row lock until the transaction ends, serializing
	// every writer of that bay's bookings.
	LockBay(ctx context.Context, bayID string) (model.ServiceBay, error)
	BusyIntervals(ctx context.Context, bayID string, from, to time.Time) ([]availability.Interval, error)
	BookingByIdempotencyKey(ctx context.Context, key string) (model.Booking, bool, error)
	// InsertBooking stores b and its items. An overlap with another live booking on the
	// same bay fails with *model.SlotConflictError.
	InsertBooking(ctx context.Context, b *model.Booking) error
	BookingForUpdate(ctx context.Context, id string) (model.Booking, error)
	MarkCancelled(ctx context.Context, id, reason string, at time.Time) error
	AppendEvent(ctx context.Context, evt outbox.Event) error
}

// Store opens transactions. Returning an error from fn, or cancelling ctx before it
// returns, leaves no trace of the unit of work.
type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error
	BookingsForBay(ctx context.Context, bayID string, from, to time.Time) ([]model.Booking, error)
}

// Catalog is the read-only configuration a commit consults.
type Catalog interface {
	Branch(ctx context.Context, id string) (model.Branch, error)
	Bay(ctx context.Context, id string) (model.ServiceBay, error)
	ServicesByID(ctx context.Context, ids []string) ([]model.Service, error)
}
