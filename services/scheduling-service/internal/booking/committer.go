package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/outbox"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/pricing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CommitRequest reserves [Date StartTime, +DurationMinutes) on BayID. A zero DurationMinutes
// means the sum of the selected services' durations.
type CommitRequest struct {
	BayID           string
	Date            string
	StartTime       string
	DurationMinutes int
	CustomerID      string
	VehicleID       string
	Services        model.ServiceSelector
	Status          model.BookingStatus
	Notes           string
	IdempotencyKey  string
}

type Committer struct {
	store    Store
	catalog  Catalog
	prices   pricing.Resolver
	logger   *slog.Logger
	location *time.Location
	tracer   trace.Tracer
	now      func() time.Time
}

func NewCommitter(store Store, catalog Catalog, prices pricing.Resolver, logger *slog.Logger, defaultLocation *time.Location) *Committer {
	if defaultLocation == nil {
		defaultLocation = time.UTC
	}
	return &Committer{
		store:    store,
		catalog:  catalog,
		prices:   prices,
		logger:   logger,
		location: defaultLocation,
		tracer:   otel.Tracer("scheduling-service/booking"),
		now:      time.Now,
	}
}

type validRequest struct {
	date     time.Time
	minute   int
	services []model.Service
	duration time.Duration
	status   model.BookingStatus
}

// Commit re-checks the bay against its live bookings and inserts the booking in the same
// transaction. A lost race surfaces as *model.SlotConflictError; no other slot is ever
// chosen on the caller's behalf.
func (c *Committer) Commit(ctx context.Context, req CommitRequest) (model.Booking, error) {
	ctx, span := c.tracer.Start(ctx, "booking.commit", trace.WithAttributes(
		attribute.String("bay.id", req.BayID),
		attribute.String("date", req.Date),
		attribute.String("start_time", req.StartTime),
	))
	defer span.End()

	b, err := c.commit(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return model.Booking{}, err
	}
	span.SetAttributes(attribute.String("booking.id", b.ID))
	return b, nil
}

func (c *Committer) commit(ctx context.Context, req CommitRequest) (model.Booking, error) {
	v, err := c.validate(ctx, req)
	if err != nil {
		return model.Booking{}, err
	}

	var out model.Booking
	err = c.store.InTx(ctx, func(tx Tx) error {
		bay, err := tx.LockBay(ctx, req.BayID)
		if err != nil {
			return err
		}
		if req.IdempotencyKey != "" {
			prev, found, err := tx.BookingByIdempotencyKey(ctx, req.IdempotencyKey)
			if err != nil {
				return err
			}
			if found {
				out = prev
				return nil
			}
		}
		if !bay.Bookable() {
			return &model.BayUnavailableError{BayID: bay.ID, Status: bay.Status}
		}
		branch, err := c.catalog.Branch(ctx, bay.BranchID)
		if err != nil {
			return err
		}
		if !branch.Active {
			return &model.BayUnavailableError{BayID: bay.ID, Status: bay.Status}
		}

		loc := branch.Location(c.location)
		window, err := availability.WorkingWindow(branch, v.date, loc)
		if err != nil {
			return err
		}
		want := availability.Interval{Start: model.At(window.Start, v.minute), End: model.At(window.Start, v.minute).Add(v.duration)}
		if want.Start.Before(c.now()) {
			return model.Invalid("start_time", "%s %s has already passed", req.Date, req.StartTime)
		}

		busy, err := tx.BusyIntervals(ctx, bay.ID, window.Start, window.End)
		if err != nil {
			return fmt.Errorf("busy intervals for bay %s: %w", bay.ID, err)
		}
		if !availability.Fits(availability.FreeRanges(window, busy), want) {
			return &model.SlotConflictError{BayID: bay.ID, StartAt: want.Start, EndAt: want.End}
		}

		b, err := c.build(ctx, req, v, bay, want)
		if err != nil {
			return err
		}
		if err := tx.InsertBooking(ctx, &b); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, reservedEvent(b)); err != nil {
			return fmt.Errorf("append outbox event: %w", err)
		}
		out = b
		return nil
	})
	if err != nil {
		return model.Booking{}, err
	}

	c.logger.Info("booking committed",
		"booking_id", out.ID,
		"bay_id", out.BayID,
		"start_at", out.StartAt.Format(time.RFC3339),
		"end_at", out.EndAt.Format(time.RFC3339),
	)
	return out, nil
}

func (c *Committer) validate(ctx context.Context, req CommitRequest) (validRequest, error) {
	var v validRequest
	if strings.TrimSpace(req.BayID) == "" {
		return v, model.Invalid("bay_id", "is required")
	}
	if strings.TrimSpace(req.CustomerID) == "" {
		return v, model.Invalid("customer_id", "is required")
	}
	if strings.TrimSpace(req.VehicleID) == "" {
		return v, model.Invalid("vehicle_id", "is required")
	}
	if req.DurationMinutes < 0 {
		return v, model.Invalid("duration_minutes", "must not be negative")
	}

	var err error
	if v.date, err = model.ParseDate("date", req.Date, time.UTC); err != nil {
		return v, err
	}
	if v.minute, err = model.ParseClock("start_time", req.StartTime); err != nil {
		return v, err
	}

	switch req.Status {
	case "":
		v.status = model.BookingPending
	case model.BookingPending, model.BookingConfirmed:
		v.status = req.Status
	default:
		return v, model.Invalid("status", "new bookings must be PENDING or CONFIRMED (got %s)", req.Status)
	}

	ids := req.Services.IDs()
	if len(ids) == 0 {
		return v, model.Invalid("services", "at least one service is required")
	}
	services, err := c.catalog.ServicesByID(ctx, ids)
	if err != nil {
		return v, err
	}
	byID := make(map[string]model.Service, len(services))
	for _, s := range services {
		byID[s.ID] = s
	}
	total := 0
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			return v, &model.NotFoundError{Kind: "service", ID: id}
		}
		if !s.Schedulable() {
			return v, model.Invalid("services", "%s has no estimated duration", s.Name)
		}
		v.services = append(v.services, s)
		total += s.DurationMinutes
	}

	minutes := req.DurationMinutes
	if minutes == 0 {
		minutes = total
	}
	v.duration = time.Duration(minutes) * time.Minute
	return v, nil
}

func (c *Committer) build(ctx context.Context, req CommitRequest, v validRequest, bay model.ServiceBay, want availability.Interval) (model.Booking, error) {
	prices, err := c.prices.Prices(ctx, bay.BranchID, v.services)
	if err != nil {
		return model.Booking{}, fmt.Errorf("resolve prices: %w", err)
	}
	b := model.Booking{
		ID:             uuid.NewString(),
		BayID:          bay.ID,
		BranchID:       bay.BranchID,
		CustomerID:     strings.TrimSpace(req.CustomerID),
		VehicleID:      strings.TrimSpace(req.VehicleID),
		StartAt:        want.Start,
		EndAt:          want.End,
		Status:         v.status,
		Notes:          strings.TrimSpace(req.Notes),
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      c.now().UTC(),
	}
	for i, s := range v.services {
		price := prices[s.ID]
		b.Items = append(b.Items, model.BookingItem{
			Position:        i + 1,
			ServiceID:       s.ID,
			ServiceName:     s.Name,
			DurationMinutes: s.DurationMinutes,
			Price:           price,
		})
		b.TotalPrice += price
	}
	return b, nil
}

// Cancel frees the booking's interval. Cancelling twice returns the cancelled booking.
func (c *Committer) Cancel(ctx context.Context, bookingID, reason string) (model.Booking, error) {
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return model.Booking{}, model.Invalid("booking_id", "is required")
	}

	var out model.Booking
	err := c.store.InTx(ctx, func(tx Tx) error {
		b, err := tx.BookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		switch b.Status {
		case model.BookingCancelled:
			out = b
			return nil
		case model.BookingCompleted:
			return model.Invalid("booking_id", "booking %s is already completed", bookingID)
		}

		now := c.now().UTC()
		reason = strings.TrimSpace(reason)
		if err := tx.MarkCancelled(ctx, b.ID, reason, now); err != nil {
			return err
		}
		b.Status = model.BookingCancelled
		b.CancelReason = reason
		b.CancelledAt = &now
		if err := tx.AppendEvent(ctx, cancelledEvent(b)); err != nil {
			return fmt.Errorf("append outbox event: %w", err)
		}
		out = b
		return nil
	})
	if err != nil {
		return model.Booking{}, err
	}
	c.logger.Info("booking cancelled", "booking_id", out.ID, "bay_id", out.BayID)
	return out, nil
}

// BayBookings lists the live bookings of a bay on a local calendar date.
func (c *Committer) BayBookings(ctx context.Context, bayID, date string) ([]model.Booking, error) {
	if strings.TrimSpace(bayID) == "" {
		return nil, model.Invalid("bay_id", "is required")
	}
	day, err := model.ParseDate("date", date, time.UTC)
	if err != nil {
		return nil, err
	}
	bay, err := c.catalog.Bay(ctx, bayID)
	if err != nil {
		return nil, err
	}
	branch, err := c.catalog.Branch(ctx, bay.BranchID)
	if err != nil {
		return nil, err
	}
	y, m, d := day.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, branch.Location(c.location))
	return c.store.BookingsForBay(ctx, bay.ID, from, from.AddDate(0, 0, 1))
}

type bookingEvent struct {
	BookingID  string    `json:"booking_id"`
	BayID      string    `json:"bay_id"`
	BranchID   string    `json:"branch_id"`
	CustomerID string    `json:"customer_id"`
	VehicleID  string    `json:"vehicle_id"`
	StartAt    time.Time `json:"start_at"`
	EndAt      time.Time `json:"end_at"`
	Status     string    `json:"status"`
	ServiceIDs []string  `json:"service_ids,omitempty"`
	TotalPrice int64     `json:"total_price"`
	Reason     string    `json:"reason,omitempty"`
}

func eventFor(b model.Booking, eventType string) outbox.Event {
	payload := bookingEvent{
		BookingID:  b.ID,
		BayID:      b.BayID,
		BranchID:   b.BranchID,
		CustomerID: b.CustomerID,
		VehicleID:  b.VehicleID,
		StartAt:    b.StartAt.UTC(),
		EndAt:      b.EndAt.UTC(),
		Status:     string(b.Status),
		TotalPrice: b.TotalPrice,
		Reason:     b.CancelReason,
	}
	for _, it := range b.Items {
		payload.ServiceIDs = append(payload.ServiceIDs, it.ServiceID)
	}
	// A struct of strings, times and ints always marshals.
	data, _ := json.Marshal(payload)
	return outbox.Event{AggregateType: "booking", AggregateID: b.ID, EventType: eventType, Payload: data}
}

func reservedEvent(b model.Booking) outbox.Event  { return eventFor(b, outbox.EventBayReserved) }
func cancelledEvent(b model.Booking) outbox.Event { return eventFor(b, outbox.EventBayCancelled) }
