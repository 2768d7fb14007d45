package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/bayscheduler/libs/db"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/booking"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/outbox"
)

// BookingRepository stores bookings. It is the booking.Store of the committer and the
// search.Occupancy of availability search.
type BookingRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewBookingRepository(pool *db.Pool, outboxRepo *outbox.Repository) *BookingRepository {
	return &BookingRepository{pool: pool, outbox: outboxRepo}
}

func (r *BookingRepository) InTx(ctx context.Context, fn func(booking.Tx) error) error {
	return r.pool.InTx(ctx, func(tx pgx.Tx) error {
		return fn(&bookingTx{tx: tx, outbox: r.outbox})
	})
}

// BusyIntervals reads outside any transaction; search results are advisory.
func (r *BookingRepository) BusyIntervals(ctx context.Context, bayID string, from, to time.Time) ([]availability.Interval, error) {
	return busyIntervals(ctx, r.pool, bayID, from, to)
}

func (r *BookingRepository) BookingsForBay(ctx context.Context, bayID string, from, to time.Time) ([]model.Booking, error) {
	if err := validID("bay", bayID); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE bay_id = $1
			AND status <> 'CANCELLED'
			AND start_at < $3
			AND end_at > $2
		ORDER BY start_at ASC
	`, bayID, from, to)
	if err != nil {
		return nil, err
	}
	bookings, err := scanBookings(rows)
	if err != nil {
		return nil, err
	}
	if err := loadItems(ctx, r.pool, bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

func busyIntervals(ctx context.Context, q querier, bayID string, from, to time.Time) ([]availability.Interval, error) {
	rows, err := q.Query(ctx, `
		SELECT start_at, end_at
		FROM bookings
		WHERE bay_id = $1 AND status <> 'CANCELLED' AND start_at < $3 AND end_at > $2
		UNION ALL
		SELECT start_at, end_at
		FROM bay_maintenance_blocks
		WHERE bay_id = $1 AND start_at < $3 AND end_at > $2
	`, bayID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var busy []availability.Interval
	for rows.Next() {
		var iv availability.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		busy = append(busy, iv)
	}
	return busy, rows.Err()
}

const bookingColumns = `id::text, bay_id::text, branch_id::text, customer_id, vehicle_id, start_at, end_at,
	status, total_price, notes, COALESCE(idempotency_key, ''), COALESCE(cancel_reason, ''), cancelled_at, created_at`

func scanBooking(row rowScanner) (model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID,
		&b.BayID,
		&b.BranchID,
		&b.CustomerID,
		&b.VehicleID,
		&b.StartAt,
		&b.EndAt,
		&b.Status,
		&b.TotalPrice,
		&b.Notes,
		&b.IdempotencyKey,
		&b.CancelReason,
		&b.CancelledAt,
		&b.CreatedAt,
	)
	return b, err
}

func scanBookings(rows pgx.Rows) ([]model.Booking, error) {
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func loadItems(ctx context.Context, q querier, bookings []model.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	ids := make([]string, len(bookings))
	index := make(map[string]int, len(bookings))
	for i, b := range bookings {
		ids[i] = b.ID
		index[b.ID] = i
	}
	rows, err := q.Query(ctx, `
		SELECT booking_id::text, position, service_id::text, service_name, duration_minutes, price
		FROM booking_items
		WHERE booking_id = ANY($1::uuid[])
		ORDER BY booking_id, position
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var bookingID string
		var it model.BookingItem
		if err := rows.Scan(&bookingID, &it.Position, &it.ServiceID, &it.ServiceName, &it.DurationMinutes, &it.Price); err != nil {
			return err
		}
		i := index[bookingID]
		bookings[i].Items = append(bookings[i].Items, it)
	}
	return rows.Err()
}

// bookingTx implements booking.Tx on one pgx transaction.
type bookingTx struct {
	tx     pgx.Tx
	outbox *outbox.Repository
}

func (t *bookingTx) LockBay(ctx context.Context, bayID string) (model.ServiceBay, error) {
	if err := validID("bay", bayID); err != nil {
		return model.ServiceBay{}, err
	}
	bay, err := scanBay(t.tx.QueryRow(ctx, `
		SELECT `+bayColumns+`
		FROM service_bays
		WHERE id = $1
		FOR UPDATE
	`, bayID))
	if err != nil {
		return model.ServiceBay{}, notFound(err, "bay", bayID)
	}
	return bay, nil
}

func (t *bookingTx) BusyIntervals(ctx context.Context, bayID string, from, to time.Time) ([]availability.Interval, error) {
	return busyIntervals(ctx, t.tx, bayID, from, to)
}

func (t *bookingTx) BookingByIdempotencyKey(ctx context.Context, key string) (model.Booking, bool, error) {
	b, err := scanBooking(t.tx.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE idempotency_key = $1
	`, key))
	if IsNotFound(err) {
		return model.Booking{}, false, nil
	}
	if err != nil {
		return model.Booking{}, false, err
	}
	list := []model.Booking{b}
	if err := loadItems(ctx, t.tx, list); err != nil {
		return model.Booking{}, false, err
	}
	return list[0], true, nil
}

func (t *bookingTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	var idempotencyKey *string
	if b.IdempotencyKey != "" {
		idempotencyKey = &b.IdempotencyKey
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO bookings
			(id, bay_id, branch_id, customer_id, vehicle_id, start_at, end_at, status, total_price, notes, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`, b.ID, b.BayID, b.BranchID, b.CustomerID, b.VehicleID, b.StartAt, b.EndAt, b.Status, b.TotalPrice, b.Notes,
		idempotencyKey, b.CreatedAt).Scan(&b.CreatedAt)
	if err != nil {
		switch {
		case IsConflict(err):
			return &model.SlotConflictError{BayID: b.BayID, StartAt: b.StartAt, EndAt: b.EndAt}
		case IsUniqueViolation(err):
			return model.Invalid("idempotency_key", "already used by another booking")
		}
		return fmt.Errorf("insert booking: %w", err)
	}

	if len(b.Items) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, it := range b.Items {
		batch.Queue(`
			INSERT INTO booking_items (booking_id, position, service_id, service_name, duration_minutes, price)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, b.ID, it.Position, it.ServiceID, it.ServiceName, it.DurationMinutes, it.Price)
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert booking items: %w", err)
	}
	return nil
}

func (t *bookingTx) BookingForUpdate(ctx context.Context, id string) (model.Booking, error) {
	if err := validID("booking", id); err != nil {
		return model.Booking{}, err
	}
	b, err := scanBooking(t.tx.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		return model.Booking{}, notFound(err, "booking", id)
	}
	list := []model.Booking{b}
	if err := loadItems(ctx, t.tx, list); err != nil {
		return model.Booking{}, err
	}
	return list[0], nil
}

func (t *bookingTx) MarkCancelled(ctx context.Context, id, reason string, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE bookings
		SET status = 'CANCELLED',
			cancelled_at = $2,
			cancel_reason = NULLIF($3, '')
		WHERE id = $1
	`, id, at, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return &model.NotFoundError{Kind: "booking", ID: id}
	}
	return nil
}

func (t *bookingTx) AppendEvent(ctx context.Context, evt outbox.Event) error {
	return t.outbox.Insert(ctx, t.tx, evt)
}

var (
	_ booking.Store = (*BookingRepository)(nil)
	_ booking.Tx    = (*bookingTx)(nil)
)
