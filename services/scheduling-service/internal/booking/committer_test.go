package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/availability"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/outbox"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/pricing"
)

// memStore keeps committed rows in memory. Each bay has a mutex standing in for its row
// lock; writes are staged per transaction and applied only on success.
type memStore struct {
	mu       sync.Mutex
	bays     map[string]model.ServiceBay
	locks    map[string]*sync.Mutex
	bookings []model.Booking
	blocks   []model.MaintenanceBlock
	events   []outbox.Event

	beforeCommit func()
}

func newMemStore(bays ...model.ServiceBay) *memStore {
	s := &memStore{bays: map[string]model.ServiceBay{}, locks: map[string]*sync.Mutex{}}
	for _, b := range bays {
		s.bays[b.ID] = b
		s.locks[b.ID] = &sync.Mutex{}
	}
	return s
}

func (s *memStore) InTx(ctx context.Context, fn func(Tx) error) error {
	tx := &memTx{s: s}
	defer tx.release()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	if s.beforeCommit != nil {
		s.beforeCommit()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range tx.inserted {
		for _, existing := range s.bookings {
			if existing.BayID == b.BayID && existing.Status.Occupies() &&
				existing.StartAt.Before(b.EndAt) && b.StartAt.Before(existing.EndAt) {
				return &model.SlotConflictError{BayID: b.BayID, StartAt: b.StartAt, EndAt: b.EndAt}
			}
		}
	}
	s.bookings = append(s.bookings, tx.inserted...)
	for id, upd := range tx.cancelled {
		for i := range s.bookings {
			if s.bookings[i].ID == id {
				s.bookings[i].Status = model.BookingCancelled
				s.bookings[i].CancelReason = upd.reason
				at := upd.at
				s.bookings[i].CancelledAt = &at
			}
		}
	}
	s.events = append(s.events, tx.events...)
	return nil
}

func (s *memStore) BookingsForBay(_ context.Context, bayID string, from, to time.Time) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Booking
	for _, b := range s.bookings {
		if b.BayID == bayID && b.Status.Occupies() && b.StartAt.Before(to) && from.Before(b.EndAt) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *memStore) live() []model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Booking
	for _, b := range s.bookings {
		if b.Status.Occupies() {
			out = append(out, b)
		}
	}
	return out
}

type cancellation struct {
	reason string
	at     time.Time
}

type memTx struct {
	s         *memStore
	held      []*sync.Mutex
	inserted  []model.Booking
	cancelled map[string]cancellation
	events    []outbox.Event
}

func (tx *memTx) release() {
	for _, m := range tx.held {
		m.Unlock()
	}
}

func (tx *memTx) LockBay(_ context.Context, bayID string) (model.ServiceBay, error) {
	bay, ok := tx.s.bays[bayID]
	if !ok {
		return model.ServiceBay{}, &model.NotFoundError{Kind: "bay", ID: bayID}
	}
	m := tx.s.locks[bayID]
	m.Lock()
	tx.held = append(tx.held, m)
	return bay, nil
}

func (tx *memTx) BusyIntervals(_ context.Context, bayID string, from, to time.Time) ([]availability.Interval, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	var out []availability.Interval
	for _, b := range tx.s.bookings {
		if b.BayID == bayID && b.Status.Occupies() && b.StartAt.Before(to) && from.Before(b.EndAt) {
			out = append(out, availability.Interval{Start: b.StartAt, End: b.EndAt})
		}
	}
	for _, m := range tx.s.blocks {
		if m.BayID == bayID && m.StartAt.Before(to) && from.Before(m.EndAt) {
			out = append(out, availability.Interval{Start: m.StartAt, End: m.EndAt})
		}
	}
	return out, nil
}

func (tx *memTx) BookingByIdempotencyKey(_ context.Context, key string) (model.Booking, bool, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	for _, b := range tx.s.bookings {
		if b.IdempotencyKey == key {
			return b, true, nil
		}
	}
	return model.Booking{}, false, nil
}

func (tx *memTx) InsertBooking(_ context.Context, b *model.Booking) error {
	tx.inserted = append(tx.inserted, *b)
	return nil
}

func (tx *memTx) BookingForUpdate(_ context.Context, id string) (model.Booking, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	for _, b := range tx.s.bookings {
		if b.ID == id {
			return b, nil
		}
	}
	return model.Booking{}, &model.NotFoundError{Kind: "booking", ID: id}
}

func (tx *memTx) MarkCancelled(_ context.Context, id, reason string, at time.Time) error {
	if tx.cancelled == nil {
		tx.cancelled = map[string]cancellation{}
	}
	tx.cancelled[id] = cancellation{reason: reason, at: at}
	return nil
}

func (tx *memTx) AppendEvent(_ context.Context, evt outbox.Event) error {
	tx.events = append(tx.events, evt)
	return nil
}

type memCatalog struct {
	branches map[string]model.Branch
	bays     map[string]model.ServiceBay
	services map[string]model.Service
}

func (c *memCatalog) Branch(_ context.Context, id string) (model.Branch, error) {
	b, ok := c.branches[id]
	if !ok {
		return model.Branch{}, &model.NotFoundError{Kind: "branch", ID: id}
	}
	return b, nil
}

func (c *memCatalog) Bay(_ context.Context, id string) (model.ServiceBay, error) {
	b, ok := c.bays[id]
	if !ok {
		return model.ServiceBay{}, &model.NotFoundError{Kind: "bay", ID: id}
	}
	return b, nil
}

func (c *memCatalog) ServicesByID(_ context.Context, ids []string) ([]model.Service, error) {
	var out []model.Service
	for _, id := range ids {
		if s, ok := c.services[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

var (
	monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	bayA   = model.ServiceBay{ID: "bay-a", BranchID: "br-1", Name: "Bay A", Status: model.BayActive, AllowBooking: true}
	bayOff = model.ServiceBay{ID: "bay-off", BranchID: "br-1", Name: "Bay Off", Status: model.BayMaintenance, AllowBooking: true}
)

func newCommitter(t *testing.T) (*Committer, *memStore) {
	t.Helper()
	var hours []model.WorkingHours
	for d := time.Monday; d <= time.Saturday; d++ {
		hours = append(hours, model.WorkingHours{Weekday: d, OpenMinute: 8 * 60, CloseMinute: 18 * 60})
	}
	catalog := &memCatalog{
		branches: map[string]model.Branch{"br-1": {ID: "br-1", Name: "District 1", Active: true, Timezone: "UTC", Hours: hours}},
		bays:     map[string]model.ServiceBay{bayA.ID: bayA, bayOff.ID: bayOff},
		services: map[string]model.Service{
			"svc-oil":  {ID: "svc-oil", Name: "Oil change", DurationMinutes: 60, BasePrice: 350000},
			"svc-wash": {ID: "svc-wash", Name: "Basic wash", DurationMinutes: 30, BasePrice: 80000},
			"svc-talk": {ID: "svc-talk", Name: "Consultation"},
		},
	}
	store := newMemStore(bayA, bayOff)
	c := NewCommitter(store, catalog, pricing.BasePrices{}, slog.New(slog.NewTextHandler(io.Discard, nil)), time.UTC)
	c.now = func() time.Time { return monday.Add(-time.Hour) }
	return c, store
}

func request(start string, minutes int) CommitRequest {
	return CommitRequest{
		BayID:           "bay-a",
		Date:            "2026-03-02",
		StartTime:       start,
		DurationMinutes: minutes,
		CustomerID:      "cus-1",
		VehicleID:       "veh-1",
		Services:        model.SingleService("svc-oil"),
	}
}

func TestCommit_PersistsBookingWithItemsAndEvent(t *testing.T) {
	c, store := newCommitter(t)
	req := request("09:00", 0)
	req.Services = model.MultipleServices("svc-oil", "svc-wash")

	b, err := c.Commit(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.ID == "" || b.Status != model.BookingPending {
		t.Fatalf("unexpected booking %+v", b)
	}
	if !b.StartAt.Equal(monday.Add(9*time.Hour)) || !b.EndAt.Equal(monday.Add(10*time.Hour+30*time.Minute)) {
		t.Fatalf("expected [09:00,10:30), got [%s,%s)", b.StartAt, b.EndAt)
	}
	if len(b.Items) != 2 || b.Items[0].ServiceID != "svc-oil" || b.Items[1].Position != 2 || b.TotalPrice != 430000 {
		t.Fatalf("unexpected items %+v total %d", b.Items, b.TotalPrice)
	}
	if len(store.events) != 1 || store.events[0].EventType != outbox.EventBayReserved || store.events[0].AggregateID != b.ID {
		t.Fatalf("unexpected events %+v", store.events)
	}
}

func TestCommit_RejectsOverlapWithoutRepicking(t *testing.T) {
	c, store := newCommitter(t)
	if _, err := c.Commit(context.Background(), request("10:00", 60)); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	_, err := c.Commit(context.Background(), request("10:30", 60))
	var conflict *model.SlotConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected SlotConflictError, got %v", err)
	}
	if len(store.live()) != 1 {
		t.Fatalf("conflicting commit must not insert anything")
	}

	if _, err := c.Commit(context.Background(), request("11:00", 60)); err != nil {
		t.Fatalf("back-to-back booking should fit: %v", err)
	}
}

func TestCommit_RespectsWorkingHoursAndMaintenance(t *testing.T) {
	c, store := newCommitter(t)
	store.blocks = []model.MaintenanceBlock{{BayID: "bay-a", StartAt: monday.Add(13 * time.Hour), EndAt: monday.Add(14 * time.Hour)}}

	var conflict *model.SlotConflictError
	if _, err := c.Commit(context.Background(), request("17:30", 60)); !errors.As(err, &conflict) {
		t.Fatalf("booking past closing must conflict, got %v", err)
	}
	if _, err := c.Commit(context.Background(), request("12:30", 60)); !errors.As(err, &conflict) {
		t.Fatalf("booking into maintenance must conflict, got %v", err)
	}

	req := request("09:00", 60)
	req.Date = "2026-03-08"
	var closed *model.BranchClosedError
	if _, err := c.Commit(context.Background(), req); !errors.As(err, &closed) {
		t.Fatalf("expected BranchClosedError on Sunday, got %v", err)
	}
}

func TestCommit_ConcurrentOverlapsExactlyOneWins(t *testing.T) {
	for round := 0; round < 20; round++ {
		c, store := newCommitter(t)

		starts := []string{"09:00", "09:30"}
		errs := make([]error, len(starts))
		var ready, done sync.WaitGroup
		ready.Add(1)
		for i, start := range starts {
			i, start := i, start
			done.Add(1)
			go func() {
				defer done.Done()
				ready.Wait()
				_, errs[i] = c.Commit(context.Background(), request(start, 60))
			}()
		}
		ready.Done()
		done.Wait()

		wins, conflicts := 0, 0
		for _, err := range errs {
			var conflict *model.SlotConflictError
			switch {
			case err == nil:
				wins++
			case errors.As(err, &conflict):
				conflicts++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		if wins != 1 || conflicts != 1 {
			t.Fatalf("round %d: expected one win and one conflict, got %d/%d", round, wins, conflicts)
		}
		assertNoOverlap(t, store.live())
	}
}

func TestCommit_ManyConcurrentWritersKeepBayConsistent(t *testing.T) {
	c, store := newCommitter(t)
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Date(2026, 3, 2, 8+i%10, (i%2)*30, 0, 0, time.UTC).Format("15:04")
			_, _ = c.Commit(context.Background(), request(start, 60))
		}()
	}
	wg.Wait()
	assertNoOverlap(t, store.live())
}

func assertNoOverlap(t *testing.T, bookings []model.Booking) {
	t.Helper()
	for i := range bookings {
		for j := i + 1; j < len(bookings); j++ {
			a, b := bookings[i], bookings[j]
			if a.BayID == b.BayID && a.StartAt.Before(b.EndAt) && b.StartAt.Before(a.EndAt) {
				t.Fatalf("overlapping bookings %s [%s,%s) and %s [%s,%s)", a.ID, a.StartAt, a.EndAt, b.ID, b.StartAt, b.EndAt)
			}
		}
	}
}

func TestCommit_CancelledContextLeavesNoBooking(t *testing.T) {
	c, store := newCommitter(t)
	ctx, cancel := context.WithCancel(context.Background())
	store.beforeCommit = cancel

	_, err := c.Commit(ctx, request("09:00", 60))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(store.live()) != 0 || len(store.events) != 0 {
		t.Fatalf("abandoned commit left state behind")
	}
}

func TestCommit_IdempotencyKeyReplays(t *testing.T) {
	c, store := newCommitter(t)
	req := request("09:00", 60)
	req.IdempotencyKey = "key-1"

	first, err := c.Commit(context.Background(), req)
	if err != nil {
		t.Fatalf("first commit: %v", err)
	}
	second, err := c.Commit(context.Background(), req)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if first.ID != second.ID || len(store.live()) != 1 {
		t.Fatalf("replay must return the original booking")
	}
}

func TestCommit_InputAndStateErrors(t *testing.T) {
	c, _ := newCommitter(t)

	cases := map[string]func(*CommitRequest){
		"missing bay":      func(r *CommitRequest) { r.BayID = "" },
		"missing customer": func(r *CommitRequest) { r.CustomerID = " " },
		"bad date":         func(r *CommitRequest) { r.Date = "2026/03/02" },
		"bad time":         func(r *CommitRequest) { r.StartTime = "25:00" },
		"no services":      func(r *CommitRequest) { r.Services = model.MultipleServices() },
		"bad status":       func(r *CommitRequest) { r.Status = model.BookingCompleted },
		"no duration":      func(r *CommitRequest) { r.Services = model.SingleService("svc-talk") },
		"past start":       func(r *CommitRequest) { r.Date = "2026-02-28" },
	}
	for name, mutate := range cases {
		req := request("09:00", 60)
		mutate(&req)
		var inputErr *model.InputError
		if _, err := c.Commit(context.Background(), req); !errors.As(err, &inputErr) {
			t.Fatalf("%s: expected InputError, got %v", name, err)
		}
	}

	req := request("09:00", 60)
	req.Services = model.SingleService("svc-unknown")
	var nf *model.NotFoundError
	if _, err := c.Commit(context.Background(), req); !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	req = request("09:00", 60)
	req.BayID = "bay-off"
	var unavailable *model.BayUnavailableError
	if _, err := c.Commit(context.Background(), req); !errors.As(err, &unavailable) {
		t.Fatalf("expected BayUnavailableError, got %v", err)
	}
}

func TestCancel_FreesIntervalAndIsIdempotent(t *testing.T) {
	c, store := newCommitter(t)
	b, err := c.Commit(context.Background(), request("09:00", 60))
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	cancelled, err := c.Cancel(context.Background(), b.ID, "customer request")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != model.BookingCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("unexpected booking %+v", cancelled)
	}
	if _, err := c.Cancel(context.Background(), b.ID, "again"); err != nil {
		t.Fatalf("second cancel should be a no-op: %v", err)
	}
	if len(store.events) != 2 || store.events[1].EventType != outbox.EventBayCancelled {
		t.Fatalf("expected one reserved and one cancelled event, got %+v", store.events)
	}

	if _, err := c.Commit(context.Background(), request("09:00", 60)); err != nil {
		t.Fatalf("slot should be free again: %v", err)
	}
}

func TestBayBookings(t *testing.T) {
	c, _ := newCommitter(t)
	for _, start := range []string{"09:00", "13:00"} {
		if _, err := c.Commit(context.Background(), request(start, 60)); err != nil {
			t.Fatalf("commit %s: %v", start, err)
		}
	}
	got, err := c.BayBookings(context.Background(), "bay-a", "2026-03-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 bookings, got %d", len(got))
	}
	if got, _ := c.BayBookings(context.Background(), "bay-a", "2026-03-03"); len(got) != 0 {
		t.Fatalf("expected no bookings on the next day, got %d", len(got))
	}
}
