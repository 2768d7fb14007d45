package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/bayscheduler/libs/kafkax"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/model"
	"github.com/segmentio/kafka-go"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type memInbox struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (m *memInbox) Record(_ context.Context, id, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[id] {
		return false, nil
	}
	m.seen[id] = true
	return true, nil
}

func (m *memInbox) Forget(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.seen, id)
	m.mu.Unlock()
	return nil
}

// sliceReader replays msgs, then cancels the run.
type sliceReader struct {
	msgs   []kafka.Message
	cancel context.CancelFunc
}

func (r *sliceReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *sliceReader) Close() error { return nil }

type memStock struct {
	mu   sync.Mutex
	rows map[string]model.StockSnapshot
	fail error
}

func (m *memStock) UpsertStock(_ context.Context, s model.StockSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	key := s.BranchID + "/" + s.ProductID
	if old, ok := m.rows[key]; ok && old.ObservedAt.After(s.ObservedAt) {
		return nil
	}
	m.rows[key] = s
	return nil
}

func stockMessage(eventID, body string) kafka.Message {
	return kafka.Message{
		Topic:   TopicStockUpdated,
		Value:   []byte(body),
		Headers: kafkax.EventHeaders(kafkax.EventMeta{EventID: eventID, EventType: TopicStockUpdated}),
		Time:    time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
	}
}

func run(t *testing.T, in *memInbox, stock *memStock, msgs ...kafka.Message) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := NewWithReader(testLogger(), in, &sliceReader{msgs: msgs, cancel: cancel}, StockHandler(stock, testLogger()))
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("consumer did not stop")
	}
}

func TestStockConsumerAppliesAndDedups(t *testing.T) {
	in := &memInbox{seen: map[string]bool{}}
	stock := &memStock{rows: map[string]model.StockSnapshot{}}

	run(t, in, stock,
		stockMessage("e1", `{"branch_id":"br-1","product_id":"oil-5w30","quantity":12,"observed_at":"2026-03-02T08:00:00Z"}`),
		stockMessage("e2", `{"branch_id":"br-1","product_id":"oil-5w30","quantity":3,"observed_at":"2026-03-02T07:00:00Z"}`),
		stockMessage("e1", `{"branch_id":"br-1","product_id":"oil-5w30","quantity":99,"observed_at":"2026-03-02T09:00:00Z"}`),
		stockMessage("e3", `not json`),
	)

	got := stock.rows["br-1/oil-5w30"]
	if got.Quantity != 12 {
		t.Fatalf("expected newest unique snapshot (12), got %d", got.Quantity)
	}
	if !in.seen["e3"] {
		t.Fatalf("poison message should still be recorded as handled")
	}
}

func TestStockConsumerReleasesInboxOnFailure(t *testing.T) {
	in := &memInbox{seen: map[string]bool{}}
	stock := &memStock{rows: map[string]model.StockSnapshot{}, fail: errors.New("db down")}

	run(t, in, stock, stockMessage("e1", `{"branch_id":"br-1","product_id":"filter","quantity":1}`))
	if in.seen["e1"] {
		t.Fatalf("failed event must be released for redelivery")
	}
}

func TestStockHandlerDefaultsObservedAt(t *testing.T) {
	stock := &memStock{rows: map[string]model.StockSnapshot{}}
	h := StockHandler(stock, testLogger())
	msg := stockMessage("e1", `{"branch_id":" br-1 ","product_id":"filter","quantity":4}`)
	if err := h(context.Background(), msg); err != nil {
		t.Fatalf("handler: %v", err)
	}
	got, ok := stock.rows["br-1/filter"]
	if !ok || !got.ObservedAt.Equal(msg.Time) {
		t.Fatalf("expected message time as observed_at, got %+v", got)
	}
}
