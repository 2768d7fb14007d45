package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/model"
	"github.com/segmentio/kafka-go"
)

// TopicStockUpdated carries inventory snapshots, one product at one branch per message.
const TopicStockUpdated = "inventory.stock.updated.v1"

type stockPayload struct {
	BranchID   string    `json:"branch_id"`
	ProductID  string    `json:"product_id"`
	Quantity   int       `json:"quantity"`
	ObservedAt time.Time `json:"observed_at"`
}

// StockWriter stores snapshots. A snapshot older than the stored one is ignored.
type StockWriter interface {
	UpsertStock(ctx context.Context, s model.StockSnapshot) error
}

// StockHandler applies stock snapshots to the local branch_stock copy read by the
// inventory gate.
func StockHandler(w StockWriter, logger *slog.Logger) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var m stockPayload
		if err := json.Unmarshal(msg.Value, &m); err != nil {
			// Poison message: redelivery would fail the same way.
			logger.Warn("stock snapshot dropped", "err", err, "offset", msg.Offset)
			return nil
		}
		s := model.StockSnapshot{
			BranchID:   strings.TrimSpace(m.BranchID),
			ProductID:  strings.TrimSpace(m.ProductID),
			Quantity:   m.Quantity,
			ObservedAt: m.ObservedAt,
		}
		if s.BranchID == "" || s.ProductID == "" {
			logger.Warn("stock snapshot dropped", "reason", "missing branch_id or product_id", "offset", msg.Offset)
			return nil
		}
		if s.ObservedAt.IsZero() {
			s.ObservedAt = msg.Time
		}
		if s.ObservedAt.IsZero() {
			s.ObservedAt = time.Now()
		}
		if err := w.UpsertStock(ctx, s); err != nil {
			if model.CodeOf(err) != "" {
				logger.Warn("stock snapshot dropped", "err", err, "offset", msg.Offset)
				return nil
			}
			return fmt.Errorf("upsert stock %s/%s: %w", s.BranchID, s.ProductID, err)
		}
		logger.Debug("stock updated", "branch_id", s.BranchID, "product_id", s.ProductID, "quantity", s.Quantity)
		return nil
	}
}
