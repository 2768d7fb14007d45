package storage

import (
	"context"

	"github.com/md-rashed-zaman/bayscheduler/libs/db"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/model"
)

// StockRepository is the local copy of branch inventory fed by the stock consumer.
type StockRepository struct {
	pool *db.Pool
}

func NewStockRepository(pool *db.Pool) *StockRepository {
	return &StockRepository{pool: pool}
}

// StockLevels returns on-hand quantities. Products without a row are absent from the map.
func (r *StockRepository) StockLevels(ctx context.Context, branchID string, productIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(productIDs))
	if len(productIDs) == 0 || validID("branch", branchID) != nil {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT product_id, quantity
		FROM branch_stock
		WHERE branch_id = $1 AND product_id = ANY($2)
	`, branchID, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var qty int
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, err
		}
		out[id] = qty
	}
	return out, rows.Err()
}

// UpsertStock stores s unless a newer snapshot is already stored.
func (r *StockRepository) UpsertStock(ctx context.Context, s model.StockSnapshot) error {
	if err := validID("branch", s.BranchID); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO branch_stock (branch_id, product_id, quantity, observed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (branch_id, product_id) DO UPDATE
		SET quantity = EXCLUDED.quantity,
			observed_at = EXCLUDED.observed_at,
			updated_at = now()
		WHERE branch_stock.observed_at <= EXCLUDED.observed_at
	`, s.BranchID, s.ProductID, s.Quantity, s.ObservedAt)
	return err
}
