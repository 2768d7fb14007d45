package pricing

import (
	"context"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/bayscheduler/libs/db"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/model"
)

// BranchPrices applies per-branch overrides from service_prices and falls back to
// the catalog base price. Without a branch every service is priced at its base.
type BranchPrices struct {
	pool *db.Pool
}

func NewBranchPrices(pool *db.Pool) *BranchPrices {
	return &BranchPrices{pool: pool}
}

func (p *BranchPrices) Prices(ctx context.Context, branchID string, services []model.Service) (map[string]int64, error) {
	out, _ := BasePrices{}.Prices(ctx, branchID, services)
	if _, err := uuid.Parse(branchID); err != nil || len(services) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(services))
	for _, s := range services {
		if _, err := uuid.Parse(s.ID); err == nil {
			ids = append(ids, s.ID)
		}
	}
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := p.pool.Query(ctx, `
		SELECT service_id::text, price
		FROM service_prices
		WHERE branch_id = $1 AND service_id = ANY($2::uuid[])
	`, branchID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var price int64
		if err := rows.Scan(&id, &price); err != nil {
			return nil, err
		}
		out[id] = price
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
