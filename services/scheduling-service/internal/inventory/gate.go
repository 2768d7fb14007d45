package inventory

import (
	"context"
	"fmt"

	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/model"
)

// StockReader returns on-hand quantities per product at a branch. Products without a
// stock record are simply absent from the map.
type StockReader interface {
	StockLevels(ctx context.Context, branchID string, productIDs []string) (map[string]int, error)
}

// Gate checks a service's bill of materials against branch stock.
type Gate struct {
	stock StockReader
}

func NewGate(stock StockReader) *Gate {
	return &Gate{stock: stock}
}

// Verdict is the outcome of one stock check. Missing lists products with nothing on hand,
// Insufficient those with some stock but less than one service run needs.
type Verdict struct {
	Available    bool
	Missing      []string
	Insufficient []string
}

// Err converts an unavailable verdict into *model.InventoryShortageError.
func (v Verdict) Err(branchID, serviceID string) error {
	if v.Available {
		return nil
	}
	return &model.InventoryShortageError{
		BranchID:     branchID,
		ServiceID:    serviceID,
		Missing:      v.Missing,
		Insufficient: v.Insufficient,
	}
}

func (g *Gate) Check(ctx context.Context, branchID string, svc model.Service) (Verdict, error) {
	if len(svc.Materials) == 0 {
		return Verdict{Available: true}, nil
	}
	levels, err := g.stock.StockLevels(ctx, branchID, productIDs([]model.Service{svc}))
	if err != nil {
		return Verdict{}, fmt.Errorf("stock levels for branch %s: %w", branchID, err)
	}
	return judge(svc, levels), nil
}

// InStock returns the services in order whose materials the branch can cover.
func (g *Gate) InStock(ctx context.Context, branchID string, services []model.Service) ([]model.Service, error) {
	ids := productIDs(services)
	var levels map[string]int
	if len(ids) > 0 {
		var err error
		if levels, err = g.stock.StockLevels(ctx, branchID, ids); err != nil {
			return nil, fmt.Errorf("stock levels for branch %s: %w", branchID, err)
		}
	}
	out := make([]model.Service, 0, len(services))
	for _, svc := range services {
		if judge(svc, levels).Available {
			out = append(out, svc)
		}
	}
	return out, nil
}

func judge(svc model.Service, levels map[string]int) Verdict {
	required := map[string]int{}
	names := map[string]string{}
	var order []string
	for _, m := range svc.Materials {
		if m.Quantity <= 0 {
			continue
		}
		if _, seen := required[m.ProductID]; !seen {
			order = append(order, m.ProductID)
		}
		required[m.ProductID] += m.Quantity
		if names[m.ProductID] == "" {
			names[m.ProductID] = m.ProductName
		}
	}

	v := Verdict{Available: true}
	for _, id := range order {
		name := names[id]
		if name == "" {
			name = id
		}
		have := levels[id]
		switch {
		case have <= 0:
			v.Missing = append(v.Missing, name)
		case have < required[id]:
			v.Insufficient = append(v.Insufficient, name)
		}
	}
	v.Available = len(v.Missing) == 0 && len(v.Insufficient) == 0
	return v
}

func productIDs(services []model.Service) []string {
	seen := map[string]struct{}{}
	var ids []string
	for _, svc := range services {
		for _, m := range svc.Materials {
			if _, ok := seen[m.ProductID]; ok {
				continue
			}
			seen[m.ProductID] = struct{}{}
			ids = append(ids, m.ProductID)
		}
	}
	return ids
}
