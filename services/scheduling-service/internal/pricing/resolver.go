package pricing

import (
	"context"

	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/model"
)

// Resolver supplies the price of each service at a branch, in minor currency units.
// Implementations return an entry for every requested service.
type Resolver interface {
	Prices(ctx context.Context, branchID string, services []model.Service) (map[string]int64, error)
}

// BasePrices prices every service at its catalog base price.
type BasePrices struct{}

func (BasePrices) Prices(_ context.Context, _ string, services []model.Service) (map[string]int64, error) {
	out := make(map[string]int64, len(services))
	for _, s := range services {
		out[s.ID] = s.BasePrice
	}
	return out, nil
}

// Options builds priced service options, keeping the order of services.
func Options(ctx context.Context, r Resolver, branchID string, services []model.Service) ([]model.ServiceOption, error) {
	if len(services) == 0 {
		return nil, nil
	}
	prices, err := r.Prices(ctx, branchID, services)
	if err != nil {
		return nil, err
	}
	out := make([]model.ServiceOption, 0, len(services))
	for _, s := range services {
		out = append(out, model.ServiceOption{
			ServiceID:       s.ID,
			Name:            s.Name,
			DurationMinutes: s.DurationMinutes,
			Price:           prices[s.ID],
		})
	}
	return out, nil
}
