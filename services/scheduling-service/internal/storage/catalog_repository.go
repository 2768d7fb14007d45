package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/bayscheduler/libs/db"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/model"
)

// CatalogRepository reads branches, bays, services and branch stock.
type CatalogRepository struct {
	pool *db.Pool
}

func NewCatalogRepository(pool *db.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) Branch(ctx context.Context, id string) (model.Branch, error) {
	if err := validID("branch", id); err != nil {
		return model.Branch{}, err
	}
	var b model.Branch
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, address, timezone, active
		FROM branches
		WHERE id = $1
	`, id).Scan(&b.ID, &b.Name, &b.Address, &b.Timezone, &b.Active)
	if err != nil {
		return model.Branch{}, notFound(err, "branch", id)
	}
	hours, err := r.workingHours(ctx, []string{b.ID})
	if err != nil {
		return model.Branch{}, err
	}
	b.Hours = hours[b.ID]
	return b, nil
}

func (r *CatalogRepository) Branches(ctx context.Context) ([]model.Branch, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, name, address, timezone, active
		FROM branches
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var branches []model.Branch
	var ids []string
	for rows.Next() {
		var b model.Branch
		if err := rows.Scan(&b.ID, &b.Name, &b.Address, &b.Timezone, &b.Active); err != nil {
			return nil, err
		}
		branches = append(branches, b)
		ids = append(ids, b.ID)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	hours, err := r.workingHours(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range branches {
		branches[i].Hours = hours[branches[i].ID]
	}
	return branches, nil
}

func (r *CatalogRepository) workingHours(ctx context.Context, branchIDs []string) (map[string][]model.WorkingHours, error) {
	out := make(map[string][]model.WorkingHours, len(branchIDs))
	if len(branchIDs) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT branch_id::text, weekday, open_minute, close_minute
		FROM branch_working_hours
		WHERE branch_id = ANY($1::uuid[])
		ORDER BY branch_id, weekday
	`, branchIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var branchID string
		var weekday int16
		var h model.WorkingHours
		if err := rows.Scan(&branchID, &weekday, &h.OpenMinute, &h.CloseMinute); err != nil {
			return nil, err
		}
		h.Weekday = time.Weekday(weekday)
		out[branchID] = append(out[branchID], h)
	}
	return out, rows.Err()
}

const bayColumns = `id::text, branch_id::text, name, status, allow_booking, created_at`

func (r *CatalogRepository) Bay(ctx context.Context, id string) (model.ServiceBay, error) {
	if err := validID("bay", id); err != nil {
		return model.ServiceBay{}, err
	}
	bay, err := scanBay(r.pool.QueryRow(ctx, `SELECT `+bayColumns+` FROM service_bays WHERE id = $1`, id))
	if err != nil {
		return model.ServiceBay{}, notFound(err, "bay", id)
	}
	return bay, nil
}

// Bays lists every bay of the given branches, oldest first. Filtering on status is
// left to the caller.
func (r *CatalogRepository) Bays(ctx context.Context, branchIDs []string) ([]model.ServiceBay, error) {
	ids := validIDs(branchIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bayColumns+`
		FROM service_bays
		WHERE branch_id = ANY($1::uuid[])
		ORDER BY created_at, id
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bays []model.ServiceBay
	for rows.Next() {
		bay, err := scanBay(rows)
		if err != nil {
			return nil, err
		}
		bays = append(bays, bay)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return bays, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBay(row rowScanner) (model.ServiceBay, error) {
	var bay model.ServiceBay
	err := row.Scan(&bay.ID, &bay.BranchID, &bay.Name, &bay.Status, &bay.AllowBooking, &bay.CreatedAt)
	return bay, err
}

const serviceColumns = `id::text, name, COALESCE(duration_minutes, 0), base_price`

// Services lists the active catalog with bills of materials.
func (r *CatalogRepository) Services(ctx context.Context) ([]model.Service, error) {
	return r.services(ctx, `SELECT `+serviceColumns+` FROM services WHERE active ORDER BY name, id`)
}

// ServicesByID loads the requested services. Unknown ids are simply absent.
func (r *CatalogRepository) ServicesByID(ctx context.Context, ids []string) ([]model.Service, error) {
	valid := validIDs(ids)
	if len(valid) == 0 {
		return nil, nil
	}
	return r.services(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = ANY($1::uuid[]) ORDER BY name, id`, valid)
}

func (r *CatalogRepository) services(ctx context.Context, sql string, args ...any) ([]model.Service, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []model.Service
	var ids []string
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.Name, &s.DurationMinutes, &s.BasePrice); err != nil {
			return nil, err
		}
		services = append(services, s)
		ids = append(ids, s.ID)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	materials, err := r.materials(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load materials: %w", err)
	}
	for i := range services {
		services[i].Materials = materials[services[i].ID]
	}
	return services, nil
}

func (r *CatalogRepository) materials(ctx context.Context, serviceIDs []string) (map[string][]model.MaterialLine, error) {
	out := make(map[string][]model.MaterialLine, len(serviceIDs))
	if len(serviceIDs) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT service_id::text, product_id, product_name, quantity
		FROM service_materials
		WHERE service_id = ANY($1::uuid[])
		ORDER BY service_id, product_id
	`, serviceIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var serviceID string
		var m model.MaterialLine
		if err := rows.Scan(&serviceID, &m.ProductID, &m.ProductName, &m.Quantity); err != nil {
			return nil, err
		}
		out[serviceID] = append(out[serviceID], m)
	}
	return out, rows.Err()
}
