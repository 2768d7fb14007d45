package model

// Service is a catalog entry that can be booked on a bay.
type Service struct {
	ID              string
	Name            string
	DurationMinutes int
	BasePrice       int64
	Materials       []MaterialLine
}

// Schedulable reports whether the service has a positive duration.
func (s Service) Schedulable() bool {
	return s.DurationMinutes > 0
}

// MaterialLine is one bill-of-materials row: Quantity units of a product per service run.
type MaterialLine struct {
	ProductID   string
	ProductName string
	Quantity    int
}

// ServiceOption is a priced service shown to a caller who has to choose.
type ServiceOption struct {
	ServiceID       string `json:"serviceId"`
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration"`
	Price           int64  `json:"price"`
}
