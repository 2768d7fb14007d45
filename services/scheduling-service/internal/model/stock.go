package model

import "time"

// StockSnapshot is the on-hand quantity of one product at one branch as last reported
// by the inventory system.
type StockSnapshot struct {
	BranchID   string
	ProductID  string
	Quantity   int
	ObservedAt time.Time
}
