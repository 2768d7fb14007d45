package search

import "github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/model"

type Status string

const (
	StatusAvailable             Status = "AVAILABLE"
	StatusNeedsServiceSelection Status = "NEEDS_SERVICE_SELECTION"
	StatusFull                  Status = "FULL"
)

// ReasonSearchIncomplete marks a search cut off by its time budget before any bay finished.
const ReasonSearchIncomplete = "search_incomplete"

// Request is one availability query. Date is YYYY-MM-DD; ExplicitTime is an optional HH:mm.
type Request struct {
	ServiceRef   string
	Date         string
	BranchID     string
	ExplicitTime string
}

// BayAvailability lists the starts one bay can take. A start qualifies when the whole job
// fits before the end of its free range, ending on that boundary included.
type BayAvailability struct {
	BayID          string   `json:"bayId"`
	BayName        string   `json:"bayName"`
	BranchID       string   `json:"branchId"`
	BranchName     string   `json:"branchName,omitempty"`
	AvailableSlots []string `json:"availableSlots"`
}

type Shortage struct {
	Missing      []string `json:"missing,omitempty"`
	Insufficient []string `json:"insufficient,omitempty"`
}

// Result is the aggregate answer. Bays are in bay creation order; SuggestedSlots is the
// sorted union of every bay's slots.
type Result struct {
	Status                 Status                `json:"status"`
	Reason                 string                `json:"reason,omitempty"`
	Message                string                `json:"message"`
	Date                   string                `json:"date"`
	Service                *model.ServiceOption  `json:"service,omitempty"`
	SuggestedSlots         []string              `json:"suggestedSlots"`
	Bays                   []BayAvailability     `json:"bays"`
	SuggestedServices      []model.ServiceOption `json:"suggestedServices"`
	Shortage               *Shortage             `json:"shortage,omitempty"`
	RequestedTime          string                `json:"requestedTime,omitempty"`
	RequestedTimeAvailable *bool                 `json:"requestedTimeAvailable,omitempty"`
	Incomplete             bool                  `json:"incomplete"`
	UnfinishedBays         []string              `json:"unfinishedBays,omitempty"`
}

func newResult(status Status, reason, message, date string) Result {
	return Result{
		Status:            status,
		Reason:            reason,
		Message:           message,
		Date:              date,
		SuggestedSlots:    []string{},
		Bays:              []BayAvailability{},
		SuggestedServices: []model.ServiceOption{},
	}
}
