package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Reason codes shared by errors and structured results.
const (
	ReasonInvalidInput          = "invalid_input"
	ReasonNotFound              = "not_found"
	ReasonBranchClosed          = "branch_closed"
	ReasonBranchInactive        = "branch_inactive"
	ReasonServiceUnresolved     = "service_unresolved"
	ReasonServiceNotSchedulable = "service_not_schedulable"
	ReasonOutOfStock            = "out_of_stock"
	ReasonNoBays                = "no_bays"
	ReasonFullyBooked           = "fully_booked"
	ReasonSlotConflict          = "slot_conflict"
	ReasonBayUnavailable        = "bay_unavailable"
)

// Coded is implemented by every domain error.
type Coded interface {
	error
	Code() string
}

// CodeOf returns the reason code of err, or "" for errors outside the domain taxonomy.
func CodeOf(err error) string {
	var c Coded
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}

// InputError is a client fault caught before any scheduling work.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *InputError) Code() string { return ReasonInvalidInput }

func Invalid(field, format string, args ...any) *InputError {
	return &InputError{Field: field, Message: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %q not found", e.Kind, e.ID) }
func (e *NotFoundError) Code() string  { return ReasonNotFound }

// BranchClosedError means the branch has no opening hours on Date. It is distinct
// from a working day with no free time left.
type BranchClosedError struct {
	BranchID   string
	BranchName string
	Date       time.Time
}

func (e *BranchClosedError) Error() string {
	name := e.BranchName
	if name == "" {
		name = e.BranchID
	}
	return fmt.Sprintf("branch %s is closed on %s (%s)", name, e.Date.Format(DateLayout), e.Date.Weekday())
}

func (e *BranchClosedError) Code() string { return ReasonBranchClosed }

// ServiceUnresolvedError carries the candidates a caller should choose from.
type ServiceUnresolvedError struct {
	Ref        string
	Ambiguous  bool
	Candidates []ServiceOption
}

func (e *ServiceUnresolvedError) Error() string {
	if e.Ambiguous {
		return fmt.Sprintf("service %q matches %d catalog entries", e.Ref, len(e.Candidates))
	}
	return fmt.Sprintf("service %q not found", e.Ref)
}

func (e *ServiceUnresolvedError) Code() string { return ReasonServiceUnresolved }

// InventoryShortageError lists products the branch lacks entirely and products it holds too few of.
type InventoryShortageError struct {
	BranchID     string
	ServiceID    string
	Missing      []string
	Insufficient []string
}

func (e *InventoryShortageError) Error() string {
	return fmt.Sprintf("service %s unavailable at branch %s (%s)", e.ServiceID, e.BranchID, e.Detail())
}

// Detail lists the shortages without identifiers, for user-facing messages.
func (e *InventoryShortageError) Detail() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "out of stock: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Insufficient) > 0 {
		parts = append(parts, "insufficient quantity: "+strings.Join(e.Insufficient, ", "))
	}
	return strings.Join(parts, "; ")
}

func (e *InventoryShortageError) Code() string { return ReasonOutOfStock }

// SlotConflictError means the interval is no longer free. Callers must search again
// before retrying; the same commit will keep failing.
type SlotConflictError struct {
	BayID   string
	StartAt time.Time
	EndAt   time.Time
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("bay %s is not free for [%s, %s)", e.BayID,
		e.StartAt.Format(time.RFC3339), e.EndAt.Format(time.RFC3339))
}

func (e *SlotConflictError) Code() string { return ReasonSlotConflict }

// BayUnavailableError is returned when a commit targets a bay that does not take bookings.
type BayUnavailableError struct {
	BayID  string
	Status BayStatus
}

func (e *BayUnavailableError) Error() string {
	return fmt.Sprintf("bay %s does not accept bookings (status %s)", e.BayID, e.Status)
}

func (e *BayUnavailableError) Code() string { return ReasonBayUnavailable }
