package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/bayscheduler/libs/httpx"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/booking"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/model"
)

const timeFormat = time.RFC3339

type Bookings interface {
	Commit(ctx context.Context, req booking.CommitRequest) (model.Booking, error)
	Cancel(ctx context.Context, bookingID, reason string) (model.Booking, error)
	BayBookings(ctx context.Context, bayID, date string) ([]model.Booking, error)
}

type BookingHandler struct {
	bookings Bookings
	logger   *slog.Logger
}

func NewBookingHandler(bookings Bookings, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, logger: logger}
}

type createBookingRequest struct {
	BayID           string                `json:"bay_id"`
	Date            string                `json:"date"`
	StartTime       string                `json:"start_time"`
	DurationMinutes int                   `json:"duration_minutes"`
	CustomerID      string                `json:"customer_id"`
	VehicleID       string                `json:"vehicle_id"`
	Services        model.ServiceSelector `json:"services"`
	Status          string                `json:"status"`
	Notes           string                `json:"notes"`
}

type cancelBookingRequest struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}

type bookingItem struct {
	Position        int    `json:"position"`
	ServiceID       string `json:"service_id"`
	ServiceName     string `json:"service_name"`
	DurationMinutes int    `json:"duration_minutes"`
	Price           int64  `json:"price"`
}

type bookingResponse struct {
	BookingID    string        `json:"booking_id"`
	BayID        string        `json:"bay_id"`
	BranchID     string        `json:"branch_id"`
	CustomerID   string        `json:"customer_id"`
	VehicleID    string        `json:"vehicle_id"`
	StartAt      string        `json:"start_at"`
	EndAt        string        `json:"end_at"`
	Status       string        `json:"status"`
	Items        []bookingItem `json:"items"`
	TotalPrice   int64         `json:"total_price"`
	Notes        string        `json:"notes,omitempty"`
	CancelReason string        `json:"cancel_reason,omitempty"`
	CancelledAt  string        `json:"cancelled_at,omitempty"`
	CreatedAt    string        `json:"created_at"`
}

func toResponse(b model.Booking) bookingResponse {
	resp := bookingResponse{
		BookingID:    b.ID,
		BayID:        b.BayID,
		BranchID:     b.BranchID,
		CustomerID:   b.CustomerID,
		VehicleID:    b.VehicleID,
		StartAt:      b.StartAt.Format(timeFormat),
		EndAt:        b.EndAt.Format(timeFormat),
		Status:       string(b.Status),
		Items:        make([]bookingItem, 0, len(b.Items)),
		TotalPrice:   b.TotalPrice,
		Notes:        b.Notes,
		CancelReason: b.CancelReason,
		CreatedAt:    b.CreatedAt.UTC().Format(timeFormat),
	}
	if b.CancelledAt != nil {
		resp.CancelledAt = b.CancelledAt.UTC().Format(timeFormat)
	}
	for _, it := range b.Items {
		resp.Items = append(resp.Items, bookingItem{
			Position:        it.Position,
			ServiceID:       it.ServiceID,
			ServiceName:     it.ServiceName,
			DurationMinutes: it.DurationMinutes,
			Price:           it.Price,
		})
	}
	return resp
}

// Create commits POST /api/v1/bookings. A lost race is a 409; the caller must search
// again rather than retry the same slot.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req createBookingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, model.ReasonInvalidInput, "invalid json body: "+err.Error())
		return
	}

	b, err := h.bookings.Commit(r.Context(), booking.CommitRequest{
		BayID:           strings.TrimSpace(req.BayID),
		Date:            req.Date,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		CustomerID:      req.CustomerID,
		VehicleID:       req.VehicleID,
		Services:        req.Services,
		Status:          model.BookingStatus(strings.ToUpper(strings.TrimSpace(req.Status))),
		Notes:           req.Notes,
		IdempotencyKey:  strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toResponse(b))
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req cancelBookingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, model.ReasonInvalidInput, "invalid json body: "+err.Error())
		return
	}
	b, err := h.bookings.Cancel(r.Context(), req.BookingID, req.Reason)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(b))
}

// ListForBay answers GET /api/v1/bays/bookings?bay_id=&date=.
func (h *BookingHandler) ListForBay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	q := r.URL.Query()
	list, err := h.bookings.BayBookings(r.Context(), q.Get("bay_id"), q.Get("date"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	items := make([]bookingResponse, 0, len(list))
	for _, b := range list {
		items = append(items, toResponse(b))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"bookings": items})
}
