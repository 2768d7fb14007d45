package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/bayscheduler/libs/httpx"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/conversation"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/search"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/selection"
)

type Searcher interface {
	GetAvailability(ctx context.Context, req search.Request) (search.Result, error)
}

type AvailabilityHandler struct {
	searcher Searcher
	contexts conversation.Store
	logger   *slog.Logger
}

func NewAvailabilityHandler(searcher Searcher, contexts conversation.Store, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{searcher: searcher, contexts: contexts, logger: logger}
}

// Get answers GET /api/v1/availability?service=&date=&branch_id=&time=.
// Closed, ambiguous, out-of-stock and fully booked outcomes are 200s with a status.
func (h *AvailabilityHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	q := r.URL.Query()
	req := search.Request{
		ServiceRef:   q.Get("service"),
		Date:         q.Get("date"),
		BranchID:     q.Get("branch_id"),
		ExplicitTime: q.Get("time"),
	}

	res, err := h.searcher.GetAvailability(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.remember(r, res)
	httpx.WriteJSON(w, http.StatusOK, res)
}

// remember stores what the user was just shown so a later "the second one" can be
// resolved against it. Failures only cost that convenience.
func (h *AvailabilityHandler) remember(r *http.Request, res search.Result) {
	id := conversation.NormalizeID(r.Header.Get(conversation.HeaderID))
	if id == "" || h.contexts == nil {
		return
	}
	ctx := r.Context()
	c, err := h.contexts.Get(ctx, id)
	if err != nil {
		h.logger.Warn("conversation load failed", "conversation_id", id, "err", err)
		return
	}
	c.ID = id
	c.Remember(shownOptions(res))
	if err := h.contexts.Save(ctx, c); err != nil {
		h.logger.Warn("conversation save failed", "conversation_id", id, "err", err)
	}
}

func shownOptions(res search.Result) selection.OptionSets {
	var sets selection.OptionSets
	for _, s := range res.SuggestedServices {
		sets.Services = append(sets.Services, selection.Option{ID: s.ServiceID, Name: s.Name})
	}
	if res.Service != nil && len(sets.Services) == 0 {
		sets.Services = []selection.Option{{ID: res.Service.ServiceID, Name: res.Service.Name}}
	}
	for _, b := range res.Bays {
		sets.Bays = append(sets.Bays, selection.Option{ID: b.BayID, Name: b.BayName})
	}
	for _, s := range res.SuggestedSlots {
		sets.TimeSlots = append(sets.TimeSlots, selection.Option{ID: s, Name: s})
	}
	if res.Date != "" {
		sets.Dates = []selection.Option{{ID: res.Date, Name: res.Date}}
	}
	return sets
}
