package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/bayscheduler/libs/httpx"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/model"
)

// writeError maps domain errors to HTTP statuses. Anything outside the taxonomy is a 500
// and is logged; the client only sees a generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var (
		input       *model.InputError
		missing     *model.NotFoundError
		conflict    *model.SlotConflictError
		unavailable *model.BayUnavailableError
		closed      *model.BranchClosedError
		shortage    *model.InventoryShortageError
	)
	switch {
	case errors.As(err, &input):
		httpx.WriteErrorDetails(w, http.StatusBadRequest, input.Code(), input.Error(), map[string]string{"field": input.Field})
	case errors.As(err, &missing):
		httpx.WriteError(w, http.StatusNotFound, missing.Code(), missing.Error())
	case errors.As(err, &conflict):
		httpx.WriteErrorDetails(w, http.StatusConflict, conflict.Code(),
			"the requested time is no longer free on this bay; search availability again", map[string]string{
				"bay_id":   conflict.BayID,
				"start_at": conflict.StartAt.Format(timeFormat),
				"end_at":   conflict.EndAt.Format(timeFormat),
			})
	case errors.As(err, &unavailable):
		httpx.WriteError(w, http.StatusConflict, unavailable.Code(), unavailable.Error())
	case errors.As(err, &closed):
		httpx.WriteError(w, http.StatusConflict, closed.Code(), closed.Error())
	case errors.As(err, &shortage):
		httpx.WriteError(w, http.StatusConflict, shortage.Code(), shortage.Error())
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(w, http.StatusServiceUnavailable, "timeout", "the request took too long")
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the body.
		w.WriteHeader(499)
	default:
		logger.Error("request failed", "path", r.URL.Path, "request_id", httpx.RequestIDFromContext(r.Context()), "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	httpx.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}
