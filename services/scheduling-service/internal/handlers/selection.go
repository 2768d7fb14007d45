package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/bayscheduler/libs/httpx"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/conversation"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/model"
	"github.com/md-rashed-zaman/bayscheduler/services/scheduling-service/internal/selection"
)

type Validator interface {
	Validate(ex selection.Extraction, sets selection.OptionSets) selection.Outcome
}

type SelectionHandler struct {
	validator Validator
	contexts  conversation.Store
	logger    *slog.Logger
}

func NewSelectionHandler(validator Validator, contexts conversation.Store, logger *slog.Logger) *SelectionHandler {
	return &SelectionHandler{validator: validator, contexts: contexts, logger: logger}
}

type validateSelectionRequest struct {
	ConversationID string               `json:"conversation_id"`
	Extraction     selection.Extraction `json:"extraction"`
	Options        selection.OptionSets `json:"options"`
}

// Validate answers POST /api/v1/selections/validate. Option sets sent with the request
// take precedence over the ones stored for the conversation.
func (h *SelectionHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req validateSelectionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, model.ReasonInvalidInput, "invalid json body: "+err.Error())
		return
	}

	id := conversation.NormalizeID(r.Header.Get(conversation.HeaderID))
	if id == "" {
		id = conversation.NormalizeID(req.ConversationID)
	}

	ctx := r.Context()
	var conv conversation.Context
	if id != "" && h.contexts != nil {
		c, err := h.contexts.Get(ctx, id)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		conv = c
		conv.ID = id
	}

	sets := conv.Options.Merge(req.Options)
	out := h.validator.Validate(req.Extraction, sets)

	if id != "" && h.contexts != nil {
		conv.Options = sets
		if out.Accepted {
			conv.Settle(out.Resolved)
		}
		if err := h.contexts.Save(ctx, conv); err != nil {
			h.logger.Warn("conversation save failed", "conversation_id", id, "err", err)
		}
	}

	if !out.Accepted {
		h.logger.Debug("selection needs clarification",
			"conversation_id", id,
			"confidence", out.Confidence,
			"unresolved", unresolvedFields(out),
		)
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func unresolvedFields(out selection.Outcome) string {
	var names []string
	for _, f := range out.Fields {
		if !f.Resolved {
			names = append(names, string(f.Field))
		}
	}
	return strings.Join(names, ",")
}
