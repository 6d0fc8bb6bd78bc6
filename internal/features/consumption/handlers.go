// Package consumption (handlers.go): POST /api/v1/consume.
package consumption

import (
	"net/http"

	"lexdesk.app/credits/internal/common"
	"lexdesk.app/credits/internal/server/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleConsume answers 200 with the result when the tool may run and
// 402 with the same body when the caller needs more credits.
func (h *Handler) HandleConsume(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		common.RespondError(w, r, common.ErrMissingAccount)
		return
	}

	var req Request
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondMessage(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
		return
	}

	res, err := h.service.Consume(r.Context(), accountID, req.ToolType, req.Metadata)
	if err != nil {
		common.RespondError(w, r, err)
		return
	}

	status := http.StatusOK
	if !res.Allowed {
		status = http.StatusPaymentRequired
	}
	common.RespondJSON(w, status, res)
}
