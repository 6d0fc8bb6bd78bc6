// Package admin (handlers.go): POST /api/v1/admin/grants.
package admin

import (
	"net/http"

	"github.com/google/uuid"

	"lexdesk.app/credits/internal/common"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) HandleGrant(w http.ResponseWriter, r *http.Request) {
	var req GrantRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondMessage(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
		return
	}
	if req.AccountID == uuid.Nil {
		common.RespondError(w, r, common.ErrMissingAccount)
		return
	}

	res, err := h.service.GrantCredits(r.Context(), req.AccountID, req.Amount, req.Reason, req.Actor)
	if err != nil {
		common.RespondError(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, GrantResponse{
		Balance:     res.Balance,
		Transaction: res.Transaction,
	})
}
