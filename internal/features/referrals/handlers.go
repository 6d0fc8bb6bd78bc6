// Package referrals (handlers.go): GET /referrals/code, POST /referrals/redeem.
package referrals

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

func (h *Handler) HandleCode(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		common.RespondError(w, r, common.ErrMissingAccount)
		return
	}
	ref, err := h.service.GetOrCreateReferralCode(r.Context(), accountID)
	if err != nil {
		common.RespondError(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, ref)
}

func (h *Handler) HandleRedeem(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		common.RespondError(w, r, common.ErrMissingAccount)
		return
	}
	var req RedeemRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondMessage(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
		return
	}

	res, err := h.service.RedeemReferralCode(r.Context(), accountID, req.Code)
	if err != nil {
		common.RespondError(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, res)
}
