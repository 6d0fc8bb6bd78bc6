// Package ledger: handlers.go serves the caller's balance and history.
package ledger

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"lexdesk.app/credits/internal/common"
	"lexdesk.app/credits/internal/server/middleware"
)

// Handler serves ledger reads.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleBalance: GET /api/v1/balance
func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		common.RespondError(w, r, common.ErrMissingAccount)
		return
	}
	b, err := h.service.GetBalance(r.Context(), accountID)
	if err != nil {
		common.RespondError(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, b)
}

// HandleTransactions: GET /api/v1/transactions?limit=N
func (h *Handler) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		common.RespondError(w, r, common.ErrMissingAccount)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			common.RespondMessage(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		limit = n
	}

	txs, err := h.service.Transactions(r.Context(), accountID, limit)
	if err != nil {
		common.RespondError(w, r, err)
		return
	}
	if txs == nil {
		txs = []Transaction{}
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"limit":        h.service.ClampLimit(limit),
	})
}

// HandleReconcile: GET /api/v1/admin/accounts/{id}/reconcile
func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.RespondError(w, r, common.ErrInvalidReference)
		return
	}
	rec, err := h.service.Reconcile(r.Context(), accountID)
	if err != nil {
		common.RespondError(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, rec)
}
