// Package tasks (handlers.go): task list, claims and admin progress reports.
package tasks

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"lexdesk.app/credits/internal/common"
	"lexdesk.app/credits/internal/server/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleList: GET /api/v1/tasks
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		common.RespondError(w, r, common.ErrMissingAccount)
		return
	}
	views, err := h.service.ListTasks(r.Context(), accountID)
	if err != nil {
		common.RespondError(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{"tasks": views})
}

// HandleClaim: POST /api/v1/tasks/{key}/claim
func (h *Handler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		common.RespondError(w, r, common.ErrMissingAccount)
		return
	}
	res, err := h.service.ClaimTask(r.Context(), accountID, chi.URLParam(r, "key"))
	if err != nil {
		common.RespondError(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, res)
}

// HandleProgress: POST /api/v1/admin/tasks/{key}/progress
func (h *Handler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	var req ProgressRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondMessage(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
		return
	}
	if req.AccountID == uuid.Nil {
		common.RespondError(w, r, common.ErrMissingAccount)
		return
	}

	key := chi.URLParam(r, "key")
	var (
		p   Progress
		err error
	)
	if req.Complete {
		p, err = h.service.CompleteTask(r.Context(), req.AccountID, key)
	} else {
		inc := req.Increment
		if inc == 0 {
			inc = 1
		}
		p, err = h.service.RecordProgress(r.Context(), req.AccountID, key, inc)
	}
	if err != nil {
		common.RespondError(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, p)
}
