// Package toolcost: handlers.go lists prices and refreshes the cache.
package toolcost

import (
	"net/http"

	"lexdesk.app/credits/internal/common"
)

type Handler struct {
	catalog *Catalog
}

func NewHandler(catalog *Catalog) *Handler {
	return &Handler{catalog: catalog}
}

// HandleList: GET /api/v1/tools
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"tools":        h.catalog.Entries(),
		"refreshed_at": h.catalog.RefreshedAt(),
	})
}

// HandleRefresh: POST /api/v1/admin/tool-costs/refresh
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Refresh(r.Context()); err != nil {
		common.RespondError(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"tools":        len(h.catalog.Entries()),
		"refreshed_at": h.catalog.RefreshedAt(),
	})
}
