// Package purchases (handlers.go): packages, checkout and the payment webhook.
package purchases

import (
	"crypto/subtle"
	"net/http"

	log "github.com/sirupsen/logrus"

	"lexdesk.app/credits/internal/common"
	"lexdesk.app/credits/internal/server/middleware"
)

// WebhookSecretHeader carries the shared secret on payment notifications.
const WebhookSecretHeader = "X-Webhook-Secret"

type Handler struct {
	service       *Service
	webhookSecret string
}

func NewHandler(service *Service, webhookSecret string) *Handler {
	return &Handler{service: service, webhookSecret: webhookSecret}
}

// HandlePackages: GET /api/v1/packages
func (h *Handler) HandlePackages(w http.ResponseWriter, r *http.Request) {
	pkgs, err := h.service.ListPackages(r.Context())
	if err != nil {
		common.RespondError(w, r, err)
		return
	}
	if pkgs == nil {
		pkgs = []Package{}
	}
	common.RespondJSON(w, http.StatusOK, map[string]interface{}{"packages": pkgs})
}

// HandleCheckout: POST /api/v1/checkout
func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		common.RespondError(w, r, common.ErrMissingAccount)
		return
	}
	var req CheckoutRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondMessage(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
		return
	}

	order, err := h.service.CreateCheckout(r.Context(), accountID, req.PackageID)
	if err != nil {
		common.RespondError(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, order)
}

// HandleWebhook: POST /api/v1/webhooks/payments
//
// Duplicate deliveries answer 200 with outcome "already_processed" so the
// provider stops retrying.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	secret := r.Header.Get(WebhookSecretHeader)
	if h.webhookSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(h.webhookSecret)) != 1 {
		log.WithField("remote", r.RemoteAddr).Warn("Payment webhook with bad secret")
		common.RespondError(w, r, common.ErrUnauthorized)
		return
	}

	var req WebhookRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.RespondMessage(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
		return
	}
	if !req.Confirmed() {
		log.WithFields(log.Fields{"order_id": req.OrderID, "status": req.Status}).Info("Payment not confirmed, ignored")
		common.RespondJSON(w, http.StatusAccepted, CreditResult{Outcome: OutcomeIgnored, OrderID: req.OrderID})
		return
	}

	res, err := h.service.CreditPurchase(r.Context(), req.OrderID, req.Amount)
	if err != nil {
		common.RespondError(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, res)
}
