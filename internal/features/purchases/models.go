// Package purchases (models.go): credit packages, checkout orders and the
// tagged outcome of a webhook credit.
package purchases

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lexdesk.app/credits/internal/features/ledger"
)

// Package is a purchasable bundle of credits.
type Package struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Credits   int64           `json:"credits"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	Active    bool            `json:"is_active"`
	SortOrder int             `json:"-"`
}

// OrderStatus is pending until the payment webhook confirms it.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
)

// Order is one checkout. It is completed exactly once.
type Order struct {
	OrderID     string          `json:"order_id"`
	AccountID   uuid.UUID       `json:"account_id"`
	PackageID   string          `json:"package_id"`
	Credits     int64           `json:"credits"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Status      OrderStatus     `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// CreditOutcome tags the result of CreditPurchase.
type CreditOutcome string

const (
	OutcomeCredited         CreditOutcome = "credited"
	OutcomeAlreadyProcessed CreditOutcome = "already_processed"
	OutcomeIgnored          CreditOutcome = "ignored"
)

// CreditResult is returned to the payment webhook.
type CreditResult struct {
	Outcome      CreditOutcome        `json:"outcome"`
	OrderID      string               `json:"order_id"`
	AccountID    uuid.UUID            `json:"account_id"`
	Credits      int64                `json:"credits_added"`
	Bonus        int64                `json:"bonus_added"`
	Balance      int64                `json:"balance"`
	Transactions []ledger.Transaction `json:"transactions,omitempty"`
}

// CheckoutRequest is the body of POST /api/v1/checkout.
type CheckoutRequest struct {
	PackageID string `json:"package_id"`
}

// WebhookRequest is the normalized payment notification. Parsing the
// provider's own format happens upstream.
type WebhookRequest struct {
	OrderID string              `json:"order_id"`
	Status  string              `json:"status"`
	Amount  decimal.NullDecimal `json:"amount"`
}

// Confirmed reports whether the notification means the payment succeeded.
// An empty status is treated as confirmed.
func (w WebhookRequest) Confirmed() bool {
	switch w.Status {
	case "", "paid", "succeeded", "completed", "approved":
		return true
	}
	return false
}
