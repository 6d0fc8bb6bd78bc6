// Package realtime tells subscribed clients that a balance changed.
//
// Events are hints: a client that receives one re-fetches its balance and
// transaction history instead of trusting the payload. Delivery is
// best-effort and never blocks or fails a ledger write.
package realtime

import (
	"time"

	"github.com/google/uuid"
)

// Event kinds
const (
	KindBalanceChanged = "balance:changed"
	KindRefresh        = "balance:refresh"
)

// Event describes one committed ledger transaction.
type Event struct {
	ID              uuid.UUID `json:"id"`
	Kind            string    `json:"kind"`
	AccountID       uuid.UUID `json:"account_id"`
	TransactionID   uuid.UUID `json:"transaction_id"`
	TransactionType string    `json:"transaction_type"`
	Amount          int64     `json:"amount"`
	BalanceAfter    int64     `json:"balance_after"`
	Description     string    `json:"description,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// RefreshEvent tells a client to re-fetch its state because it may have
// missed changes.
func RefreshEvent(accountID uuid.UUID) Event {
	return Event{
		ID:         uuid.New(),
		Kind:       KindRefresh,
		AccountID:  accountID,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher accepts events for delivery. Implementations must not block.
type Publisher interface {
	Publish(ev Event)
}
