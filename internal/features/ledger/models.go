// Package ledger: models.go describes balances, transactions and the
// delta that moves one into the other.
package ledger

import (
	"time"

	"github.com/google/uuid"

	"lexdesk.app/credits/internal/common"
)

// TxType is the kind of a ledger transaction.
type TxType string

const (
	TxPurchase    TxType = "purchase"
	TxConsumption TxType = "consumption"
	TxAdminGrant  TxType = "admin_grant"
	TxReferral    TxType = "referral"
	TxBonus       TxType = "bonus"
)

// Valid reports whether t is one of the known types.
func (t TxType) Valid() bool {
	switch t {
	case TxPurchase, TxConsumption, TxAdminGrant, TxReferral, TxBonus:
		return true
	}
	return false
}

// Debit reports whether transactions of this type take credits away.
func (t TxType) Debit() bool {
	return t == TxConsumption
}

// Balance is one account's row. Zero value = account never touched.
type Balance struct {
	AccountID      uuid.UUID  `json:"account_id"`
	CurrentBalance int64      `json:"current_balance"`
	TotalEarned    int64      `json:"total_earned"`
	TotalSpent     int64      `json:"total_spent"`
	CurrentStreak  int        `json:"current_streak"`
	LongestStreak  int        `json:"longest_streak"`
	LastActivityOn *time.Time `json:"last_activity_on,omitempty"`
	LastPurchaseAt *time.Time `json:"last_purchase_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Reference links a transaction to the entity that caused it.
type Reference struct {
	Type string `json:"reference_type"`
	ID   string `json:"reference_id"`
}

// Reference types
const (
	RefTool     = "tool"
	RefOrder    = "purchase_order"
	RefReferral = "referral"
	RefTask     = "task"
	RefAdmin    = "admin"
)

// Transaction is an immutable log row.
type Transaction struct {
	ID            uuid.UUID         `json:"id"`
	AccountID     uuid.UUID         `json:"account_id"`
	Type          TxType            `json:"transaction_type"`
	Amount        int64             `json:"amount"`
	BalanceAfter  int64             `json:"balance_after"`
	ReferenceType string            `json:"reference_type"`
	ReferenceID   string            `json:"reference_id"`
	Description   string            `json:"description"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Delta is a request to move an account's balance by Amount.
// Amount is negative for consumption and positive for everything else.
type Delta struct {
	AccountID   uuid.UUID
	Amount      int64
	Type        TxType
	Reference   Reference
	Description string
	Metadata    map[string]string

	// TrackActivity advances the activity streak.
	TrackActivity bool
	// MarkPurchase sets last_purchase_at.
	MarkPurchase bool
}

// Validate checks the delta before any store is touched.
func (d Delta) Validate() error {
	if d.AccountID == uuid.Nil {
		return common.ErrMissingAccount
	}
	if !d.Type.Valid() {
		return common.ErrInvalidAmount
	}
	if d.Amount == 0 {
		return common.ErrInvalidAmount
	}
	if d.Type.Debit() != (d.Amount < 0) {
		return common.ErrInvalidAmount
	}
	return nil
}

// Result is what a successful ApplyDelta returns.
type Result struct {
	Balance     Balance     `json:"balance"`
	Transaction Transaction `json:"transaction"`
}

// Reconciliation compares the stored balance with the transaction log.
type Reconciliation struct {
	AccountID  uuid.UUID `json:"account_id"`
	Balance    int64     `json:"current_balance"`
	Earned     int64     `json:"total_earned"`
	Spent      int64     `json:"total_spent"`
	LedgerSum  int64     `json:"ledger_sum"`
	Consistent bool      `json:"consistent"`
}

// Apply moves b by d and returns the transaction to append.
// b is left untouched when the delta is rejected. Both stores call
// Apply while holding the account's lock, so the arithmetic lives here once.
func Apply(b *Balance, d Delta, now time.Time) (Transaction, error) {
	if err := d.Validate(); err != nil {
		return Transaction{}, err
	}
	next := b.CurrentBalance + d.Amount
	if next < 0 {
		return Transaction{}, &common.InsufficientBalanceError{
			AccountID: d.AccountID,
			Required:  -d.Amount,
			Available: b.CurrentBalance,
		}
	}

	b.AccountID = d.AccountID
	b.CurrentBalance = next
	if d.Amount > 0 {
		b.TotalEarned += d.Amount
	} else {
		b.TotalSpent += -d.Amount
	}
	if d.TrackActivity {
		AdvanceStreak(b, now)
	}
	if d.MarkPurchase {
		t := now
		b.LastPurchaseAt = &t
	}
	b.UpdatedAt = now

	metadata := d.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	return Transaction{
		ID:            uuid.New(),
		AccountID:     d.AccountID,
		Type:          d.Type,
		Amount:        d.Amount,
		BalanceAfter:  next,
		ReferenceType: d.Reference.Type,
		ReferenceID:   d.Reference.ID,
		Description:   d.Description,
		Metadata:      metadata,
		CreatedAt:     now,
	}, nil
}

// AdvanceStreak counts consecutive UTC days with activity.
//
//	same day      → unchanged
//	next day      → +1
//	anything else → 1
func AdvanceStreak(b *Balance, now time.Time) {
	today := common.DateOf(now.UTC())
	switch {
	case b.LastActivityOn == nil:
		b.CurrentStreak = 1
	default:
		switch common.DaysBetween(b.LastActivityOn.UTC(), today) {
		case 0:
			if b.CurrentStreak == 0 {
				b.CurrentStreak = 1
			}
		case 1:
			b.CurrentStreak++
		default:
			b.CurrentStreak = 1
		}
	}
	if b.CurrentStreak > b.LongestStreak {
		b.LongestStreak = b.CurrentStreak
	}
	b.LastActivityOn = &today
}

// StreakExpired reports whether the streak should be reset at now:
// no activity today or yesterday.
func StreakExpired(b Balance, now time.Time) bool {
	if b.CurrentStreak == 0 || b.LastActivityOn == nil {
		return false
	}
	return common.DaysBetween(b.LastActivityOn.UTC(), now.UTC()) > 1
}
