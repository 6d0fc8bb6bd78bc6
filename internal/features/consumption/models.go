// Package consumption: models.go holds the tagged result of a consume call.
package consumption

import "github.com/google/uuid"

// Outcome tags a ConsumeResult.
type Outcome string

const (
	// OutcomeFree: the tool costs nothing; no ledger write happened.
	OutcomeFree Outcome = "free"
	// OutcomeCharged: credits were debited.
	OutcomeCharged Outcome = "charged"
	// OutcomeInsufficient: the caller must not run the billable action.
	OutcomeInsufficient Outcome = "insufficient_credits"
)

// ConsumeResult reports whether the caller may run the tool.
// Insufficient balance is a result here, not an error.
type ConsumeResult struct {
	Outcome         Outcome    `json:"outcome"`
	Allowed         bool       `json:"allowed"`
	ToolType        string     `json:"tool_type"`
	Required        int64      `json:"required"`
	CurrentBalance  int64      `json:"current_balance"`
	NewBalance      int64      `json:"new_balance"`
	CreditsConsumed int64      `json:"credits_consumed"`
	Shortfall       int64      `json:"shortfall,omitempty"`
	TransactionID   *uuid.UUID `json:"transaction_id,omitempty"`

	// BalanceUnavailable is set on free results when the balance read failed.
	BalanceUnavailable bool `json:"balance_unavailable,omitempty"`
}

// Request is the body of POST /api/v1/consume.
type Request struct {
	ToolType string            `json:"tool_type"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
