// Package admin (models.go): request and response shapes for admin actions.
package admin

import (
	"github.com/google/uuid"

	"lexdesk.app/credits/internal/features/ledger"
)

// GrantRequest is the body of POST /api/v1/admin/grants.
type GrantRequest struct {
	AccountID uuid.UUID `json:"account_id"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
	Actor     string    `json:"actor,omitempty"`
}

// GrantResponse is returned after a grant commits.
type GrantResponse struct {
	Balance     ledger.Balance     `json:"balance"`
	Transaction ledger.Transaction `json:"transaction"`
}

// Argon2id parameters used for new admin key hashes.
const (
	hashMemory      uint32 = 64 * 1024 // 64 MB
	hashIterations  uint32 = 3
	hashParallelism uint8  = 2
	hashKeyLength   uint32 = 32
	hashSaltLength         = 16
)
