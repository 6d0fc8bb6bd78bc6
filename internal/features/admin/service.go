// Package admin (service.go): credits granted by support staff.
package admin

import (
	"context"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"lexdesk.app/credits/internal/common"
	"lexdesk.app/credits/internal/features/ledger"
)

// Ledger is the ledger operation a grant needs.
type Ledger interface {
	ApplyDelta(ctx context.Context, d ledger.Delta) (ledger.Result, error)
}

type Service struct {
	ledger Ledger
}

func NewService(ledger Ledger) *Service {
	return &Service{ledger: ledger}
}

// GrantCredits gives amount credits to accountID.
// There is no idempotency key: every call is a new grant, so automated
// callers must not retry it blindly after a timeout.
func (s *Service) GrantCredits(ctx context.Context, accountID uuid.UUID, amount int64, reason, actor string) (ledger.Result, error) {
	if amount <= 0 {
		return ledger.Result{}, common.ErrInvalidAmount
	}
	reason = strings.TrimSpace(reason)
	if len([]rune(reason)) > 500 {
		reason = string([]rune(reason)[:500])
	}
	if actor == "" {
		actor = "admin"
	}

	res, err := s.ledger.ApplyDelta(ctx, ledger.Delta{
		AccountID:   accountID,
		Amount:      amount,
		Type:        ledger.TxAdminGrant,
		Reference:   ledger.Reference{Type: ledger.RefAdmin, ID: actor},
		Description: reason,
	})
	if err != nil {
		return ledger.Result{}, err
	}

	log.WithFields(log.Fields{
		"account_id": accountID,
		"amount":     amount,
		"actor":      actor,
	}).Info("Admin grant")
	return res, nil
}
