// Package consumption gates tool usage behind a sufficient balance.
// The balance check and the debit are one atomic ledger operation, so two
// concurrent calls can never jointly overdraw an account.
package consumption

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"lexdesk.app/credits/internal/common"
	"lexdesk.app/credits/internal/features/ledger"
)

var consumeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "credits_consume_total",
	Help: "Consume calls by tool and outcome",
}, []string{"tool", "outcome"})

// Pricer resolves a tool's cost. *toolcost.Catalog implements it.
type Pricer interface {
	GetCost(toolType string) int64
}

// Ledger is the part of the ledger service consumption needs.
type Ledger interface {
	GetBalance(ctx context.Context, accountID uuid.UUID) (ledger.Balance, error)
	ApplyDelta(ctx context.Context, d ledger.Delta) (ledger.Result, error)
}

// Service is the consumption engine.
type Service struct {
	pricer Pricer
	ledger Ledger
	names  func(toolType string) string
}

// NewService creates the engine. names maps a tool type to the display
// name written into the transaction description; nil uses the type.
func NewService(pricer Pricer, ledger Ledger, names func(string) string) *Service {
	if names == nil {
		names = func(t string) string { return t }
	}
	return &Service{pricer: pricer, ledger: ledger, names: names}
}

// Consume charges accountID for one use of toolType.
//
// Returns:
//   - Allowed=true, Outcome=free: cost is 0, nothing written; balances are
//     omitted with BalanceUnavailable when the store could not be read
//   - Allowed=true, Outcome=charged: debited, NewBalance is authoritative
//   - Allowed=false, Outcome=insufficient_credits: nothing written
//   - error: validation or store fault; the outcome is unknown for store faults
func (s *Service) Consume(ctx context.Context, accountID uuid.UUID, toolType string, metadata map[string]string) (ConsumeResult, error) {
	if accountID == uuid.Nil {
		return ConsumeResult{}, common.ErrMissingAccount
	}
	if toolType == "" {
		return ConsumeResult{}, fmt.Errorf("%w: tool_type is required", common.ErrInvalidReference)
	}

	cost := s.pricer.GetCost(toolType)
	if cost == 0 {
		// Unknown tools are free too, so the type is not used as a label.
		consumeTotal.WithLabelValues("-", string(OutcomeFree)).Inc()
		res := ConsumeResult{Outcome: OutcomeFree, Allowed: true, ToolType: toolType}
		// The balance is informational; a store fault must not block a free tool.
		b, err := s.ledger.GetBalance(ctx, accountID)
		if err != nil {
			log.WithError(err).WithField("tool", toolType).Warn("Balance unavailable for free tool")
			res.BalanceUnavailable = true
			return res, nil
		}
		res.CurrentBalance = b.CurrentBalance
		res.NewBalance = b.CurrentBalance
		return res, nil
	}

	res, err := s.ledger.ApplyDelta(ctx, ledger.Delta{
		AccountID:     accountID,
		Amount:        -cost,
		Type:          ledger.TxConsumption,
		Reference:     ledger.Reference{Type: ledger.RefTool, ID: toolType},
		Description:   s.names(toolType),
		Metadata:      metadata,
		TrackActivity: true,
	})

	var insufficient *common.InsufficientBalanceError
	switch {
	case errors.As(err, &insufficient):
		consumeTotal.WithLabelValues(toolType, string(OutcomeInsufficient)).Inc()
		log.WithFields(log.Fields{
			"account_id": accountID,
			"tool":       toolType,
			"required":   insufficient.Required,
			"available":  insufficient.Available,
		}).Debug("Consumption rejected, not enough credits")
		return ConsumeResult{
			Outcome:        OutcomeInsufficient,
			Allowed:        false,
			ToolType:       toolType,
			Required:       cost,
			CurrentBalance: insufficient.Available,
			NewBalance:     insufficient.Available,
			Shortfall:      insufficient.Shortfall(),
		}, nil
	case err != nil:
		return ConsumeResult{}, err
	}

	consumeTotal.WithLabelValues(toolType, string(OutcomeCharged)).Inc()
	txID := res.Transaction.ID
	return ConsumeResult{
		Outcome:         OutcomeCharged,
		Allowed:         true,
		ToolType:        toolType,
		Required:        cost,
		CurrentBalance:  res.Balance.CurrentBalance,
		NewBalance:      res.Balance.CurrentBalance,
		CreditsConsumed: cost,
		TransactionID:   &txID,
	}, nil
}
