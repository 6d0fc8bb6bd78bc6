// Package ledger: service.go is the only sanctioned way to move a balance.
// It validates deltas, applies them atomically through the Store and
// notifies realtime subscribers after the write commits.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"lexdesk.app/credits/internal/common"
	"lexdesk.app/credits/internal/realtime"
)

var (
	appliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credits_ledger_transactions_total",
		Help: "Ledger transactions committed, by type",
	}, []string{"type"})

	creditsMoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credits_ledger_credits_total",
		Help: "Absolute credits moved, by type",
	}, []string{"type"})

	reconcileMismatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "credits_ledger_reconcile_mismatches_total",
		Help: "Accounts whose balance did not match the transaction log",
	})
)

// Store is the durable ledger. ApplyDelta must read, write and append
// in one atomic unit with the account's balance row locked.
type Store interface {
	GetBalance(ctx context.Context, accountID uuid.UUID) (Balance, error)
	ApplyDelta(ctx context.Context, d Delta) (Result, error)
	ListTransactions(ctx context.Context, accountID uuid.UUID, limit int) ([]Transaction, error)
	// LedgerSnapshot returns the balance and the log sum as of one instant.
	LedgerSnapshot(ctx context.Context, accountID uuid.UUID) (Balance, int64, error)
	AccountIDs(ctx context.Context) ([]uuid.UUID, error)
	BreakStaleStreaks(ctx context.Context, now time.Time) (int64, error)
}

// Service wraps the store with validation, logging and notifications.
type Service struct {
	store    Store
	notifier realtime.Publisher
	maxLimit int
}

// NewService creates the ledger service. maxLimit caps transaction listings.
func NewService(store Store, notifier realtime.Publisher, maxLimit int) *Service {
	if maxLimit <= 0 {
		maxLimit = 100
	}
	return &Service{store: store, notifier: notifier, maxLimit: maxLimit}
}

// GetBalance returns the account's balance, zero-valued if it has none yet.
func (s *Service) GetBalance(ctx context.Context, accountID uuid.UUID) (Balance, error) {
	if accountID == uuid.Nil {
		return Balance{}, common.ErrMissingAccount
	}
	return s.store.GetBalance(ctx, accountID)
}

// ApplyDelta validates d, applies it and publishes a change event.
// A debit that would overdraw returns *common.InsufficientBalanceError.
func (s *Service) ApplyDelta(ctx context.Context, d Delta) (Result, error) {
	if err := d.Validate(); err != nil {
		return Result{}, err
	}
	res, err := s.store.ApplyDelta(ctx, d)
	if err != nil {
		return Result{}, err
	}
	s.Notify(res)
	return res, nil
}

// Notify logs and publishes committed results. Other features call it
// after their own atomic writes. It never blocks and never fails.
func (s *Service) Notify(results ...Result) {
	for _, res := range results {
		t := res.Transaction
		appliedTotal.WithLabelValues(string(t.Type)).Inc()
		amount := t.Amount
		if amount < 0 {
			amount = -amount
		}
		creditsMoved.WithLabelValues(string(t.Type)).Add(float64(amount))

		log.WithFields(log.Fields{
			"account_id":    t.AccountID,
			"type":          t.Type,
			"amount":        t.Amount,
			"balance_after": t.BalanceAfter,
			"reference":     t.ReferenceType + ":" + t.ReferenceID,
		}).Info("Ledger transaction committed")

		if s.notifier == nil {
			continue
		}
		s.notifier.Publish(realtime.Event{
			ID:              uuid.New(),
			Kind:            realtime.KindBalanceChanged,
			AccountID:       t.AccountID,
			TransactionID:   t.ID,
			TransactionType: string(t.Type),
			Amount:          t.Amount,
			BalanceAfter:    t.BalanceAfter,
			Description:     t.Description,
			OccurredAt:      t.CreatedAt,
		})
	}
}

// Transactions lists the newest transactions; limit is clamped to [1, max].
func (s *Service) Transactions(ctx context.Context, accountID uuid.UUID, limit int) ([]Transaction, error) {
	if accountID == uuid.Nil {
		return nil, common.ErrMissingAccount
	}
	return s.store.ListTransactions(ctx, accountID, s.ClampLimit(limit))
}

// ClampLimit forces limit into [1, maxLimit]; 0 means the default of 20.
func (s *Service) ClampLimit(limit int) int {
	switch {
	case limit == 0:
		limit = 20
	case limit < 1:
		limit = 1
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	return limit
}

// Reconcile compares the stored balance and aggregates with the log.
func (s *Service) Reconcile(ctx context.Context, accountID uuid.UUID) (Reconciliation, error) {
	b, sum, err := s.store.LedgerSnapshot(ctx, accountID)
	if err != nil {
		return Reconciliation{}, err
	}
	return Reconciliation{
		AccountID:  accountID,
		Balance:    b.CurrentBalance,
		Earned:     b.TotalEarned,
		Spent:      b.TotalSpent,
		LedgerSum:  sum,
		Consistent: b.CurrentBalance == sum && b.CurrentBalance == b.TotalEarned-b.TotalSpent,
	}, nil
}

// ReconcileAll checks every account and logs each mismatch.
func (s *Service) ReconcileAll(ctx context.Context) (checked, mismatched int, err error) {
	ids, err := s.store.AccountIDs(ctx)
	if err != nil {
		return 0, 0, err
	}
	var errs []error
	for _, id := range ids {
		if ctx.Err() != nil {
			return checked, mismatched, ctx.Err()
		}
		rec, err := s.Reconcile(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		checked++
		if !rec.Consistent {
			mismatched++
			reconcileMismatches.Inc()
			log.WithFields(log.Fields{
				"account_id": id,
				"balance":    rec.Balance,
				"earned":     rec.Earned,
				"spent":      rec.Spent,
				"ledger_sum": rec.LedgerSum,
			}).Error("Balance does not match transaction log")
		}
	}
	return checked, mismatched, errors.Join(errs...)
}

// BreakStaleStreaks resets streaks with no activity today or yesterday.
func (s *Service) BreakStaleStreaks(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.store.BreakStaleStreaks(ctx, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.WithField("accounts", n).Info("Activity streaks reset")
	}
	return n, nil
}
