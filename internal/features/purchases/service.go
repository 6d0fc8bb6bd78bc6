// Package purchases (service.go): checkout and the payment webhook credit.
package purchases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"lexdesk.app/credits/internal/common"
	"lexdesk.app/credits/internal/features/ledger"
)

// Store persists packages and orders. CompleteOrder must flip the status
// and apply the credits atomically, returning ErrAlreadyProcessed when
// the order was already completed.
type Store interface {
	ListPackages(ctx context.Context) ([]Package, error)
	GetPackage(ctx context.Context, id string) (Package, error)
	CreateOrder(ctx context.Context, o Order) error
	GetOrder(ctx context.Context, orderID string) (Order, error)
	CompleteOrder(ctx context.Context, orderID string, firstBonus int64) (Order, []ledger.Result, error)
}

// Notifier publishes committed ledger results.
type Notifier interface {
	Notify(results ...ledger.Result)
}

type Service struct {
	store      Store
	notifier   Notifier
	firstBonus int64
	now        func() time.Time
}

// NewService creates the purchase service. firstBonus is awarded once per
// account, on its first completed order.
func NewService(store Store, notifier Notifier, firstBonus int64) *Service {
	return &Service{store: store, notifier: notifier, firstBonus: firstBonus, now: time.Now}
}

func (s *Service) ListPackages(ctx context.Context) ([]Package, error) {
	return s.store.ListPackages(ctx)
}

// CreateCheckout opens a pending order for packageID.
func (s *Service) CreateCheckout(ctx context.Context, accountID uuid.UUID, packageID string) (Order, error) {
	if accountID == uuid.Nil {
		return Order{}, common.ErrMissingAccount
	}
	pkg, err := s.store.GetPackage(ctx, strings.TrimSpace(packageID))
	if err != nil {
		return Order{}, err
	}

	order := Order{
		OrderID:   uuid.NewString(),
		AccountID: accountID,
		PackageID: pkg.ID,
		Credits:   pkg.Credits,
		Amount:    pkg.Price,
		Currency:  pkg.Currency,
		Status:    OrderPending,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		return Order{}, err
	}

	log.WithFields(log.Fields{
		"account_id": accountID,
		"order_id":   order.OrderID,
		"package_id": pkg.ID,
		"amount":     pkg.Price.StringFixed(2),
	}).Info("Checkout created")
	return order, nil
}

// CreditPurchase completes orderID after a confirmed payment.
// Safe to call any number of times: only the first call credits, the
// others return OutcomeAlreadyProcessed, whatever amount a retry reports.
// When paid is set on a pending order it must equal the order amount.
func (s *Service) CreditPurchase(ctx context.Context, orderID string, paid decimal.NullDecimal) (CreditResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return CreditResult{}, fmt.Errorf("%w: order_id is required", common.ErrInvalidReference)
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return CreditResult{}, err
	}
	if order.Status == OrderCompleted {
		return alreadyProcessed(order), nil
	}
	if paid.Valid && !paid.Decimal.Equal(order.Amount) {
		log.WithFields(log.Fields{
			"order_id": orderID,
			"expected": order.Amount.StringFixed(2),
			"paid":     paid.Decimal.String(),
		}).Warn("Payment amount mismatch")
		return CreditResult{}, fmt.Errorf("%w: expected %s, got %s",
			common.ErrAmountMismatch, order.Amount.StringFixed(2), paid.Decimal.String())
	}

	completed, results, err := s.store.CompleteOrder(ctx, orderID, s.firstBonus)
	if errors.Is(err, common.ErrAlreadyProcessed) {
		return alreadyProcessed(order), nil
	}
	if err != nil {
		return CreditResult{}, err
	}
	s.notifier.Notify(results...)

	out := CreditResult{
		Outcome:   OutcomeCredited,
		OrderID:   completed.OrderID,
		AccountID: completed.AccountID,
	}
	for _, res := range results {
		switch res.Transaction.Type {
		case ledger.TxPurchase:
			out.Credits += res.Transaction.Amount
		case ledger.TxBonus:
			out.Bonus += res.Transaction.Amount
		}
		out.Balance = res.Balance.CurrentBalance
		out.Transactions = append(out.Transactions, res.Transaction)
	}
	return out, nil
}

func alreadyProcessed(o Order) CreditResult {
	return CreditResult{
		Outcome:   OutcomeAlreadyProcessed,
		OrderID:   o.OrderID,
		AccountID: o.AccountID,
	}
}
