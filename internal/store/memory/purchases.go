package memory

import (
	"context"
	"fmt"
	"sort"

	"lexdesk.app/credits/internal/common"
	"lexdesk.app/credits/internal/features/ledger"
	"lexdesk.app/credits/internal/features/purchases"
)

// --- purchases.Store ---

func (s *Store) ListPackages(_ context.Context) ([]purchases.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked("list packages"); err != nil {
		return nil, err
	}
	out := make([]purchases.Package, 0, len(s.packages))
	for _, p := range s.packages {
		if p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetPackage(_ context.Context, id string) (purchases.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked("get package"); err != nil {
		return purchases.Package{}, err
	}
	p, ok := s.packages[id]
	if !ok || !p.Active {
		return purchases.Package{}, fmt.Errorf("%w: package %q", common.ErrInvalidReference, id)
	}
	return p, nil
}

func (s *Store) CreateOrder(_ context.Context, o purchases.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked("create order"); err != nil {
		return err
	}
	if _, exists := s.orders[o.OrderID]; exists {
		return common.StoreError("create order", fmt.Errorf("duplicate order id %q", o.OrderID))
	}
	s.orders[o.OrderID] = o
	return nil
}

func (s *Store) GetOrder(_ context.Context, orderID string) (purchases.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked("get order"); err != nil {
		return purchases.Order{}, err
	}
	o, ok := s.orders[orderID]
	if !ok {
		return purchases.Order{}, fmt.Errorf("%w: order %q", common.ErrInvalidReference, orderID)
	}
	return o, nil
}

func (s *Store) CompleteOrder(_ context.Context, orderID string, firstBonus int64) (purchases.Order, []ledger.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked("complete order"); err != nil {
		return purchases.Order{}, nil, err
	}

	o, ok := s.orders[orderID]
	if !ok {
		return purchases.Order{}, nil, fmt.Errorf("%w: order %q", common.ErrInvalidReference, orderID)
	}
	if o.Status != purchases.OrderPending {
		return purchases.Order{}, nil, common.ErrAlreadyProcessed
	}

	now := s.now()
	deltas := []ledger.Delta{purchases.PurchaseDelta(o)}
	if firstBonus > 0 && s.completedOrdersLocked(o) == 0 {
		deltas = append(deltas, purchases.FirstPurchaseBonusDelta(o, firstBonus))
	}
	results, err := s.applyLocked(now, deltas...)
	if err != nil {
		return purchases.Order{}, nil, err
	}

	o.Status = purchases.OrderCompleted
	o.CompletedAt = &now
	s.orders[orderID] = o
	return o, results, nil
}

func (s *Store) completedOrdersLocked(o purchases.Order) int {
	n := 0
	for _, other := range s.orders {
		if other.AccountID == o.AccountID && other.Status == purchases.OrderCompleted {
			n++
		}
	}
	return n
}
