// Package memory is an in-process implementation of every feature store.
// A single mutex serializes all operations, which gives the same
// guarantees the PostgreSQL repositories get from row locks: each
// operation reads, checks and writes as one unit and either commits all
// of its changes or none.
package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"lexdesk.app/credits/internal/common"
	"lexdesk.app/credits/internal/features/ledger"
	"lexdesk.app/credits/internal/features/purchases"
	"lexdesk.app/credits/internal/features/referrals"
	"lexdesk.app/credits/internal/features/tasks"
	"lexdesk.app/credits/internal/features/toolcost"
)

type progressKey struct {
	account uuid.UUID
	task    string
}

// Store holds all state in maps guarded by mu.
type Store struct {
	mu    sync.Mutex
	now   func() time.Time
	fault error

	balances map[uuid.UUID]*ledger.Balance
	txs      map[uuid.UUID][]ledger.Transaction

	tools map[string]toolcost.Entry

	packages map[string]purchases.Package
	orders   map[string]purchases.Order

	referrals map[string]*referrals.Referral // by code
	referred  map[uuid.UUID]string           // referred account → code

	tasks    map[string]tasks.Task
	progress map[progressKey]*tasks.Progress
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		now:       time.Now,
		balances:  make(map[uuid.UUID]*ledger.Balance),
		txs:       make(map[uuid.UUID][]ledger.Transaction),
		tools:     make(map[string]toolcost.Entry),
		packages:  make(map[string]purchases.Package),
		orders:    make(map[string]purchases.Order),
		referrals: make(map[string]*referrals.Referral),
		referred:  make(map[uuid.UUID]string),
		tasks:     make(map[string]tasks.Task),
		progress:  make(map[progressKey]*tasks.Progress),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetFault makes every operation fail as a store fault until cleared
// with SetFault(nil).
func (s *Store) SetFault(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = err
}

func (s *Store) checkLocked(op string) error {
	if s.fault != nil {
		return common.StoreError(op, s.fault)
	}
	return nil
}

// --- ledger.Store ---

func (s *Store) GetBalance(_ context.Context, accountID uuid.UUID) (ledger.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked("get balance"); err != nil {
		return ledger.Balance{}, err
	}
	if b, ok := s.balances[accountID]; ok {
		return *b, nil
	}
	return ledger.Balance{AccountID: accountID}, nil
}

func (s *Store) ApplyDelta(_ context.Context, d ledger.Delta) (ledger.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked("apply delta"); err != nil {
		return ledger.Result{}, err
	}
	results, err := s.applyLocked(s.now(), d)
	if err != nil {
		return ledger.Result{}, err
	}
	return results[0], nil
}

// applyLocked applies deltas in order against staged copies and commits
// them only when every delta succeeds.
func (s *Store) applyLocked(now time.Time, deltas ...ledger.Delta) ([]ledger.Result, error) {
	staged := make(map[uuid.UUID]ledger.Balance, len(deltas))
	results := make([]ledger.Result, 0, len(deltas))
	for _, d := range deltas {
		b, ok := staged[d.AccountID]
		if !ok {
			if cur, exists := s.balances[d.AccountID]; exists {
				b = *cur
			}
		}
		txn, err := ledger.Apply(&b, d, now)
		if err != nil {
			return nil, err
		}
		staged[d.AccountID] = b
		results = append(results, ledger.Result{Balance: b, Transaction: txn})
	}

	for id, b := range staged {
		b := b
		s.balances[id] = &b
	}
	for _, res := range results {
		id := res.Transaction.AccountID
		s.txs[id] = append(s.txs[id], res.Transaction)
	}
	return results, nil
}

func (s *Store) ListTransactions(_ context.Context, accountID uuid.UUID, limit int) ([]ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked("list transactions"); err != nil {
		return nil, err
	}
	all := s.txs[accountID]
	out := make([]ledger.Transaction, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *Store) LedgerSnapshot(_ context.Context, accountID uuid.UUID) (ledger.Balance, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked("ledger snapshot"); err != nil {
		return ledger.Balance{}, 0, err
	}
	b := ledger.Balance{AccountID: accountID}
	if stored, ok := s.balances[accountID]; ok {
		b = *stored
	}
	var sum int64
	for _, t := range s.txs[accountID] {
		sum += t.Amount
	}
	return b, sum, nil
}

func (s *Store) AccountIDs(_ context.Context) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked("list accounts"); err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(s.balances))
	for id := range s.balances {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	return ids, nil
}

func (s *Store) BreakStaleStreaks(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked("break streaks"); err != nil {
		return 0, err
	}
	var n int64
	for _, b := range s.balances {
		if ledger.StreakExpired(*b, now) {
			b.CurrentStreak = 0
			b.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

// CorruptBalance overwrites a stored balance without a transaction.
// Tests use it to exercise reconciliation.
func (s *Store) CorruptBalance(accountID uuid.UUID, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[accountID]
	if !ok {
		b = &ledger.Balance{AccountID: accountID}
		s.balances[accountID] = b
	}
	b.CurrentBalance = balance
}
