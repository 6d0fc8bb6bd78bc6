package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"lexdesk.app/credits/internal/common"
	"lexdesk.app/credits/internal/features/ledger"
	"lexdesk.app/credits/internal/features/referrals"
)

// --- referrals.Store ---

func (s *Store) GetOpenCode(_ context.Context, referrerID uuid.UUID) (referrals.Referral, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked("get open referral"); err != nil {
		return referrals.Referral{}, false, err
	}
	var (
		newest referrals.Referral
		found  bool
	)
	for _, ref := range s.referrals {
		if ref.ReferrerID != referrerID || ref.Status != referrals.StatusPending {
			continue
		}
		if !found || ref.CreatedAt.After(newest.CreatedAt) {
			newest, found = *ref, true
		}
	}
	return newest, found, nil
}

func (s *Store) CreateReferral(_ context.Context, ref referrals.Referral) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked("create referral"); err != nil {
		return err
	}
	if _, taken := s.referrals[ref.Code]; taken {
		return referrals.ErrCodeTaken
	}
	for _, other := range s.referrals {
		if other.ReferrerID == ref.ReferrerID && other.Status == referrals.StatusPending {
			return referrals.ErrOpenCodeExists
		}
	}
	r := ref
	s.referrals[ref.Code] = &r
	return nil
}

func (s *Store) GetByCode(_ context.Context, code string) (referrals.Referral, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked("get referral"); err != nil {
		return referrals.Referral{}, err
	}
	ref, ok := s.referrals[code]
	if !ok {
		return referrals.Referral{}, fmt.Errorf("%w: referral code %q", common.ErrInvalidReference, code)
	}
	return *ref, nil
}

func (s *Store) Redeem(_ context.Context, code string, redeemer uuid.UUID, awards referrals.Awards) (referrals.Referral, []ledger.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked("redeem referral"); err != nil {
		return referrals.Referral{}, nil, err
	}

	cur, ok := s.referrals[code]
	if !ok {
		return referrals.Referral{}, nil, fmt.Errorf("%w: referral code %q", common.ErrInvalidReference, code)
	}
	if err := referrals.CheckRedeemable(*cur, redeemer); err != nil {
		return referrals.Referral{}, nil, err
	}
	if _, done := s.referred[redeemer]; done {
		return referrals.Referral{}, nil, fmt.Errorf("%w: account was already referred", common.ErrAlreadyProcessed)
	}

	now := s.now()
	ref := *cur
	referrals.MarkCredited(&ref, redeemer, awards, now)
	results, err := s.applyLocked(now, referrals.RedeemDeltas(ref, awards)...)
	if err != nil {
		return referrals.Referral{}, nil, err
	}

	*cur = ref
	s.referred[redeemer] = code
	return ref, results, nil
}
