// Package referrals (service.go): handing out codes and redeeming them.
package referrals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"lexdesk.app/credits/internal/common"
	"lexdesk.app/credits/internal/features/ledger"
)

// How many fresh codes to try before giving up on collisions.
const codeAttempts = 5

// Store persists referrals. Redeem must perform the conditional status
// flip and both credits in one atomic unit.
type Store interface {
	GetOpenCode(ctx context.Context, referrerID uuid.UUID) (Referral, bool, error)
	CreateReferral(ctx context.Context, ref Referral) error
	GetByCode(ctx context.Context, code string) (Referral, error)
	Redeem(ctx context.Context, code string, redeemer uuid.UUID, awards Awards) (Referral, []ledger.Result, error)
}

// Notifier publishes committed ledger results.
type Notifier interface {
	Notify(results ...ledger.Result)
}

type Service struct {
	store    Store
	notifier Notifier
	awards   Awards
	now      func() time.Time
}

func NewService(store Store, notifier Notifier, awards Awards) *Service {
	return &Service{store: store, notifier: notifier, awards: awards, now: time.Now}
}

// GetOrCreateReferralCode returns accountID's open code, creating one
// when every earlier code has been redeemed.
func (s *Service) GetOrCreateReferralCode(ctx context.Context, accountID uuid.UUID) (Referral, error) {
	if accountID == uuid.Nil {
		return Referral{}, common.ErrMissingAccount
	}
	ref, ok, err := s.store.GetOpenCode(ctx, accountID)
	if err != nil {
		return Referral{}, err
	}
	if ok {
		return ref, nil
	}

	for attempt := 0; attempt < codeAttempts; attempt++ {
		ref = Referral{
			ID:         uuid.New(),
			ReferrerID: accountID,
			Code:       NewCode(),
			Status:     StatusPending,
			CreatedAt:  s.now().UTC(),
		}
		err = s.store.CreateReferral(ctx, ref)
		if errors.Is(err, ErrCodeTaken) {
			continue
		}
		if errors.Is(err, ErrOpenCodeExists) {
			return s.existingCode(ctx, accountID)
		}
		if err != nil {
			return Referral{}, err
		}
		log.WithFields(log.Fields{"account_id": accountID, "code": ref.Code}).Info("Referral code created")
		return ref, nil
	}
	return Referral{}, common.StoreError("create referral", fmt.Errorf("no free code after %d attempts", codeAttempts))
}

// existingCode re-reads the open code a concurrent request just created.
func (s *Service) existingCode(ctx context.Context, accountID uuid.UUID) (Referral, error) {
	ref, ok, err := s.store.GetOpenCode(ctx, accountID)
	if err != nil {
		return Referral{}, err
	}
	if !ok {
		// redeemed in the meantime; the caller may simply ask again
		return Referral{}, common.StoreError("create referral", ErrOpenCodeExists)
	}
	return ref, nil
}

// RedeemReferralCode credits both sides of a referral exactly once.
// A second redemption of the same code returns ErrAlreadyProcessed and
// redeeming one's own code returns ErrSelfReferral.
func (s *Service) RedeemReferralCode(ctx context.Context, accountID uuid.UUID, code string) (RedeemResult, error) {
	if accountID == uuid.Nil {
		return RedeemResult{}, common.ErrMissingAccount
	}
	code = NormalizeCode(code)
	if len(code) != CodeLength {
		return RedeemResult{}, fmt.Errorf("%w: referral code %q", common.ErrInvalidReference, code)
	}

	ref, results, err := s.store.Redeem(ctx, code, accountID, s.awards)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"account_id": accountID,
			"code":       code,
		}).Debug("Referral redemption rejected")
		return RedeemResult{}, err
	}
	s.notifier.Notify(results...)

	out := RedeemResult{
		Outcome:         "credited",
		Code:            ref.Code,
		ReferrerID:      ref.ReferrerID,
		ReferrerCredits: ref.CreditsAwardedReferrer,
		ReferredCredits: ref.CreditsAwardedReferred,
	}
	for _, res := range results {
		if res.Balance.AccountID == accountID {
			out.Balance = res.Balance.CurrentBalance
		}
	}
	return out, nil
}
