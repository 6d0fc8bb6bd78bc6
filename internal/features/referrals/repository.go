// Package referrals: repository.go works with the referrals table.
package referrals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lexdesk.app/credits/internal/common"
	"lexdesk.app/credits/internal/db/postgres"
	"lexdesk.app/credits/internal/features/ledger"
)

const referralColumns = `
	id, referrer_id, referred_id, referral_code, status,
	credits_awarded_referrer, credits_awarded_referred, created_at, credited_at`

type Repository struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db, now: time.Now}
}

// GetOpenCode returns the referrer's newest unredeemed referral.
func (r *Repository) GetOpenCode(ctx context.Context, referrerID uuid.UUID) (Referral, bool, error) {
	ref, err := scanReferral(r.db.QueryRow(ctx, `
		SELECT `+referralColumns+` FROM referrals
		WHERE referrer_id = $1 AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT 1
	`, referrerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Referral{}, false, nil
	}
	if err != nil {
		return Referral{}, false, common.StoreError("get open referral", err)
	}
	return ref, true, nil
}

// CreateReferral inserts ref. A code collision returns ErrCodeTaken and a
// second open code for the same referrer returns ErrOpenCodeExists.
func (r *Repository) CreateReferral(ctx context.Context, ref Referral) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO referrals (id, referrer_id, referral_code, status, created_at)
		VALUES ($1, $2, $3, 'pending', $4)
	`, ref.ID, ref.ReferrerID, ref.Code, ref.CreatedAt)
	switch postgres.ViolatedConstraint(err) {
	case "":
	case "idx_referrals_open":
		return ErrOpenCodeExists
	default:
		return ErrCodeTaken
	}
	if err != nil {
		return common.StoreError("create referral", err)
	}
	return nil
}

// GetByCode returns the referral or ErrInvalidReference.
func (r *Repository) GetByCode(ctx context.Context, code string) (Referral, error) {
	ref, err := scanReferral(r.db.QueryRow(ctx,
		`SELECT `+referralColumns+` FROM referrals WHERE referral_code = $1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return Referral{}, fmt.Errorf("%w: referral code %q", common.ErrInvalidReference, code)
	}
	if err != nil {
		return Referral{}, common.StoreError("get referral", err)
	}
	return ref, nil
}

// Redeem credits code for redeemer in one transaction.
//
// Order of writes:
//  1. lock the referral row and run the checks
//  2. flip it to credited, conditional on still being pending
//  3. credit both accounts, balance rows locked in account-id order
//
// Errors: ErrInvalidReference, ErrSelfReferral, ErrAlreadyProcessed.
func (r *Repository) Redeem(ctx context.Context, code string, redeemer uuid.UUID, awards Awards) (Referral, []ledger.Result, error) {
	var (
		out     Referral
		results []ledger.Result
	)
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		now := r.now()

		ref, err := scanReferral(tx.QueryRow(ctx,
			`SELECT `+referralColumns+` FROM referrals WHERE referral_code = $1 FOR UPDATE`, code))
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: referral code %q", common.ErrInvalidReference, code)
		}
		if err != nil {
			return common.StoreError("lock referral", err)
		}
		if err := CheckRedeemable(ref, redeemer); err != nil {
			return err
		}

		var referred bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM referrals WHERE referred_id = $1)`, redeemer,
		).Scan(&referred); err != nil {
			return common.StoreError("check referred", err)
		}
		if referred {
			return fmt.Errorf("%w: account was already referred", common.ErrAlreadyProcessed)
		}

		tag, err := tx.Exec(ctx, `
			UPDATE referrals
			SET status = 'credited', referred_id = $2, credited_at = $3,
			    credits_awarded_referrer = $4, credits_awarded_referred = $5
			WHERE id = $1 AND status = 'pending' AND referred_id IS NULL
		`, ref.ID, redeemer, now, awards.Referrer, awards.Referred)
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("%w: account was already referred", common.ErrAlreadyProcessed)
		}
		if err != nil {
			return common.StoreError("credit referral", err)
		}
		if tag.RowsAffected() == 0 {
			return common.ErrAlreadyProcessed
		}
		MarkCredited(&ref, redeemer, awards, now)

		for _, d := range RedeemDeltas(ref, awards) {
			res, err := ledger.ApplyDeltaTx(ctx, tx, d, now)
			if err != nil {
				return err
			}
			results = append(results, res)
		}
		out = ref
		return nil
	})
	if err != nil {
		return Referral{}, nil, err
	}
	return out, results, nil
}

// CheckRedeemable validates a locked referral for redeemer.
// Self-referral is checked first so it fails whatever the code's state.
func CheckRedeemable(ref Referral, redeemer uuid.UUID) error {
	if ref.ReferrerID == redeemer {
		return common.ErrSelfReferral
	}
	if ref.Status != StatusPending || ref.ReferredID != nil {
		return common.ErrAlreadyProcessed
	}
	return nil
}

// MarkCredited applies the pending→credited transition to ref.
func MarkCredited(ref *Referral, redeemer uuid.UUID, awards Awards, now time.Time) {
	id := redeemer
	t := now
	ref.Status = StatusCredited
	ref.ReferredID = &id
	ref.CreditedAt = &t
	ref.CreditsAwardedReferrer = awards.Referrer
	ref.CreditsAwardedReferred = awards.Referred
}

// RedeemDeltas returns the credits for a credited referral in lock order.
// Zero awards are skipped.
func RedeemDeltas(ref Referral, awards Awards) []ledger.Delta {
	amounts := map[uuid.UUID]int64{
		ref.ReferrerID:  awards.Referrer,
		*ref.ReferredID: awards.Referred,
	}
	descriptions := map[uuid.UUID]string{
		ref.ReferrerID:  "Referral reward",
		*ref.ReferredID: "Welcome bonus for joining with a referral code",
	}

	first, second := LockOrder(ref.ReferrerID, *ref.ReferredID)
	var out []ledger.Delta
	for _, id := range []uuid.UUID{first, second} {
		if amounts[id] <= 0 {
			continue
		}
		out = append(out, ledger.Delta{
			AccountID:   id,
			Amount:      amounts[id],
			Type:        ledger.TxReferral,
			Reference:   ledger.Reference{Type: ledger.RefReferral, ID: ref.ID.String()},
			Description: descriptions[id],
			Metadata:    map[string]string{"referral_code": ref.Code},
		})
	}
	return out
}

func scanReferral(row pgx.Row) (Referral, error) {
	var (
		ref    Referral
		status string
	)
	err := row.Scan(&ref.ID, &ref.ReferrerID, &ref.ReferredID, &ref.Code, &status,
		&ref.CreditsAwardedReferrer, &ref.CreditsAwardedReferred, &ref.CreatedAt, &ref.CreditedAt)
	ref.Status = Status(status)
	return ref, err
}
