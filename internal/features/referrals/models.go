// Package referrals (models.go): referral codes and their redemption.
package referrals

import (
	"bytes"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CodeLength is the number of characters in a referral code.
const CodeLength = 10

var (
	// ErrCodeTaken is returned by stores when a generated code collides.
	ErrCodeTaken = errors.New("referral code already exists")
	// ErrOpenCodeExists is returned when the referrer already holds an
	// unredeemed code, e.g. one created by a concurrent request.
	ErrOpenCodeExists = errors.New("referrer already has an open code")
)

// Status of a referral record.
type Status string

const (
	StatusPending  Status = "pending"
	StatusCredited Status = "credited"
)

// Referral is created with the code and credited exactly once.
type Referral struct {
	ID                     uuid.UUID  `json:"id"`
	ReferrerID             uuid.UUID  `json:"referrer_id"`
	ReferredID             *uuid.UUID `json:"referred_id,omitempty"`
	Code                   string     `json:"referral_code"`
	Status                 Status     `json:"status"`
	CreditsAwardedReferrer int64      `json:"credits_awarded_referrer"`
	CreditsAwardedReferred int64      `json:"credits_awarded_referred"`
	CreatedAt              time.Time  `json:"created_at"`
	CreditedAt             *time.Time `json:"credited_at,omitempty"`
}

// Awards are the credits paid out on redemption.
type Awards struct {
	Referrer int64
	Referred int64
}

// RedeemResult is returned to the redeeming account.
type RedeemResult struct {
	Outcome         string    `json:"outcome"`
	Code            string    `json:"referral_code"`
	ReferrerID      uuid.UUID `json:"referrer_id"`
	ReferrerCredits int64     `json:"referrer_credits"`
	ReferredCredits int64     `json:"referred_credits"`
	Balance         int64     `json:"balance"`
}

// RedeemRequest is the body of POST /api/v1/referrals/redeem.
type RedeemRequest struct {
	Code string `json:"code"`
}

// NewCode derives a fresh code from a random UUID.
func NewCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:CodeLength])
}

// NormalizeCode trims and upper-cases user input.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// LockOrder returns a and b sorted by id, the order in which their
// balance rows are locked.
func LockOrder(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) > 0 {
		return b, a
	}
	return a, b
}
