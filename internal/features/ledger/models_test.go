package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexdesk.app/credits/internal/common"
)

func TestDeltaValidate(t *testing.T) {
	acc := uuid.New()
	cases := []struct {
		name string
		d    Delta
		err  error
	}{
		{"credit", Delta{AccountID: acc, Amount: 10, Type: TxAdminGrant}, nil},
		{"debit", Delta{AccountID: acc, Amount: -5, Type: TxConsumption}, nil},
		{"zero", Delta{AccountID: acc, Amount: 0, Type: TxBonus}, common.ErrInvalidAmount},
		{"negative credit", Delta{AccountID: acc, Amount: -1, Type: TxPurchase}, common.ErrInvalidAmount},
		{"positive consumption", Delta{AccountID: acc, Amount: 3, Type: TxConsumption}, common.ErrInvalidAmount},
		{"unknown type", Delta{AccountID: acc, Amount: 3, Type: "gift"}, common.ErrInvalidAmount},
		{"no account", Delta{Amount: 3, Type: TxBonus}, common.ErrMissingAccount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.d.Validate()
			if tc.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestApplyKeepsAggregatesInStep(t *testing.T) {
	acc := uuid.New()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	var b Balance

	txn, err := Apply(&b, Delta{AccountID: acc, Amount: 50, Type: TxAdminGrant, Description: "promo"}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(50), txn.BalanceAfter)
	assert.Equal(t, TxAdminGrant, txn.Type)
	assert.NotNil(t, txn.Metadata)

	_, err = Apply(&b, Delta{AccountID: acc, Amount: -20, Type: TxConsumption}, now)
	require.NoError(t, err)

	assert.Equal(t, int64(30), b.CurrentBalance)
	assert.Equal(t, int64(50), b.TotalEarned)
	assert.Equal(t, int64(20), b.TotalSpent)
	assert.Equal(t, b.CurrentBalance, b.TotalEarned-b.TotalSpent)
}

func TestApplyRejectsOverdraftWithoutChangingBalance(t *testing.T) {
	acc := uuid.New()
	b := Balance{AccountID: acc, CurrentBalance: 4, TotalEarned: 10, TotalSpent: 6}
	before := b

	_, err := Apply(&b, Delta{AccountID: acc, Amount: -6, Type: TxConsumption}, time.Now())

	var insufficient *common.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.ErrorIs(t, err, common.ErrInsufficientBalance)
	assert.Equal(t, int64(6), insufficient.Required)
	assert.Equal(t, int64(4), insufficient.Available)
	assert.Equal(t, int64(2), insufficient.Shortfall())
	assert.Equal(t, before, b)
}

func TestApplyMarksPurchase(t *testing.T) {
	acc := uuid.New()
	now := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	var b Balance

	_, err := Apply(&b, Delta{AccountID: acc, Amount: 100, Type: TxPurchase, MarkPurchase: true}, now)
	require.NoError(t, err)
	require.NotNil(t, b.LastPurchaseAt)
	assert.True(t, b.LastPurchaseAt.Equal(now))
	assert.Zero(t, b.CurrentStreak)
}

func TestAdvanceStreak(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 1, d, 15, 0, 0, 0, time.UTC) }
	var b Balance

	AdvanceStreak(&b, day(10))
	assert.Equal(t, 1, b.CurrentStreak)

	AdvanceStreak(&b, day(10).Add(3*time.Hour))
	assert.Equal(t, 1, b.CurrentStreak, "same day keeps the streak")

	AdvanceStreak(&b, day(11))
	AdvanceStreak(&b, day(12))
	assert.Equal(t, 3, b.CurrentStreak)
	assert.Equal(t, 3, b.LongestStreak)

	AdvanceStreak(&b, day(15))
	assert.Equal(t, 1, b.CurrentStreak, "a gap restarts the streak")
	assert.Equal(t, 3, b.LongestStreak)
}

func TestStreakExpired(t *testing.T) {
	last := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	b := Balance{CurrentStreak: 2, LastActivityOn: &last}

	assert.False(t, StreakExpired(b, last.Add(20*time.Hour)))
	assert.False(t, StreakExpired(b, last.AddDate(0, 0, 1).Add(23*time.Hour)))
	assert.True(t, StreakExpired(b, last.AddDate(0, 0, 2)))
	assert.False(t, StreakExpired(Balance{}, last.AddDate(0, 0, 5)))
}
