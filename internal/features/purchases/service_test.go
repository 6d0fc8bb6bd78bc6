package purchases_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexdesk.app/credits/internal/common"
	"lexdesk.app/credits/internal/features/ledger"
	"lexdesk.app/credits/internal/features/purchases"
	"lexdesk.app/credits/internal/server/middleware"
	"lexdesk.app/credits/internal/store/memory"
)

func newService(t *testing.T) (*purchases.Service, *ledger.Service) {
	t.Helper()
	store := memory.New()
	store.SeedDefaults()
	led := ledger.NewService(store, nil, 100)
	return purchases.NewService(store, led, 10), led
}

func paid(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestListPackagesInDisplayOrder(t *testing.T) {
	svc, _ := newService(t)
	pkgs, err := svc.ListPackages(context.Background())
	require.NoError(t, err)
	require.Len(t, pkgs, 3)
	assert.Equal(t, "starter", pkgs[0].ID)
	assert.Equal(t, "firm", pkgs[2].ID)
	assert.True(t, pkgs[0].Price.Equal(decimal.RequireFromString("9.99")))
}

func TestFirstPurchaseAddsBonus(t *testing.T) {
	svc, led := newService(t)
	ctx := context.Background()
	acc := uuid.New()

	order, err := svc.CreateCheckout(ctx, acc, "starter")
	require.NoError(t, err)
	assert.Equal(t, purchases.OrderPending, order.Status)
	assert.Equal(t, int64(100), order.Credits)

	res, err := svc.CreditPurchase(ctx, order.OrderID, paid("9.99"))
	require.NoError(t, err)
	assert.Equal(t, purchases.OutcomeCredited, res.Outcome)
	assert.Equal(t, int64(100), res.Credits)
	assert.Equal(t, int64(10), res.Bonus)
	assert.Equal(t, int64(110), res.Balance)

	txs, err := led.Transactions(ctx, acc, 10)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	// newest first: the bonus lands after the purchase
	assert.Equal(t, ledger.TxPurchase, txs[1].Type)
	assert.Equal(t, int64(100), txs[1].BalanceAfter)
	assert.Equal(t, ledger.TxBonus, txs[0].Type)
	assert.Equal(t, int64(110), txs[0].BalanceAfter)
	assert.Equal(t, order.OrderID, txs[0].ReferenceID)

	b, err := led.GetBalance(ctx, acc)
	require.NoError(t, err)
	require.NotNil(t, b.LastPurchaseAt)
}

func TestSecondPurchaseHasNoBonus(t *testing.T) {
	svc, led := newService(t)
	ctx := context.Background()
	acc := uuid.New()

	for _, pkg := range []string{"starter", "professional"} {
		order, err := svc.CreateCheckout(ctx, acc, pkg)
		require.NoError(t, err)
		_, err = svc.CreditPurchase(ctx, order.OrderID, decimal.NullDecimal{})
		require.NoError(t, err)
	}

	b, err := led.GetBalance(ctx, acc)
	require.NoError(t, err)
	assert.Equal(t, int64(610), b.CurrentBalance)
}

func TestCreditPurchaseIsIdempotent(t *testing.T) {
	svc, led := newService(t)
	ctx := context.Background()
	acc := uuid.New()
	order, err := svc.CreateCheckout(ctx, acc, "professional")
	require.NoError(t, err)

	_, err = svc.CreditPurchase(ctx, order.OrderID, paid("39.99"))
	require.NoError(t, err)

	again, err := svc.CreditPurchase(ctx, order.OrderID, paid("39.99"))
	require.NoError(t, err)
	assert.Equal(t, purchases.OutcomeAlreadyProcessed, again.Outcome)
	assert.Equal(t, acc, again.AccountID)

	b, err := led.GetBalance(ctx, acc)
	require.NoError(t, err)
	assert.Equal(t, int64(510), b.CurrentBalance)
}

func TestRetryWithDifferentAmountIsAlreadyProcessed(t *testing.T) {
	svc, led := newService(t)
	ctx := context.Background()
	acc := uuid.New()
	order, err := svc.CreateCheckout(ctx, acc, "starter")
	require.NoError(t, err)

	_, err = svc.CreditPurchase(ctx, order.OrderID, paid("9.99"))
	require.NoError(t, err)

	// providers sometimes resend with a rounded amount
	again, err := svc.CreditPurchase(ctx, order.OrderID, paid("10"))
	require.NoError(t, err)
	assert.Equal(t, purchases.OutcomeAlreadyProcessed, again.Outcome)

	b, err := led.GetBalance(ctx, acc)
	require.NoError(t, err)
	assert.Equal(t, int64(110), b.CurrentBalance)
}

func TestConcurrentWebhooksCreditOnce(t *testing.T) {
	svc, led := newService(t)
	ctx := context.Background()
	acc := uuid.New()
	order, err := svc.CreateCheckout(ctx, acc, "starter")
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		credited int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.CreditPurchase(ctx, order.OrderID, decimal.NullDecimal{})
			assert.NoError(t, err)
			if res.Outcome == purchases.OutcomeCredited {
				mu.Lock()
				credited++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, credited)
	b, err := led.GetBalance(ctx, acc)
	require.NoError(t, err)
	assert.Equal(t, int64(110), b.CurrentBalance)
}

func TestCreditPurchaseErrors(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreditPurchase(ctx, "no-such-order", decimal.NullDecimal{})
	assert.ErrorIs(t, err, common.ErrInvalidReference)

	_, err = svc.CreditPurchase(ctx, "  ", decimal.NullDecimal{})
	assert.ErrorIs(t, err, common.ErrInvalidReference)

	order, err := svc.CreateCheckout(ctx, uuid.New(), "starter")
	require.NoError(t, err)
	_, err = svc.CreditPurchase(ctx, order.OrderID, paid("1.00"))
	assert.ErrorIs(t, err, common.ErrAmountMismatch)

	_, err = svc.CreateCheckout(ctx, uuid.New(), "platinum")
	assert.ErrorIs(t, err, common.ErrInvalidReference)

	_, err = svc.CreateCheckout(ctx, uuid.Nil, "starter")
	assert.ErrorIs(t, err, common.ErrMissingAccount)
}

func TestWebhookHandler(t *testing.T) {
	svc, _ := newService(t)
	h := purchases.NewHandler(svc, "s3cret")
	acc := uuid.New()
	order, err := svc.CreateCheckout(context.Background(), acc, "starter")
	require.NoError(t, err)

	post := func(secret string, body purchases.WebhookRequest) *httptest.ResponseRecorder {
		raw, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", bytes.NewReader(raw))
		if secret != "" {
			req.Header.Set(purchases.WebhookSecretHeader, secret)
		}
		rec := httptest.NewRecorder()
		h.HandleWebhook(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, post("", purchases.WebhookRequest{OrderID: order.OrderID}).Code)
	assert.Equal(t, http.StatusUnauthorized, post("wrong", purchases.WebhookRequest{OrderID: order.OrderID}).Code)

	rec := post("s3cret", purchases.WebhookRequest{OrderID: order.OrderID, Status: "failed"})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = post("s3cret", purchases.WebhookRequest{OrderID: order.OrderID, Status: "paid", Amount: paid("9.99")})
	require.Equal(t, http.StatusOK, rec.Code)
	var res purchases.CreditResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, purchases.OutcomeCredited, res.Outcome)
	assert.Equal(t, int64(110), res.Balance)

	rec = post("s3cret", purchases.WebhookRequest{OrderID: order.OrderID, Status: "paid"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, purchases.OutcomeAlreadyProcessed, res.Outcome)
}

func TestCheckoutHandler(t *testing.T) {
	svc, _ := newService(t)
	h := purchases.NewHandler(svc, "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader([]byte(`{"package_id":"firm"}`)))
	req = req.WithContext(middleware.WithAccount(req.Context(), uuid.New()))
	rec := httptest.NewRecorder()
	h.HandleCheckout(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var order purchases.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	assert.Equal(t, int64(2000), order.Credits)
	assert.NotEmpty(t, order.OrderID)
}
