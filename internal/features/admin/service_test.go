package admin_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexdesk.app/credits/internal/common"
	"lexdesk.app/credits/internal/features/admin"
	"lexdesk.app/credits/internal/features/ledger"
	"lexdesk.app/credits/internal/store/memory"
)

func TestGrantCredits(t *testing.T) {
	led := ledger.NewService(memory.New(), nil, 100)
	svc := admin.NewService(led)
	acc := uuid.New()

	res, err := svc.GrantCredits(context.Background(), acc, 50, "  goodwill  ", "")
	require.NoError(t, err)
	assert.Equal(t, int64(50), res.Balance.CurrentBalance)
	assert.Equal(t, ledger.TxAdminGrant, res.Transaction.Type)
	assert.Equal(t, "goodwill", res.Transaction.Description)
	assert.Equal(t, ledger.RefAdmin, res.Transaction.ReferenceType)
	assert.Equal(t, "admin", res.Transaction.ReferenceID)

	for _, amount := range []int64{0, -5} {
		_, err := svc.GrantCredits(context.Background(), acc, amount, "", "")
		assert.ErrorIs(t, err, common.ErrInvalidAmount)
	}
}

func TestHandleGrant(t *testing.T) {
	led := ledger.NewService(memory.New(), nil, 100)
	h := admin.NewHandler(admin.NewService(led))
	acc := uuid.New()

	post := func(req admin.GrantRequest) *httptest.ResponseRecorder {
		body, _ := json.Marshal(req)
		rec := httptest.NewRecorder()
		h.HandleGrant(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/grants", bytes.NewReader(body)))
		return rec
	}

	rec := post(admin.GrantRequest{AccountID: acc, Amount: 25, Reason: "promo", Actor: "support@lexdesk"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var res admin.GrantResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, int64(25), res.Transaction.BalanceAfter)
	assert.Equal(t, "support@lexdesk", res.Transaction.ReferenceID)

	assert.Equal(t, http.StatusUnprocessableEntity, post(admin.GrantRequest{AccountID: acc, Amount: -1}).Code)
	assert.Equal(t, http.StatusBadRequest, post(admin.GrantRequest{Amount: 10}).Code)
}
