package common_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexdesk.app/credits/internal/common"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{&common.InsufficientBalanceError{Required: 5}, http.StatusPaymentRequired, "insufficient_credits"},
		{fmt.Errorf("redeem: %w", common.ErrAlreadyProcessed), http.StatusOK, "already_processed"},
		{common.ErrInvalidReference, http.StatusNotFound, "invalid_reference"},
		{common.ErrInvalidAmount, http.StatusUnprocessableEntity, "invalid_amount"},
		{common.ErrSelfReferral, http.StatusUnprocessableEntity, "self_referral"},
		{common.ErrTaskNotCompleted, http.StatusUnprocessableEntity, "task_not_completed"},
		{common.ErrAmountMismatch, http.StatusUnprocessableEntity, "amount_mismatch"},
		{common.ErrMissingAccount, http.StatusBadRequest, "missing_account"},
		{common.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{common.StoreError("apply", errors.New("timeout")), http.StatusServiceUnavailable, "store_unavailable"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		status, code := common.StatusFor(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

func TestStoreErrorKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := common.StoreError("apply delta", cause)
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.True(t, common.IsRetryable(err))
	assert.False(t, common.IsClientError(err))
	assert.NoError(t, common.StoreError("noop", nil))
}

func TestRespondErrorInsufficient(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/consume", nil)
	common.RespondError(rec, req, &common.InsufficientBalanceError{AccountID: uuid.New(), Required: 15, Available: 4})

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	var body common.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Required)
	assert.Equal(t, int64(15), *body.Required)
	assert.Equal(t, int64(4), *body.Available)
	assert.True(t, common.IsClientError(&common.InsufficientBalanceError{}))
}

func TestRespondErrorHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/balance", nil)
	common.RespondError(rec, req, common.StoreError("get balance", errors.New("password authentication failed for user")))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body common.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body.Error, "password")
	assert.True(t, body.Retryable)
}

func TestRespondErrorLogLevels(t *testing.T) {
	hook := test.NewGlobal()
	level := log.GetLevel()
	log.SetLevel(log.DebugLevel)
	t.Cleanup(func() { log.SetLevel(level) })

	req := httptest.NewRequest(http.MethodPost, "/api/v1/referrals/redeem", nil)
	common.RespondError(httptest.NewRecorder(), req, fmt.Errorf("%w: code", common.ErrSelfReferral))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, log.DebugLevel, hook.LastEntry().Level)
	assert.Equal(t, "self_referral", hook.LastEntry().Data["code"])

	hook.Reset()
	common.RespondError(httptest.NewRecorder(), req, errors.New("boom"))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, log.ErrorLevel, hook.LastEntry().Level)
}
