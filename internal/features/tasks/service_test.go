package tasks_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexdesk.app/credits/internal/common"
	"lexdesk.app/credits/internal/features/ledger"
	"lexdesk.app/credits/internal/features/tasks"
	"lexdesk.app/credits/internal/server/middleware"
	"lexdesk.app/credits/internal/store/memory"
)

func newService(t *testing.T) (*tasks.Service, *ledger.Service) {
	t.Helper()
	store := memory.New()
	store.SeedDefaults()
	led := ledger.NewService(store, nil, 100)
	return tasks.NewService(store, led), led
}

func TestClaimBeforeCompletion(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	acc := uuid.New()

	_, err := svc.ClaimTask(ctx, acc, "complete_profile")
	assert.ErrorIs(t, err, common.ErrTaskNotCompleted)

	_, err = svc.RecordProgress(ctx, acc, "ten_research", 3)
	require.NoError(t, err)
	_, err = svc.ClaimTask(ctx, acc, "ten_research")
	assert.ErrorIs(t, err, common.ErrTaskNotCompleted)
}

func TestClaimPaysOnce(t *testing.T) {
	svc, led := newService(t)
	ctx := context.Background()
	acc := uuid.New()

	p, err := svc.CompleteTask(ctx, acc, "complete_profile")
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusCompleted, p.Status)

	res, err := svc.ClaimTask(ctx, acc, "complete_profile")
	require.NoError(t, err)
	assert.Equal(t, int64(15), res.Reward)
	assert.Equal(t, int64(15), res.Balance)

	_, err = svc.ClaimTask(ctx, acc, "complete_profile")
	assert.ErrorIs(t, err, common.ErrAlreadyProcessed)

	txs, err := led.Transactions(ctx, acc, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, ledger.TxBonus, txs[0].Type)
	assert.Equal(t, ledger.RefTask, txs[0].ReferenceType)
	assert.Equal(t, "complete_profile", txs[0].ReferenceID)
}

func TestConcurrentClaimsPayOnce(t *testing.T) {
	svc, led := newService(t)
	ctx := context.Background()
	acc := uuid.New()
	_, err := svc.CompleteTask(ctx, acc, "first_document")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.ClaimTask(ctx, acc, "first_document")
		}()
	}
	wg.Wait()

	b, err := led.GetBalance(ctx, acc)
	require.NoError(t, err)
	assert.Equal(t, int64(10), b.CurrentBalance)
}

func TestRepeatableTask(t *testing.T) {
	svc, led := newService(t)
	ctx := context.Background()
	acc := uuid.New()

	for week := 0; week < 3; week++ {
		_, err := svc.RecordProgress(ctx, acc, "weekly_client", 1)
		require.NoError(t, err)
		res, err := svc.ClaimTask(ctx, acc, "weekly_client")
		require.NoError(t, err)
		assert.Equal(t, week+1, res.ClaimCount)
	}

	b, err := led.GetBalance(ctx, acc)
	require.NoError(t, err)
	assert.Equal(t, int64(15), b.CurrentBalance)
}

func TestListTasksJoinsProgress(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	acc := uuid.New()
	_, err := svc.RecordProgress(ctx, acc, "ten_research", 4)
	require.NoError(t, err)

	views, err := svc.ListTasks(ctx, acc)
	require.NoError(t, err)
	require.Len(t, views, 4)
	for _, v := range views {
		if v.Key == "ten_research" {
			assert.Equal(t, 4, v.Progress)
			assert.Equal(t, tasks.StatusPending, v.Status)
		} else {
			assert.Zero(t, v.Progress)
		}
	}
}

func TestRecordProgressValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.RecordProgress(ctx, uuid.New(), "ten_research", 0)
	assert.ErrorIs(t, err, common.ErrInvalidAmount)
	_, err = svc.RecordProgress(ctx, uuid.New(), "no_such_task", 1)
	assert.ErrorIs(t, err, common.ErrInvalidReference)
	_, err = svc.ClaimTask(ctx, uuid.New(), "no_such_task")
	assert.ErrorIs(t, err, common.ErrInvalidReference)
}

func TestHandlers(t *testing.T) {
	svc, _ := newService(t)
	h := tasks.NewHandler(svc)
	acc := uuid.New()

	r := chi.NewRouter()
	r.Post("/admin/tasks/{key}/progress", h.HandleProgress)
	r.With(middleware.RequireAccount).Post("/tasks/{key}/claim", h.HandleClaim)

	claim := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/tasks/complete_profile/claim", nil)
		req.Header.Set(middleware.AccountHeader, acc.String())
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnprocessableEntity, claim().Code)

	body, _ := json.Marshal(tasks.ProgressRequest{AccountID: acc})
	req := httptest.NewRequest(http.MethodPost, "/admin/tasks/complete_profile/progress", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = claim()
	require.Equal(t, http.StatusOK, rec.Code)
	var res tasks.ClaimResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, int64(15), res.Reward)

	rec = claim()
	assert.Equal(t, http.StatusOK, rec.Code)
	var body2 common.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body2))
	assert.Equal(t, "already_processed", body2.Code)
}
