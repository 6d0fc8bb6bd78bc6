package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct{ refreshes int }

func (f *fakeCatalog) Refresh(context.Context) error {
	f.refreshes++
	return errors.New("db down")
}

type fakeLedger struct {
	breakAt    time.Time
	reconciled int
}

func (f *fakeLedger) BreakStaleStreaks(_ context.Context, now time.Time) (int64, error) {
	f.breakAt = now
	return 3, nil
}

func (f *fakeLedger) ReconcileAll(context.Context) (int, int, error) {
	f.reconciled++
	return 10, 1, nil
}

func TestJobsCallThrough(t *testing.T) {
	catalog, ledger := &fakeCatalog{}, &fakeLedger{}
	s := NewScheduler(catalog, ledger, Schedules{}, nil)
	fixed := time.Date(2026, 4, 1, 0, 5, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	s.RefreshCatalog(context.Background())
	s.BreakStreaks(context.Background())
	s.Reconcile(context.Background())

	assert.Equal(t, 1, catalog.refreshes)
	assert.Equal(t, fixed, ledger.breakAt)
	assert.Equal(t, 1, ledger.reconciled)
}

func TestStartRegistersJobs(t *testing.T) {
	s := NewScheduler(&fakeCatalog{}, &fakeLedger{}, Schedules{
		CatalogRefresh: 5 * time.Minute,
		Streaks:        "5 0 * * *",
		Reconcile:      "30 3 * * *",
	}, time.UTC)
	require.NoError(t, s.Start())
	defer s.Stop()
	assert.Len(t, s.cron.Entries(), 3)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(&fakeCatalog{}, &fakeLedger{}, Schedules{Streaks: "every night"}, time.UTC)
	assert.Error(t, s.Start())
}
