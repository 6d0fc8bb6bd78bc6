// Package jobs runs background work on a cron schedule: tool cost catalog
// refresh, activity streak expiry and the nightly reconciliation audit.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// CatalogRefresher reloads the tool cost catalog.
type CatalogRefresher interface {
	Refresh(ctx context.Context) error
}

// LedgerMaintainer is the ledger maintenance used by the jobs.
type LedgerMaintainer interface {
	BreakStaleStreaks(ctx context.Context, now time.Time) (int64, error)
	ReconcileAll(ctx context.Context) (checked, mismatched int, err error)
}

// Schedules are cron expressions for each job.
type Schedules struct {
	CatalogRefresh time.Duration
	Streaks        string
	Reconcile      string
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron      *cron.Cron
	catalog   CatalogRefresher
	ledger    LedgerMaintainer
	schedules Schedules
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler in loc.
func NewScheduler(catalog CatalogRefresher, ledger LedgerMaintainer, schedules Schedules, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	logger := cron.PrintfLogger(log.StandardLogger())
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:      c,
		catalog:   catalog,
		ledger:    ledger,
		schedules: schedules,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start registers every job and starts the runner.
func (s *Scheduler) Start() error {
	if s.schedules.CatalogRefresh > 0 {
		spec := fmt.Sprintf("@every %s", s.schedules.CatalogRefresh)
		if _, err := s.cron.AddFunc(spec, func() { s.RefreshCatalog(s.ctx) }); err != nil {
			return fmt.Errorf("schedule catalog refresh: %w", err)
		}
	}
	if s.schedules.Streaks != "" {
		if _, err := s.cron.AddFunc(s.schedules.Streaks, func() { s.BreakStreaks(s.ctx) }); err != nil {
			return fmt.Errorf("schedule streak expiry %q: %w", s.schedules.Streaks, err)
		}
	}
	if s.schedules.Reconcile != "" {
		if _, err := s.cron.AddFunc(s.schedules.Reconcile, func() { s.Reconcile(s.ctx) }); err != nil {
			return fmt.Errorf("schedule reconcile %q: %w", s.schedules.Reconcile, err)
		}
	}

	s.cron.Start()
	log.WithField("jobs", len(s.cron.Entries())).Info("Scheduler started")
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	log.Info("Scheduler stopped")
}

// RefreshCatalog reloads tool costs; a failure keeps the old prices.
func (s *Scheduler) RefreshCatalog(ctx context.Context) {
	if err := s.catalog.Refresh(ctx); err != nil {
		log.WithError(err).Error("[CRON] Tool cost refresh failed")
	}
}

// BreakStreaks resets streaks of accounts idle since before yesterday.
func (s *Scheduler) BreakStreaks(ctx context.Context) {
	log.Debug("[CRON] Expiring activity streaks")
	if _, err := s.ledger.BreakStaleStreaks(ctx, s.now()); err != nil {
		log.WithError(err).Error("[CRON] Streak expiry failed")
	}
}

// Reconcile audits every balance against its transaction log.
func (s *Scheduler) Reconcile(ctx context.Context) {
	start := time.Now()
	checked, mismatched, err := s.ledger.ReconcileAll(ctx)
	entry := log.WithFields(log.Fields{
		"checked":     checked,
		"mismatched":  mismatched,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	switch {
	case err != nil:
		entry.WithError(err).Error("[CRON] Reconciliation incomplete")
	case mismatched > 0:
		entry.Error("[CRON] Reconciliation found mismatches")
	default:
		entry.Info("[CRON] Reconciliation clean")
	}
}
