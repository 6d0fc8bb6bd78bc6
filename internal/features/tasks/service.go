// Package tasks (service.go): progress reports from the external checker
// and reward claims from the account.
package tasks

import (
	"context"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"lexdesk.app/credits/internal/common"
	"lexdesk.app/credits/internal/features/ledger"
)

// Store persists tasks and progress. Claim must flip completed → claimed
// and pay the reward atomically.
type Store interface {
	GetTask(ctx context.Context, key string) (Task, error)
	ListTasks(ctx context.Context) ([]Task, error)
	ListProgress(ctx context.Context, accountID uuid.UUID) ([]Progress, error)
	RecordProgress(ctx context.Context, accountID uuid.UUID, key string, inc int) (Progress, error)
	Claim(ctx context.Context, accountID uuid.UUID, key string) (Progress, ledger.Result, error)
}

// Notifier publishes committed ledger results.
type Notifier interface {
	Notify(results ...ledger.Result)
}

type Service struct {
	store    Store
	notifier Notifier
}

func NewService(store Store, notifier Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

// ListTasks returns the active catalog joined with accountID's progress.
func (s *Service) ListTasks(ctx context.Context, accountID uuid.UUID) ([]TaskView, error) {
	if accountID == uuid.Nil {
		return nil, common.ErrMissingAccount
	}
	catalog, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	progress, err := s.store.ListProgress(ctx, accountID)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*Progress, len(progress))
	for i := range progress {
		byKey[progress[i].TaskKey] = &progress[i]
	}
	out := make([]TaskView, 0, len(catalog))
	for _, t := range catalog {
		out = append(out, View(t, byKey[t.Key]))
	}
	return out, nil
}

// RecordProgress adds inc to the account's progress. The caller has
// already verified the completion criteria.
func (s *Service) RecordProgress(ctx context.Context, accountID uuid.UUID, key string, inc int) (Progress, error) {
	if accountID == uuid.Nil {
		return Progress{}, common.ErrMissingAccount
	}
	if inc <= 0 {
		return Progress{}, common.ErrInvalidAmount
	}
	p, err := s.store.RecordProgress(ctx, accountID, key, inc)
	if err != nil {
		return Progress{}, err
	}
	log.WithFields(log.Fields{
		"account_id": accountID,
		"task":       key,
		"progress":   p.Progress,
		"status":     p.Status,
	}).Debug("Task progress recorded")
	return p, nil
}

// CompleteTask moves the progress straight to the task's target.
func (s *Service) CompleteTask(ctx context.Context, accountID uuid.UUID, key string) (Progress, error) {
	task, err := s.store.GetTask(ctx, key)
	if err != nil {
		return Progress{}, err
	}
	return s.RecordProgress(ctx, accountID, key, task.TargetCount)
}

// ClaimTask pays the task's reward on the completed → claimed edge.
// Claiming twice returns ErrAlreadyProcessed; claiming before completion
// returns ErrTaskNotCompleted.
func (s *Service) ClaimTask(ctx context.Context, accountID uuid.UUID, key string) (ClaimResult, error) {
	if accountID == uuid.Nil {
		return ClaimResult{}, common.ErrMissingAccount
	}
	p, res, err := s.store.Claim(ctx, accountID, key)
	if err != nil {
		return ClaimResult{}, err
	}
	s.notifier.Notify(res)

	return ClaimResult{
		TaskKey:    key,
		Reward:     res.Transaction.Amount,
		ClaimCount: p.ClaimCount,
		Balance:    res.Balance.CurrentBalance,
	}, nil
}
