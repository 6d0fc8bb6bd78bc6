package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"lexdesk.app/credits/internal/common"
	"lexdesk.app/credits/internal/features/ledger"
	"lexdesk.app/credits/internal/features/tasks"
)

// --- tasks.Store ---

func (s *Store) getTaskLocked(key string) (tasks.Task, error) {
	t, ok := s.tasks[key]
	if !ok || !t.Active {
		return tasks.Task{}, fmt.Errorf("%w: task %q", common.ErrInvalidReference, key)
	}
	return t, nil
}

func (s *Store) GetTask(_ context.Context, key string) (tasks.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked("get task"); err != nil {
		return tasks.Task{}, err
	}
	return s.getTaskLocked(key)
}

func (s *Store) ListTasks(_ context.Context) ([]tasks.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked("list tasks"); err != nil {
		return nil, err
	}
	out := make([]tasks.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if t.Active {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) ListProgress(_ context.Context, accountID uuid.UUID) ([]tasks.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked("list progress"); err != nil {
		return nil, err
	}
	var out []tasks.Progress
	for k, p := range s.progress {
		if k.account == accountID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *Store) RecordProgress(_ context.Context, accountID uuid.UUID, key string, inc int) (tasks.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked("record progress"); err != nil {
		return tasks.Progress{}, err
	}
	t, err := s.getTaskLocked(key)
	if err != nil {
		return tasks.Progress{}, err
	}

	k := progressKey{account: accountID, task: key}
	p := tasks.NewProgress(accountID, key)
	if cur, ok := s.progress[k]; ok {
		p = *cur
	}
	tasks.Advance(t, &p, inc, s.now())
	s.progress[k] = &p
	return p, nil
}

func (s *Store) Claim(_ context.Context, accountID uuid.UUID, key string) (tasks.Progress, ledger.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked("claim task"); err != nil {
		return tasks.Progress{}, ledger.Result{}, err
	}
	t, err := s.getTaskLocked(key)
	if err != nil {
		return tasks.Progress{}, ledger.Result{}, err
	}

	k := progressKey{account: accountID, task: key}
	cur, ok := s.progress[k]
	if !ok {
		return tasks.Progress{}, ledger.Result{}, common.ErrTaskNotCompleted
	}

	now := s.now()
	p := *cur
	if err := tasks.Claim(t, &p, now); err != nil {
		return tasks.Progress{}, ledger.Result{}, err
	}
	results, err := s.applyLocked(now, tasks.ClaimDelta(t, p))
	if err != nil {
		return tasks.Progress{}, ledger.Result{}, err
	}

	s.progress[k] = &p
	return p, results[0], nil
}
