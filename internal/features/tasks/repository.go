// Package tasks: repository.go works with gamification_tasks and
// task_progress. Progress rows are locked FOR UPDATE while they change.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lexdesk.app/credits/internal/common"
	"lexdesk.app/credits/internal/db/postgres"
	"lexdesk.app/credits/internal/features/ledger"
)

const taskColumns = `task_key, title, description, reward, target_count, max_completions, is_active`

const progressColumns = `account_id, task_key, progress, status, claim_count, completed_at, claimed_at, updated_at`

type Repository struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db, now: time.Now}
}

// queryer is satisfied by both the pool and a transaction.
type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetTask returns an active task or ErrInvalidReference.
func (r *Repository) GetTask(ctx context.Context, key string) (Task, error) {
	return getTask(ctx, r.db, key)
}

func getTask(ctx context.Context, q queryer, key string) (Task, error) {
	t, err := scanTask(q.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM gamification_tasks WHERE task_key = $1 AND is_active`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, fmt.Errorf("%w: task %q", common.ErrInvalidReference, key)
	}
	if err != nil {
		return Task{}, common.StoreError("get task", err)
	}
	return t, nil
}

func (r *Repository) ListTasks(ctx context.Context) ([]Task, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+taskColumns+` FROM gamification_tasks WHERE is_active ORDER BY task_key`)
	if err != nil {
		return nil, common.StoreError("list tasks", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Task, error) {
		return scanTask(row)
	})
	if err != nil {
		return nil, common.StoreError("list tasks", err)
	}
	return out, nil
}

func (r *Repository) ListProgress(ctx context.Context, accountID uuid.UUID) ([]Progress, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+progressColumns+` FROM task_progress WHERE account_id = $1`, accountID)
	if err != nil {
		return nil, common.StoreError("list progress", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Progress, error) {
		return scanProgress(row)
	})
	if err != nil {
		return nil, common.StoreError("list progress", err)
	}
	return out, nil
}

// RecordProgress adds inc to the account's progress on key.
func (r *Repository) RecordProgress(ctx context.Context, accountID uuid.UUID, key string, inc int) (Progress, error) {
	var out Progress
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		now := r.now()
		task, err := getTask(ctx, tx, key)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO task_progress (account_id, task_key) VALUES ($1, $2)
			ON CONFLICT (account_id, task_key) DO NOTHING
		`, accountID, key); err != nil {
			return common.StoreError("create progress", err)
		}
		p, err := scanProgress(tx.QueryRow(ctx, `
			SELECT `+progressColumns+` FROM task_progress
			WHERE account_id = $1 AND task_key = $2 FOR UPDATE
		`, accountID, key))
		if err != nil {
			return common.StoreError("lock progress", err)
		}

		if Advance(task, &p, inc, now) {
			if err := writeProgress(ctx, tx, p); err != nil {
				return err
			}
		}
		out = p
		return nil
	})
	return out, err
}

// Claim moves completed → claimed and pays the reward in one transaction.
// The status update is conditional on 'completed', so concurrent claims
// credit once.
func (r *Repository) Claim(ctx context.Context, accountID uuid.UUID, key string) (Progress, ledger.Result, error) {
	var (
		out Progress
		res ledger.Result
	)
	err := postgres.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		now := r.now()
		task, err := getTask(ctx, tx, key)
		if err != nil {
			return err
		}

		p, err := scanProgress(tx.QueryRow(ctx, `
			SELECT `+progressColumns+` FROM task_progress
			WHERE account_id = $1 AND task_key = $2 FOR UPDATE
		`, accountID, key))
		if errors.Is(err, pgx.ErrNoRows) {
			return common.ErrTaskNotCompleted
		}
		if err != nil {
			return common.StoreError("lock progress", err)
		}
		if err := Claim(task, &p, now); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			UPDATE task_progress
			SET status = 'claimed', claim_count = claim_count + 1, claimed_at = $3, updated_at = $3
			WHERE account_id = $1 AND task_key = $2 AND status = 'completed'
		`, accountID, key, now)
		if err != nil {
			return common.StoreError("claim task", err)
		}
		if tag.RowsAffected() == 0 {
			return common.ErrAlreadyProcessed
		}

		res, err = ledger.ApplyDeltaTx(ctx, tx, ClaimDelta(task, p), now)
		if err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return Progress{}, ledger.Result{}, err
	}
	return out, res, nil
}

// ClaimDelta is the reward credit for the p.ClaimCount-th claim of t.
func ClaimDelta(t Task, p Progress) ledger.Delta {
	return ledger.Delta{
		AccountID:   p.AccountID,
		Amount:      t.Reward,
		Type:        ledger.TxBonus,
		Reference:   ledger.Reference{Type: ledger.RefTask, ID: t.Key},
		Description: t.Title,
		Metadata:    map[string]string{"task_key": t.Key, "claim": strconv.Itoa(p.ClaimCount)},
	}
}

func writeProgress(ctx context.Context, tx pgx.Tx, p Progress) error {
	_, err := tx.Exec(ctx, `
		UPDATE task_progress
		SET progress = $3, status = $4, claim_count = $5,
		    completed_at = $6, claimed_at = $7, updated_at = $8
		WHERE account_id = $1 AND task_key = $2
	`, p.AccountID, p.TaskKey, p.Progress, string(p.Status), p.ClaimCount,
		p.CompletedAt, p.ClaimedAt, p.UpdatedAt)
	if err != nil {
		return common.StoreError("update progress", err)
	}
	return nil
}

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	err := row.Scan(&t.Key, &t.Title, &t.Description, &t.Reward, &t.TargetCount, &t.MaxCompletions, &t.Active)
	return t, err
}

func scanProgress(row pgx.Row) (Progress, error) {
	var (
		p      Progress
		status string
	)
	err := row.Scan(&p.AccountID, &p.TaskKey, &p.Progress, &status, &p.ClaimCount,
		&p.CompletedAt, &p.ClaimedAt, &p.UpdatedAt)
	p.Status = Status(status)
	return p, err
}
