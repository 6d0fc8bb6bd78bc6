// Package tasks (models.go): the task catalog, per-account progress and
// the pending → completed → claimed state machine.
package tasks

import (
	"time"

	"github.com/google/uuid"

	"lexdesk.app/credits/internal/common"
)

// Task is a catalog entry.
type Task struct {
	Key            string `json:"task_key"`
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	Reward         int64  `json:"reward"`
	TargetCount    int    `json:"target_count"`
	MaxCompletions int    `json:"max_completions"`
	Active         bool   `json:"is_active"`
}

// Status of one account's progress on one task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusClaimed   Status = "claimed"
)

// Progress is keyed by (account, task).
type Progress struct {
	AccountID   uuid.UUID  `json:"account_id"`
	TaskKey     string     `json:"task_key"`
	Progress    int        `json:"progress"`
	Status      Status     `json:"status"`
	ClaimCount  int        `json:"claim_count"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewProgress returns the initial pending progress.
func NewProgress(accountID uuid.UUID, key string) Progress {
	return Progress{AccountID: accountID, TaskKey: key, Status: StatusPending}
}

// Exhausted reports whether no further claims are allowed.
func (p Progress) Exhausted(t Task) bool {
	return p.Status == StatusClaimed && p.ClaimCount >= t.MaxCompletions
}

// TaskView is a catalog entry joined with the caller's progress.
type TaskView struct {
	Task
	Progress   int    `json:"progress"`
	Status     Status `json:"status"`
	ClaimCount int    `json:"claim_count"`
	Claimable  bool   `json:"claimable"`
	Exhausted  bool   `json:"exhausted"`
}

// ClaimResult is returned after a successful claim.
type ClaimResult struct {
	TaskKey    string `json:"task_key"`
	Reward     int64  `json:"reward"`
	ClaimCount int    `json:"claim_count"`
	Balance    int64  `json:"balance"`
}

// ProgressRequest is the body of POST /api/v1/admin/tasks/{key}/progress.
type ProgressRequest struct {
	AccountID uuid.UUID `json:"account_id"`
	Increment int       `json:"increment"`
	Complete  bool      `json:"complete"`
}

// Advance adds inc to p and moves pending → completed at the target.
// A claimed task re-opens while claims remain; a completed one waits for
// its claim. It reports whether p changed.
func Advance(t Task, p *Progress, inc int, now time.Time) bool {
	if inc <= 0 {
		return false
	}
	switch p.Status {
	case StatusCompleted:
		return false
	case StatusClaimed:
		if p.ClaimCount >= t.MaxCompletions {
			return false
		}
		p.Status = StatusPending
		p.Progress = 0
		p.CompletedAt = nil
	}

	p.Progress += inc
	if p.Progress >= t.TargetCount {
		p.Progress = t.TargetCount
		p.Status = StatusCompleted
		done := now
		p.CompletedAt = &done
	}
	p.UpdatedAt = now
	return true
}

// Claim performs the completed → claimed edge.
func Claim(t Task, p *Progress, now time.Time) error {
	switch p.Status {
	case StatusCompleted:
	case StatusClaimed:
		return common.ErrAlreadyProcessed
	default:
		return common.ErrTaskNotCompleted
	}
	if p.ClaimCount >= t.MaxCompletions {
		return common.ErrAlreadyProcessed
	}
	p.Status = StatusClaimed
	p.ClaimCount++
	claimed := now
	p.ClaimedAt = &claimed
	p.UpdatedAt = now
	return nil
}

// View joins t with p. p may be nil when the account never started t.
func View(t Task, p *Progress) TaskView {
	v := TaskView{Task: t, Status: StatusPending}
	if p != nil {
		v.Progress = p.Progress
		v.Status = p.Status
		v.ClaimCount = p.ClaimCount
		v.Claimable = p.Status == StatusCompleted && p.ClaimCount < t.MaxCompletions
		v.Exhausted = p.Exhausted(t)
	}
	return v
}
