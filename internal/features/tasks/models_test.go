package tasks

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexdesk.app/credits/internal/common"
)

func TestAdvanceToTarget(t *testing.T) {
	task := Task{Key: "ten_research", Reward: 25, TargetCount: 10, MaxCompletions: 1}
	p := NewProgress(uuid.New(), task.Key)
	now := time.Now()

	assert.True(t, Advance(task, &p, 4, now))
	assert.Equal(t, StatusPending, p.Status)
	assert.Equal(t, 4, p.Progress)

	assert.True(t, Advance(task, &p, 9, now))
	assert.Equal(t, StatusCompleted, p.Status)
	assert.Equal(t, 10, p.Progress, "progress is capped at the target")
	require.NotNil(t, p.CompletedAt)

	assert.False(t, Advance(task, &p, 1, now), "completed tasks wait for their claim")
	assert.False(t, Advance(task, &p, 0, now))
}

func TestClaimStateMachine(t *testing.T) {
	task := Task{Key: "weekly_client", Reward: 5, TargetCount: 1, MaxCompletions: 2}
	p := NewProgress(uuid.New(), task.Key)
	now := time.Now()

	assert.ErrorIs(t, Claim(task, &p, now), common.ErrTaskNotCompleted)

	Advance(task, &p, 1, now)
	require.NoError(t, Claim(task, &p, now))
	assert.Equal(t, StatusClaimed, p.Status)
	assert.Equal(t, 1, p.ClaimCount)
	assert.ErrorIs(t, Claim(task, &p, now), common.ErrAlreadyProcessed)
	assert.False(t, p.Exhausted(task))

	// repeatable: the next report re-opens it
	assert.True(t, Advance(task, &p, 1, now))
	assert.Equal(t, StatusCompleted, p.Status)
	require.NoError(t, Claim(task, &p, now))
	assert.Equal(t, 2, p.ClaimCount)
	assert.True(t, p.Exhausted(task))

	assert.False(t, Advance(task, &p, 1, now))
	assert.ErrorIs(t, Claim(task, &p, now), common.ErrAlreadyProcessed)
}

func TestView(t *testing.T) {
	task := Task{Key: "first_document", Reward: 10, TargetCount: 1, MaxCompletions: 1}

	v := View(task, nil)
	assert.Equal(t, StatusPending, v.Status)
	assert.False(t, v.Claimable)

	p := NewProgress(uuid.New(), task.Key)
	Advance(task, &p, 1, time.Now())
	v = View(task, &p)
	assert.True(t, v.Claimable)
	assert.Equal(t, 1, v.Progress)
}
