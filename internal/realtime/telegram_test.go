package realtime_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexdesk.app/credits/internal/realtime"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []*telego.SendMessageParams
}

func (f *fakeSender) SendMessage(_ context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, params)
	return &telego.Message{}, nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestFormatAlert(t *testing.T) {
	acc := uuid.New()
	text, ok := realtime.FormatAlert(realtime.Event{
		AccountID:       acc,
		TransactionType: "purchase",
		Amount:          2000,
		BalanceAfter:    2010,
		Description:     "Firm package",
	})
	require.True(t, ok)
	assert.Contains(t, text, "Purchase: +2,000 credits")
	assert.Contains(t, text, acc.String())
	assert.Contains(t, text, "Balance: 2,010 credits")
	assert.True(t, strings.HasSuffix(text, "Firm package"))

	_, ok = realtime.FormatAlert(realtime.Event{TransactionType: "consumption", Amount: -5})
	assert.False(t, ok)
}

func TestAdminAlertsForwardsPurchases(t *testing.T) {
	hub := realtime.NewHub(8)
	defer hub.Close()
	sender := &fakeSender{}
	alerts := realtime.NewAdminAlerts(hub, sender, 42)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		alerts.Run(ctx)
		close(done)
	}()

	acc := uuid.New()
	hub.Publish(realtime.Event{AccountID: acc, TransactionType: "consumption", Amount: -1})
	hub.Publish(realtime.Event{AccountID: acc, TransactionType: "admin_grant", Amount: 50, BalanceAfter: 50})

	assert.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	<-done
	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, int64(42), sender.sent[0].ChatID.ID)
	assert.Contains(t, sender.sent[0].Text, "Admin grant: +50 credits")
}
