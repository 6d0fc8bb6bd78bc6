package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"lexdesk.app/credits/internal/common"
)

// Transaction types that are worth an admin alert.
var alertTypes = map[string]string{
	"purchase":    "Purchase",
	"admin_grant": "Admin grant",
}

// MessageSender is the part of the Telegram client AdminAlerts uses.
type MessageSender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// AdminAlerts forwards purchase and admin grant events to a Telegram chat.
type AdminAlerts struct {
	sender MessageSender
	chatID int64
	sub    *Subscription
}

// NewTelegramBot creates the telego client used by AdminAlerts.
func NewTelegramBot(token string) (*telego.Bot, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return bot, nil
}

// NewAdminAlerts subscribes to every account on hub.
func NewAdminAlerts(hub *Hub, sender MessageSender, chatID int64) *AdminAlerts {
	return &AdminAlerts{
		sender: sender,
		chatID: chatID,
		sub:    hub.SubscribeAll(),
	}
}

// Run sends alerts until ctx is cancelled or the hub closes.
func (a *AdminAlerts) Run(ctx context.Context) {
	defer a.sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-a.sub.C:
			if !ok {
				return
			}
			text, send := FormatAlert(ev)
			if !send {
				continue
			}
			sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			_, err := a.sender.SendMessage(sendCtx, tu.Message(tu.ID(a.chatID), text))
			cancel()
			if err != nil {
				log.WithError(err).WithField("event_id", ev.ID).Warn("Failed to send admin alert")
			}
		}
	}
}

// FormatAlert renders ev for the admin chat. The second result is false
// for event types that do not produce alerts.
func FormatAlert(ev Event) (string, bool) {
	title, ok := alertTypes[ev.TransactionType]
	if !ok {
		return "", false
	}
	text := fmt.Sprintf("%s: %s\nAccount: %s\nBalance: %s",
		title,
		common.FormatCreditsAmount(ev.Amount),
		ev.AccountID,
		common.FormatCredits(ev.BalanceAfter),
	)
	if ev.Description != "" {
		text += "\n" + ev.Description
	}
	return text, true
}
