// Package notifier delivers host performance notifications consumed from
// the host.notifications queue.
package notifier

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/stay-reservation/internal/ranking"
)

// Sender is the part of the bot API used here.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts notifications to a single operator chat. When disabled
// it only logs.
type Telegram struct {
	bot     Sender
	chatID  int64
	enabled bool
	logger  *logrus.Logger
}

// NewTelegram connects to the bot API. An empty token yields a disabled
// notifier.
func NewTelegram(botToken string, chatID int64, logger *logrus.Logger) (*Telegram, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if botToken == "" || chatID == 0 {
		return &Telegram{logger: logger}, nil
	}
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID, enabled: true, logger: logger}, nil
}

// NewTelegramWithSender wires a custom Sender.
func NewTelegramWithSender(s Sender, chatID int64, logger *logrus.Logger) *Telegram {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Telegram{bot: s, chatID: chatID, enabled: s != nil, logger: logger}
}

// Deliver implements queue.Deliverer.
func (t *Telegram) Deliver(_ context.Context, n ranking.Notification) error {
	entry := t.logger.WithFields(logrus.Fields{
		"notification_id": n.ID,
		"host_id":         n.HostID,
		"listing_id":      n.ListingID,
	})
	if !t.enabled {
		entry.Info("telegram disabled, host notification logged only")
		return nil
	}
	msg := tgbotapi.NewMessage(t.chatID, Format(n))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	entry.Info("host notification delivered")
	return nil
}

// Format renders n as Telegram HTML.
func Format(n ranking.Notification) string {
	var b strings.Builder
	icon := "⚠️"
	if n.Priority == "high" {
		icon = "🚨"
	}
	fmt.Fprintf(&b, "%s <b>Low performance: %s</b>\n", icon, html.EscapeString(n.ListingTitle))
	fmt.Fprintf(&b, "Host #%d · Listing #%d · Score <b>%d/100</b> (%s)\n", n.HostID, n.ListingID, n.Score, n.Status)
	if len(n.Recommendations) > 0 {
		b.WriteString("\n<b>Recommendations</b>\n")
		for _, r := range n.Recommendations {
			fmt.Fprintf(&b, "• %s\n", html.EscapeString(r.Message))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
