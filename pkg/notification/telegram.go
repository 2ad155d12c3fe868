// Package notification provides implementations for delivery of computed
// stop levels to external channels.
package notification

import (
	"errors"
	"fmt"
	"time"

	"github.com/raykavin/stoploss/pkg/calculator"
	"github.com/raykavin/stoploss/pkg/config"
	"github.com/raykavin/stoploss/pkg/core"

	log "github.com/sirupsen/logrus"
	tb "gopkg.in/tucnak/telebot.v2"
)

var ErrMissingToken = errors.New("telegram token is required")

// telegram implements the core.Notifier interface.
type telegram struct {
	client *tb.Bot
	chat   *tb.Chat
}

// NewTelegram creates a Telegram notifier that sends to a fixed chat.
func NewTelegram(cfg config.TelegramConfig) (core.Notifier, error) {
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}

	client, err := tb.NewBot(tb.Settings{
		ParseMode: tb.ModeMarkdown,
		Token:     cfg.Token,
		Poller:    &tb.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &telegram{
		client: client,
		chat:   &tb.Chat{ID: cfg.ChatID},
	}, nil
}

// Notify sends a plain message to the configured chat.
func (t *telegram) Notify(message string) {
	if _, err := t.client.Send(t.chat, message); err != nil {
		log.WithError(err).Error("failed to send telegram message")
	}
}

// OnError reports an error to the configured chat.
func (t *telegram) OnError(err error) {
	t.Notify(fmt.Sprintf("🚨 ERROR\n%v", err))
}

// ResultMessage renders a computed stop as a Telegram markdown message.
func ResultMessage(result calculator.Result) string {
	message := fmt.Sprintf(
		"*%s* (%s)\nPrice: %s %.2f\nStop: %s\nMethod: %s\nRisk/share: %s",
		result.Symbol,
		result.Mode,
		result.Currency, result.CurrentPrice,
		result.FormattedStop(),
		result.FormattedMethod(),
		result.FormattedRisk(),
	)
	if result.Guidance() == calculator.GuidanceAboveCurrent {
		message += "\n⚠️ stop is above the current price"
	}
	return message
}
