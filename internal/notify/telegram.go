package notify

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// MessageSender is the subset of the bot API used for dispatch.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramDispatcher delivers notifications as Telegram messages. When an
// ops chat is configured, every message is mirrored there.
type TelegramDispatcher struct {
	bot       MessageSender
	opsChatID int64
	logger    *zerolog.Logger
}

func NewTelegramDispatcher(bot MessageSender, opsChatID int64, logger *zerolog.Logger) *TelegramDispatcher {
	return &TelegramDispatcher{bot: bot, opsChatID: opsChatID, logger: logger}
}

func (d *TelegramDispatcher) Send(ctx context.Context, recipient int64, templateKey string, vars map[string]string) error {
	if recipient == 0 {
		return nil
	}

	text := Render(templateKey, vars)
	msg := tgbotapi.NewMessage(recipient, text)
	if _, err := d.bot.Send(msg); err != nil {
		d.logger.Warn().
			Err(err).
			Int64("recipient", recipient).
			Str("template", templateKey).
			Msg("notification delivery failed")
		return err
	}

	if d.opsChatID != 0 && d.opsChatID != recipient {
		copyMsg := tgbotapi.NewMessage(d.opsChatID, text)
		if _, err := d.bot.Send(copyMsg); err != nil {
			d.logger.Warn().Err(err).Msg("ops copy delivery failed")
		}
	}
	return nil
}
