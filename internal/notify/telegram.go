package notify

import (
	"context"
	"errors"
	"fmt"

	"reservo/internal/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramSender is the part of the bot API the channel needs.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramChannel broadcasts admin messages to a fixed set of chats.
type TelegramChannel struct {
	bot     TelegramSender
	chatIDs []int64
	logger  *zerolog.Logger
}

func NewTelegramChannel(bot TelegramSender, chatIDs []int64, logger *zerolog.Logger) *TelegramChannel {
	return &TelegramChannel{bot: bot, chatIDs: chatIDs, logger: logger}
}

// NewTelegramBot connects to the bot API. It returns nil, nil when no token is
// configured.
func NewTelegramBot(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	if cfg.BotToken == "" {
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug
	return bot, nil
}

func (c *TelegramChannel) Name() string { return "telegram" }

// Deliver sends msg to every admin chat once. The recipient is ignored.
// Failed chats are logged and skipped; an error is returned only when no chat
// accepted the message.
func (c *TelegramChannel) Deliver(ctx context.Context, msg Message) error {
	if len(c.chatIDs) == 0 {
		return ErrNoChannel
	}

	text := msg.Body
	if msg.Subject != "" {
		text = msg.Subject + "\n\n" + msg.Body
	}

	var (
		errs      []error
		delivered int
	)
	for _, id := range c.chatIDs {
		if err := ctx.Err(); err != nil {
			if delivered == 0 {
				return err
			}
			break
		}
		if _, err := c.bot.Send(tgbotapi.NewMessage(id, text)); err != nil {
			c.logger.Warn().Err(err).Int64("chat_id", id).Str("type", msg.Type).Msg("telegram chat delivery failed")
			errs = append(errs, fmt.Errorf("chat %d: %w", id, err))
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return errors.Join(errs...)
	}
	return nil
}
