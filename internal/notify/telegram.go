// Package notify delivers moderation notifications to users
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/example/lexicon/pkg/models"
)

// Sender is the part of the Telegram bot API used to deliver messages
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ChatResolver maps an actor to the Telegram chat linked to it
type ChatResolver interface {
	ChatID(ctx context.Context, actorID string) (int64, bool, error)
}

// DeliveryCounter is told about every delivery attempt
type DeliveryCounter interface {
	NotificationSent(channel string, err error)
}

// TelegramSink sends notifications as Telegram messages. Actors without a
// linked chat are skipped.
type TelegramSink struct {
	api     Sender
	chats   ChatResolver
	counter DeliveryCounter
	log     zerolog.Logger
}

// NewTelegramSink authorizes a bot with token
func NewTelegramSink(token string, chats ChatResolver, counter DeliveryCounter, log zerolog.Logger) (*TelegramSink, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("unable to create bot: %w", err)
	}
	log.Info().Str("account", api.Self.UserName).Msg("telegram bot authorized")
	return NewTelegramSinkWithSender(api, chats, counter, log), nil
}

// NewTelegramSinkWithSender builds a sink around an existing sender
func NewTelegramSinkWithSender(api Sender, chats ChatResolver, counter DeliveryCounter, log zerolog.Logger) *TelegramSink {
	return &TelegramSink{
		api:     api,
		chats:   chats,
		counter: counter,
		log:     log.With().Str("component", "telegram").Logger(),
	}
}

// Notify implements moderation.NotificationSink
func (s *TelegramSink) Notify(ctx context.Context, n models.Notification) error {
	chatID, ok, err := s.chats.ChatID(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("resolve chat for %s: %w", n.UserID, err)
	}
	if !ok {
		s.log.Debug().Str("user_id", n.UserID).Msg("no telegram chat linked, skipping")
		return nil
	}

	msg := tgbotapi.NewMessage(chatID, n.Message)
	msg.DisableWebPagePreview = true
	_, err = s.api.Send(msg)
	if s.counter != nil {
		s.counter.NotificationSent("telegram", err)
	}
	if err != nil {
		return fmt.Errorf("send telegram message to %s: %w", n.UserID, err)
	}

	s.log.Debug().Str("user_id", n.UserID).Str("kind", string(n.Metadata.Kind)).Msg("notification sent")
	return nil
}
