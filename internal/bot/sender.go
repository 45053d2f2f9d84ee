package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// BotAPI is the part of the Telegram client the bot uses.
// *tgbotapi.BotAPI satisfies it.
type BotAPI interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Sender throttles outgoing messages so the poll loop and the dispatcher
// together stay under Telegram's per-bot limits.
type Sender struct {
	api     BotAPI
	limiter *rate.Limiter
}

func NewSender(api BotAPI, perSecond rate.Limit, burst int) *Sender {
	if burst <= 0 {
		burst = 1
	}
	return &Sender{api: api, limiter: rate.NewLimiter(perSecond, burst)}
}

// Notify sends a plain-text message to chatID.
func (s *Sender) Notify(ctx context.Context, chatID int64, text string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := s.api.Send(msg); err != nil {
		return fmt.Errorf("send to %d: %w", chatID, err)
	}
	return nil
}
