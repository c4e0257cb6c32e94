package signals

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// TelegramTransport reads posts from one Telegram chat or channel via the Bot API.
type TelegramTransport struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

func NewTelegramTransport(token string, chatID int64, logger *zap.Logger) (*TelegramTransport, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	logger.Info("Telegram bot authorized", zap.String("username", api.Self.UserName))
	return &TelegramTransport{api: api, chatID: chatID, logger: logger}, nil
}

func (t *TelegramTransport) Name() string { return "telegram" }

func (t *TelegramTransport) Start(ctx context.Context) (<-chan string, error) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.api.GetUpdatesChan(u)

	out := make(chan string)
	go func() {
		defer close(out)
		defer t.api.StopReceivingUpdates()
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				text, ok := t.updateText(update)
				if !ok {
					continue
				}
				select {
				case out <- text:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// updateText extracts the post text of an update from the watched chat.
// Captions stand in for text on media posts.
func (t *TelegramTransport) updateText(update tgbotapi.Update) (string, bool) {
	msg := update.Message
	if msg == nil {
		msg = update.ChannelPost
	}
	if msg == nil || msg.Chat == nil {
		return "", false
	}
	if t.chatID != 0 && msg.Chat.ID != t.chatID {
		t.logger.Debug("Message from unexpected chat ignored", zap.Int64("chat_id", msg.Chat.ID))
		return "", false
	}
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	return text, text != ""
}
