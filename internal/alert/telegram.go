package alert

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"sailboat/config"
	"sailboat/pkg/logger"

	"gopkg.in/telebot.v3"
)

// Telegram caps a message at 4096 characters.
const telegramMaxText = 4096

type telegramSender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// TelegramDispatcher sends alerts to a single chat through a bot.
type TelegramDispatcher struct {
	bot    telegramSender
	chatID int64
	log    *logger.Logger
}

func NewTelegramDispatcher(cfg config.Telegram, timeout time.Duration, log *logger.Logger) (*TelegramDispatcher, error) {
	if cfg.BotToken == "" || cfg.ChatID == 0 {
		return nil, fmt.Errorf("alert.telegram.bot_token and alert.telegram.chat_id are required")
	}
	bot, err := telebot.NewBot(telebot.Settings{
		Token:   cfg.BotToken,
		Offline: true,
		Client:  newHTTPClient(timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramDispatcher{bot: bot, chatID: cfg.ChatID, log: log}, nil
}

func (d *TelegramDispatcher) Send(ctx context.Context, msg Message) error {
	text := msg.Title + "\n\n" + msg.Text
	if runes := []rune(text); len(runes) > telegramMaxText {
		text = string(runes[:telegramMaxText])
	}
	if _, err := d.bot.Send(&telebot.Chat{ID: d.chatID}, text, &telebot.SendOptions{DisableWebPagePreview: true}); err != nil {
		return fmt.Errorf("%w: %v", ErrAlertDelivery, err)
	}
	d.log.DebugContext(ctx, "Telegram alert sent", logger.StringField("title", msg.Title))
	return nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
