package alert

import (
	"context"
	"errors"
	"fmt"

	"sailboat/config"
	"sailboat/pkg/httpclient"
	"sailboat/pkg/logger"
	"sailboat/pkg/ratelimit"
)

// ErrAlertDelivery wraps every failed delivery. Callers log it and move on.
var ErrAlertDelivery = errors.New("alert delivery failed")

type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
}

// NewDispatcher builds the dispatcher named by cfg.Dispatcher.
func NewDispatcher(cfg config.Alert, log *logger.Logger) (Dispatcher, error) {
	switch cfg.Dispatcher {
	case "dingtalk":
		if cfg.WebhookURL == "" {
			return nil, fmt.Errorf("alert.webhook_url is required for the dingtalk dispatcher")
		}
		return NewDingTalkDispatcher(
			httpclient.New("", cfg.Timeout),
			cfg.WebhookURL,
			cfg.Secret,
			ratelimit.NewBudget(cfg.RatePerMinute),
			log,
		), nil
	case "telegram":
		return NewTelegramDispatcher(cfg.Telegram, cfg.Timeout, log)
	case "log", "":
		return NewLogDispatcher(log), nil
	}
	return nil, fmt.Errorf("unknown alert dispatcher %q", cfg.Dispatcher)
}
