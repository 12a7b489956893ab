package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"sailboat/pkg/httpclient"
	"sailboat/pkg/logger"
	"sailboat/pkg/ratelimit"
	"sailboat/pkg/signer"
)

type dingTalkResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// DingTalkDispatcher posts markdown messages to a signed robot webhook.
type DingTalkDispatcher struct {
	client  httpclient.HTTPClient
	webhook string
	secret  string
	budget  *ratelimit.Budget
	log     *logger.Logger
	now     func() time.Time
}

func NewDingTalkDispatcher(client httpclient.HTTPClient, webhook, secret string, budget *ratelimit.Budget, log *logger.Logger) *DingTalkDispatcher {
	return &DingTalkDispatcher{
		client:  client,
		webhook: webhook,
		secret:  secret,
		budget:  budget,
		log:     log,
		now:     time.Now,
	}
}

func (d *DingTalkDispatcher) Send(ctx context.Context, msg Message) error {
	if d.budget != nil {
		if err := d.budget.Wait(ctx, 1); err != nil {
			return fmt.Errorf("%w: webhook budget: %v", ErrAlertDelivery, err)
		}
	}

	timestamp := strconv.FormatInt(d.now().UnixMilli(), 10)
	query := "timestamp=" + timestamp + "&sign=" + signer.Sign(timestamp, d.secret)
	headers := map[string]string{"Content-Type": httpclient.ContentTypeJSONUTF8}

	resp, err := d.client.Post(ctx, d.webhook, query, msg.Payload(), headers, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAlertDelivery, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: webhook returned status %d", ErrAlertDelivery, resp.StatusCode)
	}

	var result dingTalkResponse
	if len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, &result); err != nil {
			return fmt.Errorf("%w: unreadable response: %v", ErrAlertDelivery, err)
		}
	}
	if result.ErrCode != 0 {
		return fmt.Errorf("%w: errcode %d: %s", ErrAlertDelivery, result.ErrCode, result.ErrMsg)
	}

	d.log.DebugContext(ctx, "Message Sender Success", logger.StringField("title", msg.Title))
	return nil
}
