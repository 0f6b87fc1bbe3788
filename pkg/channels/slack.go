package channels

import (
	"context"

	"github.com/slack-go/slack"

	"github.com/tinyland-inc/xnostr/pkg/bus"
)

// SlackChannel posts alerts to a Slack incoming webhook.
type SlackChannel struct {
	*BaseChannel
	webhookURL string
}

func NewSlackChannel(webhookURL string, opts ...BaseChannelOption) *SlackChannel {
	return &SlackChannel{
		BaseChannel: NewBaseChannel("slack", append([]BaseChannelOption{WithMaxMessageLength(40000)}, opts...)...),
		webhookURL:  webhookURL,
	}
}

func (c *SlackChannel) Send(ctx context.Context, ev bus.Event) error {
	return slack.PostWebhookContext(ctx, c.webhookURL, &slack.WebhookMessage{
		Text: c.Render(ev),
	})
}
