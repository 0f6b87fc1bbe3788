package channels

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/tinyland-inc/xnostr/pkg/bus"
)

// TelegramChannel sends alerts to one chat through a bot.
type TelegramChannel struct {
	*BaseChannel
	bot    *telego.Bot
	chatID int64
}

func NewTelegramChannel(token string, chatID int64, opts ...BaseChannelOption) (*TelegramChannel, error) {
	bot, err := telego.NewBot(token, telego.WithDiscardLogger())
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramChannel{
		BaseChannel: NewBaseChannel("telegram", append([]BaseChannelOption{WithMaxMessageLength(4096)}, opts...)...),
		bot:         bot,
		chatID:      chatID,
	}, nil
}

func (c *TelegramChannel) Send(ctx context.Context, ev bus.Event) error {
	_, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(c.chatID), c.Render(ev)))
	return err
}
