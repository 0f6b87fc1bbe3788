package channels

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/tinyland-inc/xnostr/pkg/bus"
)

// DiscordChannel posts alerts through an incoming webhook.
type DiscordChannel struct {
	*BaseChannel
	session   *discordgo.Session
	webhookID string
	token     string
}

func NewDiscordChannel(webhookURL string, opts ...BaseChannelOption) (*DiscordChannel, error) {
	id, token, err := parseDiscordWebhook(webhookURL)
	if err != nil {
		return nil, err
	}
	// Webhook execution needs no bot token.
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &DiscordChannel{
		BaseChannel: NewBaseChannel("discord", append([]BaseChannelOption{WithMaxMessageLength(2000)}, opts...)...),
		session:     session,
		webhookID:   id,
		token:       token,
	}, nil
}

func (c *DiscordChannel) Send(ctx context.Context, ev bus.Event) error {
	_, err := c.session.WebhookExecute(c.webhookID, c.token, false, &discordgo.WebhookParams{
		Content:  c.Render(ev),
		Username: "xnostr",
	}, discordgo.WithContext(ctx))
	return err
}

// parseDiscordWebhook extracts id and token from
// https://discord.com/api/webhooks/<id>/<token>.
func parseDiscordWebhook(raw string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("discord webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("discord webhook url: no webhook id/token in %q", u.Path)
}
