package channels

import (
	"context"
	"sync"
	"time"

	"github.com/tinyland-inc/xnostr/pkg/bus"
	"github.com/tinyland-inc/xnostr/pkg/config"
	"github.com/tinyland-inc/xnostr/pkg/logger"
)

const sendTimeout = 10 * time.Second

// Manager forwards every bus event to all enabled channels.
type Manager struct {
	bus      *bus.EventBus
	channels []Channel
}

func NewManager(b *bus.EventBus, channels ...Channel) *Manager {
	return &Manager{bus: b, channels: channels}
}

// NewManagerFromConfig enables a channel for every configured sink.
func NewManagerFromConfig(b *bus.EventBus, cfg config.AlertsConfig) (*Manager, error) {
	var opts []BaseChannelOption
	if cfg.Prefix != "" {
		opts = append(opts, WithPrefix(cfg.Prefix))
	}

	var chs []Channel
	if cfg.Discord.WebhookURL != "" {
		c, err := NewDiscordChannel(cfg.Discord.WebhookURL, opts...)
		if err != nil {
			return nil, err
		}
		chs = append(chs, c)
	}
	if cfg.Slack.WebhookURL != "" {
		chs = append(chs, NewSlackChannel(cfg.Slack.WebhookURL, opts...))
	}
	if cfg.Telegram.Token != "" {
		c, err := NewTelegramChannel(cfg.Telegram.Token, cfg.Telegram.ChatID, opts...)
		if err != nil {
			return nil, err
		}
		chs = append(chs, c)
	}
	return NewManager(b, chs...), nil
}

func (m *Manager) Channels() []string {
	names := make([]string, 0, len(m.channels))
	for _, c := range m.channels {
		names = append(names, c.Name())
	}
	return names
}

// Run consumes the bus until it is closed or ctx is done, then delivers
// whatever is still buffered before returning. With no channels enabled
// events are still drained so publishers never block.
func (m *Manager) Run(ctx context.Context) {
	for {
		ev, ok := m.bus.Consume(ctx)
		if !ok {
			break
		}
		m.dispatch(ctx, ev)
	}
	for {
		ev, ok := m.bus.TryConsume()
		if !ok {
			return
		}
		m.dispatch(ctx, ev)
	}
}

func (m *Manager) dispatch(ctx context.Context, ev bus.Event) {
	var wg sync.WaitGroup
	for _, c := range m.channels {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Sends outlive ctx so alerts raised just before shutdown still go out.
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
			defer cancel()
			if err := c.Send(sctx, ev); err != nil {
				logger.WarnCF("alerts", "Alert delivery failed", map[string]any{
					"channel": c.Name(),
					"kind":    string(ev.Kind),
					"error":   err.Error(),
				})
			}
		}()
	}
	wg.Wait()
}
