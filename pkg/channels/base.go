// Package channels delivers operator alerts raised by the bridge to chat
// services.
package channels

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tinyland-inc/xnostr/pkg/bus"
)

type Channel interface {
	Name() string
	Send(ctx context.Context, ev bus.Event) error
}

// BaseChannelOption is a functional option for configuring a BaseChannel.
type BaseChannelOption func(*BaseChannel)

// WithMaxMessageLength sets the maximum message length (in runes) for a channel.
// Longer alerts are cut by Render. A value of 0 means no limit.
func WithMaxMessageLength(n int) BaseChannelOption {
	return func(c *BaseChannel) { c.maxMessageLength = n }
}

// WithPrefix sets the first line of every rendered alert.
func WithPrefix(prefix string) BaseChannelOption {
	return func(c *BaseChannel) { c.prefix = prefix }
}

type BaseChannel struct {
	name             string
	prefix           string
	maxMessageLength int
}

func NewBaseChannel(name string, opts ...BaseChannelOption) *BaseChannel {
	bc := &BaseChannel{name: name, prefix: "xnostr"}
	for _, opt := range opts {
		opt(bc)
	}
	return bc
}

func (c *BaseChannel) Name() string {
	return c.name
}

// Render formats ev as plain text within the channel's length limit.
func (c *BaseChannel) Render(ev bus.Event) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s: %s", c.prefix, ev.Kind, ev.Message)
	if ev.PostID != "" {
		fmt.Fprintf(&sb, "\npost: %s", ev.PostID)
	}

	keys := make([]string, 0, len(ev.Fields))
	for k := range ev.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "\n%s: %s", k, ev.Fields[k])
	}
	return truncateRunes(sb.String(), c.maxMessageLength)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
