// Package relay is the websocket transport to Nostr relays. A Pool keeps at
// most one connection per relay URL, dialled on first use and replaced after
// any I/O failure.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tinyland-inc/xnostr/pkg/logger"
	"github.com/tinyland-inc/xnostr/pkg/nostr"
)

// ErrRejected means the relay answered OK with accepted=false.
var ErrRejected = errors.New("event rejected by relay")

// Ack is a relay's ["OK", <event id>, <accepted>, <message>] answer.
type Ack struct {
	EventID  string
	Accepted bool
	Message  string
}

type Pool struct {
	dialer *websocket.Dialer

	mu    sync.Mutex
	conns map[string]*Conn
}

// Conn is the pool entry for one relay. Publishes on it are serialised.
type Conn struct {
	url string

	mu sync.Mutex
	ws *websocket.Conn
}

func NewPool(dialTimeout time.Duration) *Pool {
	return &Pool{
		dialer: &websocket.Dialer{
			HandshakeTimeout: dialTimeout,
		},
		conns: make(map[string]*Conn),
	}
}

// ensureRelay returns the entry for url, creating it if needed. It does not
// dial.
func (p *Pool) ensureRelay(url string) *Conn {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.conns[url]
	if !ok {
		c = &Conn{url: url}
		p.conns[url] = c
	}
	return c
}

// Publish sends ev to the relay at url and waits for its OK. ctx bounds the
// whole attempt including the dial.
func (p *Pool) Publish(ctx context.Context, url string, ev *nostr.Event) (Ack, error) {
	return p.ensureRelay(url).publish(ctx, p.dialer, ev)
}

// Close drops every open connection.
func (p *Pool) Close() {
	p.mu.Lock()
	conns := make([]*Conn, 0, len(p.conns))
	for _, c := range p.conns {
		conns = append(conns, c)
	}
	p.mu.Unlock()

	for _, c := range conns {
		c.mu.Lock()
		c.drop()
		c.mu.Unlock()
	}
}

func (c *Conn) publish(ctx context.Context, dialer *websocket.Dialer, ev *nostr.Event) (Ack, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ws == nil {
		ws, _, err := dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			return Ack{}, fmt.Errorf("dial %s: %w", c.url, err)
		}
		c.ws = ws
		logger.DebugCF("relay", "Connected", map[string]any{"relay": c.url})
	}
	ws := c.ws

	var deadline time.Time
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	_ = ws.SetWriteDeadline(deadline)
	_ = ws.SetReadDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = ws.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := ws.WriteJSON([]any{"EVENT", ev}); err != nil {
		c.drop()
		return Ack{}, fmt.Errorf("send to %s: %w", c.url, err)
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.drop()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Ack{}, ctxErr
			}
			if !deadline.IsZero() && !time.Now().Before(deadline) {
				return Ack{}, context.DeadlineExceeded
			}
			return Ack{}, fmt.Errorf("read from %s: %w", c.url, err)
		}

		ack, ok := parseOK(data)
		if !ok {
			logger.DebugCF("relay", "Ignoring frame", map[string]any{
				"relay": c.url,
				"frame": truncate(string(data), 200),
			})
			continue
		}
		if ack.EventID != ev.ID {
			continue
		}
		if !ack.Accepted {
			return ack, fmt.Errorf("%w: %s", ErrRejected, ack.Message)
		}
		return ack, nil
	}
}

// drop closes the socket so the next publish re-dials. Callers hold c.mu.
func (c *Conn) drop() {
	if c.ws != nil {
		_ = c.ws.Close()
		c.ws = nil
	}
}

func parseOK(data []byte) (Ack, bool) {
	var frame []json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil || len(frame) < 3 {
		return Ack{}, false
	}
	var typ string
	if err := json.Unmarshal(frame[0], &typ); err != nil || typ != "OK" {
		return Ack{}, false
	}

	var ack Ack
	if err := json.Unmarshal(frame[1], &ack.EventID); err != nil {
		return Ack{}, false
	}
	if err := json.Unmarshal(frame[2], &ack.Accepted); err != nil {
		return Ack{}, false
	}
	if len(frame) > 3 {
		_ = json.Unmarshal(frame[3], &ack.Message)
	}
	return ack, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
