// Package publisher broadcasts one signed event to every configured relay.
package publisher

import (
	"context"
	"errors"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tinyland-inc/xnostr/pkg/logger"
	"github.com/tinyland-inc/xnostr/pkg/metrics"
	"github.com/tinyland-inc/xnostr/pkg/nostr"
	"github.com/tinyland-inc/xnostr/pkg/relay"
)

type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusTimeout Status = "timeout"
)

// Outcome is what happened on one relay.
type Outcome struct {
	Relay    string
	Status   Status
	Err      error
	Message  string // relay's OK message, if any
	Duration time.Duration
}

// Result aggregates one broadcast. Outcomes follow the configured relay order.
type Result struct {
	EventID      string
	SuccessCount int
	Total        int
	Outcomes     []Outcome
}

// OK reports whether at least one relay accepted the event.
func (r Result) OK() bool { return r.SuccessCount > 0 }

// Transport submits one event to one relay and waits for its acknowledgement.
type Transport interface {
	Publish(ctx context.Context, url string, ev *nostr.Event) (relay.Ack, error)
}

type Publisher struct {
	transport Transport
	relays    []string
	timeout   time.Duration
}

func New(transport Transport, relays []string, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Publisher{transport: transport, relays: relays, timeout: timeout}
}

func (p *Publisher) Relays() []string { return p.relays }

// Publish submits ev to every relay at once and returns when all of them
// have answered, failed or timed out. Attempts do not cancel each other and
// nothing is retried.
func (p *Publisher) Publish(ctx context.Context, ev *nostr.Event) Result {
	outcomes := make([]Outcome, len(p.relays))

	var g errgroup.Group
	for i, url := range p.relays {
		g.Go(func() error {
			outcomes[i] = p.publishOne(ctx, url, ev)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{EventID: ev.ID, Total: len(outcomes), Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Status == StatusOK {
			res.SuccessCount++
		}
	}

	logger.InfoCF("publisher", "Event broadcast", map[string]any{
		"event_id": ev.ID,
		"success":  res.SuccessCount,
		"total":    res.Total,
	})
	return res
}

func (p *Publisher) publishOne(ctx context.Context, url string, ev *nostr.Event) Outcome {
	actx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	ack, err := p.transport.Publish(actx, url, ev)
	out := Outcome{
		Relay:    url,
		Status:   StatusOK,
		Err:      err,
		Message:  ack.Message,
		Duration: time.Since(start),
	}

	if err != nil {
		out.Status = StatusFailed
		if isTimeout(actx, err) {
			out.Status = StatusTimeout
		}
		logger.WarnCF("publisher", "Relay publish failed", map[string]any{
			"relay":    url,
			"event_id": ev.ID,
			"status":   string(out.Status),
			"error":    err.Error(),
		})
	} else {
		logger.DebugCF("publisher", "Relay accepted event", map[string]any{
			"relay":    url,
			"event_id": ev.ID,
		})
	}

	metrics.RelayPublishTotal.WithLabelValues(url, string(out.Status)).Inc()
	metrics.RelayPublishDuration.WithLabelValues(url).Observe(out.Duration.Seconds())
	return out
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
