// Package bridge runs the polling cycle: fetch the timeline page after the
// cursor, then relay, compose and publish each new post oldest first.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tinyland-inc/xnostr/pkg/bus"
	"github.com/tinyland-inc/xnostr/pkg/feed"
	"github.com/tinyland-inc/xnostr/pkg/logger"
	"github.com/tinyland-inc/xnostr/pkg/media"
	"github.com/tinyland-inc/xnostr/pkg/metrics"
	"github.com/tinyland-inc/xnostr/pkg/nostr"
	"github.com/tinyland-inc/xnostr/pkg/publisher"
)

var (
	// ErrHalted is returned once the feed reported a rate limit. The loop
	// schedules nothing further until the process is restarted.
	ErrHalted = errors.New("bridge halted")
	// ErrOverrun is returned by RunCycle when another cycle is in progress.
	ErrOverrun = errors.New("cycle already running")
)

type MediaRelay interface {
	RelayAll(ctx context.Context, post feed.Post, attachments []feed.Media) []media.Hosted
}

type Composer interface {
	Compose(post feed.Post, mediaURLs []string) (*nostr.Event, error)
}

type Publisher interface {
	Publish(ctx context.Context, ev *nostr.Event) publisher.Result
}

// Deps are the collaborators a Loop drives. Bus may be nil.
type Deps struct {
	Cursor    *feed.Cursor
	Source    feed.Source
	Media     MediaRelay
	Composer  Composer
	Publisher Publisher
	Bus       *bus.EventBus
}

type Options struct {
	Interval  time.Duration
	Schedule  string // cron expression; overrides Interval when set
	PostDelay time.Duration
}

// CycleReport summarises one RunCycle.
type CycleReport struct {
	ID            string
	Fetched       int
	Published     int
	Undelivered   int
	ComposeFailed int
	Cursor        string
	Duration      time.Duration
}

type Loop struct {
	cursor    *feed.Cursor
	source    feed.Source
	media     MediaRelay
	composer  Composer
	publisher Publisher
	bus       *bus.EventBus
	opts      Options

	state   atomic.Int32
	running atomic.Bool
	now     func() time.Time
}

func New(deps Deps, opts Options) *Loop {
	l := &Loop{
		cursor:    deps.Cursor,
		source:    deps.Source,
		media:     deps.Media,
		composer:  deps.Composer,
		publisher: deps.Publisher,
		bus:       deps.Bus,
		opts:      opts,
		now:       time.Now,
	}
	l.setState(StateIdle)
	return l
}

func (l *Loop) State() State {
	return State(l.state.Load())
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
	metrics.LoopState.Set(float64(s))
}

// RunCycle performs one fetch and processes the resulting batch. A fetch
// error other than a rate limit is returned with the cursor untouched; the
// caller may simply try again next tick.
func (l *Loop) RunCycle(ctx context.Context) (report CycleReport, err error) {
	report.ID = ulid.Make().String()
	if l.State() == StateHalted {
		return report, ErrHalted
	}
	if !l.running.CompareAndSwap(false, true) {
		metrics.CyclesTotal.WithLabelValues("overrun").Inc()
		return report, ErrOverrun
	}
	defer l.running.Store(false)

	start := l.now()
	defer func() {
		report.Duration = l.now().Sub(start)
		report.Cursor, _ = l.cursor.Current()
	}()

	l.setState(StateFetching)
	tl, err := l.source.Fetch(ctx, l.cursor.BuildQuery())
	if err != nil {
		if errors.Is(err, feed.ErrRateLimited) {
			l.setState(StateHalted)
			metrics.CyclesTotal.WithLabelValues("halted").Inc()
			logger.ErrorCF("bridge", "Feed rate limited, halting", map[string]any{
				"cycle": report.ID,
				"error": err.Error(),
			})
			l.alert(bus.Event{
				Kind:    bus.KindHalted,
				Message: "feed rate limited; polling stopped until restart",
				Fields:  map[string]string{"error": err.Error()},
			})
			return report, fmt.Errorf("%w: %w", ErrHalted, err)
		}

		l.setState(StateIdle)
		metrics.CyclesTotal.WithLabelValues("fetch_error").Inc()
		logger.WarnCF("bridge", "Fetch failed, skipping cycle", map[string]any{
			"cycle": report.ID,
			"error": err.Error(),
		})
		return report, fmt.Errorf("fetch: %w", err)
	}

	if tl == nil || len(tl.Posts) == 0 {
		l.setState(StateIdle)
		metrics.CyclesTotal.WithLabelValues("empty").Inc()
		logger.DebugCF("bridge", "No new posts", map[string]any{"cycle": report.ID})
		return report, nil
	}

	// The feed answers newest first.
	batch := make([]feed.Post, len(tl.Posts))
	for i, p := range tl.Posts {
		batch[len(batch)-1-i] = p
	}
	report.Fetched = len(batch)

	l.setState(StateProcessingBatch)
	logger.InfoCF("bridge", "Processing batch", map[string]any{
		"cycle": report.ID,
		"posts": len(batch),
	})

	for _, post := range batch {
		l.processPost(ctx, tl, post, &report)
		l.cursor.Advance(ctx, post.ID)

		if err := sleepCtx(ctx, l.opts.PostDelay); err != nil {
			l.setState(StateIdle)
			metrics.CyclesTotal.WithLabelValues("canceled").Inc()
			return report, err
		}
	}

	l.setState(StateIdle)
	metrics.CyclesTotal.WithLabelValues("ok").Inc()
	logger.InfoCF("bridge", "Cycle complete", map[string]any{
		"cycle":          report.ID,
		"published":      report.Published,
		"undelivered":    report.Undelivered,
		"compose_failed": report.ComposeFailed,
	})
	return report, nil
}

func (l *Loop) processPost(ctx context.Context, tl *feed.Timeline, post feed.Post, report *CycleReport) {
	var urls []string
	if attachments := tl.MediaFor(post); len(attachments) > 0 {
		urls = media.URLs(l.media.RelayAll(ctx, post, attachments))
	}

	ev, err := l.composer.Compose(post, urls)
	if err != nil {
		report.ComposeFailed++
		logger.ErrorCF("bridge", "Compose failed, post skipped", map[string]any{
			"post_id": post.ID,
			"error":   err.Error(),
		})
		l.alert(bus.Event{
			Kind:    bus.KindComposeFailed,
			PostID:  post.ID,
			Message: "post could not be composed and was skipped",
			Fields:  map[string]string{"error": err.Error()},
		})
		return
	}
	metrics.PostsProcessed.Inc()

	res := l.publisher.Publish(ctx, ev)
	if res.OK() {
		report.Published++
		logger.InfoCF("bridge", "Post published", map[string]any{
			"post_id":  post.ID,
			"event_id": ev.ID,
			"relays":   fmt.Sprintf("%d/%d", res.SuccessCount, res.Total),
			"media":    len(urls),
		})
		return
	}

	report.Undelivered++
	metrics.PostsUndelivered.Inc()
	logger.ErrorCF("bridge", "No relay accepted post", map[string]any{
		"post_id":  post.ID,
		"event_id": ev.ID,
		"total":    res.Total,
	})
	l.alert(bus.Event{
		Kind:    bus.KindUndelivered,
		PostID:  post.ID,
		Message: "no relay accepted the event; the post will not be retried",
		Fields: map[string]string{
			"event_id": ev.ID,
			"total":    strconv.Itoa(res.Total),
		},
	})
}

func (l *Loop) alert(ev bus.Event) {
	if l.bus == nil {
		return
	}
	if err := l.bus.TryPublish(ev); err != nil {
		logger.WarnCF("bridge", "Dropping alert", map[string]any{
			"kind":  string(ev.Kind),
			"error": err.Error(),
		})
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
