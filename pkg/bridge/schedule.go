package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"github.com/tinyland-inc/xnostr/pkg/logger"
	"github.com/tinyland-inc/xnostr/pkg/metrics"
)

// Run executes a cycle immediately and then one per tick until ctx is done
// or the feed halts the loop. Cycles never overlap: ticks that pass while a
// cycle is still running are skipped. It returns nil on cancellation and an
// error wrapping ErrHalted after a rate limit.
func (l *Loop) Run(ctx context.Context) error {
	if l.opts.Schedule == "" && l.opts.Interval <= 0 {
		return fmt.Errorf("bridge: interval must be positive")
	}

	logger.InfoCF("bridge", "Loop started", map[string]any{
		"interval": l.opts.Interval.String(),
		"schedule": l.opts.Schedule,
	})

	tick := l.now()
	for {
		if _, err := l.RunCycle(ctx); err != nil {
			if errors.Is(err, ErrHalted) {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
		}

		next, skipped, err := l.nextTick(tick, l.now())
		if err != nil {
			return err
		}
		if skipped > 0 {
			metrics.CyclesTotal.WithLabelValues("skipped").Add(float64(skipped))
			logger.WarnCF("bridge", "Cycle overran its slot, skipping ticks", map[string]any{
				"skipped": skipped,
				"next":    next.Format(time.RFC3339),
			})
		}

		if err := sleepCtx(ctx, next.Sub(l.now())); err != nil {
			logger.InfoC("bridge", "Loop stopped")
			return nil
		}
		tick = next
	}
}

// nextTick returns the first tick strictly after now that follows prev, and
// how many ticks between prev and now were missed.
func (l *Loop) nextTick(prev, now time.Time) (time.Time, int, error) {
	if l.opts.Schedule != "" {
		next, err := gronx.NextTickAfter(l.opts.Schedule, prev, false)
		if err != nil {
			return time.Time{}, 0, fmt.Errorf("bridge schedule: %w", err)
		}
		skipped := 0
		for !next.After(now) {
			skipped++
			next, err = gronx.NextTickAfter(l.opts.Schedule, next, false)
			if err != nil {
				return time.Time{}, 0, fmt.Errorf("bridge schedule: %w", err)
			}
		}
		return next, skipped, nil
	}

	next := prev.Add(l.opts.Interval)
	skipped := 0
	for !next.After(now) {
		skipped++
		next = next.Add(l.opts.Interval)
	}
	return next, skipped, nil
}
