package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/tinyland-inc/xnostr/cmd/xnostr/internal"
	"github.com/tinyland-inc/xnostr/pkg/bridge"
	"github.com/tinyland-inc/xnostr/pkg/bus"
	"github.com/tinyland-inc/xnostr/pkg/channels"
	"github.com/tinyland-inc/xnostr/pkg/composer"
	"github.com/tinyland-inc/xnostr/pkg/config"
	"github.com/tinyland-inc/xnostr/pkg/feed"
	"github.com/tinyland-inc/xnostr/pkg/health"
	"github.com/tinyland-inc/xnostr/pkg/logger"
	"github.com/tinyland-inc/xnostr/pkg/media"
	"github.com/tinyland-inc/xnostr/pkg/nostr"
	"github.com/tinyland-inc/xnostr/pkg/publisher"
	"github.com/tinyland-inc/xnostr/pkg/relay"
)

const alertBuffer = 64

func runCmd(opts options) error {
	logger.Configure(logger.Options{Level: logger.INFO, Pretty: opts.pretty})
	if opts.debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Println("🔍 Debug mode enabled")
	}

	cfg, err := internal.LoadConfig(opts.configPath, opts.envFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	// Runs before b.close; buffered alerts are delivered before exit.
	defer startAlerts(ctx, b.alerts, b.bus)()
	if chs := b.alerts.Channels(); len(chs) > 0 {
		fmt.Printf("✓ Alerts enabled: %s\n", strings.Join(chs, ", "))
	} else {
		fmt.Println("⚠ Warning: No alert channels enabled")
	}

	if opts.once {
		return runOnce(ctx, b.loop, os.Stdout)
	}

	var healthServer *health.Server
	if cfg.Health.Enabled {
		healthServer = health.NewServer(cfg.Health.Host, cfg.Health.Port)
		healthServer.SetReadyCheck(func() (bool, string) {
			s := b.loop.State()
			return s != bridge.StateHalted, s.String()
		})
		go func() {
			if err := healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.ErrorCF("health", "Health server error", map[string]any{"error": err.Error()})
			}
		}()
		fmt.Printf("✓ Health endpoints available at http://%s/health, /ready and /metrics\n", cfg.HealthAddr())
	}

	b.alert(bus.Event{
		Kind:    bus.KindStarted,
		Message: fmt.Sprintf("bridging @%s to %d relays", b.handle, len(cfg.Nostr.Relays)),
	})
	fmt.Println("✓ Bridge started")
	fmt.Println("Press Ctrl+C to stop")

	runErr := b.loop.Run(ctx)
	if errors.Is(runErr, bridge.ErrHalted) {
		// Keep /ready answering 503 until the operator restarts the process.
		fmt.Printf("⚠ Bridge halted: %v\n", runErr)
		<-ctx.Done()
	}

	fmt.Println("\nShutting down...")
	if healthServer != nil {
		if err := healthServer.Stop(context.Background()); err != nil {
			logger.WarnCF("health", "Health server shutdown", map[string]any{"error": err.Error()})
		}
	}
	fmt.Println("✓ Bridge stopped")
	return runErr
}

// startAlerts runs the alert manager. The returned func closes the bus and
// waits until every buffered alert has been handed to the channels.
func startAlerts(ctx context.Context, m *channels.Manager, b *bus.EventBus) func() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx)
	}()
	return func() {
		b.Close()
		<-done
	}
}

func runOnce(ctx context.Context, loop *bridge.Loop, out io.Writer) error {
	report, err := loop.RunCycle(ctx)
	fmt.Fprintf(out, "Cycle %s: fetched %d, published %d, undelivered %d, compose failed %d (%s)\n",
		report.ID, report.Fetched, report.Published, report.Undelivered, report.ComposeFailed,
		report.Duration.Round(time.Millisecond))
	if report.Cursor != "" {
		fmt.Fprintf(out, "Cursor: %s\n", report.Cursor)
	}
	return err
}

// bridgeApp is the wired object graph behind "xnostr run".
type bridgeApp struct {
	loop   *bridge.Loop
	alerts *channels.Manager
	bus    *bus.EventBus
	handle string

	closers []func()
}

func (a *bridgeApp) alert(ev bus.Event) {
	if err := a.bus.TryPublish(ev); err != nil {
		logger.WarnCF("alerts", "Dropping alert", map[string]any{"kind": string(ev.Kind), "error": err.Error()})
	}
}

func (a *bridgeApp) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// build validates key material, verifies the feed credentials and wires
// every component. Any error here is fatal before the first poll.
func build(ctx context.Context, cfg *config.Config) (*bridgeApp, error) {
	app := &bridgeApp{}
	ok := false
	defer func() {
		if !ok {
			app.close()
		}
	}()

	keys, err := nostr.ParseSecret(cfg.Nostr.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("NOSTR_BOT_NSEC: %w", err)
	}
	fmt.Printf("✓ Nostr identity %s\n", keys.Npub())

	if err := cfg.EnsureStageDir(); err != nil {
		return nil, err
	}

	xc, err := feed.NewXClient(ctx, feed.XConfig{
		BaseURL:     cfg.X.BaseURL,
		TokenURL:    cfg.X.TokenURL,
		AccountID:   cfg.X.AccountID,
		BearerToken: cfg.X.BearerToken,
		APIKey:      cfg.X.APIKey,
		APISecret:   cfg.X.APISecret,
		Timeout:     cfg.X.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("feed client: %w", err)
	}
	user, err := xc.Verify(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify feed credentials: %w", err)
	}
	app.handle = cfg.X.Handle
	if app.handle == "" {
		app.handle = user.Username
	}
	fmt.Printf("✓ Following @%s (%s)\n", user.Username, user.ID)

	var store feed.CursorStore
	if cfg.Store.RedisURL != "" {
		rs, err := feed.NewRedisStore(ctx, cfg.Store.RedisURL, cfg.Store.Key)
		if err != nil {
			return nil, fmt.Errorf("cursor store: %w", err)
		}
		app.closers = append(app.closers, func() { _ = rs.Close() })
		store = rs
		fmt.Println("✓ Cursor persisted in Redis")
	} else {
		logger.WarnC("cursor", "Cursor kept in memory; a restart may republish the latest page")
	}
	cursor, err := feed.NewCursor(ctx, store, cfg.X.MaxResults)
	if err != nil {
		return nil, err
	}

	httpClient := resty.New()
	hosts, err := media.HostsFromConfig(httpClient, cfg.Media)
	if err != nil {
		return nil, err
	}
	mediaRelay := media.NewRelay(httpClient, hosts, media.Options{
		StageDir:         cfg.Media.StageDir,
		DownloadTimeout:  cfg.Media.DownloadTimeout,
		UploadTimeout:    cfg.Media.UploadTimeout,
		MaxDownloadBytes: cfg.Media.MaxDownloadBytes,
		Concurrency:      cfg.Media.Concurrency,
	})

	pool := relay.NewPool(cfg.Nostr.DialTimeout)
	app.closers = append(app.closers, pool.Close)
	pub := publisher.New(pool, cfg.Nostr.Relays, cfg.Nostr.PublishTimeout)
	fmt.Printf("✓ Publishing to %d relays\n", len(pub.Relays()))

	app.bus = bus.NewEventBus(alertBuffer)
	app.closers = append(app.closers, app.bus.Close)
	app.alerts, err = channels.NewManagerFromConfig(app.bus, cfg.Alerts)
	if err != nil {
		return nil, fmt.Errorf("alert channels: %w", err)
	}

	app.loop = bridge.New(bridge.Deps{
		Cursor: cursor,
		Source: xc,
		Media:  mediaRelay,
		Composer: composer.New(keys, composer.Options{
			ClientTag:  cfg.Nostr.ClientTag,
			Handle:     app.handle,
			Provenance: cfg.Nostr.Provenance,
		}),
		Publisher: pub,
		Bus:       app.bus,
	}, bridge.Options{
		Interval:  cfg.Bridge.Interval,
		Schedule:  cfg.Bridge.Schedule,
		PostDelay: cfg.Bridge.PostDelay,
	})

	ok = true
	return app, nil
}
