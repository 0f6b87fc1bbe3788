package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/xnostr/pkg/bus"
	"github.com/tinyland-inc/xnostr/pkg/composer"
	"github.com/tinyland-inc/xnostr/pkg/feed"
	"github.com/tinyland-inc/xnostr/pkg/media"
	"github.com/tinyland-inc/xnostr/pkg/nostr"
	"github.com/tinyland-inc/xnostr/pkg/publisher"
)

// fakeFeed serves posts newer than since_id, newest first, like the X API.
type fakeFeed struct {
	mu      sync.Mutex
	posts   []feed.Post // ascending ids
	media   []feed.Media
	err     error
	queries []feed.Query
}

func (f *fakeFeed) Fetch(_ context.Context, q feed.Query) (*feed.Timeline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	tl := &feed.Timeline{Media: f.media}
	for i := len(f.posts) - 1; i >= 0; i-- {
		p := f.posts[i]
		if q.SinceID != "" && feed.CompareIDs(p.ID, q.SinceID) <= 0 {
			continue
		}
		tl.Posts = append(tl.Posts, p)
	}
	return tl, nil
}

func (f *fakeFeed) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

type fakeMedia struct {
	mu    sync.Mutex
	calls []string
}

func (m *fakeMedia) RelayAll(_ context.Context, post feed.Post, attachments []feed.Media) []media.Hosted {
	m.mu.Lock()
	m.calls = append(m.calls, post.ID)
	m.mu.Unlock()
	var out []media.Hosted
	for _, a := range attachments {
		if a.IsPhoto() {
			out = append(out, media.Hosted{URL: "https://void.cat/d/" + a.Key, Host: "void.cat"})
		}
	}
	return out
}

type fakePublisher struct {
	mu        sync.Mutex
	successes int
	events    []*nostr.Event
}

func (p *fakePublisher) Publish(_ context.Context, ev *nostr.Event) publisher.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return publisher.Result{EventID: ev.ID, SuccessCount: p.successes, Total: 4}
}

func (p *fakePublisher) published() []*nostr.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*nostr.Event(nil), p.events...)
}

type failingComposer struct{ failID string }

func (c failingComposer) Compose(post feed.Post, _ []string) (*nostr.Event, error) {
	if post.ID == c.failID {
		return nil, errors.New("signing failed")
	}
	return &nostr.Event{ID: "ev-" + post.ID, Content: post.Text}, nil
}

type harness struct {
	loop   *Loop
	feed   *fakeFeed
	media  *fakeMedia
	pub    *fakePublisher
	cursor *feed.Cursor
	bus    *bus.EventBus
}

func newHarness(t *testing.T, f *fakeFeed, opts Options) *harness {
	t.Helper()
	keys, err := nostr.GenerateKeys()
	require.NoError(t, err)
	cursor, err := feed.NewCursor(context.Background(), nil, 5)
	require.NoError(t, err)

	h := &harness{
		feed:   f,
		media:  &fakeMedia{},
		pub:    &fakePublisher{successes: 3},
		cursor: cursor,
		bus:    bus.NewEventBus(16),
	}
	t.Cleanup(h.bus.Close)
	h.loop = New(Deps{
		Cursor:    cursor,
		Source:    f,
		Media:     h.media,
		Composer:  composer.New(keys, composer.Options{ClientTag: "x-nostr-bridge", Provenance: true}),
		Publisher: h.pub,
		Bus:       h.bus,
	}, opts)
	return h
}

func threePosts() []feed.Post {
	return []feed.Post{
		{ID: "1001", Text: "first"},
		{ID: "1002", Text: "second https://t.co/x", MediaKeys: []string{"m1"}},
		{ID: "1003", Text: "third"},
	}
}

func drain(b *bus.EventBus) []bus.Event {
	var out []bus.Event
	for {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		ev, ok := b.Consume(ctx)
		cancel()
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

func TestRunCycle_PublishesOldestFirst(t *testing.T) {
	f := &fakeFeed{
		posts: threePosts(),
		media: []feed.Media{{Key: "m1", Type: feed.MediaTypePhoto, URL: "https://pbs.twimg.com/m1.jpg"}},
	}
	h := newHarness(t, f, Options{})

	report, err := h.loop.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 3, report.Published)
	assert.Equal(t, "1003", report.Cursor)
	assert.NotEmpty(t, report.ID)

	events := h.pub.published()
	require.Len(t, events, 3)
	assert.Contains(t, events[0].Content, "first")
	assert.Contains(t, events[1].Content, "https://void.cat/d/m1")
	assert.NotContains(t, events[1].Content, "https://t.co/x")
	assert.Contains(t, events[2].Content, "third")

	assert.Equal(t, []string{"1002"}, h.media.calls)
	assert.Equal(t, StateIdle, h.loop.State())
}

func TestRunCycle_ColdStartThenIdempotent(t *testing.T) {
	f := &fakeFeed{posts: threePosts()}
	h := newHarness(t, f, Options{})

	_, err := h.loop.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.queries[0].SinceID)
	assert.True(t, f.queries[0].ExcludeReplies)
	assert.True(t, f.queries[0].ExcludeRetweets)

	report, err := h.loop.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1003", f.queries[1].SinceID)
	assert.Equal(t, 0, report.Fetched)
	assert.Len(t, h.pub.published(), 3)

	id, _ := h.cursor.Current()
	assert.Equal(t, "1003", id)
}

func TestRunCycle_PicksUpNewPosts(t *testing.T) {
	f := &fakeFeed{posts: threePosts()}
	h := newHarness(t, f, Options{})

	_, err := h.loop.RunCycle(context.Background())
	require.NoError(t, err)

	f.mu.Lock()
	f.posts = append(f.posts, feed.Post{ID: "1004", Text: "fourth"}, feed.Post{ID: "1005", Text: "fifth"})
	f.mu.Unlock()

	report, err := h.loop.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, "1005", report.Cursor)

	events := h.pub.published()
	require.Len(t, events, 5)
	assert.Contains(t, events[3].Content, "fourth")
	assert.Contains(t, events[4].Content, "fifth")
}

func TestRunCycle_ZeroSuccessStillAdvances(t *testing.T) {
	f := &fakeFeed{posts: threePosts()}
	h := newHarness(t, f, Options{})
	h.pub.successes = 0

	report, err := h.loop.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Undelivered)
	assert.Equal(t, 0, report.Published)
	assert.Equal(t, "1003", report.Cursor)

	alerts := drain(h.bus)
	require.Len(t, alerts, 3)
	for _, a := range alerts {
		assert.Equal(t, bus.KindUndelivered, a.Kind)
	}
	assert.Equal(t, "1001", alerts[0].PostID)
}

func TestRunCycle_ComposeFailureAdvances(t *testing.T) {
	f := &fakeFeed{posts: threePosts()}
	h := newHarness(t, f, Options{})
	h.loop.composer = failingComposer{failID: "1002"}

	report, err := h.loop.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.ComposeFailed)
	assert.Equal(t, 2, report.Published)
	assert.Equal(t, "1003", report.Cursor)

	alerts := drain(h.bus)
	require.Len(t, alerts, 1)
	assert.Equal(t, bus.KindComposeFailed, alerts[0].Kind)
	assert.Equal(t, "1002", alerts[0].PostID)
}

func TestRunCycle_FetchErrorLeavesCursor(t *testing.T) {
	f := &fakeFeed{posts: threePosts()}
	h := newHarness(t, f, Options{})

	_, err := h.loop.RunCycle(context.Background())
	require.NoError(t, err)

	f.err = &feed.APIError{Status: 503, Body: "over capacity"}
	_, err = h.loop.RunCycle(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrHalted)
	assert.Equal(t, StateIdle, h.loop.State())

	id, _ := h.cursor.Current()
	assert.Equal(t, "1003", id)
}

func TestRunCycle_RateLimitHalts(t *testing.T) {
	f := &fakeFeed{err: &feed.RateLimitError{}}
	h := newHarness(t, f, Options{})

	_, err := h.loop.RunCycle(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHalted)
	assert.ErrorIs(t, err, feed.ErrRateLimited)
	assert.Equal(t, StateHalted, h.loop.State())

	_, err = h.loop.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrHalted)
	assert.Equal(t, 1, f.calls())

	alerts := drain(h.bus)
	require.Len(t, alerts, 1)
	assert.Equal(t, bus.KindHalted, alerts[0].Kind)
}

func TestRunCycle_OverrunGuard(t *testing.T) {
	f := &fakeFeed{posts: threePosts()}
	h := newHarness(t, f, Options{})
	h.loop.running.Store(true)

	_, err := h.loop.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrOverrun)
	assert.Equal(t, 0, f.calls())
}

func TestRunCycle_PostDelayHonoursCancel(t *testing.T) {
	f := &fakeFeed{posts: threePosts()}
	h := newHarness(t, f, Options{PostDelay: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	report, err := h.loop.RunCycle(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, report.Published)
	assert.Equal(t, "1001", report.Cursor)
}

func TestRun_RepeatsUntilCanceled(t *testing.T) {
	f := &fakeFeed{posts: threePosts()}
	h := newHarness(t, f, Options{Interval: 20 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	require.NoError(t, h.loop.Run(ctx))
	assert.GreaterOrEqual(t, f.calls(), 3)
	assert.Len(t, h.pub.published(), 3)
}

func TestRun_StopsWhenHalted(t *testing.T) {
	f := &fakeFeed{err: &feed.RateLimitError{}}
	h := newHarness(t, f, Options{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := h.loop.Run(ctx)
	assert.ErrorIs(t, err, ErrHalted)
	assert.Equal(t, 1, f.calls())
}

func TestRun_RequiresSchedule(t *testing.T) {
	h := newHarness(t, &fakeFeed{}, Options{})
	assert.Error(t, h.loop.Run(context.Background()))
}

func TestNextTick_Interval(t *testing.T) {
	l := &Loop{opts: Options{Interval: 15 * time.Minute}}
	prev := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	next, skipped, err := l.nextTick(prev, prev.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, prev.Add(15*time.Minute), next)
	assert.Equal(t, 0, skipped)

	next, skipped, err = l.nextTick(prev, prev.Add(40*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, prev.Add(45*time.Minute), next)
	assert.Equal(t, 2, skipped)
}

func TestNextTick_Schedule(t *testing.T) {
	l := &Loop{opts: Options{Schedule: "*/15 * * * *"}}
	prev := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	next, skipped, err := l.nextTick(prev, prev.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 1, 12, 15, 0, 0, time.UTC), next)
	assert.Equal(t, 0, skipped)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "halted", StateHalted.String())
	assert.Equal(t, "processing_batch", StateProcessingBatch.String())
}
