package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/xnostr/pkg/nostr"
	"github.com/tinyland-inc/xnostr/pkg/relay"
)

// scriptedTransport answers per relay URL.
type scriptedTransport struct {
	mu       sync.Mutex
	inflight int
	peak     int
	behavior map[string]func(ctx context.Context) (relay.Ack, error)
}

func (s *scriptedTransport) Publish(ctx context.Context, url string, ev *nostr.Event) (relay.Ack, error) {
	s.mu.Lock()
	s.inflight++
	if s.inflight > s.peak {
		s.peak = s.inflight
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
	}()
	return s.behavior[url](ctx)
}

func ok(ctx context.Context) (relay.Ack, error) {
	time.Sleep(100 * time.Millisecond)
	return relay.Ack{Accepted: true}, nil
}

func fail(ctx context.Context) (relay.Ack, error) {
	time.Sleep(100 * time.Millisecond)
	return relay.Ack{Message: "blocked"}, errors.New("blocked")
}

func hang(ctx context.Context) (relay.Ack, error) {
	<-ctx.Done()
	return relay.Ack{}, ctx.Err()
}

func testEvent(t *testing.T) *nostr.Event {
	t.Helper()
	keys, err := nostr.GenerateKeys()
	require.NoError(t, err)
	ev := &nostr.Event{CreatedAt: 1700000000, Kind: nostr.KindTextNote, Content: "fan-out"}
	require.NoError(t, ev.Sign(keys))
	return ev
}

func TestPublish_Aggregation(t *testing.T) {
	relays := []string{"wss://a", "wss://b", "wss://c", "wss://d", "wss://e"}
	tr := &scriptedTransport{behavior: map[string]func(context.Context) (relay.Ack, error){
		"wss://a": ok,
		"wss://b": fail,
		"wss://c": ok,
		"wss://d": hang,
		"wss://e": fail,
	}}
	p := New(tr, relays, 150*time.Millisecond)

	start := time.Now()
	res := p.Publish(context.Background(), testEvent(t))
	elapsed := time.Since(start)

	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 5, res.Total)
	require.Len(t, res.Outcomes, 5)
	assert.True(t, res.OK())

	want := []Status{StatusOK, StatusFailed, StatusOK, StatusTimeout, StatusFailed}
	for i, o := range res.Outcomes {
		assert.Equal(t, relays[i], o.Relay)
		assert.Equal(t, want[i], o.Status, o.Relay)
	}
	assert.Error(t, res.Outcomes[1].Err)
	assert.Equal(t, "blocked", res.Outcomes[1].Message)

	// It waited for the hanging relay, and the attempts overlapped.
	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, 5, tr.peak)
}

func TestPublish_ZeroSuccess(t *testing.T) {
	tr := &scriptedTransport{behavior: map[string]func(context.Context) (relay.Ack, error){
		"wss://a": fail,
		"wss://b": fail,
	}}
	res := New(tr, []string{"wss://a", "wss://b"}, time.Second).Publish(context.Background(), testEvent(t))

	assert.False(t, res.OK())
	assert.Equal(t, 0, res.SuccessCount)
	assert.Equal(t, 2, res.Total)
}

func TestPublish_FailureDoesNotCancelSiblings(t *testing.T) {
	slowOK := func(ctx context.Context) (relay.Ack, error) {
		select {
		case <-time.After(100 * time.Millisecond):
			return relay.Ack{Accepted: true}, nil
		case <-ctx.Done():
			return relay.Ack{}, ctx.Err()
		}
	}
	tr := &scriptedTransport{behavior: map[string]func(context.Context) (relay.Ack, error){
		"wss://fast-fail": func(context.Context) (relay.Ack, error) { return relay.Ack{}, errors.New("refused") },
		"wss://slow":      slowOK,
	}}
	res := New(tr, []string{"wss://fast-fail", "wss://slow"}, time.Second).Publish(context.Background(), testEvent(t))

	assert.Equal(t, 1, res.SuccessCount)
	assert.Equal(t, StatusOK, res.Outcomes[1].Status)
}
