package media

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/xnostr/pkg/feed"
)

type fakeHost struct {
	name  string
	url   string
	err   error
	calls atomic.Int32
	seen  atomic.Value
}

func (h *fakeHost) Name() string { return h.name }

func (h *fakeHost) Upload(_ context.Context, path string) (string, error) {
	h.calls.Add(1)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	h.seen.Store(string(data))
	if h.err != nil {
		return "", h.err
	}
	return h.url, nil
}

func newCDN(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing.jpg":
			w.WriteHeader(http.StatusNotFound)
		case "/big.jpg":
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		default:
			_, _ = w.Write([]byte("image-bytes:" + r.URL.Path))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestRelay(t *testing.T, hosts ...Host) (*Relay, string) {
	t.Helper()
	dir := t.TempDir()
	return NewRelay(resty.New(), hosts, Options{
		StageDir:         dir,
		DownloadTimeout:  5 * time.Second,
		UploadTimeout:    5 * time.Second,
		MaxDownloadBytes: 32,
		Concurrency:      2,
	}), dir
}

func assertStageEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRelay_FallbackStopsAtFirstSuccess(t *testing.T) {
	cdn := newCDN(t)
	first := &fakeHost{name: "first", err: errors.New("boom")}
	second := &fakeHost{name: "second", url: "https://second.example/x.jpg"}
	third := &fakeHost{name: "third", url: "https://third.example/x.jpg"}
	r, dir := newTestRelay(t, first, second, third)

	hosted, ok := r.Relay(context.Background(), "1001", "3_1", cdn.URL+"/a.jpg")
	require.True(t, ok)
	assert.Equal(t, Hosted{URL: "https://second.example/x.jpg", Host: "second"}, hosted)

	assert.EqualValues(t, 1, first.calls.Load())
	assert.EqualValues(t, 1, second.calls.Load())
	assert.EqualValues(t, 0, third.calls.Load())
	assert.Equal(t, "image-bytes:/a.jpg", second.seen.Load())
	assertStageEmpty(t, dir)
}

func TestRelay_AllHostsFail(t *testing.T) {
	cdn := newCDN(t)
	a := &fakeHost{name: "a", err: ErrNoURL}
	b := &fakeHost{name: "b", err: errors.New("500")}
	r, dir := newTestRelay(t, a, b)

	_, ok := r.Relay(context.Background(), "1001", "3_1", cdn.URL+"/a.jpg")
	assert.False(t, ok)
	assert.EqualValues(t, 1, a.calls.Load())
	assert.EqualValues(t, 1, b.calls.Load())
	assertStageEmpty(t, dir)
}

func TestRelay_UnconfiguredHostIsSkipped(t *testing.T) {
	cdn := newCDN(t)
	skip := &fakeHost{name: "skip", err: ErrHostNotConfigured}
	ok := &fakeHost{name: "ok", url: "https://ok.example/1"}
	r, _ := newTestRelay(t, skip, ok)

	hosted, relayed := r.Relay(context.Background(), "1", "k", cdn.URL+"/a.jpg")
	require.True(t, relayed)
	assert.Equal(t, "ok", hosted.Host)
}

func TestRelay_DownloadFailureSkipsUpload(t *testing.T) {
	cdn := newCDN(t)
	host := &fakeHost{name: "h", url: "https://h.example/1"}
	r, dir := newTestRelay(t, host)

	_, ok := r.Relay(context.Background(), "1001", "3_1", cdn.URL+"/missing.jpg")
	assert.False(t, ok)
	assert.EqualValues(t, 0, host.calls.Load())
	assertStageEmpty(t, dir)
}

func TestRelay_OversizedDownload(t *testing.T) {
	cdn := newCDN(t)
	host := &fakeHost{name: "h", url: "https://h.example/1"}
	r, dir := newTestRelay(t, host)

	_, ok := r.Relay(context.Background(), "1001", "3_1", cdn.URL+"/big.jpg")
	assert.False(t, ok)
	assert.EqualValues(t, 0, host.calls.Load())
	assertStageEmpty(t, dir)
}

func TestRelay_RejectsUnsafeIdentifiers(t *testing.T) {
	cdn := newCDN(t)
	host := &fakeHost{name: "h", url: "https://h.example/1"}
	r, _ := newTestRelay(t, host)

	_, ok := r.Relay(context.Background(), "../../etc", "3_1", cdn.URL+"/a.jpg")
	assert.False(t, ok)
	assert.EqualValues(t, 0, host.calls.Load())
}

type echoHost struct{}

func (echoHost) Name() string { return "echo" }

func (echoHost) Upload(_ context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	if strings.HasSuffix(string(data), "/fail.jpg") {
		return "", errors.New("rejected")
	}
	return "https://echo.example" + strings.TrimPrefix(string(data), "image-bytes:"), nil
}

func TestRelayAll_PreservesOrderAndSkipsNonPhotos(t *testing.T) {
	cdn := newCDN(t)
	r, dir := newTestRelay(t, echoHost{})

	post := feed.Post{ID: "1001"}
	attachments := []feed.Media{
		{Key: "k1", Type: feed.MediaTypePhoto, URL: cdn.URL + "/1.jpg"},
		{Key: "k2", Type: "video", URL: cdn.URL + "/v.mp4"},
		{Key: "k3", Type: feed.MediaTypePhoto, URL: cdn.URL + "/fail.jpg"},
		{Key: "k4", Type: feed.MediaTypePhoto, URL: cdn.URL + "/4.jpg"},
		{Key: "k5", Type: feed.MediaTypePhoto},
		{Key: "k6", Type: feed.MediaTypePhoto, URL: cdn.URL + "/6.jpg"},
	}

	hosted := r.RelayAll(context.Background(), post, attachments)
	assert.Equal(t, []string{
		"https://echo.example/1.jpg",
		"https://echo.example/4.jpg",
		"https://echo.example/6.jpg",
	}, URLs(hosted))
	assertStageEmpty(t, dir)
}
