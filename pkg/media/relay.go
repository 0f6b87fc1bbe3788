// Package media moves photo attachments from the source CDN to public image
// hosts. Each attachment is staged on local disk for the duration of one
// relay and removed afterwards.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tinyland-inc/xnostr/pkg/feed"
	"github.com/tinyland-inc/xnostr/pkg/logger"
	"github.com/tinyland-inc/xnostr/pkg/metrics"
	"github.com/tinyland-inc/xnostr/pkg/utils"
)

// ErrDownload wraps every failure to fetch the original attachment.
var ErrDownload = errors.New("media download failed")

// Hosted is an attachment re-hosted on a public image host.
type Hosted struct {
	URL  string
	Host string
}

type Options struct {
	StageDir         string
	DownloadTimeout  time.Duration
	UploadTimeout    time.Duration
	MaxDownloadBytes int64
	Concurrency      int
}

type Relay struct {
	client *resty.Client
	hosts  []Host
	opts   Options
}

// NewRelay returns a relay that tries hosts in the given order.
func NewRelay(client *resty.Client, hosts []Host, opts Options) *Relay {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = 30 * time.Second
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = 60 * time.Second
	}
	return &Relay{client: client, hosts: hosts, opts: opts}
}

// Relay downloads remoteURL and uploads it to the first host that accepts it.
// It reports false when the download failed or no host produced a URL. The
// staged file is gone when Relay returns.
func (r *Relay) Relay(ctx context.Context, postID, mediaKey, remoteURL string) (Hosted, bool) {
	fields := map[string]any{"post_id": postID, "media_key": mediaKey}

	for _, id := range []string{postID, mediaKey} {
		if err := utils.ValidatePathComponent(id); err != nil {
			fields["error"] = err.Error()
			logger.WarnCF("media", "Refusing attachment with unsafe identifier", fields)
			return Hosted{}, false
		}
	}

	path, err := r.download(ctx, postID, mediaKey, remoteURL)
	if err != nil {
		metrics.MediaDownloadFailures.Inc()
		fields["url"] = remoteURL
		fields["error"] = err.Error()
		logger.WarnCF("media", "Attachment download failed", fields)
		return Hosted{}, false
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.WarnCF("media", "Failed to remove staged file", map[string]any{
				"path":  path,
				"error": err.Error(),
			})
		}
	}()

	for _, h := range r.hosts {
		uctx, cancel := context.WithTimeout(ctx, r.opts.UploadTimeout)
		url, err := h.Upload(uctx, path)
		cancel()

		if err == nil {
			metrics.MediaUploads.WithLabelValues(h.Name(), "ok").Inc()
			logger.InfoCF("media", "Attachment re-hosted", map[string]any{
				"post_id":   postID,
				"media_key": mediaKey,
				"host":      h.Name(),
				"url":       url,
			})
			return Hosted{URL: url, Host: h.Name()}, true
		}
		if errors.Is(err, ErrHostNotConfigured) {
			logger.DebugCF("media", "Skipping unconfigured host", map[string]any{"host": h.Name()})
			continue
		}

		metrics.MediaUploads.WithLabelValues(h.Name(), "failed").Inc()
		logger.WarnCF("media", "Upload failed", map[string]any{
			"post_id":   postID,
			"media_key": mediaKey,
			"host":      h.Name(),
			"error":     err.Error(),
		})
		if ctx.Err() != nil {
			break
		}
	}

	logger.WarnCF("media", "No host accepted attachment", fields)
	return Hosted{}, false
}

// RelayAll relays every photo attached to post. Attachments are relayed
// concurrently, and the result keeps their original order with failed ones
// left out.
func (r *Relay) RelayAll(ctx context.Context, post feed.Post, attachments []feed.Media) []Hosted {
	slots := make([]*Hosted, len(attachments))

	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)
	for i, m := range attachments {
		if !m.IsPhoto() || m.URL == "" {
			logger.DebugCF("media", "Skipping attachment", map[string]any{
				"post_id":   post.ID,
				"media_key": m.Key,
				"type":      m.Type,
			})
			continue
		}
		g.Go(func() error {
			if h, ok := r.Relay(ctx, post.ID, m.Key, m.URL); ok {
				slots[i] = &h
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Hosted, 0, len(slots))
	for _, h := range slots {
		if h != nil {
			out = append(out, *h)
		}
	}
	return out
}

// URLs returns the public URLs of hosted in order.
func URLs(hosted []Hosted) []string {
	out := make([]string, 0, len(hosted))
	for _, h := range hosted {
		out = append(out, h.URL)
	}
	return out
}

func (r *Relay) download(ctx context.Context, postID, mediaKey, remoteURL string) (string, error) {
	dctx, cancel := context.WithTimeout(ctx, r.opts.DownloadTimeout)
	defer cancel()

	resp, err := r.client.R().
		SetContext(dctx).
		SetDoNotParseResponse(true).
		Get(remoteURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		return "", fmt.Errorf("%w: status %d", ErrDownload, resp.StatusCode())
	}

	name := fmt.Sprintf("tweet_%s_%s_%s.%s", postID, mediaKey, uuid.New().String(), utils.ExtFromURL(remoteURL, "jpg"))
	path := filepath.Join(r.opts.StageDir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}

	src := io.Reader(body)
	if r.opts.MaxDownloadBytes > 0 {
		src = io.LimitReader(body, r.opts.MaxDownloadBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && r.opts.MaxDownloadBytes > 0 && n > r.opts.MaxDownloadBytes {
		err = fmt.Errorf("larger than %d bytes", r.opts.MaxDownloadBytes)
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}
	return path, nil
}
