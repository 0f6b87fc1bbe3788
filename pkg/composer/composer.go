// Package composer turns a source post and its re-hosted media into a
// signed Nostr text note.
package composer

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tinyland-inc/xnostr/pkg/feed"
	"github.com/tinyland-inc/xnostr/pkg/nostr"
)

// shortlink matches the auto-generated t.co links X appends for embedded media.
var shortlink = regexp.MustCompile(`https://t\.co/[A-Za-z0-9]+`)

type Options struct {
	ClientTag  string
	Handle     string // account handle for permalinks, "i/web" when empty
	Provenance bool   // append the permalink line to the content
	Now        func() time.Time
}

type Composer struct {
	keys *nostr.Keys
	opts Options
}

func New(keys *nostr.Keys, opts Options) *Composer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Composer{keys: keys, opts: opts}
}

// Compose builds and signs the note for post. mediaURLs are the re-hosted
// attachments in display order.
func (c *Composer) Compose(post feed.Post, mediaURLs []string) (*nostr.Event, error) {
	text := post.Text
	if len(mediaURLs) > 0 {
		text = strings.TrimSpace(shortlink.ReplaceAllString(text, ""))
	}

	blocks := []string{text}
	tags := nostr.Tags{}
	if c.opts.ClientTag != "" {
		tags = append(tags, nostr.Tag{"client", c.opts.ClientTag})
	}

	permalink := Permalink(c.opts.Handle, post.ID)
	tags = append(tags, nostr.Tag{"proxy", permalink, "web"})

	if len(mediaURLs) > 0 {
		for _, u := range mediaURLs {
			tags = append(tags, nostr.Tag{"imeta", "url " + u})
		}
		blocks = append(blocks, strings.Join(mediaURLs, "\n"))
	}
	if c.opts.Provenance {
		blocks = append(blocks, permalink)
	}
	if post.ParentID != "" {
		tags = append(tags,
			nostr.Tag{"r", Permalink(c.opts.Handle, post.ParentID)},
			nostr.Tag{"x-reply-to", post.ParentID},
		)
	}

	ev := &nostr.Event{
		CreatedAt: c.opts.Now().Unix(),
		Kind:      nostr.KindTextNote,
		Tags:      tags,
		Content:   joinBlocks(blocks),
	}
	if err := ev.Sign(c.keys); err != nil {
		return nil, fmt.Errorf("compose post %s: %w", post.ID, err)
	}
	return ev, nil
}

// Permalink is the canonical URL of a post on x.com.
func Permalink(handle, id string) string {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		handle = "i/web"
	}
	return "https://x.com/" + handle + "/status/" + id
}

func joinBlocks(blocks []string) string {
	nonEmpty := blocks[:0]
	for _, b := range blocks {
		if b != "" {
			nonEmpty = append(nonEmpty, b)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}
