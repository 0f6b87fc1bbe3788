// Package feed reads the followed account's timeline from the X API v2 and
// tracks the cursor that keeps polling idempotent.
package feed

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRateLimited is the hard-stop signal: the API answered 429.
var ErrRateLimited = errors.New("feed rate limited")

// RateLimitError carries the reset time reported by the API, if any.
type RateLimitError struct {
	Reset time.Time
}

func (e *RateLimitError) Error() string {
	if e.Reset.IsZero() {
		return ErrRateLimited.Error()
	}
	return fmt.Sprintf("%s until %s", ErrRateLimited, e.Reset.Format(time.RFC3339))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// APIError is any other non-2xx answer. It is recoverable per cycle.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("x api: status %d: %s", e.Status, e.Body)
}

// Query is a timeline fetch specification.
type Query struct {
	ExcludeReplies  bool
	ExcludeRetweets bool
	MaxResults      int
	SinceID         string // exclusive lower bound, empty on cold start
}

// Post is one source post. ParentID is set when the post replies to another.
type Post struct {
	ID        string
	Text      string
	MediaKeys []string
	ParentID  string
}

const MediaTypePhoto = "photo"

type Media struct {
	Key        string
	Type       string
	URL        string
	PreviewURL string
}

func (m Media) IsPhoto() bool { return m.Type == MediaTypePhoto }

// Timeline is one page of results, newest first as returned by the API.
type Timeline struct {
	Posts []Post
	Media []Media
}

// MediaFor resolves a post's attachment keys against the included media.
// Keys without an included object are returned with only Key set.
func (t *Timeline) MediaFor(p Post) []Media {
	if len(p.MediaKeys) == 0 {
		return nil
	}
	byKey := make(map[string]Media, len(t.Media))
	for _, m := range t.Media {
		byKey[m.Key] = m
	}
	out := make([]Media, 0, len(p.MediaKeys))
	for _, k := range p.MediaKeys {
		m, ok := byKey[k]
		if !ok {
			m = Media{Key: k}
		}
		out = append(out, m)
	}
	return out
}

// Source is the read-only feed collaborator.
type Source interface {
	Fetch(ctx context.Context, q Query) (*Timeline, error)
}
