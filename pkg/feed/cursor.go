package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/tinyland-inc/xnostr/pkg/logger"
)

// CursorStore persists the last published post id.
type CursorStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, id string) error
}

// Cursor tracks the last source post that went through publication and
// turns it into the next fetch query. It is owned by the bridge loop.
type Cursor struct {
	pageSize int
	store    CursorStore
	current  string
}

// NewCursor loads the starting value from store. A nil store keeps the
// cursor in memory only.
func NewCursor(ctx context.Context, store CursorStore, pageSize int) (*Cursor, error) {
	if store == nil {
		store = NewMemoryStore()
	}
	id, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cursor: %w", err)
	}
	return &Cursor{pageSize: pageSize, store: store, current: id}, nil
}

// Current returns the cursor and whether one exists yet.
func (c *Cursor) Current() (string, bool) {
	return c.current, c.current != ""
}

// Advance moves the cursor to id. An id older than the current value is
// ignored so the cursor never moves backwards. A failed save is logged and
// the in-memory value still advances.
func (c *Cursor) Advance(ctx context.Context, id string) {
	if id == "" || (c.current != "" && CompareIDs(id, c.current) <= 0) {
		return
	}
	c.current = id
	if err := c.store.Save(ctx, id); err != nil {
		logger.ErrorCF("cursor", "Failed to persist cursor", map[string]any{
			"cursor": id,
			"error":  err.Error(),
		})
	}
}

// BuildQuery never asks for replies or retweets. Without a cursor it asks
// for the most recent page only.
func (c *Cursor) BuildQuery() Query {
	q := Query{
		ExcludeReplies:  true,
		ExcludeRetweets: true,
		MaxResults:      c.pageSize,
	}
	if id, ok := c.Current(); ok {
		q.SinceID = id
	}
	return q
}

// CompareIDs orders decimal post ids numerically without parsing them.
func CompareIDs(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

type MemoryStore struct {
	mu sync.Mutex
	id string
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Load(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, nil
}

func (s *MemoryStore) Save(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	return nil
}

// RedisStore keeps the cursor in a single Redis string key so a restart
// resumes where the last process stopped.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(ctx context.Context, redisURL, key string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisStore{client: client, key: key}, nil
}

func (s *RedisStore) Load(ctx context.Context) (string, error) {
	id, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return id, err
}

func (s *RedisStore) Save(ctx context.Context, id string) error {
	return s.client.Set(ctx, s.key, id, 0).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
