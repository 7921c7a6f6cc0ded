package dedup

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	apperrors "github.com/Joel-Projects/modlogd/internal/errors"
	"github.com/Joel-Projects/modlogd/internal/logger"
)

const (
	keyPrefix  = "modlog:seen:"
	rebuildKey = "modlog:cache:rebuilt_on"
	sentinel   = "1"
)

// Cache is a best-effort duplicate filter over a shared Redis instance.
// It only ever reduces downstream work: every error is swallowed and
// reported as "unseen", because the storage upsert is the true arbiter of
// novelty. A false negative costs one redundant write; a false positive
// would lose data, so the cache is never trusted to suppress real work.
type Cache struct {
	rdb *redis.Client
}

// New connects a cache client to the given Redis URL
func New(redisURL string) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Cache{rdb: client}, nil
}

// NewWithClient wraps an existing Redis client
func NewWithClient(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func (c *Cache) Close() error { return c.rdb.Close() }

// Add atomically marks id as seen and reports whether it was previously
// unseen. On cache error the id is reported unseen so the record is still
// forwarded for processing.
func (c *Cache) Add(ctx context.Context, id string) bool {
	set, err := c.rdb.SetNX(ctx, keyPrefix+id, sentinel, 0).Result()
	if err != nil {
		c.swallow("add", err)
		return true
	}
	return set
}

// Get reports whether id is marked seen; errors read as unseen
func (c *Cache) Get(ctx context.Context, id string) bool {
	err := c.rdb.Get(ctx, keyPrefix+id).Err()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		c.swallow("get", err)
		return false
	}
	return true
}

// GetMulti returns the subset of ids already marked seen. On cache error
// it returns an empty set, treating the whole batch as unseen.
func (c *Cache) GetMulti(ctx context.Context, ids []string) map[string]struct{} {
	seen := make(map[string]struct{}, len(ids))
	if len(ids) == 0 {
		return seen
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = keyPrefix + id
	}

	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		c.swallow("get_multi", err)
		return seen
	}
	for i, v := range vals {
		if v != nil {
			seen[ids[i]] = struct{}{}
		}
	}
	return seen
}

// SetMulti marks a batch of ids as seen. Failures are swallowed; the worst
// case is redundant downstream work, never lost records.
func (c *Cache) SetMulti(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	pairs := make([]interface{}, 0, len(ids)*2)
	for _, id := range ids {
		pairs = append(pairs, keyPrefix+id, sentinel)
	}
	if err := c.rdb.MSet(ctx, pairs...).Err(); err != nil {
		c.swallow("set_multi", err)
	}
}

// LastRebuildDay returns the calendar day of the last cache rebuild, empty
// if never recorded
func (c *Cache) LastRebuildDay(ctx context.Context) string {
	day, err := c.rdb.Get(ctx, rebuildKey).Result()
	if err == redis.Nil {
		return ""
	}
	if err != nil {
		c.swallow("last_rebuild", err)
		return ""
	}
	return day
}

// MarkRebuilt records the calendar day of a completed rebuild so it is not
// repeated more than once per day
func (c *Cache) MarkRebuilt(ctx context.Context, day string) {
	if err := c.rdb.Set(ctx, rebuildKey, day, 0).Err(); err != nil {
		c.swallow("mark_rebuilt", err)
	}
}

func (c *Cache) swallow(op string, err error) {
	logger.Warn("Dedup cache error treated as miss", "error", apperrors.CacheError{Op: op, Err: err})
}
