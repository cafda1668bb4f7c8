package feed

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Backend is the minimal cache surface the feed engine needs. Implementations
// are injected so tests can substitute an in-memory fake; the engine never
// reaches for a package-level client.
type Backend interface {
	// Get returns the raw value and whether the key existed.
	Get(ctx context.Context, key string) (string, bool, error)
	// SetEx stores value under key with the provided expiry.
	SetEx(ctx context.Context, key string, value string, ttl time.Duration) error
	// Scan returns one page of keys matching pattern plus the next cursor;
	// a returned cursor of zero signals completion.
	Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error)
	// Del removes the provided keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error
	// SAdd adds members to the set stored under key.
	SAdd(ctx context.Context, key string, members ...string) error
	// SMembers returns every member of the set stored under key.
	SMembers(ctx context.Context, key string) ([]string, error)
	// Expire refreshes the expiry of key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

const scanBatchSize = 100

// envelope wraps every cached payload with a schema version so that format
// changes surface as cache misses instead of silently deserializing into the
// wrong shape.
type envelope struct {
	Version int             `json:"v"`
	Payload json.RawMessage `json:"payload"`
}

// Cache is the cache-aside layer. Every operation is best-effort: backend
// failures are logged and treated as a miss on read or a no-op on write and
// invalidation, never propagated to the caller.
type Cache struct {
	backend Backend
	logger  *zap.Logger
}

// NewCache wraps backend into the fail-open cache-aside layer.
func NewCache(backend Backend, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{backend: backend, logger: logger}
}

// GetJSON loads key and decodes its payload into out. It returns true only on
// a hit whose envelope version matches the expected version.
func (c *Cache) GetJSON(ctx context.Context, key string, version int, out any) bool {
	if c == nil || c.backend == nil {
		return false
	}
	raw, found, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logWarn("cache.get", key, err)
		return false
	}
	if !found {
		return false
	}
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		c.logWarn("cache.decode", key, err)
		return false
	}
	if env.Version != version {
		c.logger.Debug("cache schema version mismatch",
			zap.String("key", key),
			zap.Int("stored", env.Version),
			zap.Int("expected", version))
		return false
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		c.logWarn("cache.decode_payload", key, err)
		return false
	}
	return true
}

// SetJSON serializes value under key with the provided TTL. Errors are
// swallowed after logging; a failed write only costs a future recompute.
func (c *Cache) SetJSON(ctx context.Context, key string, version int, value any, ttl time.Duration) {
	if c == nil || c.backend == nil {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		c.logWarn("cache.encode", key, err)
		return
	}
	raw, err := json.Marshal(envelope{Version: version, Payload: payload})
	if err != nil {
		c.logWarn("cache.encode_envelope", key, err)
		return
	}
	if err := c.backend.SetEx(ctx, key, string(raw), ttl); err != nil {
		c.logWarn("cache.set", key, err)
	}
}

// InvalidateKey deletes one exact key. Deleting a key that does not exist is
// a no-op.
func (c *Cache) InvalidateKey(ctx context.Context, key string) {
	if c == nil || c.backend == nil {
		return
	}
	if err := c.backend.Del(ctx, key); err != nil {
		c.logWarn("cache.del", key, err)
	}
}

// InvalidatePattern deletes every key matching prefix + ":*". The scan cursor
// is drained fully; the backend paginates results, so a single scan call
// would miss keys.
func (c *Cache) InvalidatePattern(ctx context.Context, prefix string) {
	if c == nil || c.backend == nil {
		return
	}
	pattern := prefix + ":*"
	var cursor uint64
	for {
		keys, next, err := c.backend.Scan(ctx, cursor, pattern, scanBatchSize)
		if err != nil {
			c.logWarn("cache.scan", pattern, err)
			return
		}
		if len(keys) > 0 {
			if err := c.backend.Del(ctx, keys...); err != nil {
				c.logWarn("cache.del", pattern, err)
				return
			}
		}
		if next == 0 {
			return
		}
		cursor = next
	}
}

// InvalidateFeed drops every cached feed page for the given user. Called by
// any mutation that changes the user's feed composition.
func (c *Cache) InvalidateFeed(ctx context.Context, userID string) {
	c.InvalidatePattern(ctx, "feed:"+feedOwner(userID))
}

// InvalidateLiked drops the cached liked-posts list for the acting user.
func (c *Cache) InvalidateLiked(ctx context.Context, userID string) {
	c.InvalidateKey(ctx, LikedKey(userID))
}

// InvalidateSaved drops the cached saved-posts list for the acting user.
func (c *Cache) InvalidateSaved(ctx context.Context, userID string) {
	c.InvalidateKey(ctx, SavedKey(userID))
}

// InvalidateProfile drops every cached profile projection for the user.
func (c *Cache) InvalidateProfile(ctx context.Context, userID string) {
	c.InvalidatePattern(ctx, "profile:"+userID)
}

// InvalidateAnalytics drops every cached admin aggregate.
func (c *Cache) InvalidateAnalytics(ctx context.Context) {
	c.InvalidatePattern(ctx, "analytics")
}

func (c *Cache) logWarn(operation, key string, err error) {
	c.logger.Warn("cache backend error",
		zap.String("operation", operation),
		zap.String("key", key),
		zap.Error(err))
}
