package social

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

// memoryAggregateCache is an in-process AggregateCache for tests. TTLs are
// recorded but not enforced.
type memoryAggregateCache struct {
	entries map[string][]byte
	ttls    map[string]time.Duration
	hits    int
}

func newMemoryAggregateCache() *memoryAggregateCache {
	return &memoryAggregateCache{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *memoryAggregateCache) GetJSON(_ context.Context, key string, _ int, out any) bool {
	raw, ok := c.entries[key]
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false
	}
	c.hits++
	return true
}

func (c *memoryAggregateCache) SetJSON(_ context.Context, key string, _ int, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.entries[key] = raw
	c.ttls[key] = ttl
}

func TestAnalyticsCountsAndDailyBuckets(t *testing.T) {
	service, db, _, _ := newTestService(t, nil)
	mustCreateUser(t, db, User{ID: "alice"})
	mustCreateUser(t, db, User{ID: "bob"})
	mustCreatePost(t, db, Post{ID: "post-1", OwnerID: "alice", CreatedAt: fixedNow.Add(-2 * time.Hour)})
	mustCreatePost(t, db, Post{ID: "post-2", OwnerID: "alice", CreatedAt: fixedNow.Add(-26 * time.Hour)})
	mustCreatePost(t, db, Post{ID: "post-3", OwnerID: "bob", CreatedAt: fixedNow.Add(-30 * 24 * time.Hour)})
	if err := db.Create(&Like{UserID: "bob", PostID: "post-1"}).Error; err != nil {
		t.Fatalf("failed to seed like: %v", err)
	}
	if err := db.Create(&Follow{FollowerID: "bob", FolloweeID: "alice"}).Error; err != nil {
		t.Fatalf("failed to seed follow: %v", err)
	}

	result, err := service.Analytics(context.Background(), nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalUsers != 2 || result.TotalPosts != 3 || result.TotalLikes != 1 || result.TotalFollows != 1 {
		t.Fatalf("unexpected totals: %+v", result)
	}
	if result.TotalSaves != 0 {
		t.Fatalf("expected zero saves, got %d", result.TotalSaves)
	}
	// Only posts inside the trailing week bucket; the month-old one drops.
	var bucketed int64
	for _, day := range result.PostsByDay {
		bucketed += day.Count
	}
	if bucketed != 2 {
		t.Fatalf("expected two posts in the trailing window, got %+v", result.PostsByDay)
	}
	if !result.GeneratedAt.Equal(fixedNow) {
		t.Fatalf("expected clock timestamp, got %s", result.GeneratedAt)
	}
}

func TestAnalyticsReadsThroughCache(t *testing.T) {
	service, db, _, _ := newTestService(t, nil)
	mustCreateUser(t, db, User{ID: "alice"})
	cache := newMemoryAggregateCache()

	first, err := service.Analytics(context.Background(), cache, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.ttls["analytics:overview"] != 300*time.Second {
		t.Fatalf("expected default TTL on the cached aggregate, got %v", cache.ttls)
	}

	// New data after the write is invisible until the TTL lapses.
	mustCreateUser(t, db, User{ID: "bob"})
	second, err := service.Analytics(context.Background(), cache, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.hits != 1 {
		t.Fatalf("expected the second read to hit the cache")
	}
	if second.TotalUsers != first.TotalUsers {
		t.Fatalf("cached aggregate must not reflect newer rows: %+v", second)
	}
}
