package social

import (
	"context"
	"time"
)

const (
	opAnalytics = "social.analytics"

	analyticsOverviewKey    = "analytics:overview"
	analyticsSchemaVersion  = 1
	analyticsDefaultTTL     = 300 * time.Second
	analyticsTrailingWindow = 7 * 24 * time.Hour
)

// AggregateCache is the slice of the cache-aside layer analytics reads
// through. Implementations are fail-open: a miss or backend outage simply
// recomputes from the store.
type AggregateCache interface {
	GetJSON(ctx context.Context, key string, version int, out any) bool
	SetJSON(ctx context.Context, key string, version int, value any, ttl time.Duration)
}

// DailyCount is one day's post volume.
type DailyCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// Analytics is the admin overview aggregate.
type Analytics struct {
	TotalUsers   int64        `json:"total_users"`
	TotalPosts   int64        `json:"total_posts"`
	TotalLikes   int64        `json:"total_likes"`
	TotalSaves   int64        `json:"total_saves"`
	TotalFollows int64        `json:"total_follows"`
	PostsByDay   []DailyCount `json:"posts_by_day"`
	GeneratedAt  time.Time    `json:"generated_at"`
}

// Analytics computes the admin overview, reading through the analytics cache
// family. Aggregates tolerate 300 seconds of staleness; the TTL is the only
// freshness mechanism, no mutation invalidates this family.
func (s *Service) Analytics(ctx context.Context, cache AggregateCache, ttl time.Duration) (Analytics, error) {
	if ttl <= 0 {
		ttl = analyticsDefaultTTL
	}

	var cached Analytics
	if cache != nil && cache.GetJSON(ctx, analyticsOverviewKey, analyticsSchemaVersion, &cached) {
		return cached, nil
	}

	result := Analytics{GeneratedAt: s.clock().UTC()}

	counts := []struct {
		model any
		dest  *int64
	}{
		{&User{}, &result.TotalUsers},
		{&Post{}, &result.TotalPosts},
		{&Like{}, &result.TotalLikes},
		{&Save{}, &result.TotalSaves},
		{&Follow{}, &result.TotalFollows},
	}
	for _, c := range counts {
		if err := s.db.WithContext(ctx).Model(c.model).Count(c.dest).Error; err != nil {
			s.logError(opAnalytics, "count_failed", err)
			return Analytics{}, newServiceError(opAnalytics, "count_failed", err)
		}
	}

	since := result.GeneratedAt.Add(-analyticsTrailingWindow)
	var rows []DailyCount
	err := s.db.WithContext(ctx).Model(&Post{}).
		Select("DATE(created_at) AS day, COUNT(*) AS count").
		Where("created_at >= ?", since).
		Group("DATE(created_at)").
		Order("day ASC").
		Scan(&rows).Error
	if err != nil {
		s.logError(opAnalytics, "daily_count_failed", err)
		return Analytics{}, newServiceError(opAnalytics, "daily_count_failed", err)
	}
	result.PostsByDay = rows

	if cache != nil {
		cache.SetJSON(ctx, analyticsOverviewKey, analyticsSchemaVersion, result, ttl)
	}
	return result, nil
}
