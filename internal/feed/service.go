package feed

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/wayfarer-social/wayfarer/internal/social"
	"go.uber.org/zap"
)

var (
	errMissingStore = errors.New("store is required")
	noOpLogger      = zap.NewNop()
)

// ServiceError carries a stable operation code alongside the underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew = "feed.service.new"
	opFetch      = "feed.fetch"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig describes the dependencies of the feed engine. Store is
// required; Cache and Seen are optional and their absence disables the
// corresponding behavior rather than failing.
type ServiceConfig struct {
	Store        Store
	Cache        *Cache
	Seen         *SeenTracker
	Logger       *zap.Logger
	Clock        func() time.Time
	Jitter       func() float64
	ServerOrigin string
}

// Service is the personalized feed ranking engine.
type Service struct {
	store  Store
	cache  *Cache
	seen   *SeenTracker
	logger *zap.Logger
	clock  func() time.Time
	jitter func() float64
	origin string
}

// NewService validates the configuration and constructs the engine.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, "missing_store", errMissingStore)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	jitter := cfg.Jitter
	if jitter == nil {
		jitter = func() float64 { return rand.Float64() * jitterCeiling }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		store:  cfg.Store,
		cache:  cfg.Cache,
		seen:   cfg.Seen,
		logger: logger,
		clock:  clock,
		jitter: jitter,
		origin: cfg.ServerOrigin,
	}, nil
}

// CacheLayer exposes the cache-aside layer so mutation handlers can trigger
// invalidation through the same instance that populates entries.
func (s *Service) CacheLayer() *Cache {
	return s.cache
}

// SeenTracker exposes the seen-set tracker for view-event handlers.
func (s *Service) SeenTracker() *SeenTracker {
	return s.seen
}

// Fetch is the single enrichment entry point. It checks the cache, loads the
// candidate window, joins metadata, normalizes comments, scores and
// diversifies when asked, slices the requested page and writes it back to
// the cache. Cache failures never fail the fetch; store failures do.
func (s *Service) Fetch(ctx context.Context, opts FetchOptions) (FeedPage, error) {
	opts = opts.withDefaults()

	var page FeedPage
	if opts.CacheKey != "" && s.cache.GetJSON(ctx, opts.CacheKey, feedSchemaVersion, &page) {
		return page, nil
	}

	ranked := opts.EnableScoring || opts.EnableDiversity

	query := CandidateQuery{Filter: opts.Filter, Sort: opts.Sort}
	if ranked {
		query.Limit = opts.ScoringWindow
	} else {
		query.Limit = opts.Limit
		query.Offset = (opts.Page - 1) * opts.Limit
	}

	candidates, err := s.store.Candidates(ctx, query)
	if err != nil {
		s.logError(opFetch, "candidate_query_failed", err)
		return FeedPage{}, newServiceError(opFetch, "candidate_query_failed", err)
	}

	meta := &metadata{
		liked:      map[string]struct{}{},
		saved:      map[string]struct{}{},
		following:  map[string]struct{}{},
		likeCounts: map[string]int64{},
		saveCounts: map[string]int64{},
	}
	if opts.IncludeMetadata || opts.EnableScoring {
		meta, err = joinMetadata(ctx, s.store, opts.ViewerID, candidates)
		if err != nil {
			s.logError(opFetch, "metadata_join_failed", err)
			return FeedPage{}, newServiceError(opFetch, "metadata_join_failed", err)
		}
	} else {
		// Author names and avatars are part of the projection even when
		// the viewer-specific metadata join is skipped.
		meta.users, err = lookupUsers(ctx, s.store, opts.ViewerID, candidates)
		if err != nil {
			s.logError(opFetch, "user_lookup_failed", err)
			return FeedPage{}, newServiceError(opFetch, "user_lookup_failed", err)
		}
	}

	var seenSet map[string]struct{}
	if opts.ViewerID != "" && (opts.ExcludeSeen || opts.SoftRepeat) {
		seenSet = s.seen.SeenSet(ctx, opts.ViewerID)
	}

	items := make([]EnrichedPost, 0, len(candidates))
	now := s.clock().UTC()
	for _, candidate := range candidates {
		if opts.ExcludeSeen {
			if _, viewed := seenSet[candidate.ID]; viewed {
				continue
			}
		}
		items = append(items, s.enrich(candidate, meta, opts))
	}

	if opts.EnableScoring {
		for i := range items {
			items[i].Score = s.scoreItem(items[i], meta, seenSet, now, opts.SoftRepeat)
		}
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Score > items[j].Score
		})
	}
	if opts.EnableDiversity {
		items = diversify(items)
	}

	if ranked {
		page = paginateRanked(items, opts.Page, opts.Limit)
	} else {
		total, err := s.store.CountCandidates(ctx, opts.Filter)
		if err != nil {
			s.logError(opFetch, "count_query_failed", err)
			return FeedPage{}, newServiceError(opFetch, "count_query_failed", err)
		}
		page = FeedPage{Items: items, Pagination: newPagination(opts.Page, opts.Limit, total)}
	}

	// Only a complete, successfully assembled result is written back; a
	// cancelled request must not populate the cache with a partial page.
	if opts.CacheKey != "" && ctx.Err() == nil {
		s.cache.SetJSON(ctx, opts.CacheKey, feedSchemaVersion, page, opts.CacheTTL)
	}

	return page, nil
}

// enrich projects one candidate into its display shape. Freshly aggregated
// edge counts win over the post's denormalized counters when metadata was
// joined; otherwise the stored counter is the best available signal.
func (s *Service) enrich(post social.Post, meta *metadata, opts FetchOptions) EnrichedPost {
	item := EnrichedPost{
		ID:           post.ID,
		OwnerID:      post.OwnerID,
		Title:        post.Title,
		Description:  post.Description,
		Location:     post.Location,
		Visibility:   post.Visibility,
		Activities:   post.Activities,
		Photos:       post.Photos,
		Views:        post.Views,
		CreatedAt:    post.CreatedAt,
		CommentCount: int64(len(post.Comments)),
		LikeCount:    post.Likes,
	}

	if opts.IncludeMetadata || opts.EnableScoring {
		item.LikeCount = meta.likeCounts[post.ID]
		item.SaveCount = meta.saveCounts[post.ID]
		item.IsLiked = meta.isLiked(post.ID)
		item.IsSaved = meta.isSaved(post.ID)
		item.IsFollowing = meta.isFollowing(post.OwnerID)
	}

	if owner, ok := meta.users[post.OwnerID]; ok {
		item.OwnerName = owner.DisplayName()
		item.OwnerAvatar = normalizeAvatarURL(owner.AvatarURL, s.origin)
	}
	item.Comments = normalizeComments(post.Comments, meta.users, s.origin)

	return item
}

func (s *Service) scoreItem(item EnrichedPost, meta *metadata, seenSet map[string]struct{}, now time.Time, softRepeat bool) float64 {
	inputs := ScoreInputs{
		AgeHours:     now.Sub(item.CreatedAt).Hours(),
		Views:        item.Views,
		LikeCount:    item.LikeCount,
		CommentCount: item.CommentCount,
		SaveCount:    item.SaveCount,
		SoftRepeat:   softRepeat,
		Jitter:       s.jitter(),
	}
	if _, viewed := seenSet[item.ID]; viewed {
		inputs.Seen = true
	}
	if meta.viewer != nil {
		inputs.HasViewer = true
		inputs.IsFollowed = meta.isFollowing(item.OwnerID)
		inputs.IsOwnPost = item.OwnerID == meta.viewer.ID
		inputs.SharedActivities = sharedActivityCount(item.Activities, meta.viewer.Preferences)
	}
	return Score(inputs)
}

// paginateRanked slices one page out of the ranked window. Pagination totals
// cover the ranked window, not the full corpus: pages past the scoring
// window are intentionally unreachable.
func paginateRanked(items []EnrichedPost, page, limit int) FeedPage {
	total := int64(len(items))
	start := (page - 1) * limit
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return FeedPage{
		Items:      items[start:end],
		Pagination: newPagination(page, limit, total),
	}
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("feed service error", attrs...)
}
