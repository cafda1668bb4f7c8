package feed

import (
	"time"

	"github.com/wayfarer-social/wayfarer/internal/social"
)

const (
	// DefaultScoringWindow bounds how many candidates are fetched and held
	// in memory for ranking, independent of how many posts match the filter.
	DefaultScoringWindow = 1000

	DefaultPage    = 1
	DefaultLimit   = 10
	DefaultFeedTTL = 60 * time.Second
)

// SortOrder selects the candidate sort applied at the store.
type SortOrder string

const (
	SortNewest  SortOrder = "newest"
	SortOldest  SortOrder = "oldest"
	SortPopular SortOrder = "popular"
)

// orderClause maps the sort order onto a store ORDER BY expression.
func (s SortOrder) orderClause() string {
	switch s {
	case SortOldest:
		return "created_at ASC"
	case SortPopular:
		return "likes DESC, created_at DESC"
	default:
		return "created_at DESC"
	}
}

// Filter narrows the candidate set. Zero-valued fields are ignored.
type Filter struct {
	OwnerID    string
	OwnerIn    []string
	PostIDs    []string
	Visibility social.Visibility
	Activity   string
}

// FetchOptions parameterizes one call into the feed engine. CRUD handlers
// populate it and pass it to Service.Fetch; zero values fall back to the
// documented defaults.
type FetchOptions struct {
	Filter   Filter
	ViewerID string

	Page  int
	Limit int
	Sort  SortOrder

	// ExcludeSeen removes seen posts before scoring; SoftRepeat keeps them
	// but demotes their score. Combining both is redundant: exclusion wins.
	ExcludeSeen bool
	SoftRepeat  bool

	EnableScoring   bool
	EnableDiversity bool
	ScoringWindow   int

	// CacheKey enables the cache-aside path when non-empty.
	CacheKey string
	CacheTTL time.Duration

	// IncludeMetadata joins per-viewer flags and aggregate counts.
	IncludeMetadata bool
}

// withDefaults normalizes pagination and window bounds.
func (o FetchOptions) withDefaults() FetchOptions {
	if o.Page < 1 {
		o.Page = DefaultPage
	}
	if o.Limit < 1 {
		o.Limit = DefaultLimit
	}
	if o.ScoringWindow < 1 {
		o.ScoringWindow = DefaultScoringWindow
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = DefaultFeedTTL
	}
	return o
}
