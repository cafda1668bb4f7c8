package feed

import (
	"time"

	"github.com/wayfarer-social/wayfarer/internal/social"
)

// feedSchemaVersion tags cached feed payloads; bumping it turns every stale
// cached page into a miss instead of a misshapen decode.
const feedSchemaVersion = 1

// EdgeListSchemaVersion tags the cached liked and saved post-id lists. The
// lists live under single keys so their invalidation stays a plain delete;
// pagination is applied after the list is loaded.
const EdgeListSchemaVersion = 1

// ReplyView is a display-ready comment reply.
type ReplyView struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Username    string    `json:"username"`
	AvatarURL   string    `json:"avatar_url"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}

// CommentView is a display-ready comment: raw reactions are collapsed into
// per-emoji counts and replies are flattened into ReplyViews.
type CommentView struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	DisplayName string         `json:"display_name"`
	Username    string         `json:"username"`
	AvatarURL   string         `json:"avatar_url"`
	Text        string         `json:"text"`
	CreatedAt   time.Time      `json:"created_at"`
	Reactions   map[string]int `json:"reactions,omitempty"`
	Replies     []ReplyView    `json:"replies,omitempty"`
}

// EnrichedPost is one candidate after metadata joining, normalization and
// scoring. It is the unit cached and returned to callers.
type EnrichedPost struct {
	ID          string            `json:"id"`
	OwnerID     string            `json:"owner_id"`
	OwnerName   string            `json:"owner_name"`
	OwnerAvatar string            `json:"owner_avatar"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Location    string            `json:"location"`
	Visibility  social.Visibility `json:"visibility"`
	Activities  []string          `json:"activities,omitempty"`
	Photos      []string          `json:"photos,omitempty"`
	Views       int64             `json:"views"`
	CreatedAt   time.Time         `json:"created_at"`

	Comments     []CommentView `json:"comments,omitempty"`
	CommentCount int64         `json:"comment_count"`

	LikeCount   int64   `json:"like_count"`
	SaveCount   int64   `json:"save_count"`
	IsLiked     bool    `json:"is_liked"`
	IsSaved     bool    `json:"is_saved"`
	IsFollowing bool    `json:"is_following"`
	Score       float64 `json:"score,omitempty"`
}

// Pagination describes the slice a FeedPage covers.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasMore    bool  `json:"has_more"`
}

// FeedPage is the feed engine's result: one page of enriched posts plus the
// pagination envelope.
type FeedPage struct {
	Items      []EnrichedPost `json:"items"`
	Pagination Pagination     `json:"pagination"`
}

func newPagination(page, limit int, total int64) Pagination {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasMore:    page < totalPages,
	}
}
