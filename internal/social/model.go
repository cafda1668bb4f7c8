package social

import (
	"strings"
	"time"
)

// Visibility controls who can see a trip post.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// User is a platform account. Preferences accumulate the activity tags of
// every post the user has liked or saved and feed into relevance scoring.
type User struct {
	ID          string    `gorm:"column:id;primaryKey;size:190;not null"`
	FirstName   string    `gorm:"column:first_name;size:190"`
	LastName    string    `gorm:"column:last_name;size:190"`
	Email       string    `gorm:"column:email;size:320"`
	AvatarURL   string    `gorm:"column:avatar_url;size:512"`
	IsAdmin     bool      `gorm:"column:is_admin;default:false"`
	Preferences []string  `gorm:"column:preferences;serializer:json"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing user accounts.
func (User) TableName() string {
	return "users"
}

// DisplayName joins the user's first and last name for presentation.
func (u User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Reaction is a single emoji reaction left on a comment. Reactions are not
// deduplicated at write time; display-side aggregation collapses them.
type Reaction struct {
	Emoji     string    `json:"emoji"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Reply is a threaded response to a comment.
type Reply struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is stored nested on its post, ordered by creation time.
type Comment struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Text      string     `json:"text"`
	CreatedAt time.Time  `json:"created_at"`
	Reactions []Reaction `json:"reactions,omitempty"`
	Replies   []Reply    `json:"replies,omitempty"`
}

// Post is a shared trip. Comments, activities and photos live on the post
// row as JSON documents; Likes and Views are denormalized counters that the
// ranking engine treats as hints, preferring freshly aggregated edge counts.
type Post struct {
	ID          string     `gorm:"column:id;primaryKey;size:190;not null"`
	OwnerID     string     `gorm:"column:owner_id;size:190;not null;index"`
	Title       string     `gorm:"column:title;size:320"`
	Description string     `gorm:"column:description;type:text"`
	Location    string     `gorm:"column:location;size:320"`
	Visibility  Visibility `gorm:"column:visibility;size:16;not null;default:public;index"`
	Activities  []string   `gorm:"column:activities;serializer:json"`
	Photos      []string   `gorm:"column:photos;serializer:json"`
	Comments    []Comment  `gorm:"column:comments;serializer:json"`
	Likes       int64      `gorm:"column:likes;not null;default:0"`
	Views       int64      `gorm:"column:views;not null;default:0"`
	CreatedAt   time.Time  `gorm:"column:created_at;index"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing trip posts.
func (Post) TableName() string {
	return "posts"
}

// Like is a (user, post) edge. The composite primary key enforces that a
// user likes a given post at most once; the store rejects duplicates.
type Like struct {
	UserID    string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	PostID    string    `gorm:"column:post_id;primaryKey;size:190;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName exposes the table backing like edges.
func (Like) TableName() string {
	return "post_likes"
}

// Save is a (user, post) bookmark edge with the same uniqueness contract as Like.
type Save struct {
	UserID    string    `gorm:"column:user_id;primaryKey;size:190;not null"`
	PostID    string    `gorm:"column:post_id;primaryKey;size:190;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName exposes the table backing save edges.
func (Save) TableName() string {
	return "post_saves"
}

// Follow is a (follower, followee) edge, unique per pair.
type Follow struct {
	FollowerID string    `gorm:"column:follower_id;primaryKey;size:190;not null"`
	FolloweeID string    `gorm:"column:followee_id;primaryKey;size:190;not null;index"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName exposes the table backing follow edges.
func (Follow) TableName() string {
	return "user_follows"
}

// mergeTags returns base plus any tags not already present, preserving order.
func mergeTags(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base))
	merged := make([]string, 0, len(base)+len(extra))
	for _, tag := range base {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		merged = append(merged, trimmed)
	}
	for _, tag := range extra {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		merged = append(merged, trimmed)
	}
	return merged
}
