package social

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

type staticIDProvider struct {
	ids   []string
	index int
}

func (p *staticIDProvider) NewID() (string, error) {
	if p.index >= len(p.ids) {
		return "", errors.New("exhausted ids")
	}
	id := p.ids[p.index]
	p.index++
	return id, nil
}

// recordingInvalidator captures every invalidation the service triggers so
// tests can assert which cache families a mutation touched.
type recordingInvalidator struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingInvalidator) record(kind, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, kind+":"+userID)
}

func (r *recordingInvalidator) InvalidateFeed(_ context.Context, userID string) {
	r.record("feed", userID)
}

func (r *recordingInvalidator) InvalidateLiked(_ context.Context, userID string) {
	r.record("liked", userID)
}

func (r *recordingInvalidator) InvalidateSaved(_ context.Context, userID string) {
	r.record("saved", userID)
}

func (r *recordingInvalidator) InvalidateProfile(_ context.Context, userID string) {
	r.record("profile", userID)
}

func (r *recordingInvalidator) has(call string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, recorded := range r.calls {
		if recorded == call {
			return true
		}
	}
	return false
}

type fakeSeenMarker struct {
	marked []string
	fail   error
}

func (f *fakeSeenMarker) MarkSeen(_ context.Context, viewerID, postID string) error {
	if f.fail != nil {
		return f.fail
	}
	f.marked = append(f.marked, viewerID+":"+postID)
	return nil
}

func newTestService(t *testing.T, ids []string) (*Service, *gorm.DB, *recordingInvalidator, *fakeSeenMarker) {
	t.Helper()

	dsn := fmt.Sprintf("file:wayfarer_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&User{}, &Post{}, &Like{}, &Save{}, &Follow{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	invalidator := &recordingInvalidator{}
	seen := &fakeSeenMarker{}
	service, err := NewService(ServiceConfig{
		Database:    db,
		Clock:       func() time.Time { return fixedNow },
		IDProvider:  &staticIDProvider{ids: ids},
		Invalidator: invalidator,
		Seen:        seen,
	})
	if err != nil {
		t.Fatalf("failed to construct social service: %v", err)
	}
	return service, db, invalidator, seen
}

func mustCreateUser(t *testing.T, db *gorm.DB, user User) User {
	t.Helper()
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user %s: %v", user.ID, err)
	}
	return user
}

func mustCreatePost(t *testing.T, db *gorm.DB, post Post) Post {
	t.Helper()
	if post.Visibility == "" {
		post.Visibility = VisibilityPublic
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = fixedNow
	}
	if err := db.Create(&post).Error; err != nil {
		t.Fatalf("failed to seed post %s: %v", post.ID, err)
	}
	return post
}

func mustLoadPost(t *testing.T, db *gorm.DB, postID string) Post {
	t.Helper()
	var post Post
	if err := db.Where("id = ?", postID).Take(&post).Error; err != nil {
		t.Fatalf("failed to load post %s: %v", postID, err)
	}
	return post
}

func mustLoadUser(t *testing.T, db *gorm.DB, userID string) User {
	t.Helper()
	var user User
	if err := db.Where("id = ?", userID).Take(&user).Error; err != nil {
		t.Fatalf("failed to load user %s: %v", userID, err)
	}
	return user
}
