package social

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestAddCommentPersistsAndInvalidatesBothFeeds(t *testing.T) {
	service, db, invalidator, _ := newTestService(t, []string{"comment-1"})
	mustCreatePost(t, db, Post{ID: "post-1", OwnerID: "bob"})

	comment, err := service.AddComment(context.Background(), "alice", "post-1", "  what a view  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if comment.ID != "comment-1" || comment.Text != "what a view" {
		t.Fatalf("unexpected comment: %+v", comment)
	}
	if !comment.CreatedAt.Equal(fixedNow) {
		t.Fatalf("expected clock timestamp, got %s", comment.CreatedAt)
	}

	stored := mustLoadPost(t, db, "post-1")
	if len(stored.Comments) != 1 || stored.Comments[0].ID != "comment-1" {
		t.Fatalf("expected nested comment persisted, got %+v", stored.Comments)
	}
	if !invalidator.has("feed:alice") || !invalidator.has("feed:bob") {
		t.Fatalf("commenter and post owner feeds must both invalidate: %v", invalidator.calls)
	}
}

func TestCommentDocumentStoredAsJSON(t *testing.T) {
	service, db, _, _ := newTestService(t, []string{"comment-1"})
	mustCreatePost(t, db, Post{ID: "post-1", OwnerID: "bob"})

	if _, err := service.AddComment(context.Background(), "alice", "post-1", "what a view"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var raw string
	if err := db.Raw("SELECT comments FROM posts WHERE id = ?", "post-1").Scan(&raw).Error; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded []Comment
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatalf("comments column must hold a JSON document, got %q: %v", raw, err)
	}
	if len(decoded) != 1 || decoded[0].Text != "what a view" {
		t.Fatalf("unexpected stored document: %+v", decoded)
	}
}

func TestAddCommentRejectsBlankText(t *testing.T) {
	service, db, _, _ := newTestService(t, []string{"comment-1"})
	mustCreatePost(t, db, Post{ID: "post-1", OwnerID: "bob"})

	if _, err := service.AddComment(context.Background(), "alice", "post-1", "   "); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
}

func TestAddCommentMissingPost(t *testing.T) {
	service, _, _, _ := newTestService(t, []string{"comment-1"})
	if _, err := service.AddComment(context.Background(), "alice", "absent", "hi"); !errors.Is(err, ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
}

func TestAddReplyNestsUnderComment(t *testing.T) {
	service, db, _, _ := newTestService(t, []string{"comment-1", "reply-1"})
	mustCreatePost(t, db, Post{ID: "post-1", OwnerID: "bob"})

	if _, err := service.AddComment(context.Background(), "alice", "post-1", "base camp?"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reply, err := service.AddReply(context.Background(), "bob", "post-1", "comment-1", "second hut")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.ID != "reply-1" {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	stored := mustLoadPost(t, db, "post-1")
	if len(stored.Comments[0].Replies) != 1 || stored.Comments[0].Replies[0].Text != "second hut" {
		t.Fatalf("expected nested reply, got %+v", stored.Comments[0].Replies)
	}
}

func TestAddReplyMissingComment(t *testing.T) {
	service, db, _, _ := newTestService(t, []string{"reply-1"})
	mustCreatePost(t, db, Post{ID: "post-1", OwnerID: "bob"})

	if _, err := service.AddReply(context.Background(), "alice", "post-1", "absent", "hi"); !errors.Is(err, ErrCommentNotFound) {
		t.Fatalf("expected ErrCommentNotFound, got %v", err)
	}
}

func TestAddReactionKeepsRepeats(t *testing.T) {
	service, db, _, _ := newTestService(t, []string{"comment-1"})
	mustCreatePost(t, db, Post{ID: "post-1", OwnerID: "bob"})

	if _, err := service.AddComment(context.Background(), "alice", "post-1", "wow"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := service.AddReaction(context.Background(), "bob", "post-1", "comment-1", "🔥"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	stored := mustLoadPost(t, db, "post-1")
	if len(stored.Comments[0].Reactions) != 2 {
		t.Fatalf("reactions are stored raw, expected two, got %d", len(stored.Comments[0].Reactions))
	}
}

func TestDeleteCommentByAuthor(t *testing.T) {
	service, db, _, _ := newTestService(t, []string{"comment-1"})
	mustCreatePost(t, db, Post{ID: "post-1", OwnerID: "bob"})

	if _, err := service.AddComment(context.Background(), "alice", "post-1", "oops"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := service.DeleteComment(context.Background(), "alice", "post-1", "comment-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mustLoadPost(t, db, "post-1").Comments) != 0 {
		t.Fatalf("expected comment removed")
	}
}

func TestDeleteCommentByPostOwner(t *testing.T) {
	service, db, _, _ := newTestService(t, []string{"comment-1"})
	mustCreatePost(t, db, Post{ID: "post-1", OwnerID: "bob"})

	if _, err := service.AddComment(context.Background(), "alice", "post-1", "spam"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := service.DeleteComment(context.Background(), "bob", "post-1", "comment-1"); err != nil {
		t.Fatalf("post owner must be able to moderate: %v", err)
	}
}

func TestDeleteCommentByStrangerRejected(t *testing.T) {
	service, db, _, _ := newTestService(t, []string{"comment-1"})
	mustCreatePost(t, db, Post{ID: "post-1", OwnerID: "bob"})

	if _, err := service.AddComment(context.Background(), "alice", "post-1", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := service.DeleteComment(context.Background(), "mallory", "post-1", "comment-1"); !errors.Is(err, ErrNotCommentOwner) {
		t.Fatalf("expected ErrNotCommentOwner, got %v", err)
	}
	if len(mustLoadPost(t, db, "post-1").Comments) != 1 {
		t.Fatalf("rejected delete must leave the comment in place")
	}
}

func TestDeleteCommentMissing(t *testing.T) {
	service, db, _, _ := newTestService(t, nil)
	mustCreatePost(t, db, Post{ID: "post-1", OwnerID: "bob"})

	if err := service.DeleteComment(context.Background(), "bob", "post-1", "absent"); !errors.Is(err, ErrCommentNotFound) {
		t.Fatalf("expected ErrCommentNotFound, got %v", err)
	}
}
