package feed

import (
	"testing"
	"time"

	"github.com/wayfarer-social/wayfarer/internal/social"
)

const testOrigin = "https://api.wayfarer.example"

func testUsers() map[string]social.User {
	return map[string]social.User{
		"user-1": {ID: "user-1", FirstName: "Ada", LastName: "Lovelace", AvatarURL: "uploads/ada.png"},
		"user-2": {ID: "user-2", FirstName: " Grace  Marie ", LastName: "Hopper", AvatarURL: "https://cdn.example/grace.png"},
		"user-3": {ID: "user-3", FirstName: "", LastName: ""},
	}
}

func TestNormalizeCommentsAggregatesReactions(t *testing.T) {
	comments := []social.Comment{
		{
			ID:     "c1",
			UserID: "user-1",
			Text:   "what a view",
			Reactions: []social.Reaction{
				{Emoji: "🔥", UserID: "user-2"},
				{Emoji: "🔥", UserID: "user-3"},
				{Emoji: "😍", UserID: "user-2"},
			},
		},
	}
	views := normalizeComments(comments, testUsers(), testOrigin)
	if len(views) != 1 {
		t.Fatalf("expected one comment view, got %d", len(views))
	}
	if views[0].Reactions["🔥"] != 2 {
		t.Fatalf("expected two fire reactions, got %d", views[0].Reactions["🔥"])
	}
	if views[0].Reactions["😍"] != 1 {
		t.Fatalf("expected one heart-eyes reaction, got %d", views[0].Reactions["😍"])
	}
	if len(comments[0].Reactions) != 3 {
		t.Fatalf("normalization must not mutate the stored reaction list")
	}
}

func TestNormalizeCommentsFlattensReplies(t *testing.T) {
	createdAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	comments := []social.Comment{
		{
			ID:     "c1",
			UserID: "user-1",
			Replies: []social.Reply{
				{ID: "r1", UserID: "user-2", Text: "agreed", CreatedAt: createdAt},
			},
		},
	}
	views := normalizeComments(comments, testUsers(), testOrigin)
	if len(views[0].Replies) != 1 {
		t.Fatalf("expected one reply, got %d", len(views[0].Replies))
	}
	reply := views[0].Replies[0]
	if reply.DisplayName != "Grace  Marie  Hopper" {
		t.Fatalf("unexpected reply display name: %q", reply.DisplayName)
	}
	if reply.Username != "gracemarie" {
		t.Fatalf("expected whitespace-stripped lowercase username, got %q", reply.Username)
	}
	if !reply.CreatedAt.Equal(createdAt) {
		t.Fatalf("reply timestamp should carry through")
	}
}

func TestNormalizeCommentsUsernameFallsBackToID(t *testing.T) {
	comments := []social.Comment{{ID: "c1", UserID: "user-3"}}
	views := normalizeComments(comments, testUsers(), testOrigin)
	if views[0].Username != "user-3" {
		t.Fatalf("empty first name should fall back to user id, got %q", views[0].Username)
	}
}

func TestNormalizeCommentsUnknownAuthor(t *testing.T) {
	comments := []social.Comment{{ID: "c1", UserID: "ghost"}}
	views := normalizeComments(comments, testUsers(), testOrigin)
	if views[0].DisplayName != "ghost" || views[0].Username != "ghost" {
		t.Fatalf("dangling author reference should fall back to the id")
	}
}

func TestNormalizeAvatarURL(t *testing.T) {
	tests := []struct {
		name   string
		avatar string
		want   string
	}{
		{name: "absolute https", avatar: "https://cdn.example/a.png", want: "https://cdn.example/a.png"},
		{name: "absolute http", avatar: "http://cdn.example/a.png", want: "http://cdn.example/a.png"},
		{name: "relative with slash", avatar: "/uploads/a.png", want: testOrigin + "/uploads/a.png"},
		{name: "relative bare", avatar: "uploads/a.png", want: testOrigin + "/uploads/a.png"},
		{name: "empty", avatar: "", want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizeAvatarURL(tc.avatar, testOrigin); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
