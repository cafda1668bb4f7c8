package feed

import (
	"strings"

	"github.com/wayfarer-social/wayfarer/internal/social"
)

// normalizeComments projects a post's nested comment tree into display-ready
// views: raw reaction lists collapse into per-emoji counts and replies
// flatten into ReplyViews, each carrying the author's denormalized display
// fields. The stored representation is never mutated.
func normalizeComments(comments []social.Comment, users map[string]social.User, origin string) []CommentView {
	if len(comments) == 0 {
		return nil
	}
	views := make([]CommentView, 0, len(comments))
	for _, comment := range comments {
		view := CommentView{
			ID:        comment.ID,
			UserID:    comment.UserID,
			Text:      comment.Text,
			CreatedAt: comment.CreatedAt,
		}
		view.DisplayName, view.Username, view.AvatarURL = authorDisplay(comment.UserID, users, origin)

		if len(comment.Reactions) > 0 {
			view.Reactions = make(map[string]int, len(comment.Reactions))
			for _, reaction := range comment.Reactions {
				view.Reactions[reaction.Emoji]++
			}
		}

		if len(comment.Replies) > 0 {
			view.Replies = make([]ReplyView, 0, len(comment.Replies))
			for _, reply := range comment.Replies {
				replyView := ReplyView{
					ID:        reply.ID,
					UserID:    reply.UserID,
					Text:      reply.Text,
					CreatedAt: reply.CreatedAt,
				}
				replyView.DisplayName, replyView.Username, replyView.AvatarURL = authorDisplay(reply.UserID, users, origin)
				view.Replies = append(view.Replies, replyView)
			}
		}

		views = append(views, view)
	}
	return views
}

// authorDisplay resolves the denormalized display name, derived username and
// normalized avatar URL for a user id. Unknown users fall back to the id so
// projection never fails on a dangling reference.
func authorDisplay(userID string, users map[string]social.User, origin string) (displayName, username, avatarURL string) {
	user, ok := users[userID]
	if !ok {
		return userID, userID, ""
	}
	return user.DisplayName(), deriveUsername(user), normalizeAvatarURL(user.AvatarURL, origin)
}

// deriveUsername lowercases and strips whitespace from the first name,
// falling back to the user id when that leaves nothing.
func deriveUsername(user social.User) string {
	username := strings.ToLower(strings.Join(strings.Fields(user.FirstName), ""))
	if username == "" {
		return user.ID
	}
	return username
}

// normalizeAvatarURL passes absolute URLs through and prefixes relative
// paths with the configured server origin.
func normalizeAvatarURL(avatar, origin string) string {
	if avatar == "" {
		return ""
	}
	if strings.HasPrefix(avatar, "http://") || strings.HasPrefix(avatar, "https://") {
		return avatar
	}
	if !strings.HasPrefix(avatar, "/") {
		avatar = "/" + avatar
	}
	return strings.TrimSuffix(origin, "/") + avatar
}
