package social

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrCommentNotFound indicates the referenced comment does not exist on the post.
	ErrCommentNotFound = errors.New("social: comment not found")
	// ErrEmptyText rejects blank comment or reply bodies.
	ErrEmptyText = errors.New("social: text is required")
	// ErrNotCommentOwner rejects a delete by someone who is neither the
	// comment author nor the post owner.
	ErrNotCommentOwner = errors.New("social: not allowed to delete comment")
)

const (
	opAddComment    = "social.add_comment"
	opAddReply      = "social.add_reply"
	opAddReaction   = "social.add_reaction"
	opDeleteComment = "social.delete_comment"
)

// AddComment appends a comment to the post's nested comment list and
// invalidates the feeds of both the commenter and the post owner.
func (s *Service) AddComment(ctx context.Context, userID, postID, text string) (Comment, error) {
	if strings.TrimSpace(text) == "" {
		return Comment{}, ErrEmptyText
	}
	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opAddComment, "id_generation_failed", err)
		return Comment{}, newServiceError(opAddComment, "id_generation_failed", err)
	}
	comment := Comment{
		ID:        id,
		UserID:    userID,
		Text:      strings.TrimSpace(text),
		CreatedAt: s.clock().UTC(),
	}

	var ownerID string
	err = s.mutateComments(ctx, opAddComment, postID, func(post *Post) error {
		post.Comments = append(post.Comments, comment)
		ownerID = post.OwnerID
		return nil
	})
	if err != nil {
		return Comment{}, err
	}

	s.invalidator.InvalidateFeed(ctx, userID)
	if ownerID != userID {
		s.invalidator.InvalidateFeed(ctx, ownerID)
	}
	return comment, nil
}

// AddReply appends a reply under the identified comment.
func (s *Service) AddReply(ctx context.Context, userID, postID, commentID, text string) (Reply, error) {
	if strings.TrimSpace(text) == "" {
		return Reply{}, ErrEmptyText
	}
	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opAddReply, "id_generation_failed", err)
		return Reply{}, newServiceError(opAddReply, "id_generation_failed", err)
	}
	reply := Reply{
		ID:        id,
		UserID:    userID,
		Text:      strings.TrimSpace(text),
		CreatedAt: s.clock().UTC(),
	}

	var ownerID string
	err = s.mutateComments(ctx, opAddReply, postID, func(post *Post) error {
		idx := commentIndex(post.Comments, commentID)
		if idx < 0 {
			return ErrCommentNotFound
		}
		post.Comments[idx].Replies = append(post.Comments[idx].Replies, reply)
		ownerID = post.OwnerID
		return nil
	})
	if err != nil {
		return Reply{}, err
	}

	s.invalidator.InvalidateFeed(ctx, userID)
	if ownerID != userID {
		s.invalidator.InvalidateFeed(ctx, ownerID)
	}
	return reply, nil
}

// AddReaction appends an emoji reaction to the identified comment. Reactions
// are stored raw and not deduplicated; display-side aggregation collapses
// repeats into counts.
func (s *Service) AddReaction(ctx context.Context, userID, postID, commentID, emoji string) error {
	if strings.TrimSpace(emoji) == "" {
		return ErrEmptyText
	}
	reaction := Reaction{
		Emoji:     emoji,
		UserID:    userID,
		CreatedAt: s.clock().UTC(),
	}
	var ownerID string
	err := s.mutateComments(ctx, opAddReaction, postID, func(post *Post) error {
		idx := commentIndex(post.Comments, commentID)
		if idx < 0 {
			return ErrCommentNotFound
		}
		post.Comments[idx].Reactions = append(post.Comments[idx].Reactions, reaction)
		ownerID = post.OwnerID
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidator.InvalidateFeed(ctx, userID)
	if ownerID != userID {
		s.invalidator.InvalidateFeed(ctx, ownerID)
	}
	return nil
}

// DeleteComment removes a comment. Only the comment author or the post owner
// may delete; both their feeds are invalidated afterwards.
func (s *Service) DeleteComment(ctx context.Context, userID, postID, commentID string) error {
	var ownerID, authorID string
	err := s.mutateComments(ctx, opDeleteComment, postID, func(post *Post) error {
		idx := commentIndex(post.Comments, commentID)
		if idx < 0 {
			return ErrCommentNotFound
		}
		authorID = post.Comments[idx].UserID
		if userID != authorID && userID != post.OwnerID {
			return ErrNotCommentOwner
		}
		post.Comments = append(post.Comments[:idx], post.Comments[idx+1:]...)
		ownerID = post.OwnerID
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidator.InvalidateFeed(ctx, userID)
	if ownerID != userID {
		s.invalidator.InvalidateFeed(ctx, ownerID)
	}
	return nil
}

// mutateComments loads the post, applies mutate to its comment document and
// persists the result inside one transaction. Sentinel errors from mutate
// pass through unchanged so callers can distinguish them.
func (s *Service) mutateComments(ctx context.Context, operation, postID string, mutate func(*Post) error) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post Post
		err := tx.Where("id = ?", postID).Take(&post).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPostNotFound
		}
		if err != nil {
			s.logError(operation, "post_select_failed", err, zap.String("post_id", postID))
			return newServiceError(operation, "post_select_failed", err)
		}
		if err := mutate(&post); err != nil {
			return err
		}
		// UpdateColumn bypasses the field serializer, so the comment
		// document has to be marshaled before it reaches the driver.
		payload, err := json.Marshal(post.Comments)
		if err != nil {
			s.logError(operation, "comments_encode_failed", err, zap.String("post_id", postID))
			return newServiceError(operation, "comments_encode_failed", err)
		}
		if err := tx.Model(&Post{}).Where("id = ?", postID).
			UpdateColumn("comments", string(payload)).Error; err != nil {
			s.logError(operation, "comments_update_failed", err, zap.String("post_id", postID))
			return newServiceError(operation, "comments_update_failed", err)
		}
		return nil
	})
	return txErr
}

func commentIndex(comments []Comment, commentID string) int {
	for i := range comments {
		if comments[i].ID == commentID {
			return i
		}
	}
	return -1
}
