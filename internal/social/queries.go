package social

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

const (
	opListLiked = "social.list_liked"
	opListSaved = "social.list_saved"
	opIsAdmin   = "social.is_admin"
)

// ListLikedPostIDs returns the ids of every post the user has liked, newest
// edge first.
func (s *Service) ListLikedPostIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&Like{}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Pluck("post_id", &ids).Error
	if err != nil {
		s.logError(opListLiked, "query_failed", err)
		return nil, newServiceError(opListLiked, "query_failed", err)
	}
	return ids, nil
}

// ListSavedPostIDs returns the ids of every post the user has saved, newest
// edge first.
func (s *Service) ListSavedPostIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&Save{}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Pluck("post_id", &ids).Error
	if err != nil {
		s.logError(opListSaved, "query_failed", err)
		return nil, newServiceError(opListSaved, "query_failed", err)
	}
	return ids, nil
}

// IsAdmin reports whether the user holds the admin flag.
func (s *Service) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var user User
	err := s.db.WithContext(ctx).Select("is_admin").Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		s.logError(opIsAdmin, "query_failed", err)
		return false, newServiceError(opIsAdmin, "query_failed", err)
	}
	return user.IsAdmin, nil
}
