package feed

import (
	"context"

	"github.com/wayfarer-social/wayfarer/internal/social"
	"gorm.io/gorm"
)

// CandidateQuery is one windowed or paged fetch against the post store.
type CandidateQuery struct {
	Filter Filter
	Sort   SortOrder
	Limit  int
	Offset int
}

// Store is the read surface the feed engine consumes. The production
// implementation wraps the document store; tests substitute counting fakes
// to assert the batched-lookup contract.
type Store interface {
	Candidates(ctx context.Context, query CandidateQuery) ([]social.Post, error)
	CountCandidates(ctx context.Context, filter Filter) (int64, error)

	// Batched per-viewer existence lookups across all candidate ids.
	LikedPostIDs(ctx context.Context, userID string, postIDs []string) ([]string, error)
	SavedPostIDs(ctx context.Context, userID string, postIDs []string) ([]string, error)

	// Batched aggregate counts grouped by post id.
	LikeCounts(ctx context.Context, postIDs []string) (map[string]int64, error)
	SaveCounts(ctx context.Context, postIDs []string) (map[string]int64, error)

	// FollowedIDs filters candidateIDs down to the users followerID follows.
	FollowedIDs(ctx context.Context, followerID string, candidateIDs []string) ([]string, error)

	UsersByID(ctx context.Context, ids []string) (map[string]social.User, error)
}

type gormStore struct {
	db *gorm.DB
}

// NewStore builds the production Store over the shared database handle.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Candidates(ctx context.Context, query CandidateQuery) ([]social.Post, error) {
	var posts []social.Post
	tx := applyFilter(s.db.WithContext(ctx), query.Filter).
		Order(query.Sort.orderClause()).
		Limit(query.Limit).
		Offset(query.Offset)
	if err := tx.Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *gormStore) CountCandidates(ctx context.Context, filter Filter) (int64, error) {
	var total int64
	err := applyFilter(s.db.WithContext(ctx).Model(&social.Post{}), filter).
		Count(&total).Error
	return total, err
}

func (s *gormStore) LikedPostIDs(ctx context.Context, userID string, postIDs []string) ([]string, error) {
	if userID == "" || len(postIDs) == 0 {
		return nil, nil
	}
	var ids []string
	err := s.db.WithContext(ctx).Model(&social.Like{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &ids).Error
	return ids, err
}

func (s *gormStore) SavedPostIDs(ctx context.Context, userID string, postIDs []string) ([]string, error) {
	if userID == "" || len(postIDs) == 0 {
		return nil, nil
	}
	var ids []string
	err := s.db.WithContext(ctx).Model(&social.Save{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &ids).Error
	return ids, err
}

type edgeCountRow struct {
	PostID string
	Total  int64
}

func (s *gormStore) LikeCounts(ctx context.Context, postIDs []string) (map[string]int64, error) {
	return s.edgeCounts(ctx, &social.Like{}, postIDs)
}

func (s *gormStore) SaveCounts(ctx context.Context, postIDs []string) (map[string]int64, error) {
	return s.edgeCounts(ctx, &social.Save{}, postIDs)
}

func (s *gormStore) edgeCounts(ctx context.Context, model any, postIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(postIDs))
	if len(postIDs) == 0 {
		return counts, nil
	}
	var rows []edgeCountRow
	err := s.db.WithContext(ctx).Model(model).
		Select("post_id AS post_id, COUNT(*) AS total").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.PostID] = row.Total
	}
	return counts, nil
}

func (s *gormStore) FollowedIDs(ctx context.Context, followerID string, candidateIDs []string) ([]string, error) {
	if followerID == "" || len(candidateIDs) == 0 {
		return nil, nil
	}
	var ids []string
	err := s.db.WithContext(ctx).Model(&social.Follow{}).
		Where("follower_id = ? AND followee_id IN ?", followerID, candidateIDs).
		Pluck("followee_id", &ids).Error
	return ids, err
}

func (s *gormStore) UsersByID(ctx context.Context, ids []string) (map[string]social.User, error) {
	users := make(map[string]social.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	var rows []social.User
	err := s.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		users[row.ID] = row
	}
	return users, nil
}

func applyFilter(tx *gorm.DB, filter Filter) *gorm.DB {
	if filter.OwnerID != "" {
		tx = tx.Where("owner_id = ?", filter.OwnerID)
	}
	if len(filter.OwnerIn) > 0 {
		tx = tx.Where("owner_id IN ?", filter.OwnerIn)
	}
	if len(filter.PostIDs) > 0 {
		tx = tx.Where("id IN ?", filter.PostIDs)
	}
	if filter.Visibility != "" {
		tx = tx.Where("visibility = ?", filter.Visibility)
	}
	if filter.Activity != "" {
		// Activities are stored as a JSON array on the post row.
		tx = tx.Where("activities LIKE ?", "%\""+filter.Activity+"\"%")
	}
	return tx
}
