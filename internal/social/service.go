package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()

	// ErrPostNotFound indicates the referenced post does not exist.
	ErrPostNotFound = errors.New("social: post not found")
	// ErrUserNotFound indicates the referenced user does not exist.
	ErrUserNotFound = errors.New("social: user not found")
	// ErrAlreadyLiked distinguishes a duplicate like from a real failure;
	// the operation is a rejected no-op, not an error in the store.
	ErrAlreadyLiked = errors.New("social: post already liked")
	// ErrNotLiked indicates an unlike for an edge that does not exist.
	ErrNotLiked = errors.New("social: post not liked")
	// ErrAlreadySaved distinguishes a duplicate save from a real failure.
	ErrAlreadySaved = errors.New("social: post already saved")
	// ErrNotSaved indicates an unsave for an edge that does not exist.
	ErrNotSaved = errors.New("social: post not saved")
	// ErrAlreadyFollowing distinguishes a duplicate follow from a real failure.
	ErrAlreadyFollowing = errors.New("social: already following")
	// ErrNotFollowing indicates an unfollow for an edge that does not exist.
	ErrNotFollowing = errors.New("social: not following")
	// ErrSelfFollow rejects following oneself.
	ErrSelfFollow = errors.New("social: cannot follow yourself")
)

// ServiceError carries a stable operation code alongside the underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew = "social.service.new"
	opCreatePost = "social.create_post"
	opGetPost    = "social.get_post"
	opLikePost   = "social.like_post"
	opUnlikePost = "social.unlike_post"
	opSavePost   = "social.save_post"
	opUnsavePost = "social.unsave_post"
	opFollowUser = "social.follow_user"
	opUnfollow   = "social.unfollow_user"
	opRecordView = "social.record_view"
	opCreateUser = "social.create_user"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// FeedInvalidator is the slice of the cache-aside layer the mutation service
// drives. Every mutation that changes feed composition calls into it as a
// side effect; implementations are fail-open, so calls never error.
type FeedInvalidator interface {
	InvalidateFeed(ctx context.Context, userID string)
	InvalidateLiked(ctx context.Context, userID string)
	InvalidateSaved(ctx context.Context, userID string)
	InvalidateProfile(ctx context.Context, userID string)
}

// SeenMarker records view events into the per-viewer seen set.
type SeenMarker interface {
	MarkSeen(ctx context.Context, viewerID, postID string) error
}

type noopInvalidator struct{}

func (noopInvalidator) InvalidateFeed(context.Context, string)    {}
func (noopInvalidator) InvalidateLiked(context.Context, string)   {}
func (noopInvalidator) InvalidateSaved(context.Context, string)   {}
func (noopInvalidator) InvalidateProfile(context.Context, string) {}

// ServiceConfig describes the dependencies of the social mutation service.
type ServiceConfig struct {
	Database    *gorm.DB
	Clock       func() time.Time
	IDProvider  IDProvider
	Invalidator FeedInvalidator
	Seen        SeenMarker
	Logger      *zap.Logger
}

// Service owns every write against the social graph: posts, likes, saves,
// follows, comments and view events. Reads for ranking live in the feed
// engine; this service is its mutation-side counterpart and the source of
// all cache invalidation triggers.
type Service struct {
	db          *gorm.DB
	clock       func() time.Time
	idProvider  IDProvider
	invalidator FeedInvalidator
	seen        SeenMarker
	logger      *zap.Logger
}

// NewService validates the configuration and constructs the service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	invalidator := cfg.Invalidator
	if invalidator == nil {
		invalidator = noopInvalidator{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:          cfg.Database,
		clock:       clock,
		idProvider:  cfg.IDProvider,
		invalidator: invalidator,
		seen:        cfg.Seen,
		logger:      logger,
	}, nil
}

// PostInput is the caller-supplied shape of a new trip post.
type PostInput struct {
	Title       string
	Description string
	Location    string
	Visibility  Visibility
	Activities  []string
	Photos      []string
}

// CreatePost persists a new trip post and invalidates the owner's feed pages.
func (s *Service) CreatePost(ctx context.Context, ownerID string, input PostInput) (Post, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Post{}, newServiceError(opCreatePost, "missing_owner", ErrUserNotFound)
	}
	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreatePost, "id_generation_failed", err)
		return Post{}, newServiceError(opCreatePost, "id_generation_failed", err)
	}
	visibility := input.Visibility
	if visibility == "" {
		visibility = VisibilityPublic
	}
	post := Post{
		ID:          id,
		OwnerID:     ownerID,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Location:    strings.TrimSpace(input.Location),
		Visibility:  visibility,
		Activities:  mergeTags(nil, input.Activities),
		Photos:      input.Photos,
		CreatedAt:   s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&post).Error; err != nil {
		s.logError(opCreatePost, "insert_failed", err, zap.String("owner_id", ownerID))
		return Post{}, newServiceError(opCreatePost, "insert_failed", err)
	}

	s.invalidator.InvalidateFeed(ctx, ownerID)
	s.invalidator.InvalidateProfile(ctx, ownerID)
	return post, nil
}

// GetPost loads one post by id.
func (s *Service) GetPost(ctx context.Context, postID string) (Post, error) {
	var post Post
	err := s.db.WithContext(ctx).Where("id = ?", postID).Take(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Post{}, ErrPostNotFound
	}
	if err != nil {
		s.logError(opGetPost, "query_failed", err, zap.String("post_id", postID))
		return Post{}, newServiceError(opGetPost, "query_failed", err)
	}
	return post, nil
}

// LikePost records a like edge for (userID, postID). A duplicate attempt is
// rejected with ErrAlreadyLiked so callers can distinguish "no-op because
// already true" from failure. The post's activity tags merge into the
// liker's preference set, feeding future affinity scoring.
func (s *Service) LikePost(ctx context.Context, userID, postID string) error {
	if err := s.createEdge(ctx, opLikePost, userID, postID, &Like{UserID: userID, PostID: postID}, ErrAlreadyLiked); err != nil {
		return err
	}
	if err := s.adjustPostCounter(ctx, opLikePost, postID, "likes", 1); err != nil {
		return err
	}
	s.accumulatePreferences(ctx, opLikePost, userID, postID)

	s.invalidator.InvalidateFeed(ctx, userID)
	s.invalidator.InvalidateLiked(ctx, userID)
	return nil
}

// UnlikePost removes the like edge. Removing an absent edge is ErrNotLiked.
func (s *Service) UnlikePost(ctx context.Context, userID, postID string) error {
	if err := s.deleteEdge(ctx, opUnlikePost, &Like{}, "user_id = ? AND post_id = ?", userID, postID, ErrNotLiked); err != nil {
		return err
	}
	if err := s.adjustPostCounter(ctx, opUnlikePost, postID, "likes", -1); err != nil {
		return err
	}
	s.invalidator.InvalidateFeed(ctx, userID)
	s.invalidator.InvalidateLiked(ctx, userID)
	return nil
}

// SavePost records a save edge with the same uniqueness contract as LikePost.
func (s *Service) SavePost(ctx context.Context, userID, postID string) error {
	if err := s.createEdge(ctx, opSavePost, userID, postID, &Save{UserID: userID, PostID: postID}, ErrAlreadySaved); err != nil {
		return err
	}
	s.accumulatePreferences(ctx, opSavePost, userID, postID)

	s.invalidator.InvalidateFeed(ctx, userID)
	s.invalidator.InvalidateSaved(ctx, userID)
	return nil
}

// UnsavePost removes the save edge. Removing an absent edge is ErrNotSaved.
func (s *Service) UnsavePost(ctx context.Context, userID, postID string) error {
	if err := s.deleteEdge(ctx, opUnsavePost, &Save{}, "user_id = ? AND post_id = ?", userID, postID, ErrNotSaved); err != nil {
		return err
	}
	s.invalidator.InvalidateFeed(ctx, userID)
	s.invalidator.InvalidateSaved(ctx, userID)
	return nil
}

// FollowUser records a follow edge from follower to followee.
func (s *Service) FollowUser(ctx context.Context, followerID, followeeID string) error {
	if followerID == followeeID {
		return ErrSelfFollow
	}
	var existing Follow
	err := s.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Take(&existing).Error
	if err == nil {
		return ErrAlreadyFollowing
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logError(opFollowUser, "edge_select_failed", err)
		return newServiceError(opFollowUser, "edge_select_failed", err)
	}
	if err := s.db.WithContext(ctx).Create(&Follow{FollowerID: followerID, FolloweeID: followeeID}).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyFollowing
		}
		s.logError(opFollowUser, "insert_failed", err)
		return newServiceError(opFollowUser, "insert_failed", err)
	}

	s.invalidator.InvalidateFeed(ctx, followerID)
	return nil
}

// UnfollowUser removes the follow edge.
func (s *Service) UnfollowUser(ctx context.Context, followerID, followeeID string) error {
	if err := s.deleteEdge(ctx, opUnfollow, &Follow{}, "follower_id = ? AND followee_id = ?", followerID, followeeID, ErrNotFollowing); err != nil {
		return err
	}
	s.invalidator.InvalidateFeed(ctx, followerID)
	return nil
}

// RecordView bumps the post's view counter and marks it seen for the viewer.
// Seen-set write failures are logged and swallowed: the view count is the
// durable fact, the seen set is a ranking hint.
func (s *Service) RecordView(ctx context.Context, viewerID, postID string) error {
	if err := s.adjustPostCounter(ctx, opRecordView, postID, "views", 1); err != nil {
		return err
	}
	if s.seen != nil && viewerID != "" {
		if err := s.seen.MarkSeen(ctx, viewerID, postID); err != nil {
			s.logger.Warn("seen set write failed",
				zap.String("operation", opRecordView),
				zap.String("viewer_id", viewerID),
				zap.String("post_id", postID),
				zap.Error(err))
		}
	}
	return nil
}

// CreateUser persists a new account, generating an id when none is supplied.
func (s *Service) CreateUser(ctx context.Context, user User) (User, error) {
	if user.ID == "" {
		id, err := s.idProvider.NewID()
		if err != nil {
			s.logError(opCreateUser, "id_generation_failed", err)
			return User{}, newServiceError(opCreateUser, "id_generation_failed", err)
		}
		user.ID = id
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		s.logError(opCreateUser, "insert_failed", err, zap.String("user_id", user.ID))
		return User{}, newServiceError(opCreateUser, "insert_failed", err)
	}
	return user, nil
}

// createEdge inserts an edge record after verifying the pair does not exist;
// the composite primary key backstops the check under concurrency, so both
// the pre-check and a unique violation map to the same sentinel.
func (s *Service) createEdge(ctx context.Context, operation, userID, postID string, edge any, duplicate error) error {
	if err := s.requirePost(ctx, operation, postID); err != nil {
		return err
	}
	var count int64
	err := s.db.WithContext(ctx).Model(edge).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error
	if err != nil {
		s.logError(operation, "edge_select_failed", err, zap.String("user_id", userID), zap.String("post_id", postID))
		return newServiceError(operation, "edge_select_failed", err)
	}
	if count > 0 {
		return duplicate
	}
	if err := s.db.WithContext(ctx).Create(edge).Error; err != nil {
		if isUniqueViolation(err) {
			return duplicate
		}
		s.logError(operation, "insert_failed", err, zap.String("user_id", userID), zap.String("post_id", postID))
		return newServiceError(operation, "insert_failed", err)
	}
	return nil
}

func (s *Service) deleteEdge(ctx context.Context, operation string, model any, query string, a, b string, missing error) error {
	result := s.db.WithContext(ctx).Where(query, a, b).Delete(model)
	if result.Error != nil {
		s.logError(operation, "delete_failed", result.Error)
		return newServiceError(operation, "delete_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return missing
	}
	return nil
}

// adjustPostCounter applies a relative update to a denormalized counter,
// clamped at zero.
func (s *Service) adjustPostCounter(ctx context.Context, operation, postID, column string, delta int64) error {
	if err := s.requirePost(ctx, operation, postID); err != nil {
		return err
	}
	expr := gorm.Expr("MAX("+column+" + ?, 0)", delta)
	err := s.db.WithContext(ctx).Model(&Post{}).
		Where("id = ?", postID).
		UpdateColumn(column, expr).Error
	if err != nil {
		s.logError(operation, "counter_update_failed", err, zap.String("post_id", postID))
		return newServiceError(operation, "counter_update_failed", err)
	}
	return nil
}

// accumulatePreferences merges the post's activity tags into the actor's
// preference set. Failures are logged and swallowed: preferences are a
// scoring hint, not part of the mutation's contract.
func (s *Service) accumulatePreferences(ctx context.Context, operation, userID, postID string) {
	var post Post
	if err := s.db.WithContext(ctx).Select("activities").Where("id = ?", postID).Take(&post).Error; err != nil {
		s.logger.Warn("preference accumulation skipped",
			zap.String("operation", operation),
			zap.String("post_id", postID),
			zap.Error(err))
		return
	}
	if len(post.Activities) == 0 {
		return
	}
	var user User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).Take(&user).Error; err != nil {
		s.logger.Warn("preference accumulation skipped",
			zap.String("operation", operation),
			zap.String("user_id", userID),
			zap.Error(err))
		return
	}
	merged := mergeTags(user.Preferences, post.Activities)
	if len(merged) == len(user.Preferences) {
		return
	}
	// UpdateColumn bypasses the field serializer; marshal before writing
	// so the column always holds a JSON document.
	payload, err := json.Marshal(merged)
	if err != nil {
		s.logger.Warn("preference accumulation failed",
			zap.String("operation", operation),
			zap.String("user_id", userID),
			zap.Error(err))
		return
	}
	if err := s.db.WithContext(ctx).Model(&User{}).
		Where("id = ?", userID).
		UpdateColumn("preferences", string(payload)).Error; err != nil {
		s.logger.Warn("preference accumulation failed",
			zap.String("operation", operation),
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

func (s *Service) requirePost(ctx context.Context, operation, postID string) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&Post{}).Where("id = ?", postID).Count(&count).Error
	if err != nil {
		s.logError(operation, "post_select_failed", err, zap.String("post_id", postID))
		return newServiceError(operation, "post_select_failed", err)
	}
	if count == 0 {
		return ErrPostNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("social service error", attrs...)
}
