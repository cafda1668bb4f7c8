package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/wayfarer-social/wayfarer/internal/feed"
	"github.com/wayfarer-social/wayfarer/internal/social"
	"go.uber.org/zap"
)

const viewerIDContextKey = "wayfarer_viewer_id"

var (
	errMissingFeedService   = errors.New("feed service dependency required")
	errMissingSocialService = errors.New("social service dependency required")
	errMissingTokenManager  = errors.New("token manager dependency required")
)

// SessionTokenManager resolves and issues the session tokens the API uses to
// identify viewers.
type SessionTokenManager interface {
	IssueToken(userID string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// Dependencies wires the HTTP surface to the in-process services.
type Dependencies struct {
	FeedService   *feed.Service
	SocialService *social.Service
	TokenManager  SessionTokenManager
	Logger        *zap.Logger

	FeedTTL       time.Duration
	AnalyticsTTL  time.Duration
	ScoringWindow int
}

// NewHTTPHandler assembles the router. Feed reads allow anonymous viewers;
// every mutation requires a session token.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.FeedService == nil {
		return nil, errMissingFeedService
	}
	if deps.SocialService == nil {
		return nil, errMissingSocialService
	}
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		feed:          deps.FeedService,
		social:        deps.SocialService,
		tokens:        deps.TokenManager,
		logger:        logger,
		feedTTL:       deps.FeedTTL,
		analyticsTTL:  deps.AnalyticsTTL,
		scoringWindow: deps.ScoringWindow,
	}

	api := router.Group("/api")
	api.Use(handler.resolveViewer)

	api.POST("/users", handler.handleRegister)
	api.GET("/feed", handler.handleFeed)
	api.GET("/posts", handler.handleListPosts)
	api.GET("/posts/:id", handler.handleGetPost)

	authed := api.Group("/")
	authed.Use(handler.requireViewer)
	authed.POST("/posts", handler.handleCreatePost)
	authed.POST("/posts/:id/like", handler.handleLike)
	authed.DELETE("/posts/:id/like", handler.handleUnlike)
	authed.POST("/posts/:id/save", handler.handleSave)
	authed.DELETE("/posts/:id/save", handler.handleUnsave)
	authed.POST("/posts/:id/view", handler.handleView)
	authed.POST("/posts/:id/comments", handler.handleAddComment)
	authed.DELETE("/posts/:id/comments/:commentID", handler.handleDeleteComment)
	authed.POST("/posts/:id/comments/:commentID/replies", handler.handleAddReply)
	authed.POST("/posts/:id/comments/:commentID/reactions", handler.handleAddReaction)
	authed.POST("/users/:id/follow", handler.handleFollow)
	authed.DELETE("/users/:id/follow", handler.handleUnfollow)
	authed.GET("/me/liked", handler.handleLikedPosts)
	authed.GET("/me/saved", handler.handleSavedPosts)
	authed.GET("/analytics", handler.handleAnalytics)

	return router, nil
}

type httpHandler struct {
	feed          *feed.Service
	social        *social.Service
	tokens        SessionTokenManager
	logger        *zap.Logger
	feedTTL       time.Duration
	analyticsTTL  time.Duration
	scoringWindow int
}

// resolveViewer extracts the viewer id from a bearer token when one is
// present. Anonymous requests continue with an empty viewer.
func (h *httpHandler) resolveViewer(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.Next()
		return
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
		return
	}
	viewerID, err := h.tokens.ValidateToken(strings.TrimSpace(parts[1]))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.Set(viewerIDContextKey, viewerID)
	c.Next()
}

func (h *httpHandler) requireViewer(c *gin.Context) {
	if viewerID(c) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	c.Next()
}

func viewerID(c *gin.Context) string {
	value, ok := c.Get(viewerIDContextKey)
	if !ok {
		return ""
	}
	id, _ := value.(string)
	return id
}

type registerPayload struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

func (h *httpHandler) handleRegister(c *gin.Context) {
	var payload registerPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	user, err := h.social.CreateUser(c.Request.Context(), social.User{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		AvatarURL: payload.AvatarURL,
	})
	if err != nil {
		h.serviceError(c, err)
		return
	}
	token, expiresIn, err := h.tokens.IssueToken(user.ID)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"user":         user,
		"access_token": token,
		"expires_in":   expiresIn,
		"token_type":   "Bearer",
	})
}

// handleFeed serves the scored, diversified home feed. Anonymous viewers get
// the public ranking without personalization bonuses.
func (h *httpHandler) handleFeed(c *gin.Context) {
	viewer := viewerID(c)
	page := intQuery(c, "page", feed.DefaultPage)
	limit := intQuery(c, "limit", feed.DefaultLimit)
	activity := c.Query("activity")
	excludeSeen := boolQuery(c, "exclude_seen")

	result, err := h.feed.Fetch(c.Request.Context(), feed.FetchOptions{
		Filter:          feed.Filter{Visibility: social.VisibilityPublic, Activity: activity},
		ViewerID:        viewer,
		Page:            page,
		Limit:           limit,
		ExcludeSeen:     excludeSeen,
		SoftRepeat:      !excludeSeen,
		EnableScoring:   true,
		EnableDiversity: true,
		ScoringWindow:   h.scoringWindow,
		CacheKey:        feed.FeedVariantKey(viewer, feedVariant(activity, excludeSeen), page, limit),
		CacheTTL:        h.feedTTL,
		IncludeMetadata: true,
	})
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// feedVariant folds the query dimensions that change the response body into
// the cache key. Without it a filtered page would be served to unfiltered
// requests for the same viewer.
func feedVariant(activity string, excludeSeen bool) string {
	var parts []string
	if activity != "" {
		parts = append(parts, "activity:"+activity)
	}
	if excludeSeen {
		parts = append(parts, "unseen")
	}
	return strings.Join(parts, ":")
}

// handleListPosts is the plain chronological listing: one store page, no
// scoring window, no cache.
func (h *httpHandler) handleListPosts(c *gin.Context) {
	filter := feed.Filter{Visibility: social.VisibilityPublic}
	if owner := c.Query("owner"); owner != "" {
		filter.OwnerID = owner
		if owner == viewerID(c) {
			// Owners see their private posts in their own listing.
			filter.Visibility = ""
		}
	}
	result, err := h.feed.Fetch(c.Request.Context(), feed.FetchOptions{
		Filter:          filter,
		ViewerID:        viewerID(c),
		Page:            intQuery(c, "page", feed.DefaultPage),
		Limit:           intQuery(c, "limit", feed.DefaultLimit),
		Sort:            feed.SortOrder(c.Query("sort")),
		IncludeMetadata: true,
	})
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *httpHandler) handleGetPost(c *gin.Context) {
	result, err := h.feed.Fetch(c.Request.Context(), feed.FetchOptions{
		Filter:          feed.Filter{PostIDs: []string{c.Param("id")}},
		ViewerID:        viewerID(c),
		Limit:           1,
		IncludeMetadata: true,
	})
	if err != nil {
		h.serviceError(c, err)
		return
	}
	if len(result.Items) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}
	c.JSON(http.StatusOK, result.Items[0])
}

type createPostPayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Visibility  string   `json:"visibility"`
	Activities  []string `json:"activities"`
	Photos      []string `json:"photos"`
}

func (h *httpHandler) handleCreatePost(c *gin.Context) {
	var payload createPostPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	post, err := h.social.CreatePost(c.Request.Context(), viewerID(c), social.PostInput{
		Title:       payload.Title,
		Description: payload.Description,
		Location:    payload.Location,
		Visibility:  social.Visibility(payload.Visibility),
		Activities:  payload.Activities,
		Photos:      payload.Photos,
	})
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

func (h *httpHandler) handleLike(c *gin.Context) {
	h.edgeMutation(c, h.social.LikePost(c.Request.Context(), viewerID(c), c.Param("id")))
}

func (h *httpHandler) handleUnlike(c *gin.Context) {
	h.edgeMutation(c, h.social.UnlikePost(c.Request.Context(), viewerID(c), c.Param("id")))
}

func (h *httpHandler) handleSave(c *gin.Context) {
	h.edgeMutation(c, h.social.SavePost(c.Request.Context(), viewerID(c), c.Param("id")))
}

func (h *httpHandler) handleUnsave(c *gin.Context) {
	h.edgeMutation(c, h.social.UnsavePost(c.Request.Context(), viewerID(c), c.Param("id")))
}

func (h *httpHandler) handleView(c *gin.Context) {
	h.edgeMutation(c, h.social.RecordView(c.Request.Context(), viewerID(c), c.Param("id")))
}

func (h *httpHandler) handleFollow(c *gin.Context) {
	h.edgeMutation(c, h.social.FollowUser(c.Request.Context(), viewerID(c), c.Param("id")))
}

func (h *httpHandler) handleUnfollow(c *gin.Context) {
	h.edgeMutation(c, h.social.UnfollowUser(c.Request.Context(), viewerID(c), c.Param("id")))
}

func (h *httpHandler) edgeMutation(c *gin.Context, err error) {
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type commentPayload struct {
	Text string `json:"text"`
}

func (h *httpHandler) handleAddComment(c *gin.Context) {
	var payload commentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	comment, err := h.social.AddComment(c.Request.Context(), viewerID(c), c.Param("id"), payload.Text)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *httpHandler) handleAddReply(c *gin.Context) {
	var payload commentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	reply, err := h.social.AddReply(c.Request.Context(), viewerID(c), c.Param("id"), c.Param("commentID"), payload.Text)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reply)
}

type reactionPayload struct {
	Emoji string `json:"emoji"`
}

func (h *httpHandler) handleAddReaction(c *gin.Context) {
	var payload reactionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	err := h.social.AddReaction(c.Request.Context(), viewerID(c), c.Param("id"), c.Param("commentID"), payload.Emoji)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "ok"})
}

func (h *httpHandler) handleDeleteComment(c *gin.Context) {
	err := h.social.DeleteComment(c.Request.Context(), viewerID(c), c.Param("id"), c.Param("commentID"))
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleLikedPosts serves the viewer's liked posts through the liked: cache
// key, invalidated whenever the viewer likes or unlikes.
func (h *httpHandler) handleLikedPosts(c *gin.Context) {
	h.edgeListing(c, h.social.ListLikedPostIDs, feed.LikedKey(viewerID(c)))
}

// handleSavedPosts mirrors handleLikedPosts for the saved: family.
func (h *httpHandler) handleSavedPosts(c *gin.Context) {
	h.edgeListing(c, h.social.ListSavedPostIDs, feed.SavedKey(viewerID(c)))
}

// edgeListing caches the full id list under its single key and paginates
// afterwards. Caching a rendered page under the bare key would hand page one
// to every subsequent page request within the TTL.
func (h *httpHandler) edgeListing(c *gin.Context, list func(ctx context.Context, userID string) ([]string, error), cacheKey string) {
	viewer := viewerID(c)
	cache := h.feed.CacheLayer()

	var ids []string
	if !cache.GetJSON(c.Request.Context(), cacheKey, feed.EdgeListSchemaVersion, &ids) {
		var err error
		ids, err = list(c.Request.Context(), viewer)
		if err != nil {
			h.serviceError(c, err)
			return
		}
		cache.SetJSON(c.Request.Context(), cacheKey, feed.EdgeListSchemaVersion, ids, h.feedTTL)
	}
	if len(ids) == 0 {
		c.JSON(http.StatusOK, feed.FeedPage{Items: []feed.EnrichedPost{}})
		return
	}
	result, err := h.feed.Fetch(c.Request.Context(), feed.FetchOptions{
		Filter:          feed.Filter{PostIDs: ids},
		ViewerID:        viewer,
		Page:            intQuery(c, "page", feed.DefaultPage),
		Limit:           intQuery(c, "limit", feed.DefaultLimit),
		IncludeMetadata: true,
	})
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *httpHandler) handleAnalytics(c *gin.Context) {
	admin, err := h.social.IsAdmin(c.Request.Context(), viewerID(c))
	if err != nil {
		h.serviceError(c, err)
		return
	}
	if !admin {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin only"})
		return
	}
	result, err := h.social.Analytics(c.Request.Context(), h.feed.CacheLayer(), h.analyticsTTL)
	if err != nil {
		h.serviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// serviceError maps service sentinels onto HTTP statuses. Duplicate edge
// attempts are conflicts, not failures, so callers can tell "already true"
// apart from a broken request.
func (h *httpHandler) serviceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, social.ErrAlreadyLiked),
		errors.Is(err, social.ErrAlreadySaved),
		errors.Is(err, social.ErrAlreadyFollowing):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, social.ErrPostNotFound),
		errors.Is(err, social.ErrUserNotFound),
		errors.Is(err, social.ErrCommentNotFound),
		errors.Is(err, social.ErrNotLiked),
		errors.Is(err, social.ErrNotSaved),
		errors.Is(err, social.ErrNotFollowing):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, social.ErrSelfFollow),
		errors.Is(err, social.ErrEmptyText):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, social.ErrNotCommentOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		h.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}

func boolQuery(c *gin.Context, name string) bool {
	value, err := strconv.ParseBool(c.Query(name))
	return err == nil && value
}
