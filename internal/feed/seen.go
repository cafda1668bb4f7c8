package feed

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SeenTTL bounds how long a viewed post stays in the viewer's seen set. The
// expiry is refreshed on every write, so the set tracks a rolling window of
// recent activity.
const SeenTTL = 7 * 24 * time.Hour

// SeenTracker maintains the per-viewer set of recently viewed post ids. It
// is a ranking hint, not authoritative state: backend failures degrade to an
// empty set and are never surfaced to callers reading it.
type SeenTracker struct {
	backend Backend
	logger  *zap.Logger
	ttl     time.Duration
}

// NewSeenTracker builds a tracker over the shared cache backend.
func NewSeenTracker(backend Backend, logger *zap.Logger) *SeenTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeenTracker{backend: backend, logger: logger, ttl: SeenTTL}
}

// MarkSeen records that the viewer has viewed the post and refreshes the
// set's expiry.
func (t *SeenTracker) MarkSeen(ctx context.Context, viewerID, postID string) error {
	if t == nil || t.backend == nil || viewerID == "" || postID == "" {
		return nil
	}
	key := SeenKey(viewerID)
	if err := t.backend.SAdd(ctx, key, postID); err != nil {
		return err
	}
	return t.backend.Expire(ctx, key, t.ttl)
}

// SeenSet returns the viewer's current seen set as a membership map. A
// backend failure is logged and reported as an empty set.
func (t *SeenTracker) SeenSet(ctx context.Context, viewerID string) map[string]struct{} {
	seen := map[string]struct{}{}
	if t == nil || t.backend == nil || viewerID == "" {
		return seen
	}
	members, err := t.backend.SMembers(ctx, SeenKey(viewerID))
	if err != nil {
		t.logger.Warn("seen set read failed",
			zap.String("viewer_id", viewerID),
			zap.Error(err))
		return seen
	}
	for _, member := range members {
		seen[member] = struct{}{}
	}
	return seen
}

// Seen reports whether the viewer has recently viewed the post.
func (t *SeenTracker) Seen(ctx context.Context, viewerID, postID string) bool {
	_, ok := t.SeenSet(ctx, viewerID)[postID]
	return ok
}
