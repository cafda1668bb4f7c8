package feed

import "fmt"

// Cache key families. Keys are namespaced by subsystem and viewer or entity
// id so that pattern invalidation can target one user without touching the
// rest of the keyspace.

// FeedKey addresses one cached feed page for a viewer; anonymous viewers
// share the public family.
func FeedKey(viewerID string, page, limit int) string {
	return FeedVariantKey(viewerID, "", page, limit)
}

// FeedVariantKey addresses a feed page whose response differs from the
// default family, for example an activity-filtered or seen-excluding page.
// The variant sits inside the "feed:{owner}:" prefix so per-user pattern
// invalidation still covers it.
func FeedVariantKey(viewerID, variant string, page, limit int) string {
	if variant == "" {
		return fmt.Sprintf("feed:%s:page:%d:limit:%d", feedOwner(viewerID), page, limit)
	}
	return fmt.Sprintf("feed:%s:%s:page:%d:limit:%d", feedOwner(viewerID), variant, page, limit)
}

// LikedKey addresses the cached liked-posts list for a user.
func LikedKey(userID string) string {
	return "liked:" + userID
}

// SavedKey addresses the cached saved-posts list for a user.
func SavedKey(userID string) string {
	return "saved:" + userID
}

// ProfileKey addresses one cached profile projection for a user.
func ProfileKey(userID, section string) string {
	return "profile:" + userID + ":" + section
}

// AnalyticsKey addresses one cached admin aggregate.
func AnalyticsKey(name string) string {
	return "analytics:" + name
}

// SeenKey addresses the per-viewer set of recently viewed post ids.
func SeenKey(viewerID string) string {
	return "seen:" + viewerID
}

func feedOwner(viewerID string) string {
	if viewerID == "" {
		return "public"
	}
	return viewerID
}
