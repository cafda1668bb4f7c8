package feed

import (
	"context"

	"github.com/wayfarer-social/wayfarer/internal/social"
)

// metadata carries the batched lookup results for one candidate set: viewer
// membership sets, aggregate edge counts and the user records needed for
// display projection.
type metadata struct {
	liked      map[string]struct{}
	saved      map[string]struct{}
	following  map[string]struct{}
	likeCounts map[string]int64
	saveCounts map[string]int64
	users      map[string]social.User
	viewer     *social.User
}

func (m *metadata) isLiked(postID string) bool {
	_, ok := m.liked[postID]
	return ok
}

func (m *metadata) isSaved(postID string) bool {
	_, ok := m.saved[postID]
	return ok
}

func (m *metadata) isFollowing(userID string) bool {
	_, ok := m.following[userID]
	return ok
}

// joinMetadata resolves everything scoring and projection need in a constant
// number of store round trips, independent of candidate count: two viewer
// existence lookups, two aggregate counts, one follow lookup over distinct
// authors and one user fetch. An absent viewer yields empty membership sets
// and false flags, never an error.
func joinMetadata(ctx context.Context, store Store, viewerID string, posts []social.Post) (*metadata, error) {
	postIDs := make([]string, 0, len(posts))
	authors := make([]string, 0, len(posts))
	authorSeen := make(map[string]struct{}, len(posts))
	for _, post := range posts {
		postIDs = append(postIDs, post.ID)
		if _, ok := authorSeen[post.OwnerID]; !ok {
			authorSeen[post.OwnerID] = struct{}{}
			authors = append(authors, post.OwnerID)
		}
	}
	userIDs := collectUserIDs(viewerID, posts)

	meta := &metadata{
		liked:      map[string]struct{}{},
		saved:      map[string]struct{}{},
		following:  map[string]struct{}{},
		likeCounts: map[string]int64{},
		saveCounts: map[string]int64{},
	}

	likedIDs, err := store.LikedPostIDs(ctx, viewerID, postIDs)
	if err != nil {
		return nil, err
	}
	savedIDs, err := store.SavedPostIDs(ctx, viewerID, postIDs)
	if err != nil {
		return nil, err
	}
	likeCounts, err := store.LikeCounts(ctx, postIDs)
	if err != nil {
		return nil, err
	}
	saveCounts, err := store.SaveCounts(ctx, postIDs)
	if err != nil {
		return nil, err
	}
	followedIDs, err := store.FollowedIDs(ctx, viewerID, authors)
	if err != nil {
		return nil, err
	}
	users, err := store.UsersByID(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	for _, id := range likedIDs {
		meta.liked[id] = struct{}{}
	}
	for _, id := range savedIDs {
		meta.saved[id] = struct{}{}
	}
	for _, id := range followedIDs {
		meta.following[id] = struct{}{}
	}
	meta.likeCounts = likeCounts
	meta.saveCounts = saveCounts
	meta.users = users

	if viewerID != "" {
		if viewer, ok := users[viewerID]; ok {
			meta.viewer = &viewer
		}
	}

	return meta, nil
}

// collectUserIDs gathers every user id the display projection references:
// post authors, comment and reply authors, and the viewer. Order is stable
// and duplicates are dropped.
func collectUserIDs(viewerID string, posts []social.Post) []string {
	seen := make(map[string]struct{}, len(posts))
	ids := make([]string, 0, len(posts))
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, post := range posts {
		add(post.OwnerID)
		for _, comment := range post.Comments {
			add(comment.UserID)
			for _, reply := range comment.Replies {
				add(reply.UserID)
			}
		}
	}
	add(viewerID)
	return ids
}

// lookupUsers resolves just the user records for projection. Used on fetch
// paths that skip the full metadata join; author names and avatars must not
// depend on the metadata flag.
func lookupUsers(ctx context.Context, store Store, viewerID string, posts []social.Post) (map[string]social.User, error) {
	return store.UsersByID(ctx, collectUserIDs(viewerID, posts))
}
