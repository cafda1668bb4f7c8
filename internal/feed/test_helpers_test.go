package feed

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/wayfarer-social/wayfarer/internal/social"
)

// fakeBackend is an in-memory Backend with paginated Scan, mirroring the
// cursor contract of the production cache.
type fakeBackend struct {
	mu           sync.Mutex
	values       map[string]string
	sets         map[string]map[string]struct{}
	expiries     map[string]time.Duration
	scanPage     int
	scanSnapshot []string

	getCalls  int
	setCalls  int
	delCalls  int
	scanCalls int

	failAll bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		values:   map[string]string{},
		sets:     map[string]map[string]struct{}{},
		expiries: map[string]time.Duration{},
		scanPage: 2,
	}
}

var errBackendDown = errors.New("backend down")

func (b *fakeBackend) Get(_ context.Context, key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.getCalls++
	if b.failAll {
		return "", false, errBackendDown
	}
	value, ok := b.values[key]
	return value, ok, nil
}

func (b *fakeBackend) SetEx(_ context.Context, key, value string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setCalls++
	if b.failAll {
		return errBackendDown
	}
	b.values[key] = value
	b.expiries[key] = ttl
	return nil
}

// Scan pages through the key space scanPage entries at a time. The key list
// is snapshotted when a traversal starts (cursor zero) so that deletions
// between pages do not shift the cursor, matching the traversal guarantee of
// the production backend.
func (b *fakeBackend) Scan(_ context.Context, cursor uint64, pattern string, _ int64) ([]string, uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scanCalls++
	if b.failAll {
		return nil, 0, errBackendDown
	}
	if cursor == 0 {
		prefix := pattern
		if n := len(pattern); n > 0 && pattern[n-1] == '*' {
			prefix = pattern[:n-1]
		}
		b.scanSnapshot = nil
		for key := range b.values {
			if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
				b.scanSnapshot = append(b.scanSnapshot, key)
			}
		}
		sort.Strings(b.scanSnapshot)
	}

	start := int(cursor)
	if start >= len(b.scanSnapshot) {
		return nil, 0, nil
	}
	end := start + b.scanPage
	if end >= len(b.scanSnapshot) {
		return b.scanSnapshot[start:], 0, nil
	}
	return b.scanSnapshot[start:end], uint64(end), nil
}

func (b *fakeBackend) Del(_ context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delCalls++
	if b.failAll {
		return errBackendDown
	}
	for _, key := range keys {
		delete(b.values, key)
	}
	return nil
}

func (b *fakeBackend) SAdd(_ context.Context, key string, members ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failAll {
		return errBackendDown
	}
	set, ok := b.sets[key]
	if !ok {
		set = map[string]struct{}{}
		b.sets[key] = set
	}
	for _, member := range members {
		set[member] = struct{}{}
	}
	return nil
}

func (b *fakeBackend) SMembers(_ context.Context, key string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failAll {
		return nil, errBackendDown
	}
	members := make([]string, 0, len(b.sets[key]))
	for member := range b.sets[key] {
		members = append(members, member)
	}
	sort.Strings(members)
	return members, nil
}

func (b *fakeBackend) Expire(_ context.Context, key string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failAll {
		return errBackendDown
	}
	b.expiries[key] = ttl
	return nil
}

func (b *fakeBackend) keyCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.values)
}

// fakeStore serves a fixed candidate set and records per-method call counts
// so tests can assert the batched-lookup contract.
type fakeStore struct {
	posts []social.Post
	users map[string]social.User

	likedBy    map[string][]string
	savedBy    map[string][]string
	likeCounts map[string]int64
	saveCounts map[string]int64
	follows    map[string][]string

	calls     map[string]int
	lastQuery CandidateQuery
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:      map[string]social.User{},
		likedBy:    map[string][]string{},
		savedBy:    map[string][]string{},
		likeCounts: map[string]int64{},
		saveCounts: map[string]int64{},
		follows:    map[string][]string{},
		calls:      map[string]int{},
	}
}

func (s *fakeStore) Candidates(_ context.Context, query CandidateQuery) ([]social.Post, error) {
	s.calls["candidates"]++
	s.lastQuery = query
	limit := query.Limit
	if limit > len(s.posts) {
		limit = len(s.posts)
	}
	start := query.Offset
	if start > len(s.posts) {
		start = len(s.posts)
	}
	end := start + limit
	if end > len(s.posts) {
		end = len(s.posts)
	}
	out := make([]social.Post, end-start)
	copy(out, s.posts[start:end])
	return out, nil
}

func (s *fakeStore) CountCandidates(context.Context, Filter) (int64, error) {
	s.calls["count"]++
	return int64(len(s.posts)), nil
}

func (s *fakeStore) LikedPostIDs(_ context.Context, userID string, _ []string) ([]string, error) {
	s.calls["liked"]++
	return s.likedBy[userID], nil
}

func (s *fakeStore) SavedPostIDs(_ context.Context, userID string, _ []string) ([]string, error) {
	s.calls["saved"]++
	return s.savedBy[userID], nil
}

func (s *fakeStore) LikeCounts(_ context.Context, postIDs []string) (map[string]int64, error) {
	s.calls["likeCounts"]++
	counts := map[string]int64{}
	for _, id := range postIDs {
		counts[id] = s.likeCounts[id]
	}
	return counts, nil
}

func (s *fakeStore) SaveCounts(_ context.Context, postIDs []string) (map[string]int64, error) {
	s.calls["saveCounts"]++
	counts := map[string]int64{}
	for _, id := range postIDs {
		counts[id] = s.saveCounts[id]
	}
	return counts, nil
}

func (s *fakeStore) FollowedIDs(_ context.Context, followerID string, _ []string) ([]string, error) {
	s.calls["follows"]++
	return s.follows[followerID], nil
}

func (s *fakeStore) UsersByID(_ context.Context, ids []string) (map[string]social.User, error) {
	s.calls["users"]++
	users := map[string]social.User{}
	for _, id := range ids {
		if user, ok := s.users[id]; ok {
			users[id] = user
		}
	}
	return users, nil
}
