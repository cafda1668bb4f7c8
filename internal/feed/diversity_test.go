package feed

import "testing"

func postsByAuthors(authors ...string) []EnrichedPost {
	items := make([]EnrichedPost, len(authors))
	for i, author := range authors {
		items[i] = EnrichedPost{ID: string(rune('a' + i)), OwnerID: author}
	}
	return items
}

func authorSequence(items []EnrichedPost) []string {
	authors := make([]string, len(items))
	for i, item := range items {
		authors[i] = item.OwnerID
	}
	return authors
}

func TestDiversifyBreaksUpConsecutiveRuns(t *testing.T) {
	items := postsByAuthors("alice", "alice", "bob", "alice", "carol")
	result := diversify(items)

	if len(result) != len(items) {
		t.Fatalf("diversify must not drop items: got %d, want %d", len(result), len(items))
	}
	got := authorSequence(result)
	want := []string{"alice", "bob", "alice", "carol", "alice"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order at %d: got %v, want %v", i, got, want)
		}
	}
}

func TestDiversifyPreservesAlreadySpacedInput(t *testing.T) {
	items := postsByAuthors("alice", "bob", "alice", "carol")
	result := diversify(items)
	got := authorSequence(result)
	for i, author := range authorSequence(items) {
		if got[i] != author {
			t.Fatalf("spaced input should pass through unchanged: got %v", got)
		}
	}
}

func TestDiversifySingleAuthorDegradesToInputOrder(t *testing.T) {
	items := postsByAuthors("alice", "alice", "alice")
	result := diversify(items)
	if len(result) != 3 {
		t.Fatalf("expected all items kept, got %d", len(result))
	}
	for i, item := range result {
		if item.ID != items[i].ID {
			t.Fatalf("single-author list should keep score order")
		}
	}
}

func TestDiversifyShortListUntouched(t *testing.T) {
	items := postsByAuthors("alice", "alice")
	result := diversify(items)
	if len(result) != 2 || result[0].ID != items[0].ID {
		t.Fatalf("lists under three items pass through")
	}
}
