package feed

// diversify enforces a minimum spacing of one slot between posts by the same
// author. The list is walked once in score order; an item whose author filled
// the immediately preceding output slot is deferred and appended after the
// walk, still in score order relative to other deferred items. Nothing is
// dropped, so short lists dominated by one author degrade to the input order.
func diversify(items []EnrichedPost) []EnrichedPost {
	if len(items) < 3 {
		return items
	}

	result := make([]EnrichedPost, 0, len(items))
	deferred := make([]EnrichedPost, 0)
	lastIndex := make(map[string]int, len(items))

	for _, item := range items {
		if idx, ok := lastIndex[item.OwnerID]; ok && len(result)-idx <= 1 {
			deferred = append(deferred, item)
			continue
		}
		lastIndex[item.OwnerID] = len(result)
		result = append(result, item)
	}

	return append(result, deferred...)
}
