package feed

import "math"

// Relevance weights. Recency decays linearly over the first 40 hours,
// engagement terms are weighted by how costly the signal is to produce, and
// posts older than four days take a flat staleness penalty.
const (
	recencyCeilingHours  = 40.0
	popularityWeight     = 10.0
	likeWeight           = 3.0
	commentWeight        = 5.0
	saveWeight           = 8.0
	followBonus          = 40.0
	discoveryBonus       = 15.0
	affinityWeight       = 5.0
	ownPostBonus         = 5.0
	staleAfterHours      = 96.0
	stalePenalty         = 20.0
	jitterCeiling        = 2.0
	softRepeatMultiplier = 0.1
)

// ScoreInputs is the flat input domain of the relevance formula. Every field
// has a safe zero value, so callers may leave optional signals unset; the
// formula is total over its domain and never fails.
type ScoreInputs struct {
	AgeHours     float64
	Views        int64
	LikeCount    int64
	CommentCount int64
	SaveCount    int64

	// Viewer-dependent signals; meaningful only when HasViewer is set.
	HasViewer        bool
	IsFollowed       bool
	IsOwnPost        bool
	SharedActivities int

	// Seen demotes the final score when SoftRepeat is enabled.
	Seen       bool
	SoftRepeat bool

	// Jitter is the trailing random tie-breaker, in [0, 2). The pipeline
	// draws it per candidate; tests pass zero to assert deterministically.
	Jitter float64
}

// Score computes the personalized relevance of one candidate. It is a pure
// function of its inputs: the pipeline assembles ScoreInputs from the viewer,
// the social graph and the seen set, and ranking sorts on the result.
func Score(in ScoreInputs) float64 {
	score := math.Max(0, recencyCeilingHours-in.AgeHours)
	score += math.Log10(float64(in.Views)+1) * popularityWeight
	score += float64(in.LikeCount)*likeWeight +
		float64(in.CommentCount)*commentWeight +
		float64(in.SaveCount)*saveWeight

	if in.HasViewer {
		switch {
		case in.IsFollowed:
			score += followBonus
		case !in.IsOwnPost:
			score += discoveryBonus
		}
		score += affinityWeight * float64(in.SharedActivities)
		if in.IsOwnPost {
			score += ownPostBonus
		}
	}

	if in.AgeHours > staleAfterHours {
		score -= stalePenalty
	}

	score += in.Jitter

	if in.SoftRepeat && in.Seen {
		score *= softRepeatMultiplier
	}

	return score
}

// sharedActivityCount counts the tags present in both lists.
func sharedActivityCount(activities, preferences []string) int {
	if len(activities) == 0 || len(preferences) == 0 {
		return 0
	}
	prefs := make(map[string]struct{}, len(preferences))
	for _, tag := range preferences {
		prefs[tag] = struct{}{}
	}
	shared := 0
	for _, tag := range activities {
		if _, ok := prefs[tag]; ok {
			shared++
		}
	}
	return shared
}
