package routing

import (
	"strings"

	"github.com/agext/levenshtein"
)

// SimilarityFunc scores two names in [0, 1].
type SimilarityFunc func(a, b string) float64

// LevenshteinSimilarity is the normalized edit-distance similarity of the
// lowercased, trimmed names.
func LevenshteinSimilarity(a, b string) float64 {
	return levenshtein.Similarity(
		strings.ToLower(strings.TrimSpace(a)),
		strings.ToLower(strings.TrimSpace(b)),
		levenshtein.NewParams(),
	)
}

// Match is the best existing name for a candidate.
type Match struct {
	Index int // position in the scanned names, -1 when there were none
	Score float64
	Exact bool
}

// Accepted reports whether the match clears threshold. The comparison is
// inclusive.
func (m Match) Accepted(threshold float64) bool {
	return m.Index >= 0 && (m.Exact || m.Score >= threshold)
}

// Matcher finds the closest existing name within one scope.
type Matcher struct {
	similarity SimilarityFunc
}

// NewMatcher creates a Matcher. A nil fn uses LevenshteinSimilarity.
func NewMatcher(fn SimilarityFunc) *Matcher {
	if fn == nil {
		fn = LevenshteinSimilarity
	}
	return &Matcher{similarity: fn}
}

// Best returns the case-insensitive exact match if there is one, otherwise
// the highest-scoring name.
func (m *Matcher) Best(candidate string, names []string) Match {
	want := strings.ToLower(strings.TrimSpace(candidate))
	for i, n := range names {
		if strings.ToLower(strings.TrimSpace(n)) == want {
			return Match{Index: i, Score: 1, Exact: true}
		}
	}

	best := Match{Index: -1}
	for i, n := range names {
		score := m.similarity(candidate, n)
		if best.Index < 0 || score > best.Score {
			best = Match{Index: i, Score: score}
		}
	}
	return best
}
