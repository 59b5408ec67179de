// Package search ranks declaration names against free-text queries.
package search

import (
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/standardbeagle/scalaidx/internal/debug"
)

// DefaultThreshold is the minimum LCS coverage for a partial match
const DefaultThreshold = 0.5

// Score tiers. Every exact match outranks every subsequence match, which in turn
// outranks every partial match.
const (
	scoreExact       = 4.0
	scoreSubsequence = 2.0 // plus up to 1.0 for span tightness
)

// Match is one ranked candidate
type Match struct {
	// Index into the candidate slice passed to Rank
	Index int
	Score float64
}

// FuzzyMatcher ranks candidates by how well a query appears in them as a
// case-insensitive subsequence. Names that contain only part of the query fall
// back to longest-common-subsequence coverage.
type FuzzyMatcher struct {
	threshold  float64
	maxResults int
}

// NewFuzzyMatcher creates a matcher. A threshold outside (0,1] uses the default;
// maxResults <= 0 means uncapped.
func NewFuzzyMatcher(threshold float64, maxResults int) *FuzzyMatcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	if maxResults < 0 {
		maxResults = 0
	}
	return &FuzzyMatcher{threshold: threshold, maxResults: maxResults}
}

// Rank scores every candidate against query and returns the hits, best first.
// Candidates must already be lower-cased. Equal scores keep candidate order.
// An empty query matches everything in candidate order.
func (fm *FuzzyMatcher) Rank(query string, candidates []string) []Match {
	q := []rune(strings.ToLower(query))

	matches := make([]Match, 0, len(candidates))
	if len(q) == 0 {
		for i := range candidates {
			matches = append(matches, Match{Index: i})
		}
		return fm.limit(matches)
	}

	lowerQuery := string(q)
	for i, name := range candidates {
		if score, ok := fm.Score(lowerQuery, name); ok {
			matches = append(matches, Match{Index: i, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	debug.LogSearch("fuzzy %q: %d of %d candidates matched\n", query, len(matches), len(candidates))
	return fm.limit(matches)
}

// Score rates one lower-cased candidate against a lower-cased query
func (fm *FuzzyMatcher) Score(query, name string) (float64, bool) {
	if query == name {
		return scoreExact, true
	}

	q := []rune(query)
	n := []rune(name)
	if span, ok := tightestSpan(q, n); ok {
		gap := span - len(q)
		return scoreSubsequence + 1/float64(1+gap), true
	}

	coverage := float64(edlib.LCS(query, name)) / float64(len(q))
	if coverage >= fm.threshold {
		return coverage, true
	}
	return 0, false
}

func (fm *FuzzyMatcher) limit(matches []Match) []Match {
	if fm.maxResults > 0 && len(matches) > fm.maxResults {
		return matches[:fm.maxResults]
	}
	return matches
}

// tightestSpan finds the shortest window of name containing query as a
// subsequence. Each occurrence of the first query rune starts a greedy scan.
func tightestSpan(query, name []rune) (int, bool) {
	if len(query) == 0 {
		return 0, true
	}

	best := -1
	for start, r := range name {
		if r != query[0] {
			continue
		}
		qi := 1
		end := start
		for ni := start + 1; ni < len(name) && qi < len(query); ni++ {
			if name[ni] == query[qi] {
				qi++
				end = ni
			}
		}
		if qi < len(query) {
			// Later starts only have less text to work with
			break
		}
		if span := end - start + 1; best < 0 || span < best {
			best = span
		}
	}
	return best, best >= 0
}
