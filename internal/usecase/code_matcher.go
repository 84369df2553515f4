package usecase

import (
	"subscription-discount-engine/internal/domain/model"
)

// SuggestCode returns the active code closest to the (normalized) input, used
// to offer a typo hint after a lookup has already failed. A match is offered
// only when the edit distance is at most 2 AND under 30% of the input length,
// so short inputs never spuriously match long unrelated codes. Ties resolve to
// the first candidate scanned; callers pass codes in lexicographic order for
// determinism. Purely advisory and read-only.
func SuggestCode(input string, activeCodes []string) (string, bool) {
	norm := model.NormalizeCode(input)
	if norm == "" || len(activeCodes) == 0 {
		return "", false
	}

	best := ""
	bestDist := -1
	for _, c := range activeCodes {
		d := levenshtein(norm, c)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}

	if bestDist <= 2 && float64(bestDist) < 0.3*float64(len([]rune(norm))) {
		return best, true
	}
	return "", false
}

// levenshtein computes the classic unit-cost edit distance (insertions,
// deletions, substitutions) in O(len(a)*len(b)) time and O(min) space.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
