// Package similarity scores how alike two question texts are.
package similarity

import "strings"

// Similarity returns 1 - distance/longest over the lower-cased inputs, in [0,1].
// Two empty strings are identical.
func Similarity(a, b string) float64 {
	ra := []rune(strings.ToLower(a))
	rb := []rune(strings.ToLower(b))

	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1.0
	}
	return float64(longest-levenshtein(ra, rb)) / float64(longest)
}

// Distance is the case-sensitive Levenshtein distance between a and b in runes
func Distance(a, b string) int {
	return levenshtein([]rune(a), []rune(b))
}

// levenshtein keeps two rows of the classic DP table
func levenshtein(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// MostSimilar returns the candidate most similar to text and its score.
// ok is false when candidates is empty.
func MostSimilar(text string, candidates []string) (best string, score float64, ok bool) {
	for _, c := range candidates {
		s := Similarity(text, c)
		if !ok || s > score {
			best, score, ok = c, s, true
		}
	}
	return best, score, ok
}
