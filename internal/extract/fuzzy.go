package extract

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/width"
)

var foldCaser = cases.Fold()

// Fold normalizes text for comparison: full/half-width folding plus Unicode
// case folding. Spans always refer to the original query, so folding is only
// applied to detached copies.
func Fold(s string) string {
	return foldCaser.String(width.Fold.String(s))
}

// Similarity returns normalized edit similarity in [0,1]: 1 minus the
// Levenshtein distance divided by the longer length. Inputs are folded first.
func Similarity(a, b string) float64 {
	a, b = Fold(a), Fold(b)
	if a == b {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(ra, rb))/float64(longest)
}

// levenshtein computes edit distance with a two-row DP.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
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
