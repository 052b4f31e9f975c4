package linkage

import (
	"math"

	"github.com/agext/levenshtein"
)

// Similarity scores how alike two strings are on a 0-100 integer scale.
type Similarity interface {
	Ratio(a, b string) int
}

// SimilarityFunc adapts a plain function to Similarity.
type SimilarityFunc func(a, b string) int

// Ratio calls f(a, b).
func (f SimilarityFunc) Ratio(a, b string) int { return f(a, b) }

// LevenshteinRatio is the indel ratio: 100 * (1 - d/(len(a)+len(b))) where d
// counts insertions and deletions only (a substitution costs 2).
type LevenshteinRatio struct {
	params *levenshtein.Params
}

// NewLevenshteinRatio returns the default fuzzy string similarity.
func NewLevenshteinRatio() *LevenshteinRatio {
	return &LevenshteinRatio{
		params: levenshtein.NewParams().InsCost(1).DelCost(1).SubCost(2),
	}
}

// Ratio implements Similarity.
func (r *LevenshteinRatio) Ratio(a, b string) int {
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	return int(math.Round(100 * levenshtein.Similarity(a, b, r.params)))
}
