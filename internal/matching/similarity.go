package matching

import (
	"math"
	"strings"
	"unicode"
)

// Similarity scores two strings 0..100 from their edit distance, ignoring
// case and surrounding whitespace.
func Similarity(a, b string) int {
	ra := []rune(strings.ToLower(strings.TrimSpace(a)))
	rb := []rune(strings.ToLower(strings.TrimSpace(b)))

	if len(ra) == 0 && len(rb) == 0 {
		return 100
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	maxLen := max(len(ra), len(rb))
	dist := levenshtein(ra, rb)
	return int(math.Round(100 * float64(maxLen-dist) / float64(maxLen)))
}

// ModelSimilarity compares two model names after dropping a leading brand
// token and a trailing network suffix from both.
func ModelSimilarity(specModel, titleModel, brand string) int {
	return Similarity(
		RemoveNetworkSuffix(stripBrandPrefix(specModel, brand)),
		RemoveNetworkSuffix(stripBrandPrefix(titleModel, brand)),
	)
}

// stripBrandPrefix tries the full brand, the space-collapsed brand and the
// first word of the brand, in that order.
func stripBrandPrefix(model, brand string) string {
	m := NormalizeText(model)
	b := NormalizeText(brand)
	if b == "" {
		return m
	}

	prefixes := []string{b, strings.ReplaceAll(b, " ", "")}
	if first := strings.Fields(b)[0]; first != b {
		prefixes = append(prefixes, first)
	}
	for _, p := range prefixes {
		if strings.HasPrefix(m, p+" ") {
			return strings.TrimSpace(m[len(p):])
		}
	}
	return m
}

func levenshtein(a, b []rune) int {
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

// TrigramSimilarity returns the pg_trgm similarity of two strings: the
// Jaccard index of their padded word trigram sets, 0..1.
func TrigramSimilarity(a, b string) float64 {
	ta := trigrams(a)
	tb := trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(ta)+len(tb)-shared)
}

// trigrams pads every alphanumeric word with two leading spaces and one
// trailing space, the way pg_trgm does.
func trigrams(s string) map[string]struct{} {
	set := make(map[string]struct{})
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range fields {
		padded := []rune("  " + w + " ")
		for i := 0; i+3 <= len(padded); i++ {
			set[string(padded[i:i+3])] = struct{}{}
		}
	}
	return set
}

// TrigramCandidate is one stored name considered by BestTrigramMatch.
type TrigramCandidate struct {
	ID   int64
	Text string
}

// BestTrigramMatch returns the candidate most similar to query whose score
// is strictly above floor. Candidates on the other side of the 4G line are
// not considered. Equal scores go to the lowest ID.
func BestTrigramMatch(query string, candidates []TrigramCandidate, floor float64) (TrigramCandidate, float64, bool) {
	var (
		best      TrigramCandidate
		bestScore float64
		found     bool
	)
	for _, c := range candidates {
		if !SameNetwork(query, c.Text) {
			continue
		}
		score := TrigramSimilarity(query, c.Text)
		if score <= floor {
			continue
		}
		if !found || score > bestScore || score == bestScore && c.ID < best.ID {
			best, bestScore, found = c, score, true
		}
	}
	return best, bestScore, found
}
