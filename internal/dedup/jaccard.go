package dedup

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NearDuplicateThreshold is the default token-set similarity at which two
// bodies are considered near-identical reposts.
const NearDuplicateThreshold = 0.8

// JaccardSimilarity computes token-set similarity between two bodies.
// Opt-in utility: the upsert path never calls this automatically.
func JaccardSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for token := range setA {
		if setB[token] {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// NearDuplicate reports whether two bodies meet the similarity threshold.
// A threshold <= 0 falls back to NearDuplicateThreshold.
func NearDuplicate(a, b string, threshold float64) bool {
	if threshold <= 0 {
		threshold = NearDuplicateThreshold
	}
	return JaccardSimilarity(a, b) >= threshold
}

func tokenSet(text string) map[string]bool {
	normalized := strings.ToLower(norm.NFC.String(text))
	set := make(map[string]bool)
	for _, token := range strings.FieldsFunc(normalized, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r > 127)
	}) {
		set[token] = true
	}
	return set
}
