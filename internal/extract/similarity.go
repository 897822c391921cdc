package extract

import "strings"

// jaccard computes the Jaccard similarity |A∩B|/|A∪B| on two
// sequence-valued fields, used by the pattern validator. The retrieval
// engine's text-similarity fallback lives in internal/query.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	setA := toSet(a)
	setB := toSet(b)
	inter := 0
	for k := range setA {
		if _, ok := setB[k]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func toSet(items []string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

// wordOverlap computes Jaccard similarity over the lowercase word sets
// of two strings, used for string-valued fields in the pattern
// validator.
func wordOverlap(a, b string) float64 {
	return jaccard(words(a), words(b))
}

func words(s string) []string {
	return strings.Fields(strings.ToLower(s))
}
