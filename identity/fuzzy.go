package identity

import (
	"sort"
	"strings"
)

// Match is one fuzzy match result, Confidence being in [0, 100]
type Match struct {
	Choice     string
	Confidence int
}

// FuzzyMatch looks for the choices contained in query once both are
// normalized. Longer matches rank first; the longest gets a confidence of
// 100 and the others a confidence proportional to their length. Matches
// below threshold are dropped. A limit <= 0 keeps every match.
//
//	FuzzyMatch("Paris 14ème", []string{"Ris", "ris", "Paris 14"}, 1, 75)
//	  == []Match{{"Paris 14", 100}}
func FuzzyMatch(query string, choices []string, limit, threshold int) []Match {
	normalizedQuery := NormalizeString(query)

	type candidate struct {
		index      int
		normalized string
	}

	seen := make(map[string]bool, len(choices))
	var candidates []candidate
	for i, choice := range choices {
		normalized := NormalizeString(choice)
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		if strings.Contains(normalizedQuery, normalized) {
			candidates = append(candidates, candidate{index: i, normalized: normalized})
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i].normalized) > len(candidates[j].normalized)
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	longest := float64(len(candidates[0].normalized))
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		confidence := int(float64(len(c.normalized)) / longest * 100)
		if confidence < threshold {
			continue
		}
		matches = append(matches, Match{Choice: choices[c.index], Confidence: confidence})
	}
	return matches
}
