package core

import (
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
)

// DefaultSuggestThreshold is the minimum Jaro-Winkler similarity for a name
// to be suggested.
const DefaultSuggestThreshold = 0.80

// Suggestion is an indexed property name close to a requested one.
type Suggestion struct {
	Name       string  `json:"name" yaml:"name"`
	Similarity float64 `json:"similarity" yaml:"similarity"`
}

// Suggest returns up to limit indexed names similar to name, best first.
// Comparison is case-insensitive. A name containing the query, or contained
// in it, always qualifies.
func (idx *PropertyIndex) Suggest(name string, limit int) []Suggestion {
	query := strings.ToLower(strings.TrimSpace(name))
	if query == "" {
		return nil
	}

	var out []Suggestion
	for _, candidate := range idx.Names() {
		lower := strings.ToLower(candidate)
		score := similarity(query, lower)
		if score < DefaultSuggestThreshold && !strings.Contains(lower, query) && !strings.Contains(query, lower) {
			continue
		}
		out = append(out, Suggestion{Name: candidate, Similarity: score})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	score, err := edlib.StringsSimilarity(a, b, edlib.JaroWinkler)
	if err != nil {
		return 0.0
	}
	return float64(score)
}
