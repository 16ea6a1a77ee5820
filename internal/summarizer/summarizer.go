// Package summarizer ranks search snippets into an overview and highlights.
// It is the only ranking signal the gateway offers when the provider itself
// returns no ranking, so everything here is deterministic and pure.
package summarizer

import (
	"net/url"
	"sort"
	"strings"

	"websearch-mcp/pkg/types"
)

// NoResultsOverview is returned when no snippet survives deduplication.
const NoResultsOverview = "No concise results matched this query."

const (
	forecastBonus = 40.0
	currentBonus  = 20.0
	maxHighlights = 3
)

// domainRules is a priority-ordered rule list: the first matching entry
// wins and later ones are not consulted.
var domainRules = []struct {
	substring string
	bonus     float64
}{
	{"weather.com", 150},
	{"bbc.com", 120},
	{"accuweather.com", 100},
	{"reuters.com", 90},
	{"guardian", 80},
}

// BuildSummary deduplicates hits by case-folded snippet text, scores the
// survivors, and returns the best snippet as the overview with the next
// three as highlights. Ties keep the provider's original order.
func BuildSummary(hits []types.SearchHit) types.Summary {
	type scored struct {
		score   float64
		snippet string
	}

	seen := make(map[string]struct{}, len(hits))
	candidates := make([]scored, 0, len(hits))
	for _, hit := range hits {
		snippet := strings.TrimSpace(hit.Snippet)
		if snippet == "" {
			continue
		}
		normalized := strings.ToLower(snippet)
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		candidates = append(candidates, scored{
			score:   scoreSnippet(snippet, hit.URL),
			snippet: snippet,
		})
	}

	if len(candidates) == 0 {
		return types.Summary{Overview: NoResultsOverview, Highlights: []string{}}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	highlights := make([]string, 0, maxHighlights)
	for _, c := range candidates[1:] {
		if len(highlights) == maxHighlights {
			break
		}
		highlights = append(highlights, c.snippet)
	}
	return types.Summary{Overview: candidates[0].snippet, Highlights: highlights}
}

func scoreSnippet(snippet, rawURL string) float64 {
	score := float64(len(snippet))

	if u, err := url.Parse(rawURL); err == nil {
		domain := strings.ToLower(u.Hostname())
		for _, rule := range domainRules {
			if strings.Contains(domain, rule.substring) {
				score += rule.bonus
				break
			}
		}
	}

	lower := strings.ToLower(snippet)
	if strings.Contains(lower, "forecast") {
		score += forecastBonus
	}
	if strings.Contains(lower, "current") {
		score += currentBonus
	}
	return score
}
