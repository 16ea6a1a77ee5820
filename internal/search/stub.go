package search

import (
	"strings"

	"websearch-mcp/pkg/types"
)

// stubHits is the deterministic dataset served when no real provider is
// available (missing API key or explicit stub mode).
var stubHits = []types.SearchHit{
	{
		Title:   "AI security best practices 2025",
		URL:     "https://example.com/ai-security-best-practices",
		Snippet: "Overview of the latest security guidelines for AI models and agents.",
	},
	{
		Title:   "Observability checklist for MCP servers",
		URL:     "https://example.com/mcp-observability",
		Snippet: "How to implement metrics, logs, and traces for a multi-server MCP environment.",
	},
	{
		Title:   "Scaling search agents with rate limiting",
		URL:     "https://example.com/mcp-rate-limiters",
		Snippet: "Practical guidance on throttling queries and protecting search engine APIs.",
	},
	{
		Title:   "Security review template for integration projects",
		URL:     "https://example.com/security-review-template",
		Snippet: "Security checklist template for MCP integration projects.",
	},
	{
		Title:   "OTEL instrumentation cookbook",
		URL:     "https://example.com/otel-cookbook",
		Snippet: "OpenTelemetry instrumentation examples for Go services.",
	},
}

func searchStub(query string, maxResults int) []types.SearchHit {
	q := strings.ToLower(query)
	matches := make([]types.SearchHit, 0, len(stubHits))
	for _, hit := range stubHits {
		if strings.Contains(strings.ToLower(hit.Title), q) ||
			strings.Contains(strings.ToLower(hit.Snippet), q) {
			matches = append(matches, hit)
		}
	}
	selection := matches
	if len(selection) == 0 {
		selection = stubHits
	}
	if len(selection) > maxResults {
		selection = selection[:maxResults]
	}
	out := make([]types.SearchHit, len(selection))
	copy(out, selection)
	return out
}
