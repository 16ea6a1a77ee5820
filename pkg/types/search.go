package types

import (
	"time"
)

// SearchHit is a normalized result produced by a search provider.
type SearchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// FetchedPage represents the fetched content of a single result page.
type FetchedPage struct {
	URL             string
	FinalURL        string
	StatusCode      int
	ContentType     string
	Body            []byte
	HTML            string
	Text            string
	Rendered        bool
	FetchedAt       time.Time
	ResponseLatency time.Duration
}

// Summary is the ranked digest built from search snippets.
type Summary struct {
	Overview   string   `json:"overview"`
	Highlights []string `json:"highlights"`
}

// PagePreview is a FetchedPage bounded for inclusion in a QueryResponse.
type PagePreview struct {
	URL         string `json:"url"`
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	TextPreview string `json:"text_preview,omitempty"`
}

// QueryResponse is the value returned to agents and stored in the query
// cache. It is immutable once constructed.
type QueryResponse struct {
	Summary      Summary       `json:"summary"`
	Results      []SearchHit   `json:"results"`
	FetchedPages []PagePreview `json:"fetched_pages,omitempty"`
}

// PageContent is the full (but bounded) payload returned by a direct page
// fetch, as opposed to the previews embedded in a QueryResponse.
type PageContent struct {
	URL         string `json:"url"`
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Text        string `json:"text,omitempty"`
	HTML        string `json:"html,omitempty"`
}
