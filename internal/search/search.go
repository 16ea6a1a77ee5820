// Package search wraps the upstream search provider and normalises its
// responses into SearchHit values.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"websearch-mcp/pkg/types"
)

// Provider executes a query against a search backend.
type Provider interface {
	Search(ctx context.Context, query string, maxResults int) ([]types.SearchHit, error)
}

// Supported provider names.
const (
	ProviderDuckDuckGoHTML = "duckduckgo_html"
	ProviderBing           = "bing"
	ProviderBingAPI        = "bing_api"
	ProviderStub           = "stub"
)

// Options configures a Client.
type Options struct {
	Provider    string
	EndpointURL string
	APIKey      string
	UserAgent   string
	Language    string
	Timeout     time.Duration
	UseStubData bool

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is a thin wrapper around a search provider.
type Client struct {
	provider string
	endpoint string
	apiKey   string
	language string
	useStub  bool
	client   *http.Client
	logger   *slog.Logger
}

// NewClient constructs a search client. A key-requiring provider with no
// API key degrades to deterministic stub data rather than failing.
func NewClient(opts Options) (*Client, error) {
	switch opts.Provider {
	case ProviderDuckDuckGoHTML, ProviderBing, ProviderBingAPI, ProviderStub:
	default:
		return nil, fmt.Errorf("unsupported provider: %s", opts.Provider)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	requiresKey := opts.Provider == ProviderBing || opts.Provider == ProviderBingAPI
	useStub := opts.UseStubData || opts.Provider == ProviderStub
	if requiresKey && opts.APIKey == "" && !useStub {
		logger.Warn("provider requires an api key but none is configured, using stub data",
			"provider", opts.Provider)
		useStub = true
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &Client{
		provider: opts.Provider,
		endpoint: opts.EndpointURL,
		apiKey:   opts.APIKey,
		language: opts.Language,
		useStub:  useStub,
		client:   withUserAgent(client, opts.UserAgent),
		logger:   logger,
	}, nil
}

// Search executes the query and returns normalized hits.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]types.SearchHit, error) {
	if c.useStub {
		return searchStub(query, maxResults), nil
	}

	switch c.provider {
	case ProviderDuckDuckGoHTML:
		hits, err := c.searchDuckDuckGoHTML(ctx, query, maxResults)
		if err != nil {
			return nil, err
		}
		if len(hits) > maxResults {
			hits = hits[:maxResults]
		}
		return hits, nil
	case ProviderBing, ProviderBingAPI:
		return c.searchBing(ctx, query, maxResults)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", c.provider)
	}
}

func (c *Client) searchDuckDuckGoHTML(ctx context.Context, query string, maxResults int) ([]types.SearchHit, error) {
	params := url.Values{}
	params.Set("q", query)
	if c.language != "" {
		params.Set("kl", c.language)
	}

	resp, err := c.get(ctx, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("duckduckgo html request failed",
			"query", query, "status_code", resp.StatusCode)
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse duckduckgo html: %w", err)
	}

	hits := make([]types.SearchHit, 0, maxResults)
	doc.Find("div.result").EachWithBreak(func(_ int, result *goquery.Selection) bool {
		link := result.Find("a.result__a").First()
		if link.Length() == 0 {
			return true
		}
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		target := normalizeResultURL(href)

		snippetSel := result.Find("div.result__snippet").First()
		if snippetSel.Length() == 0 {
			snippetSel = result.Find("a.result__snippet").First()
		}
		snippet := squashWhitespace(snippetSel.Text())

		if target == "" || title == "" {
			return true
		}
		hits = append(hits, types.SearchHit{Title: title, URL: target, Snippet: snippet})
		return len(hits) < maxResults
	})

	if len(hits) == 0 {
		c.logger.Info("duckduckgo html returned no results", "query", query)
	}
	return hits, nil
}

type bingResponse struct {
	WebPages struct {
		Value []struct {
			Name    string `json:"name"`
			URL     string `json:"url"`
			Snippet string `json:"snippet"`
		} `json:"value"`
	} `json:"webPages"`
}

func (c *Client) searchBing(ctx context.Context, query string, maxResults int) ([]types.SearchHit, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(maxResults))

	headers := http.Header{}
	headers.Set("Ocp-Apim-Subscription-Key", c.apiKey)

	resp, err := c.get(ctx, c.endpoint+"?"+params.Encode(), headers)
	if err != nil {
		return nil, fmt.Errorf("bing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("bing returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload bingResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode bing response: %w", err)
	}

	pages := payload.WebPages.Value
	if len(pages) > maxResults {
		pages = pages[:maxResults]
	}
	hits := make([]types.SearchHit, 0, len(pages))
	for _, item := range pages {
		hits = append(hits, types.SearchHit{Title: item.Name, URL: item.URL, Snippet: item.Snippet})
	}
	return hits, nil
}

func (c *Client) get(ctx context.Context, rawURL string, headers http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	return c.client.Do(req)
}

// normalizeResultURL resolves DuckDuckGo's protocol-relative and
// /l/?uddg= redirect links to the real target.
func normalizeResultURL(raw string) string {
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if strings.HasSuffix(parsed.Hostname(), "duckduckgo.com") && strings.HasPrefix(parsed.Path, "/l/") {
		if uddg := parsed.Query().Get("uddg"); uddg != "" {
			return uddg
		}
	}
	return raw
}

func squashWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

type uaTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *uaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

func withUserAgent(client *http.Client, userAgent string) *http.Client {
	if userAgent == "" {
		return client
	}
	wrapped := *client
	wrapped.Transport = &uaTransport{base: client.Transport, userAgent: userAgent}
	return &wrapped
}
