// Package service orchestrates the query pipeline: admission, cache lookup,
// search, optional page fetching, summarisation, and result caching.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"websearch-mcp/internal/limiter"
	"websearch-mcp/internal/querycache"
	"websearch-mcp/internal/summarizer"
	"websearch-mcp/pkg/types"
)

// DefaultAgentID is used when a caller does not identify itself.
const DefaultAgentID = "default"

// DefaultMaxResults applies when the caller passes a non-positive limit.
const DefaultMaxResults = 5

const (
	// previewRunes bounds the text preview embedded per fetched page.
	previewRunes = 8000
	// pageTextRunes bounds the text of a direct page fetch.
	pageTextRunes = 200000
)

// SearchProvider yields ranked hits for a query.
type SearchProvider interface {
	Search(ctx context.Context, query string, maxResults int) ([]types.SearchHit, error)
}

// PageFetcher downloads a single result page.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*types.FetchedPage, error)
}

// Admission gates query execution.
type Admission interface {
	Acquire(agentID string) error
	Release(agentID string)
}

// ResultCache stores completed query responses.
type ResultCache interface {
	Get(key string) (*types.QueryResponse, bool)
	Set(key string, value *types.QueryResponse)
}

// Telemetry records query metrics.
type Telemetry interface {
	MeasureQuery(agentID string) func()
	RecordRateLimitDrop(reason string)
	RecordPageFetch(outcome string)
}

// Recorder logs executed queries. Failures never fail the query.
type Recorder interface {
	SaveQuery(ctx context.Context, rec HistoryRecord) error
}

// HistoryRecord mirrors history.Record without importing the package, so
// tests can supply a fake without a database.
type HistoryRecord struct {
	AgentID     string
	Query       string
	MaxResults  int
	ResultCount int
	CacheHit    bool
	Duration    time.Duration
	ExecutedAt  time.Time
}

// Options assembles the service collaborators. Provider and Limiter are
// required; the rest may be nil to disable the feature.
type Options struct {
	Provider  SearchProvider
	Limiter   Admission
	Cache     ResultCache
	Fetcher   PageFetcher
	Telemetry Telemetry
	History   Recorder
	MaxPages  int
	Logger    *slog.Logger
}

// Service executes agent queries end to end.
type Service struct {
	provider  SearchProvider
	limiter   Admission
	cache     ResultCache
	fetcher   PageFetcher
	telemetry Telemetry
	history   Recorder
	maxPages  int
	logger    *slog.Logger
}

// New builds a Service. It returns an error when a required collaborator is
// missing so misconfiguration fails at startup rather than per query.
func New(opts Options) (*Service, error) {
	if opts.Provider == nil {
		return nil, errors.New("service requires a search provider")
	}
	if opts.Limiter == nil {
		return nil, errors.New("service requires an admission limiter")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxPages := opts.MaxPages
	if maxPages < 0 {
		maxPages = 0
	}
	return &Service{
		provider:  opts.Provider,
		limiter:   opts.Limiter,
		cache:     opts.Cache,
		fetcher:   opts.Fetcher,
		telemetry: opts.Telemetry,
		history:   opts.History,
		maxPages:  maxPages,
		logger:    logger,
	}, nil
}

// Query runs a search for the agent and returns the summarised response.
// Cached responses are returned without consuming admission capacity.
func (s *Service) Query(ctx context.Context, agentID, query string, maxResults int) (*types.QueryResponse, error) {
	if agentID == "" {
		agentID = DefaultAgentID
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	key := querycache.Key(query, maxResults)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			s.logger.Debug("query cache hit", "agent_id", agentID, "key", key)
			s.record(ctx, agentID, query, maxResults, len(cached.Results), true, 0)
			return cached, nil
		}
	}

	if err := s.limiter.Acquire(agentID); err != nil {
		var quotaErr *limiter.QuotaError
		if errors.As(err, &quotaErr) {
			s.logger.Warn("query rejected by admission controller",
				"agent_id", agentID,
				"kind", string(quotaErr.Kind),
				"limit", quotaErr.Limit,
			)
			if s.telemetry != nil {
				s.telemetry.RecordRateLimitDrop(string(quotaErr.Kind))
			}
		}
		return nil, err
	}
	// The admitted scope covers the provider call and page fetches only;
	// the slot is back before summarisation and caching begin.
	var (
		hits     []types.SearchHit
		previews []types.PagePreview
		elapsed  time.Duration
	)
	err := func() error {
		defer s.limiter.Release(agentID)
		if s.telemetry != nil {
			done := s.telemetry.MeasureQuery(agentID)
			defer done()
		}
		start := time.Now()
		defer func() { elapsed = time.Since(start) }()

		var err error
		hits, err = s.provider.Search(ctx, query, maxResults)
		if err != nil {
			s.logger.Error("search provider failed", "agent_id", agentID, "error", err)
			return fmt.Errorf("search: %w", err)
		}
		if s.fetcher != nil && s.maxPages > 0 {
			previews = s.fetchTopResults(ctx, hits)
		}
		return nil
	}()
	if err != nil {
		return nil, err
	}

	resp := &types.QueryResponse{
		Summary:      summarizer.BuildSummary(hits),
		Results:      hits,
		FetchedPages: previews,
	}
	if s.cache != nil {
		s.cache.Set(key, resp)
	}
	s.record(ctx, agentID, query, maxResults, len(hits), false, elapsed)
	return resp, nil
}

// fetchTopResults downloads previews for the leading hits. A page that fails
// to fetch is omitted; the query itself still succeeds.
func (s *Service) fetchTopResults(ctx context.Context, hits []types.SearchHit) []types.PagePreview {
	limit := s.maxPages
	if limit > len(hits) {
		limit = len(hits)
	}
	previews := make([]types.PagePreview, 0, limit)
	for _, hit := range hits[:limit] {
		page, err := s.fetcher.Fetch(ctx, hit.URL)
		if err != nil {
			s.logger.Warn("result page fetch failed", "url", hit.URL, "error", err)
			if s.telemetry != nil {
				s.telemetry.RecordPageFetch("error")
			}
			continue
		}
		if s.telemetry != nil {
			s.telemetry.RecordPageFetch("ok")
		}
		previews = append(previews, types.PagePreview{
			URL:         page.URL,
			StatusCode:  page.StatusCode,
			ContentType: page.ContentType,
			TextPreview: truncateRunes(page.Text, previewRunes),
		})
	}
	return previews
}

// FetchPage downloads one page on demand. It returns (nil, nil) when page
// fetching is disabled so transports can answer not-found.
func (s *Service) FetchPage(ctx context.Context, rawURL string) (*types.PageContent, error) {
	if s.fetcher == nil {
		return nil, nil
	}
	page, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	return &types.PageContent{
		URL:         page.URL,
		StatusCode:  page.StatusCode,
		ContentType: page.ContentType,
		Text:        truncateRunes(page.Text, pageTextRunes),
		HTML:        truncateRunes(page.HTML, pageTextRunes),
	}, nil
}

func (s *Service) record(ctx context.Context, agentID, query string, maxResults, resultCount int, cacheHit bool, duration time.Duration) {
	if s.history == nil {
		return
	}
	rec := HistoryRecord{
		AgentID:     agentID,
		Query:       query,
		MaxResults:  maxResults,
		ResultCount: resultCount,
		CacheHit:    cacheHit,
		Duration:    duration,
		ExecutedAt:  time.Now(),
	}
	if err := s.history.SaveQuery(ctx, rec); err != nil {
		s.logger.Warn("record query history", "error", err)
	}
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
