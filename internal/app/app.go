// Package app assembles the gateway from configuration: search client,
// fetcher chain, admission limiter, cache, telemetry, and history.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"websearch-mcp/internal/config"
	"websearch-mcp/internal/fetcher"
	"websearch-mcp/internal/history"
	"websearch-mcp/internal/limiter"
	"websearch-mcp/internal/querycache"
	"websearch-mcp/internal/robots"
	"websearch-mcp/internal/search"
	"websearch-mcp/internal/service"
	"websearch-mcp/internal/telemetry"
)

// App bundles the assembled service with the resources it owns.
type App struct {
	Config  *config.Config
	Service *service.Service
	Logger  *slog.Logger

	history *history.Store
}

// New builds the full query pipeline from configuration.
func New(cfg *config.Config) (*App, error) {
	logger := NewLogger(cfg.Logging)

	if cfg.Search.Stubbed() {
		logger.Warn("search provider will serve stub data",
			"provider", cfg.Search.Provider,
			"use_stub_data", cfg.Search.UseStubData,
		)
	}

	searchClient, err := search.NewClient(search.Options{
		Provider:    cfg.Search.Provider,
		EndpointURL: cfg.Search.EndpointURL,
		APIKey:      cfg.Search.APIKey,
		UserAgent:   cfg.Search.UserAgent,
		Language:    cfg.Search.Language,
		Timeout:     cfg.Search.RequestTimeout.Duration,
		UseStubData: cfg.Search.UseStubData,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build search client: %w", err)
	}

	admission := limiter.New(limiter.Config{
		MaxConcurrentPerAgent: cfg.Limits.MaxConcurrentPerAgent,
		MaxQueriesPerMinute:   cfg.Limits.MaxQueriesPerMinute,
		Window:                cfg.Limits.Window.Duration,
	})

	opts := service.Options{
		Provider:  searchClient,
		Limiter:   admission,
		Telemetry: telemetry.New(),
		Logger:    logger,
	}

	if cfg.Cache.Enabled {
		opts.Cache = querycache.New(cfg.Cache.TTL.Duration)
	}

	if cfg.Fetch.Enabled {
		pageFetcher, err := buildFetcher(cfg)
		if err != nil {
			return nil, err
		}
		opts.Fetcher = pageFetcher
		opts.MaxPages = cfg.Fetch.MaxPages
	}

	app := &App{Config: cfg, Logger: logger}

	if cfg.History.DSN != "" {
		store, err := history.NewStore(cfg.History)
		if err != nil {
			return nil, fmt.Errorf("open query history: %w", err)
		}
		app.history = store
		opts.History = recorderAdapter{store}
	}

	svc, err := service.New(opts)
	if err != nil {
		if app.history != nil {
			_ = app.history.Close()
		}
		return nil, err
	}
	app.Service = svc
	return app, nil
}

// Close releases resources held by the app.
func (a *App) Close() error {
	if a == nil || a.history == nil {
		return nil
	}
	return a.history.Close()
}

func buildFetcher(cfg *config.Config) (fetcher.Fetcher, error) {
	httpFetcher, err := fetcher.NewHTTPFetcher(fetcher.Options{
		UserAgent:    cfg.Fetch.UserAgent,
		Headers:      cfg.Fetch.Headers,
		Timeout:      cfg.Fetch.Timeout.Duration,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		ProxyURL:     cfg.Fetch.ProxyURL,
	})
	if err != nil {
		return nil, fmt.Errorf("build http fetcher: %w", err)
	}

	var chain fetcher.Fetcher = httpFetcher
	if cfg.Rendering.Enabled {
		renderer := fetcher.NewChromedpRenderer(fetcher.RenderOptions{
			Timeout:            cfg.Rendering.Timeout.Duration,
			WaitForSelector:    cfg.Rendering.WaitForSelector,
			UserAgent:          cfg.Fetch.UserAgent,
			MaxBodyBytes:       cfg.Fetch.MaxBodyBytes,
			DisableHeadless:    cfg.Rendering.DisableHeadless,
			ConcurrentSessions: cfg.Rendering.ConcurrentSessions,
		})
		chain = fetcher.NewComposite(httpFetcher, renderer)
	}

	var hosts *fetcher.HostLimiter
	if cfg.Fetch.PerHostDelay.Duration > 0 || cfg.Fetch.RateLimitPerHost.Enabled() {
		hosts = fetcher.NewHostLimiter(cfg.Fetch.PerHostDelay.Duration, fetcher.RateLimiterSettings{
			Requests: cfg.Fetch.RateLimitPerHost.Requests,
			Window:   cfg.Fetch.RateLimitPerHost.Window.Duration,
		})
	}
	var robotsAgent *robots.Agent
	if cfg.Robots.Respect {
		robotsAgent = robots.NewAgent(cfg.Robots, httpFetcher.Client())
	}
	if hosts != nil || robotsAgent != nil {
		chain = fetcher.NewPolite(chain, hosts, robotsAgent)
	}
	return chain, nil
}

// recorderAdapter maps the service's history record onto the store's type.
type recorderAdapter struct {
	store *history.Store
}

func (r recorderAdapter) SaveQuery(ctx context.Context, rec service.HistoryRecord) error {
	return r.store.SaveQuery(ctx, history.Record{
		AgentID:     rec.AgentID,
		Query:       rec.Query,
		MaxResults:  rec.MaxResults,
		ResultCount: rec.ResultCount,
		CacheHit:    rec.CacheHit,
		Duration:    rec.Duration,
		ExecutedAt:  rec.ExecutedAt,
	})
}

// NewLogger builds the process logger from configuration and installs it as
// the slog default.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if cfg.Structured {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
