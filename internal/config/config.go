package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures the full configuration for the web search gateway.
type Config struct {
	Search    SearchConfig    `yaml:"search"`
	Limits    LimitsConfig    `yaml:"limits"`
	Cache     CacheConfig     `yaml:"cache"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Rendering RenderingConfig `yaml:"rendering"`
	Robots    RobotsConfig    `yaml:"robots"`
	History   HistoryConfig   `yaml:"history"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SearchConfig selects and parametrises the upstream search provider.
type SearchConfig struct {
	Provider       string   `yaml:"provider"`
	EndpointURL    string   `yaml:"endpoint_url"`
	APIKey         string   `yaml:"api_key"`
	Language       string   `yaml:"language"`
	UserAgent      string   `yaml:"user_agent"`
	RequestTimeout Duration `yaml:"request_timeout"`
	UseStubData    bool     `yaml:"use_stub_data"`
}

// LimitsConfig controls query admission: per-agent concurrency and the
// global sliding-window quota.
type LimitsConfig struct {
	MaxConcurrentPerAgent int      `yaml:"max_concurrent_per_agent"`
	MaxQueriesPerMinute   int      `yaml:"max_queries_per_minute"`
	Window                Duration `yaml:"window"`
}

// CacheConfig controls the in-memory query result cache.
type CacheConfig struct {
	Enabled bool     `yaml:"enabled"`
	TTL     Duration `yaml:"ttl"`
}

// FetchConfig controls fetching of top result pages.
type FetchConfig struct {
	Enabled          bool              `yaml:"enabled"`
	MaxPages         int               `yaml:"max_pages"`
	Timeout          Duration          `yaml:"timeout"`
	MaxBodyBytes     int64             `yaml:"max_body_bytes"`
	UserAgent        string            `yaml:"user_agent"`
	Headers          map[string]string `yaml:"headers"`
	ProxyURL         string            `yaml:"proxy_url"`
	PerHostDelay     Duration          `yaml:"per_host_delay"`
	RateLimitPerHost RateLimitConfig   `yaml:"rate_limit_per_host"`
}

// RateLimitConfig applies a token bucket per host.
type RateLimitConfig struct {
	Requests int      `yaml:"requests"`
	Window   Duration `yaml:"window"`
}

// RenderingConfig controls optional JavaScript rendering of fetched pages.
type RenderingConfig struct {
	Enabled            bool     `yaml:"enabled"`
	Engine             string   `yaml:"engine"`
	Timeout            Duration `yaml:"timeout"`
	WaitForSelector    string   `yaml:"wait_for_selector"`
	ConcurrentSessions int      `yaml:"concurrent_sessions"`
	DisableHeadless    bool     `yaml:"disable_headless"`
}

// RobotsConfig configures robots.txt handling for page fetches.
type RobotsConfig struct {
	Respect   bool     `yaml:"respect"`
	Overrides []string `yaml:"overrides"`
	UserAgent string   `yaml:"user_agent"`
	CacheTTL  Duration `yaml:"cache_ttl"`
}

// HistoryConfig describes the optional relational query log.
type HistoryConfig struct {
	Driver          string   `yaml:"driver"`
	DSN             string   `yaml:"dsn"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
	RetentionDays   int      `yaml:"retention_days"`
	AutoMigrate     bool     `yaml:"auto_migrate"`
}

// LoggingConfig selects log verbosity and format.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Structured bool   `yaml:"structured"`
}

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		Search: SearchConfig{
			Provider:       "duckduckgo_html",
			EndpointURL:    "https://html.duckduckgo.com/html/",
			Language:       "us-en",
			UserAgent:      "Mozilla/5.0 (compatible; WebSearchBot/0.1; +https://example.com/bot)",
			RequestTimeout: DurationFrom(15 * time.Second),
		},
		Limits: LimitsConfig{
			MaxConcurrentPerAgent: 5,
			MaxQueriesPerMinute:   60,
			Window:                DurationFrom(60 * time.Second),
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     DurationFrom(10 * time.Minute),
		},
		Fetch: FetchConfig{
			Enabled:      true,
			MaxPages:     3,
			Timeout:      DurationFrom(15 * time.Second),
			MaxBodyBytes: 5 * 1024 * 1024,
			Headers:      map[string]string{},
			PerHostDelay: DurationFrom(250 * time.Millisecond),
		},
		Rendering: RenderingConfig{
			Enabled:            false,
			Engine:             "chromedp",
			Timeout:            DurationFrom(15 * time.Second),
			ConcurrentSessions: 2,
		},
		Robots: RobotsConfig{
			Respect:   false,
			Overrides: []string{},
			UserAgent: "WebSearchBot/0.1",
			CacheTTL:  DurationFrom(6 * time.Hour),
		},
		History: HistoryConfig{
			Driver:        "postgres",
			RetentionDays: 30,
			AutoMigrate:   true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Structured: true,
		},
	}
}

// Load reads, merges, and validates configuration from a YAML file.
// Secrets may come from the environment instead of the file: SEARCH_API_KEY
// and WEBSEARCH_DB_DSN override their YAML counterparts.
func Load(path string) (*Config, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer fh.Close()

	cfg := Default()
	if err := decodeYAML(fh, &cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.normalise()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromReader decodes configuration from an arbitrary reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decodeYAML(r, &cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// Validate enforces required invariants for the gateway configuration.
func (c Config) Validate() error {
	switch c.Search.Provider {
	case "duckduckgo_html", "bing", "bing_api", "stub":
	default:
		return fmt.Errorf("search.provider %q is not supported", c.Search.Provider)
	}
	if strings.TrimSpace(c.Search.EndpointURL) == "" && c.Search.Provider != "stub" {
		return errors.New("search.endpoint_url must be set")
	}
	if strings.TrimSpace(c.Search.UserAgent) == "" {
		return errors.New("search.user_agent must be set")
	}
	if c.Limits.MaxConcurrentPerAgent <= 0 {
		return fmt.Errorf("limits.max_concurrent_per_agent must be > 0 (got %d)", c.Limits.MaxConcurrentPerAgent)
	}
	if c.Limits.MaxQueriesPerMinute <= 0 {
		return fmt.Errorf("limits.max_queries_per_minute must be > 0 (got %d)", c.Limits.MaxQueriesPerMinute)
	}
	if c.Limits.Window.IsZero() {
		return errors.New("limits.window must be > 0")
	}
	if c.Cache.Enabled && c.Cache.TTL.IsZero() {
		return errors.New("cache.ttl must be > 0 when cache.enabled is true")
	}
	if c.Fetch.Enabled {
		if c.Fetch.MaxPages < 0 {
			return fmt.Errorf("fetch.max_pages must be >= 0 (got %d)", c.Fetch.MaxPages)
		}
		if c.Fetch.MaxBodyBytes <= 0 {
			return fmt.Errorf("fetch.max_body_bytes must be > 0 (got %d)", c.Fetch.MaxBodyBytes)
		}
		if rl := c.Fetch.RateLimitPerHost; rl.Requests < 0 {
			return fmt.Errorf("fetch.rate_limit_per_host.requests must be >= 0 (got %d)", rl.Requests)
		}
	}
	if c.Robots.Respect && strings.TrimSpace(c.Robots.UserAgent) == "" {
		return errors.New("robots.user_agent must be set when robots.respect is true")
	}
	if c.History.DSN != "" && c.History.Driver == "" {
		return errors.New("history.driver must be set when history.dsn is configured")
	}
	if c.History.RetentionDays < 0 {
		return fmt.Errorf("history.retention_days must be >= 0 (got %d)", c.History.RetentionDays)
	}
	return nil
}

func (c *Config) applyEnv() {
	if key := os.Getenv("SEARCH_API_KEY"); key != "" {
		c.Search.APIKey = key
	}
	if dsn := os.Getenv("WEBSEARCH_DB_DSN"); dsn != "" {
		c.History.DSN = dsn
	}
}

func (c *Config) normalise() {
	c.Search.Provider = strings.ToLower(strings.TrimSpace(c.Search.Provider))
	c.Search.EndpointURL = strings.TrimSpace(c.Search.EndpointURL)
	c.Search.UserAgent = strings.TrimSpace(c.Search.UserAgent)
	c.Search.Language = strings.TrimSpace(c.Search.Language)
	c.Robots.UserAgent = strings.TrimSpace(c.Robots.UserAgent)
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = c.Search.UserAgent
	}
	if c.Fetch.Headers == nil {
		c.Fetch.Headers = map[string]string{}
	}

	// Ensure overrides are de-duplicated and normalised to lower case.
	if len(c.Robots.Overrides) > 0 {
		unique := make(map[string]struct{}, len(c.Robots.Overrides))
		cleaned := make([]string, 0, len(c.Robots.Overrides))
		for _, raw := range c.Robots.Overrides {
			host := strings.ToLower(strings.TrimSpace(raw))
			if host == "" {
				continue
			}
			if _, exists := unique[host]; exists {
				continue
			}
			unique[host] = struct{}{}
			cleaned = append(cleaned, host)
		}
		sort.Strings(cleaned)
		c.Robots.Overrides = cleaned
	}
}

// Enabled reports whether per-host rate limiting is active.
func (r RateLimitConfig) Enabled() bool {
	return r.Requests > 0 && !r.Window.IsZero()
}

// Stubbed reports whether the provider must fall back to stub data, either
// explicitly or because a key-requiring provider has no API key.
func (s SearchConfig) Stubbed() bool {
	if s.UseStubData || s.Provider == "stub" {
		return true
	}
	requiresKey := s.Provider == "bing" || s.Provider == "bing_api"
	return requiresKey && s.APIKey == ""
}
