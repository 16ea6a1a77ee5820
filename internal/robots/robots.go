// Package robots gates result-page fetches on the target site's robots.txt.
// The gateway acts on behalf of many agents but presents one crawler
// identity, so rules are resolved once per site and cached as the matched
// rule group for that identity.
package robots

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"websearch-mcp/internal/config"
)

// Agent answers allow/deny questions for result-page URLs. Construct one
// only when robots handling is enabled; a nil gate in the fetch chain means
// "fetch everything".
type Agent struct {
	client    *http.Client
	userAgent string
	ttl       time.Duration
	overrides map[string]struct{}

	mu    sync.RWMutex
	sites map[string]siteEntry

	now func() time.Time
}

// siteEntry caches the rule group matched for the gateway's user agent on
// one scheme://host origin.
type siteEntry struct {
	group     *robotstxt.Group
	expiresAt time.Time
}

// NewAgent builds a robots gate from configuration. Override hosts bypass
// robots.txt entirely.
func NewAgent(cfg config.RobotsConfig, client *http.Client) *Agent {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	ttl := cfg.CacheTTL.Duration
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	overrides := make(map[string]struct{}, len(cfg.Overrides))
	for _, host := range cfg.Overrides {
		host = strings.ToLower(strings.TrimSpace(host))
		if host == "" {
			continue
		}
		overrides[host] = struct{}{}
	}

	return &Agent{
		client:    client,
		userAgent: cfg.UserAgent,
		ttl:       ttl,
		overrides: overrides,
		sites:     make(map[string]siteEntry),
		now:       time.Now,
	}
}

// Allowed reports whether the target URL may be fetched.
func (a *Agent) Allowed(ctx context.Context, target *url.URL) bool {
	if target == nil || !target.IsAbs() {
		return false
	}
	if _, ok := a.overrides[strings.ToLower(target.Hostname())]; ok {
		return true
	}

	group, err := a.siteGroup(ctx, target)
	if err != nil {
		// Transport and parse failures fail open; a broken robots.txt
		// should not block previews.
		return true
	}
	if group == nil {
		return true
	}
	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}

// siteGroup returns the cached rule group for the target's origin, fetching
// and parsing robots.txt when the cache is cold or expired.
func (a *Agent) siteGroup(ctx context.Context, target *url.URL) (*robotstxt.Group, error) {
	origin := strings.ToLower(target.Scheme + "://" + target.Host)

	a.mu.RLock()
	entry, ok := a.sites[origin]
	a.mu.RUnlock()
	if ok && a.now().Before(entry.expiresAt) {
		return entry.group, nil
	}

	group, err := a.resolve(ctx, origin)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.sites[origin] = siteEntry{group: group, expiresAt: a.now().Add(a.ttl)}
	a.mu.Unlock()
	return group, nil
}

func (a *Agent) resolve(ctx context.Context, origin string) (*robotstxt.Group, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("build robots request: %w", err)
	}
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	// FromResponse applies the Google status semantics: any 4xx allows
	// everything, a 5xx disallows everything.
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data.FindGroup(a.userAgent), nil
}
