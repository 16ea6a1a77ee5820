package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"websearch-mcp/internal/robots"
	"websearch-mcp/pkg/types"
)

// ErrRobotsDisallowed marks a fetch rejected by the target's robots.txt.
var ErrRobotsDisallowed = errors.New("fetch disallowed by robots.txt")

// Polite wraps a Fetcher with robots.txt and per-host politeness checks.
// Either gate may be nil, in which case it is skipped.
type Polite struct {
	next   Fetcher
	hosts  *HostLimiter
	robots *robots.Agent
}

// NewPolite assembles the politeness wrapper.
func NewPolite(next Fetcher, hosts *HostLimiter, agent *robots.Agent) *Polite {
	return &Polite{next: next, hosts: hosts, robots: agent}
}

// Fetch applies the robots gate, paces requests per host, then delegates.
func (p *Polite) Fetch(ctx context.Context, rawURL string) (*types.FetchedPage, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	if p.robots != nil && !p.robots.Allowed(ctx, target) {
		return nil, fmt.Errorf("%w: %s", ErrRobotsDisallowed, rawURL)
	}
	if p.hosts != nil {
		if err := p.hosts.Wait(ctx, target.Hostname()); err != nil {
			return nil, fmt.Errorf("host limiter: %w", err)
		}
	}
	return p.next.Fetch(ctx, rawURL)
}
