// Package limiter guards the downstream search provider with a per-agent
// concurrency cap and a global sliding-window quota. All state is owned by
// the Limiter and mutated under a single lock; callers only see Acquire and
// Release.
package limiter

import (
	"fmt"
	"sync"
	"time"
)

// Kind classifies why an admission was rejected, so callers can apply
// different backoff strategies.
type Kind string

const (
	// PerAgentConcurrency means the agent already has the maximum number
	// of in-flight queries.
	PerAgentConcurrency Kind = "per_agent_concurrency"
	// GlobalRate means the trailing window already holds the maximum
	// number of accepted admissions.
	GlobalRate Kind = "global_rate"
)

// QuotaError is returned by Acquire when an admission is rejected.
type QuotaError struct {
	Kind    Kind
	AgentID string
	Limit   int
}

func (e *QuotaError) Error() string {
	switch e.Kind {
	case PerAgentConcurrency:
		return fmt.Sprintf("agent %s exceeded concurrent allowance (%d)", e.AgentID, e.Limit)
	case GlobalRate:
		return fmt.Sprintf("global web search quota exceeded (%d per window)", e.Limit)
	default:
		return fmt.Sprintf("quota exceeded (%s)", e.Kind)
	}
}

// Config holds the admission limits.
type Config struct {
	MaxConcurrentPerAgent int
	MaxQueriesPerMinute   int
	Window                time.Duration
}

// Limiter is an in-memory sliding-window admission controller with
// per-agent and global quotas.
type Limiter struct {
	cfg Config

	mu          sync.Mutex
	agentActive map[string]int
	window      []time.Time

	now func() time.Time
}

// New constructs a Limiter. A zero window defaults to one minute.
func New(cfg Config) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &Limiter{
		cfg:         cfg,
		agentActive: make(map[string]int),
		now:         time.Now,
	}
}

// Acquire reserves one concurrency slot for the agent and one global quota
// slot, or returns a *QuotaError. The check and the mutation are atomic.
func (l *Limiter) Acquire(agentID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneLocked(now)

	if l.agentActive[agentID] >= l.cfg.MaxConcurrentPerAgent {
		return &QuotaError{
			Kind:    PerAgentConcurrency,
			AgentID: agentID,
			Limit:   l.cfg.MaxConcurrentPerAgent,
		}
	}
	if len(l.window) >= l.cfg.MaxQueriesPerMinute {
		return &QuotaError{
			Kind:    GlobalRate,
			AgentID: agentID,
			Limit:   l.cfg.MaxQueriesPerMinute,
		}
	}

	l.agentActive[agentID]++
	l.window = append(l.window, now)
	return nil
}

// Release returns the agent's slot. Releasing an agent with no outstanding
// admissions is a no-op, which makes duplicate release after a failed
// Acquire harmless. The global window is untouched: it counts accepted
// admissions and only prunes by age.
func (l *Limiter) Release(agentID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.agentActive[agentID] > 0 {
		l.agentActive[agentID]--
	}
}

// pruneLocked drops window timestamps older than now - window. Callers must
// hold l.mu.
func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.cfg.Window)
	idx := 0
	for idx < len(l.window) && l.window[idx].Before(cutoff) {
		idx++
	}
	if idx == 0 {
		return
	}
	remaining := len(l.window) - idx
	copy(l.window, l.window[idx:])
	l.window = l.window[:remaining]
}
