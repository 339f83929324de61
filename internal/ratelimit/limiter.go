package ratelimit

import (
	"context"
	"sync"
	"time"
)

// domainState holds the per-hostname scheduling counters. Run-scoped; never
// persisted.
type domainState struct {
	active       int
	lastIssued   time.Time
	totalChecked int
	totalBroken  int
}

// DomainStats is a read-only copy of one hostname's counters.
type DomainStats struct {
	Hostname     string
	TotalChecked int
	TotalBroken  int
}

type Config struct {
	// PerDomain caps concurrent in-flight requests per hostname.
	PerDomain int
	// MinInterval is the minimum spacing between requests issued to the
	// same hostname.
	MinInterval time.Duration
}

// DomainLimiter gates requests per destination hostname: at most PerDomain
// in flight and at least MinInterval between issue times. Hostnames are
// fully independent of one another.
type DomainLimiter struct {
	mu      sync.Mutex
	domains map[string]*domainState
	cfg     Config
	now     func() time.Time
}

func New(cfg Config) *DomainLimiter {
	if cfg.PerDomain <= 0 {
		cfg.PerDomain = 2
	}
	return &DomainLimiter{
		domains: make(map[string]*domainState),
		cfg:     cfg,
		now:     time.Now,
	}
}

// Acquire blocks until a slot for the hostname is free and the minimum
// interval since the last issued request has elapsed, then reserves the
// slot. Returns early only on context cancellation.
func (l *DomainLimiter) Acquire(ctx context.Context, hostname string) error {
	for {
		wait, ok := l.tryAcquire(hostname)
		if ok {
			return nil
		}
		if wait <= 0 {
			wait = 25 * time.Millisecond
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// tryAcquire re-checks both conditions under the lock so two waiters can
// never both observe a free slot. Returns how long to wait before retrying.
func (l *DomainLimiter) tryAcquire(hostname string) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.domains[hostname]
	if !ok {
		st = &domainState{}
		l.domains[hostname] = st
	}

	if st.active >= l.cfg.PerDomain {
		return 25 * time.Millisecond, false
	}
	if l.cfg.MinInterval > 0 && !st.lastIssued.IsZero() {
		elapsed := l.now().Sub(st.lastIssued)
		if elapsed < l.cfg.MinInterval {
			return l.cfg.MinInterval - elapsed, false
		}
	}

	st.active++
	st.lastIssued = l.now()
	return 0, true
}

// Release frees the hostname's slot and records the outcome for reporting.
func (l *DomainLimiter) Release(hostname string, broken bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.domains[hostname]
	if !ok {
		return
	}
	if st.active > 0 {
		st.active--
	}
	st.totalChecked++
	if broken {
		st.totalBroken++
	}
}

// Snapshot returns per-domain totals accumulated during the run.
func (l *DomainLimiter) Snapshot() []DomainStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]DomainStats, 0, len(l.domains))
	for host, st := range l.domains {
		out = append(out, DomainStats{
			Hostname:     host,
			TotalChecked: st.totalChecked,
			TotalBroken:  st.totalBroken,
		})
	}
	return out
}
