package limiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rohmanhakim/webcrawler/pkg/timeutil"
)

// Gate enforces the crawl's politeness policy: a global cap on in-flight
// acquisitions bounds burstiness across all hosts, while a per-host minimum
// spacing (tracked by an embedded RateLimiter) keeps any single host from
// being hit faster than its configured delay allows.
type Gate struct {
	limiter  RateLimiter
	global   *semaphore.Weighted
	sleeper  timeutil.Sleeper
	hostMu   sync.Mutex
	hostLock map[string]*sync.Mutex
}

// NewGate builds a Gate whose global in-flight cap is 2*requestsPerSecond, per
// the crawl's target throughput. requestsPerSecond <= 0 disables the cap.
func NewGate(limiter RateLimiter, requestsPerSecond int) *Gate {
	cap := int64(requestsPerSecond) * 2
	if cap <= 0 {
		cap = 1 << 30
	}

	return &Gate{
		limiter:  limiter,
		global:   semaphore.NewWeighted(cap),
		sleeper:  timeutil.NewRealSleeper(),
		hostLock: make(map[string]*sync.Mutex),
	}
}

// SetSleeper overrides the sleep implementation, primarily for tests.
func (g *Gate) SetSleeper(s timeutil.Sleeper) {
	g.hostMu.Lock()
	defer g.hostMu.Unlock()
	g.sleeper = s
}

func (g *Gate) lockFor(host string) *sync.Mutex {
	g.hostMu.Lock()
	defer g.hostMu.Unlock()

	lock, exists := g.hostLock[host]
	if !exists {
		lock = &sync.Mutex{}
		g.hostLock[host] = lock
	}
	return lock
}

// Acquire blocks until it is the caller's turn to fetch from host: it obtains
// one global permit, waits out host's remaining minimum spacing under a
// per-host lock, marks the host as fetched now, then releases the global
// permit. Two concurrent calls for the same host are serialized; calls for
// different hosts may proceed concurrently up to the global cap.
func (g *Gate) Acquire(ctx context.Context, host string) error {
	if err := g.global.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.global.Release(1)

	lock := g.lockFor(host)
	lock.Lock()
	defer lock.Unlock()

	if delay := g.limiter.ResolveDelay(host); delay > 0 {
		if err := g.sleeper.Sleep(ctx, delay); err != nil {
			return err
		}
	}

	g.limiter.MarkLastFetchAsNow(host)
	return nil
}

// InstallDelay overrides D_host for a specific host, used by the worker when
// robots declares a crawl-delay.
func (g *Gate) InstallDelay(host string, d time.Duration) {
	g.limiter.SetCrawlDelay(host, d)
}
