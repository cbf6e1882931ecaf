package robots

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rohmanhakim/webcrawler/internal/metadata"
	"github.com/rohmanhakim/webcrawler/internal/robots/cache"
	"github.com/rohmanhakim/webcrawler/pkg/failure"
)

/*
Responsibilities

- Fetch robots.txt per host, once
- Cache the mapped rule set for the crawl duration
- Answer allow/disallow and crawl-delay queries before any page fetch

Failure policy: a host whose robots.txt cannot be fetched (non-2xx or
transport error) gets an empty, permissive rule set cached in its place.
The failure is recorded for observability; it never blocks the crawl.
*/

// robotsFetchTimeout bounds the robots.txt fetch; it must stay well under
// the page fetch timeout so a dead host cannot stall admission.
const robotsFetchTimeout = 10 * time.Second

// Robot is the decision boundary workers consult before fetching.
type Robot interface {
	Decide(u url.URL) (Decision, failure.ClassifiedError)
}

// robotState holds the mutable cache shared by CachedRobot copies.
type robotState struct {
	userAgent string
	fetcher   *RobotsFetcher

	mu     sync.RWMutex
	rules  map[string]ruleSet
	flight singleflight.Group
}

// CachedRobot caches one ruleSet per host. Concurrent first-time lookups for
// the same host share a single fetch via singleflight; subsequent queries
// only take the read lock.
type CachedRobot struct {
	metadataSink metadata.MetadataSink
	state        *robotState
}

func NewCachedRobot(metadataSink metadata.MetadataSink) CachedRobot {
	return CachedRobot{
		metadataSink: metadataSink,
		state:        &robotState{rules: make(map[string]ruleSet)},
	}
}

// Init prepares the robot for the given user-agent with a fresh in-memory
// robots.txt response cache.
func (r *CachedRobot) Init(userAgent string) {
	r.InitWithCache(userAgent, cache.NewMemoryCache())
}

// InitWithCache prepares the robot with a caller-provided response cache.
func (r *CachedRobot) InitWithCache(userAgent string, c cache.Cache) {
	r.state.userAgent = userAgent
	r.state.fetcher = NewRobotsFetcherWithClient(
		r.metadataSink,
		userAgent,
		&http.Client{Timeout: robotsFetchTimeout},
		c,
	)
}

// Decide reports whether u may be fetched under the cached policy for its
// host, along with the host's declared crawl-delay (zero when absent).
func (r *CachedRobot) Decide(u url.URL) (Decision, failure.ClassifiedError) {
	rs, err := r.ruleSetFor(u.Scheme, u.Host)
	if err != nil {
		return Decision{}, err
	}

	allowed, reason := rs.decide(u.Path)

	decision := Decision{
		Url:     u,
		Allowed: allowed,
		Reason:  reason,
	}
	if delay := rs.CrawlDelay(); delay != nil {
		decision.CrawlDelay = *delay
	}
	return decision, nil
}

// CrawlDelay returns the crawl-delay declared for u's host, or zero.
func (r *CachedRobot) CrawlDelay(u url.URL) time.Duration {
	rs, err := r.ruleSetFor(u.Scheme, u.Host)
	if err != nil || rs.CrawlDelay() == nil {
		return 0
	}
	return *rs.CrawlDelay()
}

func (r *CachedRobot) ruleSetFor(scheme, host string) (ruleSet, failure.ClassifiedError) {
	if host == "" {
		return ruleSet{}, &RobotsError{
			Message:   "empty host",
			Retryable: false,
			Cause:     ErrCauseInvalidRobotsUrl,
		}
	}

	state := r.state

	state.mu.RLock()
	rs, exists := state.rules[host]
	state.mu.RUnlock()
	if exists {
		return rs, nil
	}

	// singleflight collapses concurrent first-time lookups for one host
	// into a single fetch; every caller receives the same rule set.
	filled, _, _ := state.flight.Do(host, func() (interface{}, error) {
		state.mu.RLock()
		cached, ok := state.rules[host]
		state.mu.RUnlock()
		if ok {
			return cached, nil
		}

		rs := r.fetchRuleSet(scheme, host)

		state.mu.Lock()
		state.rules[host] = rs
		state.mu.Unlock()

		return rs, nil
	})

	return filled.(ruleSet), nil
}

// fetchRuleSet fetches and maps one host's robots.txt. Any failure yields an
// empty, permissive rule set; the error is recorded, not propagated.
func (r *CachedRobot) fetchRuleSet(scheme, host string) ruleSet {
	ctx, cancel := context.WithTimeout(context.Background(), robotsFetchTimeout)
	defer cancel()

	result, fetchErr := r.state.fetcher.Fetch(ctx, scheme, host)
	if fetchErr != nil {
		r.metadataSink.RecordError(
			time.Now(),
			"robots",
			"CachedRobot.fetchRuleSet",
			mapRobotsErrorToMetadataCause(fetchErr),
			fetchErr.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrHost, host),
			},
		)
		return ruleSet{
			host:      host,
			userAgent: r.state.userAgent,
			fetchedAt: time.Now(),
		}
	}

	return MapResponseToRuleSet(result.Response, r.state.userAgent, result.FetchedAt)
}
