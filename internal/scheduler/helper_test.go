package scheduler_test

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/webcrawler/internal/config"
	"github.com/rohmanhakim/webcrawler/internal/extractor"
	"github.com/rohmanhakim/webcrawler/internal/fetcher"
	"github.com/rohmanhakim/webcrawler/internal/frontier"
	"github.com/rohmanhakim/webcrawler/internal/links"
	"github.com/rohmanhakim/webcrawler/internal/metadata"
	"github.com/rohmanhakim/webcrawler/internal/robots"
	"github.com/rohmanhakim/webcrawler/internal/scheduler"
	"github.com/rohmanhakim/webcrawler/internal/storage"
	"github.com/rohmanhakim/webcrawler/pkg/failure"
	"github.com/rohmanhakim/webcrawler/pkg/limiter"
	"github.com/rohmanhakim/webcrawler/pkg/retry"
)

// schedulerTestSink satisfies MetadataSink and CrawlFinalizer, capturing
// only the final stats.
type schedulerTestSink struct {
	mu         sync.Mutex
	finalCalls int
}

func (s *schedulerTestSink) RecordFetch(string, int, time.Duration, string, int, int) {}
func (s *schedulerTestSink) RecordError(time.Time, string, string, metadata.ErrorCause, string, []metadata.Attribute) {
}
func (s *schedulerTestSink) RecordArtifact(metadata.ArtifactKind, string, []metadata.Attribute) {}

func (s *schedulerTestSink) RecordFinalCrawlStats(int, int, int, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalCalls++
}

// stubPage is one deterministic response served by the stub fetcher.
type stubPage struct {
	html        string
	contentType string
	statusCode  int
	failWith    string
}

// stubFetcher serves deterministic pages keyed by URL and records every
// fetch it performs.
type stubFetcher struct {
	mu      sync.Mutex
	pages   map[string]stubPage
	fetched []string
}

func newStubFetcher(pages map[string]stubPage) *stubFetcher {
	return &stubFetcher{pages: pages}
}

func (f *stubFetcher) Fetch(
	ctx context.Context,
	fetchParam fetcher.FetchParam,
	retryParam retry.RetryParam,
) (fetcher.FetchResult, failure.ClassifiedError) {
	fetchURL := fetchParam.FetchURL()
	key := fetchURL.String()

	f.mu.Lock()
	f.fetched = append(f.fetched, key)
	page, known := f.pages[key]
	f.mu.Unlock()

	if !known {
		page = stubPage{html: "<html></html>", contentType: "text/html", statusCode: 404}
	}

	status := fetcher.StatusCompleted
	if page.failWith != "" {
		status = fetcher.StatusFailed
	} else if page.contentType != "" && page.contentType != "text/html" {
		status = fetcher.StatusSkipped
	}

	contentType := page.contentType
	if contentType == "" {
		contentType = "text/html"
	}
	statusCode := page.statusCode
	if statusCode == 0 {
		statusCode = 200
	}

	html := page.html
	if status != fetcher.StatusCompleted {
		html = ""
	}

	return fetcher.NewFetchResultForTest(
		fetchURL,
		html,
		status,
		page.failWith,
		statusCode,
		contentType,
		map[string]string{"Content-Type": contentType},
		fetchParam.Depth(),
		fetchParam.ParentURL(),
		5*time.Millisecond,
		time.Now(),
	), nil
}

func (f *stubFetcher) Close() error {
	return nil
}

func (f *stubFetcher) fetchedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	urls := make([]string, len(f.fetched))
	copy(urls, f.fetched)
	return urls
}

// permissiveRobot allows everything; used when a scenario is not about robots.
type permissiveRobot struct{}

func (permissiveRobot) Decide(u url.URL) (robots.Decision, failure.ClassifiedError) {
	return robots.Decision{Url: u, Allowed: true, Reason: robots.EmptyRuleSet}, nil
}

// countingExtractor wraps the real extractor and counts invocations.
type countingExtractor struct {
	mu    sync.Mutex
	inner extractor.Extractor
	calls int
}

func (c *countingExtractor) Extract(pageURL url.URL, body string) (extractor.ExtractionResult, failure.ClassifiedError) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.inner.Extract(pageURL, body)
}

func (c *countingExtractor) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// testCrawlConfig builds a fast, deterministic config for stub-backed runs.
func testCrawlConfig(t *testing.T, seeds []string) config.Config {
	t.Helper()
	seedURLs := make([]url.URL, 0, len(seeds))
	for _, raw := range seeds {
		parsed, err := url.Parse(raw)
		require.NoError(t, err)
		seedURLs = append(seedURLs, *parsed)
	}

	cfg, err := config.WithDefault(seedURLs).
		WithRespectRobots(false).
		WithPerDomainDelay(0).
		WithRetryDelay(10 * time.Millisecond).
		WithNumWorkers(2).
		WithStorageBackend(config.StorageBackendMemory).
		Build()
	require.NoError(t, err)
	return cfg
}

type testHarness struct {
	scheduler *scheduler.Scheduler
	sink      *schedulerTestSink
	frontier  *frontier.MemoryFrontier
	storage   *storage.MemoryStorage
	extractor *countingExtractor
}

// newTestHarness assembles a scheduler over in-memory components, a stub
// fetcher, and a permissive robot.
func newTestHarness(t *testing.T, cfg config.Config, fetchStub fetcher.Fetcher, robot robots.Robot) *testHarness {
	t.Helper()

	sink := &schedulerTestSink{}

	rateLimiter := limiter.NewConcurrentRateLimiter()
	rateLimiter.SetBaseDelay(cfg.PerDomainDelay())
	gate := limiter.NewGate(rateLimiter, 8)

	domExtractor := extractor.NewDomExtractor(sink)
	counting := &countingExtractor{inner: &domExtractor}

	linkExtractor := links.NewLinkExtractor(sink, links.NewPolicy(
		cfg.AllowedDomains(),
		cfg.SameDomainOnly(),
		cfg.ExcludedPatterns(),
	))

	memFrontier := frontier.NewMemoryFrontier()
	memStorage := storage.NewMemoryStorage()

	if robot == nil {
		robot = permissiveRobot{}
	}

	sched := scheduler.NewSchedulerWithDeps(
		cfg,
		sink,
		sink,
		memFrontier,
		robot,
		gate,
		fetchStub,
		nil,
		counting,
		linkExtractor,
		memStorage,
	)
	sched.SetEmptyPollDelay(20 * time.Millisecond)

	return &testHarness{
		scheduler: sched,
		sink:      sink,
		frontier:  memFrontier,
		storage:   memStorage,
		extractor: counting,
	}
}

// schedulerWithRealFetcher assembles a scheduler whose static fetcher and
// robots gate are real, for scenarios that exercise HTTP behavior end to
// end against an httptest server.
func schedulerWithRealFetcher(t *testing.T, cfg config.Config) (*testHarness, error) {
	t.Helper()

	sink := &schedulerTestSink{}

	rateLimiter := limiter.NewConcurrentRateLimiter()
	rateLimiter.SetBaseDelay(cfg.PerDomainDelay())
	gate := limiter.NewGate(rateLimiter, 8)

	robot := robots.NewCachedRobot(sink)
	robot.Init(cfg.UserAgent())

	staticFetcher := fetcher.NewHtmlFetcher(sink, fetcher.FetchPolicy{
		RequestTimeout:  cfg.RequestTimeout(),
		FollowRedirects: cfg.FollowRedirects(),
		MaxRedirects:    cfg.MaxRedirects(),
	})

	domExtractor := extractor.NewDomExtractor(sink)
	counting := &countingExtractor{inner: &domExtractor}

	linkExtractor := links.NewLinkExtractor(sink, links.NewPolicy(
		cfg.AllowedDomains(),
		cfg.SameDomainOnly(),
		cfg.ExcludedPatterns(),
	))

	memFrontier := frontier.NewMemoryFrontier()
	memStorage := storage.NewMemoryStorage()

	sched := scheduler.NewSchedulerWithDeps(
		cfg,
		sink,
		sink,
		memFrontier,
		&robot,
		gate,
		&staticFetcher,
		nil,
		counting,
		linkExtractor,
		memStorage,
	)
	sched.SetEmptyPollDelay(20 * time.Millisecond)

	return &testHarness{
		scheduler: sched,
		sink:      sink,
		frontier:  memFrontier,
		storage:   memStorage,
		extractor: counting,
	}, nil
}
