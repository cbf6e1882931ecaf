package scheduler

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rohmanhakim/webcrawler/internal/config"
	"github.com/rohmanhakim/webcrawler/internal/extractor"
	"github.com/rohmanhakim/webcrawler/internal/fetcher"
	"github.com/rohmanhakim/webcrawler/internal/frontier"
	"github.com/rohmanhakim/webcrawler/internal/links"
	"github.com/rohmanhakim/webcrawler/internal/metadata"
	"github.com/rohmanhakim/webcrawler/internal/robots"
	"github.com/rohmanhakim/webcrawler/internal/storage"
	"github.com/rohmanhakim/webcrawler/pkg/failure"
	"github.com/rohmanhakim/webcrawler/pkg/limiter"
	"github.com/rohmanhakim/webcrawler/pkg/timeutil"
	"github.com/rohmanhakim/webcrawler/pkg/urlutil"
)

/*
 Scheduler is the sole control-plane authority of the crawl.

 Determinism and admission guarantees:
 - The scheduler seeds the frontier and owns the worker pool; workers are
   the only producers after seeding, and child admission always goes
   through Frontier.Add's dedup/depth checks.
 - Pipeline stages (robots, fetcher, extractor, links, storage) may detect
   and classify failure, but never decide retry, continuation, or abortion;
   those calls live in the worker loop.
 - Metadata emission is observational only and MUST NOT influence
   scheduling, retries, or crawl termination.

 Scheduler Responsibilities:
 - Validate configuration (fatal before any work)
 - Instantiate components per the configured backends
 - Seed the frontier, spawn num_workers workers, observe termination
 - Aggregate crawl statistics; stamp start/end
 - Tear every resource down, swallowing cleanup failures so one cannot
   mask another
*/

const defaultEmptyPollDelay = 500 * time.Millisecond

type Scheduler struct {
	cfg            config.Config
	metadataSink   metadata.MetadataSink
	crawlFinalizer metadata.CrawlFinalizer
	frontier       frontier.Frontier
	robot          robots.Robot
	gate           *limiter.Gate
	staticFetcher  fetcher.Fetcher
	dynamicFetcher fetcher.Fetcher
	domExtractor   extractor.Extractor
	linkExtractor  links.LinkExtractor
	storageSink    storage.Storage
	stats          *CrawlStats
	progress       ProgressFunc
	sleeper        timeutil.Sleeper
	emptyPollDelay time.Duration
	stopped        atomic.Bool
}

// NewScheduler wires a scheduler from configuration. Misconfiguration is
// fatal here, before any component touches the network.
func NewScheduler(cfg config.Config) (*Scheduler, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}

	recorder := metadata.NewRecorder(fmt.Sprintf("crawl-%d", time.Now().Unix()))

	rateLimiter := limiter.NewConcurrentRateLimiter()
	rateLimiter.SetBaseDelay(cfg.PerDomainDelay())
	rateLimiter.SetJitter(cfg.Jitter())
	rateLimiter.SetRandomSeed(cfg.RandomSeed())
	gate := limiter.NewGate(rateLimiter, int(math.Ceil(cfg.RequestsPerSecond())))

	robot := robots.NewCachedRobot(&recorder)
	robot.Init(cfg.UserAgent())

	staticFetcher := fetcher.NewHtmlFetcher(&recorder, fetcher.FetchPolicy{
		RequestTimeout:  cfg.RequestTimeout(),
		FollowRedirects: cfg.FollowRedirects(),
		MaxRedirects:    cfg.MaxRedirects(),
	})

	domExtractor := extractor.NewDomExtractor(&recorder)
	linkExtractor := links.NewLinkExtractor(&recorder, links.NewPolicy(
		cfg.AllowedDomains(),
		cfg.SameDomainOnly(),
		cfg.ExcludedPatterns(),
	))

	frontierImpl, err := buildFrontier(cfg, &recorder)
	if err != nil {
		return nil, err
	}

	storageImpl, err := buildStorage(cfg, &recorder)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		cfg:            cfg,
		metadataSink:   &recorder,
		crawlFinalizer: &recorder,
		frontier:       frontierImpl,
		robot:          &robot,
		gate:           gate,
		staticFetcher:  &staticFetcher,
		domExtractor:   &domExtractor,
		linkExtractor:  linkExtractor,
		storageSink:    storageImpl,
		stats:          NewCrawlStats(),
		sleeper:        timeutil.NewRealSleeper(),
		emptyPollDelay: defaultEmptyPollDelay,
	}, nil
}

// NewSchedulerWithDeps creates a Scheduler with injected dependencies for
// testing. Every dependency is used as given; nothing is constructed in
// place of a nil one. A nil dynamicFetcher routes every request to
// staticFetcher.
func NewSchedulerWithDeps(
	cfg config.Config,
	metadataSink metadata.MetadataSink,
	crawlFinalizer metadata.CrawlFinalizer,
	frontierImpl frontier.Frontier,
	robot robots.Robot,
	gate *limiter.Gate,
	staticFetcher fetcher.Fetcher,
	dynamicFetcher fetcher.Fetcher,
	domExtractor extractor.Extractor,
	linkExtractor links.LinkExtractor,
	storageImpl storage.Storage,
) *Scheduler {
	return &Scheduler{
		cfg:            cfg,
		metadataSink:   metadataSink,
		crawlFinalizer: crawlFinalizer,
		frontier:       frontierImpl,
		robot:          robot,
		gate:           gate,
		staticFetcher:  staticFetcher,
		dynamicFetcher: dynamicFetcher,
		domExtractor:   domExtractor,
		linkExtractor:  linkExtractor,
		storageSink:    storageImpl,
		stats:          NewCrawlStats(),
		sleeper:        timeutil.NewRealSleeper(),
		emptyPollDelay: defaultEmptyPollDelay,
	}
}

func validate(cfg config.Config) failure.ClassifiedError {
	validationTarget := cfg
	return (&validationTarget).Validate()
}

func buildFrontier(cfg config.Config, sink metadata.MetadataSink) (frontier.Frontier, error) {
	switch cfg.FrontierBackend() {
	case config.FrontierBackendRedis:
		return frontier.NewRedisFrontier(sink, cfg.RedisAddr(), cfg.RedisKeyPrefix()), nil
	default:
		return frontier.NewMemoryFrontier(), nil
	}
}

func buildStorage(cfg config.Config, sink metadata.MetadataSink) (storage.Storage, error) {
	switch cfg.StorageBackend() {
	case config.StorageBackendMemory:
		return storage.NewMemoryStorage(), nil
	case config.StorageBackendMongo:
		return storage.NewMongoStorage(
			context.Background(),
			sink,
			cfg.MongoURI(),
			cfg.MongoDatabase(),
			cfg.MongoCollection(),
		)
	default:
		return storage.NewFileStorage(sink, cfg.StoragePath())
	}
}

// SetRenderer installs a headless-browser driver, enabling the dynamic
// fetcher for URLs matching the configured dynamic patterns.
func (s *Scheduler) SetRenderer(renderer fetcher.Renderer) {
	if !s.cfg.EnableDynamic() || renderer == nil {
		return
	}
	dynamic := fetcher.NewDynamicFetcher(s.metadataSink, renderer, s.cfg.DynamicWaitTime())
	s.dynamicFetcher = &dynamic
}

// SetProgressCallback installs the per-result callback. Panics inside it
// are suppressed.
func (s *Scheduler) SetProgressCallback(fn ProgressFunc) {
	s.progress = fn
}

// SetEmptyPollDelay overrides the worker's empty-frontier poll interval,
// primarily for tests.
func (s *Scheduler) SetEmptyPollDelay(d time.Duration) {
	if d > 0 {
		s.emptyPollDelay = d
	}
}

// Stop asks every worker to exit at the top of its loop.
func (s *Scheduler) Stop() {
	s.stopped.Store(true)
}

// ExecuteCrawl seeds the frontier, runs the worker pool to termination, and
// returns the crawl's statistics. Individual URL failures never abort the
// run; the returned error is reserved for startup problems.
func (s *Scheduler) ExecuteCrawl(ctx context.Context) (CrawlReport, error) {
	seeds := s.cfg.SeedURLs()
	if len(seeds) == 0 {
		return CrawlReport{}, &config.ConfigError{Field: "seed_urls", Message: "cannot be empty"}
	}

	s.stats.MarkStart(time.Now())
	defer func() {
		s.stats.MarkEnd(time.Now())
		report := s.stats.Snapshot()
		s.crawlFinalizer.RecordFinalCrawlStats(
			int(report.PagesCrawled),
			int(report.PagesFailed),
			int(report.PagesSkipped),
			report.Duration,
		)
	}()

	seeded := 0
	for _, seed := range seeds {
		normalized, err := urlutil.NormalizeString(seed.String())
		if err != nil {
			s.metadataSink.RecordError(
				time.Now(),
				"scheduler",
				"Scheduler.ExecuteCrawl",
				metadata.CauseInvariantViolation,
				fmt.Sprintf("seed rejected: %v", err),
				[]metadata.Attribute{
					metadata.NewAttr(metadata.AttrURL, seed.String()),
				},
			)
			continue
		}
		if s.frontier.Add(frontier.NewSeedRequest(normalized, s.cfg.MaxDepth())) {
			seeded++
		}
	}
	if seeded == 0 {
		s.closeAll()
		return s.stats.Snapshot(), &config.ConfigError{Field: "seed_urls", Message: "no usable seed URLs"}
	}
	s.stats.AddURLsFound(int64(seeded))

	retryParam := RetryParam(s.cfg)

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.NumWorkers(); i++ {
		w := &worker{
			id:             i,
			cfg:            s.cfg,
			frontier:       s.frontier,
			robot:          s.robot,
			gate:           s.gate,
			staticFetcher:  s.staticFetcher,
			dynamicFetcher: s.dynamicFetcher,
			domExtractor:   s.domExtractor,
			linkExtractor:  s.linkExtractor,
			storageSink:    s.storageSink,
			stats:          s.stats,
			metadataSink:   s.metadataSink,
			progress:       s.progress,
			stopped:        &s.stopped,
			retryParam:     retryParam,
			sleeper:        s.sleeper,
			emptyPollDelay: s.emptyPollDelay,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.run(ctx)
		}()
	}
	wg.Wait()

	s.closeAll()

	return s.stats.Snapshot(), nil
}

// closeAll releases every component, swallowing failures so one close
// cannot mask another.
func (s *Scheduler) closeAll() {
	closers := []func() error{
		func() error { return s.staticFetcher.Close() },
		func() error {
			if s.dynamicFetcher == nil {
				return nil
			}
			return s.dynamicFetcher.Close()
		},
		func() error {
			if err := s.storageSink.Close(); err != nil {
				return err
			}
			return nil
		},
		func() error { return s.frontier.Close() },
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			s.metadataSink.RecordError(
				time.Now(),
				"scheduler",
				"Scheduler.closeAll",
				metadata.CauseUnknown,
				err.Error(),
				nil,
			)
		}
	}
}
