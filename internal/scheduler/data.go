package scheduler

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rohmanhakim/webcrawler/internal/config"
	"github.com/rohmanhakim/webcrawler/internal/storage"
	"github.com/rohmanhakim/webcrawler/pkg/retry"
	"github.com/rohmanhakim/webcrawler/pkg/timeutil"
)

// ProgressFunc is invoked once per persisted result. A panicking callback
// is suppressed; it can never take a worker down.
type ProgressFunc func(record storage.Record)

// CrawlStats is the live, shared counter set workers update as they go.
// Counters are atomics; the domain set and timestamps take the one mutex.
// It must never be read to make scheduling decisions other than the
// max-pages budget check.
type CrawlStats struct {
	urlsFound       atomic.Int64
	pagesCrawled    atomic.Int64
	pagesFailed     atomic.Int64
	pagesSkipped    atomic.Int64
	bytesDownloaded atomic.Int64

	mu         sync.Mutex
	domains    map[string]struct{}
	startedAt  time.Time
	finishedAt time.Time
}

func NewCrawlStats() *CrawlStats {
	return &CrawlStats{
		domains: make(map[string]struct{}),
	}
}

func (s *CrawlStats) AddURLsFound(n int64) {
	s.urlsFound.Add(n)
}

func (s *CrawlStats) IncrCrawled() {
	s.pagesCrawled.Add(1)
}

func (s *CrawlStats) IncrFailed() {
	s.pagesFailed.Add(1)
}

func (s *CrawlStats) IncrSkipped() {
	s.pagesSkipped.Add(1)
}

func (s *CrawlStats) AddBytesDownloaded(n int64) {
	s.bytesDownloaded.Add(n)
}

func (s *CrawlStats) CrawledCount() int64 {
	return s.pagesCrawled.Load()
}

func (s *CrawlStats) AddDomain(host string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.domains[host] = struct{}{}
}

func (s *CrawlStats) MarkStart(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startedAt = t
}

func (s *CrawlStats) MarkEnd(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishedAt = t
}

// Snapshot derives an immutable report from the live counters.
func (s *CrawlStats) Snapshot() CrawlReport {
	s.mu.Lock()
	domains := make([]string, 0, len(s.domains))
	for domain := range s.domains {
		domains = append(domains, domain)
	}
	startedAt := s.startedAt
	finishedAt := s.finishedAt
	s.mu.Unlock()
	sort.Strings(domains)

	report := CrawlReport{
		URLsFound:       s.urlsFound.Load(),
		PagesCrawled:    s.pagesCrawled.Load(),
		PagesFailed:     s.pagesFailed.Load(),
		PagesSkipped:    s.pagesSkipped.Load(),
		BytesDownloaded: s.bytesDownloaded.Load(),
		Domains:         domains,
		StartedAt:       startedAt,
		FinishedAt:      finishedAt,
	}

	if !startedAt.IsZero() && !finishedAt.IsZero() {
		report.Duration = finishedAt.Sub(startedAt)
		if seconds := report.Duration.Seconds(); seconds > 0 {
			report.PagesPerSecond = float64(report.PagesCrawled) / seconds
		}
	}
	return report
}

// CrawlReport is the terminal summary of one crawl.
type CrawlReport struct {
	URLsFound       int64
	PagesCrawled    int64
	PagesFailed     int64
	PagesSkipped    int64
	BytesDownloaded int64
	Domains         []string
	StartedAt       time.Time
	FinishedAt      time.Time
	Duration        time.Duration
	PagesPerSecond  float64
}

// RetryParam derives the fetcher's retry configuration: max_retries
// additional attempts after the first, backoff doubling from retry_delay.
func RetryParam(cfg config.Config) retry.RetryParam {
	return retry.NewRetryParam(
		cfg.RetryDelay(),
		0,
		cfg.RandomSeed(),
		cfg.MaxRetries()+1,
		timeutil.NewBackoffParam(cfg.RetryDelay(), 2.0, 0),
	)
}
