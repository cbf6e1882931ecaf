package scheduler

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
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
	"github.com/rohmanhakim/webcrawler/pkg/limiter"
	"github.com/rohmanhakim/webcrawler/pkg/retry"
	"github.com/rohmanhakim/webcrawler/pkg/timeutil"
)

/*
Worker

One unit of the pool. Each iteration drives one URL through
robots → rate-limit → commit-visited → fetch → parse → link-extract →
persist → enqueue children.

Termination protocol: a worker exits when the stop flag is set, the context
is cancelled, the crawled budget is spent, or the frontier stays empty
across one short sleep. It never blocks indefinitely on the frontier, so
the pool can always drain.

A panic inside one iteration is recovered, recorded, and counted as a
failed page; the worker moves on to its next pop.
*/

type worker struct {
	id             int
	cfg            config.Config
	frontier       frontier.Frontier
	robot          robots.Robot
	gate           *limiter.Gate
	staticFetcher  fetcher.Fetcher
	dynamicFetcher fetcher.Fetcher
	domExtractor   extractor.Extractor
	linkExtractor  links.LinkExtractor
	storageSink    storage.Storage
	stats          *CrawlStats
	metadataSink   metadata.MetadataSink
	progress       ProgressFunc
	stopped        *atomic.Bool
	retryParam     retry.RetryParam
	sleeper        timeutil.Sleeper
	emptyPollDelay time.Duration
}

func (w *worker) run(ctx context.Context) {
	for {
		if w.stopped.Load() || ctx.Err() != nil {
			return
		}
		if w.stats.CrawledCount() >= int64(w.cfg.MaxPages()) {
			return
		}

		request, ok := w.frontier.Get()
		if !ok {
			// The frontier can be transiently empty while peers are still
			// producing; poll once more after a short sleep before exiting.
			if err := w.sleeper.Sleep(ctx, w.emptyPollDelay); err != nil {
				return
			}
			request, ok = w.frontier.Get()
			if !ok {
				return
			}
		}

		w.processGuarded(ctx, request)
	}
}

// processGuarded isolates one iteration so a panic cannot take the pool down.
func (w *worker) processGuarded(ctx context.Context, request frontier.Request) {
	defer func() {
		if recovered := recover(); recovered != nil {
			w.stats.IncrFailed()
			w.metadataSink.RecordError(
				time.Now(),
				"scheduler",
				"worker.process",
				metadata.CauseUnknown,
				fmt.Sprintf("worker %d panic: %v", w.id, recovered),
				[]metadata.Attribute{
					metadata.NewAttr(metadata.AttrURL, request.URL()),
				},
			)
		}
	}()
	w.process(ctx, request)
}

func (w *worker) process(ctx context.Context, request frontier.Request) {
	requestURL, err := url.Parse(request.URL())
	if err != nil || requestURL.Host == "" {
		// A malformed URL should never have been admitted; consume it.
		w.frontier.MarkVisited(request.URL())
		w.stats.IncrFailed()
		w.metadataSink.RecordError(
			time.Now(),
			"scheduler",
			"worker.process",
			metadata.CauseInvariantViolation,
			fmt.Sprintf("unparseable URL in frontier: %q", request.URL()),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, request.URL()),
				metadata.NewAttr(metadata.AttrDepth, strconv.Itoa(request.Depth())),
			},
		)
		return
	}
	host := requestURL.Host

	// Robots gate
	if w.cfg.RespectRobots() {
		decision, robotsErr := w.robot.Decide(*requestURL)
		if robotsErr != nil {
			w.frontier.MarkVisited(request.URL())
			w.stats.IncrFailed()
			return
		}
		if decision.CrawlDelay > 0 {
			w.gate.InstallDelay(host, decision.CrawlDelay)
		}
		if !decision.Allowed {
			w.stats.IncrSkipped()
			w.frontier.MarkVisited(request.URL())
			w.metadataSink.RecordError(
				time.Now(),
				"scheduler",
				"worker.process",
				metadata.CausePolicyDisallow,
				fmt.Sprintf("robots disallowed %s", request.URL()),
				[]metadata.Attribute{
					metadata.NewAttr(metadata.AttrURL, request.URL()),
					metadata.NewAttr(metadata.AttrHost, host),
				},
			)
			return
		}
	}

	// Rate limit
	if err := w.gate.Acquire(ctx, host); err != nil {
		// Cancelled while waiting; leave the URL unvisited for a rerun.
		return
	}

	// Commit visited before fetching so no peer re-enqueues this URL
	// between now and persistence.
	w.frontier.MarkVisited(request.URL())

	// Fetch
	result, fetchErr := w.fetcherFor(request).Fetch(
		ctx,
		fetcher.NewFetchParam(*requestURL, w.cfg.UserAgent(), request.Depth(), request.ParentURL()),
		w.retryParam,
	)
	if fetchErr != nil {
		if ctx.Err() != nil {
			return
		}
		w.stats.IncrFailed()
		return
	}

	switch result.Status() {
	case fetcher.StatusFailed:
		w.stats.IncrFailed()
		w.persist(w.buildRecord(result, extractor.ExtractionResult{}, nil))
		return
	case fetcher.StatusSkipped:
		w.stats.IncrSkipped()
		w.persist(w.buildRecord(result, extractor.ExtractionResult{}, nil))
		return
	}

	// Parse
	extraction, extractErr := w.domExtractor.Extract(result.URL(), result.HTML())
	if extractErr != nil {
		w.stats.IncrFailed()
		failed := w.buildRecord(result, extractor.ExtractionResult{}, nil)
		failed.Status = string(fetcher.StatusFailed)
		failed.Error = extractErr.Error()
		w.persist(failed)
		return
	}

	// Extract links
	finalURL := result.URL()
	childLinks, linkErr := w.linkExtractor.Extract(finalURL, result.HTML())
	if linkErr != nil {
		// The page still counts; it just contributes no children.
		childLinks = nil
	}

	// Persist
	record := w.buildRecord(result, extraction, childLinks)
	if !w.persist(record) {
		w.stats.IncrFailed()
		return
	}

	// Stats
	w.stats.IncrCrawled()
	w.stats.AddBytesDownloaded(int64(len(extraction.Text())))
	w.stats.AddDomain(host)

	// Enqueue children
	if request.Depth() < request.MaxDepth() {
		var added int64
		for _, link := range childLinks {
			if w.frontier.Add(request.Child(link)) {
				added++
			}
		}
		if added > 0 {
			w.stats.AddURLsFound(added)
		}
	}
}

// fetcherFor routes a request to the dynamic fetcher when one exists and
// the URL matches a dynamic pattern; everything else goes static.
func (w *worker) fetcherFor(request frontier.Request) fetcher.Fetcher {
	if w.dynamicFetcher == nil {
		return w.staticFetcher
	}
	if request.RenderHint() == frontier.RenderDynamic {
		return w.dynamicFetcher
	}
	if fetcher.MatchesDynamicPattern(request.URL(), w.cfg.DynamicPatterns()) {
		return w.dynamicFetcher
	}
	return w.staticFetcher
}

func (w *worker) buildRecord(
	result fetcher.FetchResult,
	extraction extractor.ExtractionResult,
	childLinks []string,
) storage.Record {
	finalURL := result.URL()

	html := result.HTML()
	if !w.cfg.StoreRawHTML() {
		html = ""
	}

	crawledAt := result.FetchedAt()
	if crawledAt.IsZero() {
		crawledAt = time.Now()
	}

	linkList := childLinks
	if linkList == nil {
		linkList = []string{}
	}
	meta := extraction.Metadata()
	if meta == nil {
		meta = map[string]any{}
	}

	return storage.Record{
		URL:         finalURL.String(),
		StatusCode:  result.Code(),
		ContentType: result.ContentType(),
		HTML:        html,
		Text:        extraction.Text(),
		Title:       extraction.Title(),
		Links:       linkList,
		Metadata:    meta,
		CrawledAt:   crawledAt,
		Depth:       result.Depth(),
		ParentURL:   result.ParentURL(),
		ElapsedTime: result.Elapsed().Seconds(),
		Status:      string(result.Status()),
		Error:       result.ErrorMessage(),
		Headers:     result.Headers(),
	}
}

// persist saves the record and fires the progress callback. Returns false
// when the save failed; the callback's panics are always suppressed.
func (w *worker) persist(record storage.Record) bool {
	if err := w.storageSink.Save(record); err != nil {
		w.metadataSink.RecordError(
			time.Now(),
			"scheduler",
			"worker.persist",
			metadata.CauseStorageFailure,
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, record.URL),
			},
		)
		return false
	}

	if w.progress != nil {
		func() {
			defer func() {
				// A broken progress callback must never abort the crawl.
				_ = recover()
			}()
			w.progress(record)
		}()
	}
	return true
}
