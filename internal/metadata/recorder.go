package metadata

import (
	"log/slog"
	"os"
	"time"
)

/*
Metadata Collected
- Fetch timestamps
- HTTP status codes
- Content types
- Crawl depth

Logging Goals
- Debuggable crawl behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred.

Allowed:
- Primitive values
- Timestamps
- URLs (as values, not objects with behavior)
- Hashes
- Status codes
- Durations
- Identifiers (page ID, crawl ID)
*/

// MetadataSink is the single observability boundary of the crawl. Every
// component records through it; none of them read anything back. Recording
// is strictly one-way so observability can never feed control flow.
type MetadataSink interface {
	RecordFetch(
		fetchURL string,
		httpStatus int,
		duration time.Duration,
		contentType string,
		retryCount int,
		crawlDepth int,
	)
	RecordError(
		observedAt time.Time,
		packageName string,
		action string,
		cause ErrorCause,
		errorString string,
		attrs []Attribute,
	)
	RecordArtifact(
		kind ArtifactKind,
		path string,
		attrs []Attribute,
	)
}

// CrawlFinalizer records the terminal crawl summary, exactly once.
type CrawlFinalizer interface {
	RecordFinalCrawlStats(
		totalCrawled int,
		totalFailed int,
		totalSkipped int,
		duration time.Duration,
	)
}

// Recorder is the default MetadataSink and CrawlFinalizer, backed by slog.
// One Recorder serves the whole crawl; it is safe for concurrent workers
// because slog handlers are.
type Recorder struct {
	crawlID string
	logger  *slog.Logger
}

func NewRecorder(crawlID string) Recorder {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	return Recorder{
		crawlID: crawlID,
		logger:  logger.With("crawl_id", crawlID),
	}
}

// NewRecorderWithLogger allows tests and embedders to redirect the sink.
func NewRecorderWithLogger(crawlID string, logger *slog.Logger) Recorder {
	return Recorder{
		crawlID: crawlID,
		logger:  logger.With("crawl_id", crawlID),
	}
}

func (r *Recorder) RecordFetch(
	fetchURL string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	retryCount int,
	crawlDepth int,
) {
	r.logger.Debug("fetch",
		"url", fetchURL,
		"http_status", httpStatus,
		"duration_ms", duration.Milliseconds(),
		"content_type", contentType,
		"retry_count", retryCount,
		"depth", crawlDepth,
	)
}

func (r *Recorder) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	errorString string,
	attrs []Attribute,
) {
	args := []any{
		"observed_at", observedAt.Format(time.RFC3339),
		"package", packageName,
		"action", action,
		"cause", causeLabel(cause),
		"error", errorString,
	}
	for _, attr := range attrs {
		args = append(args, string(attr.Key), attr.Value)
	}
	r.logger.Warn("crawl_error", args...)
}

func (r *Recorder) RecordArtifact(
	kind ArtifactKind,
	path string,
	attrs []Attribute,
) {
	args := []any{
		"kind", string(kind),
		"path", path,
	}
	for _, attr := range attrs {
		args = append(args, string(attr.Key), attr.Value)
	}
	r.logger.Debug("artifact", args...)
}

func (r *Recorder) RecordFinalCrawlStats(
	totalCrawled int,
	totalFailed int,
	totalSkipped int,
	duration time.Duration,
) {
	r.logger.Info("crawl_finished",
		"total_crawled", totalCrawled,
		"total_failed", totalFailed,
		"total_skipped", totalSkipped,
		"duration_ms", duration.Milliseconds(),
	)
}

// causeLabel renders an ErrorCause for log output. Rendering is the only
// read anyone is allowed to perform on a cause.
func causeLabel(cause ErrorCause) string {
	switch cause {
	case CauseNetworkFailure:
		return "network_failure"
	case CausePolicyDisallow:
		return "policy_disallow"
	case CauseContentInvalid:
		return "content_invalid"
	case CauseStorageFailure:
		return "storage_failure"
	case CauseRetryExhausted:
		return "retry_exhausted"
	case CauseInvariantViolation:
		return "invariant_violation"
	default:
		return "unknown"
	}
}
