package fetcher

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/rohmanhakim/webcrawler/internal/metadata"
	"github.com/rohmanhakim/webcrawler/pkg/failure"
	"github.com/rohmanhakim/webcrawler/pkg/retry"
	"net/url"
)

// RenderedPage is what a Renderer hands back after executing a page.
type RenderedPage struct {
	HTML       string
	FinalURL   url.URL
	StatusCode int
}

// Renderer is the seam to a headless-browser driver. The crawler never talks
// to a browser process directly; a production deployment plugs a real driver
// in here, tests plug in a fake.
type Renderer interface {
	Render(ctx context.Context, pageURL url.URL, settle time.Duration) (RenderedPage, error)
	Close() error
}

// DynamicFetcher renders JavaScript-heavy pages through a Renderer, waiting
// a fixed settle time after load before reading the DOM. It satisfies the
// same contract as the static fetcher: render failures become failed
// results, not errors.
type DynamicFetcher struct {
	metadataSink metadata.MetadataSink
	renderer     Renderer
	settleTime   time.Duration
}

func NewDynamicFetcher(
	metadataSink metadata.MetadataSink,
	renderer Renderer,
	settleTime time.Duration,
) DynamicFetcher {
	return DynamicFetcher{
		metadataSink: metadataSink,
		renderer:     renderer,
		settleTime:   settleTime,
	}
}

func (d *DynamicFetcher) Fetch(
	ctx context.Context,
	fetchParam FetchParam,
	retryParam retry.RetryParam,
) (FetchResult, failure.ClassifiedError) {
	startTime := time.Now()

	page, err := d.renderer.Render(ctx, fetchParam.fetchUrl, d.settleTime)
	elapsed := time.Since(startTime)

	if err != nil {
		if ctx.Err() != nil {
			return FetchResult{}, &FetchError{
				Message:   err.Error(),
				Retryable: false,
				Cause:     ErrCauseRenderFailure,
			}
		}

		renderErr := &FetchError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseRenderFailure,
		}
		d.metadataSink.RecordError(
			time.Now(),
			"fetcher",
			"DynamicFetcher.Fetch",
			mapFetchErrorToMetadataCause(renderErr),
			renderErr.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, fetchParam.fetchUrl.String()),
			},
		)
		return FetchResult{
			url:          fetchParam.fetchUrl,
			status:       StatusFailed,
			errorMessage: err.Error(),
			depth:        fetchParam.depth,
			parentURL:    fetchParam.parentURL,
			elapsed:      elapsed,
			fetchedAt:    time.Now(),
		}, nil
	}

	finalURL := page.FinalURL
	if finalURL.Host == "" {
		finalURL = fetchParam.fetchUrl
	}
	statusCode := page.StatusCode
	if statusCode == 0 {
		statusCode = 200
	}

	d.metadataSink.RecordFetch(
		fetchParam.fetchUrl.String(),
		statusCode,
		elapsed,
		"text/html",
		0,
		fetchParam.depth,
	)

	return FetchResult{
		url:    finalURL,
		html:   page.HTML,
		status: StatusCompleted,
		meta: ResponseMeta{
			statusCode:      statusCode,
			contentType:     "text/html",
			responseHeaders: map[string]string{"Content-Type": "text/html"},
		},
		depth:     fetchParam.depth,
		parentURL: fetchParam.parentURL,
		elapsed:   elapsed,
		fetchedAt: time.Now(),
	}, nil
}

func (d *DynamicFetcher) Close() error {
	return d.renderer.Close()
}

// MatchesDynamicPattern reports whether rawURL should be routed to the
// dynamic fetcher. Each pattern is tried as a regular expression first and
// falls back to a substring match when it does not compile.
func MatchesDynamicPattern(rawURL string, patterns []string) bool {
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if re, err := regexp.Compile(pattern); err == nil {
			if re.MatchString(rawURL) {
				return true
			}
			continue
		}
		if strings.Contains(rawURL, pattern) {
			return true
		}
	}
	return false
}
