package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rohmanhakim/webcrawler/internal/metadata"
	"github.com/rohmanhakim/webcrawler/pkg/failure"
	"github.com/rohmanhakim/webcrawler/pkg/retry"
)

/*
Responsibilities

- Perform HTTP requests
- Apply headers and timeouts
- Handle redirects safely
- Classify responses

Fetch Semantics

- A normal HTTP response is a completed fetch, whatever its status code;
  4xx/5xx carry their code in the result and are never retried
- Non-HTML/non-plain content is skipped without reading the body
- Transport failures retry with exponential backoff; an exhausted budget
  becomes a failed result carrying the last error
- Redirect chains are bounded
- All fetches are logged with metadata

The fetcher never parses content; it only returns text and metadata.
*/

// FetchPolicy carries the HTTP-level knobs the static fetcher applies to
// every request.
type FetchPolicy struct {
	RequestTimeout  time.Duration
	FollowRedirects bool
	MaxRedirects    int
}

type HtmlFetcher struct {
	metadataSink metadata.MetadataSink
	policy       FetchPolicy
	httpClient   *http.Client
}

func NewHtmlFetcher(
	metadataSink metadata.MetadataSink,
	policy FetchPolicy,
) HtmlFetcher {
	client := &http.Client{
		Timeout: policy.RequestTimeout,
	}
	if !policy.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	} else if policy.MaxRedirects > 0 {
		maxRedirects := policy.MaxRedirects
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		}
	}
	return HtmlFetcher{
		metadataSink: metadataSink,
		policy:       policy,
		httpClient:   client,
	}
}

// NewHtmlFetcherWithClient injects a custom HTTP client, primarily for tests.
func NewHtmlFetcherWithClient(
	metadataSink metadata.MetadataSink,
	policy FetchPolicy,
	httpClient *http.Client,
) HtmlFetcher {
	fetcher := NewHtmlFetcher(metadataSink, policy)
	fetcher.httpClient = httpClient
	return fetcher
}

func (h *HtmlFetcher) Fetch(
	ctx context.Context,
	fetchParam FetchParam,
	retryParam retry.RetryParam,
) (FetchResult, failure.ClassifiedError) {
	callerMethod := "HtmlFetcher.Fetch"
	startTime := time.Now()

	result, err := h.fetchWithRetry(ctx, fetchParam, retryParam)

	elapsed := time.Since(startTime)

	if err != nil {
		if ctx.Err() != nil {
			// The crawl is shutting down; there is no result to report.
			return FetchResult{}, err
		}

		// Terminal transport failure: surface it as a failed result so the
		// caller persists the outcome instead of aborting the URL silently.
		h.recordFetchFailure(callerMethod, fetchParam.fetchUrl, err)
		h.metadataSink.RecordFetch(
			fetchParam.fetchUrl.String(),
			0,
			elapsed,
			"",
			retryParam.MaxAttempts,
			fetchParam.depth,
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

	result.elapsed = elapsed
	result.depth = fetchParam.depth
	result.parentURL = fetchParam.parentURL

	h.metadataSink.RecordFetch(
		fetchParam.fetchUrl.String(),
		result.Code(),
		elapsed,
		result.ContentType(),
		0,
		fetchParam.depth,
	)

	return result, nil
}

// Close releases idle transport connections.
func (h *HtmlFetcher) Close() error {
	h.httpClient.CloseIdleConnections()
	return nil
}

func (h *HtmlFetcher) recordFetchFailure(callerMethod string, fetchUrl url.URL, err failure.ClassifiedError) {
	cause := metadata.ErrorCause(metadata.CauseUnknown)

	var fetchError *FetchError
	var retryError *retry.RetryError
	if errors.As(err, &retryError) {
		cause = metadata.CauseRetryExhausted
	} else if errors.As(err, &fetchError) {
		cause = mapFetchErrorToMetadataCause(fetchError)
	}

	h.metadataSink.RecordError(
		time.Now(),
		"fetcher",
		callerMethod,
		cause,
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, fetchUrl.String()),
		},
	)
}

func (h *HtmlFetcher) fetchWithRetry(
	ctx context.Context,
	fetchParam FetchParam,
	retryParam retry.RetryParam,
) (FetchResult, failure.ClassifiedError) {
	fetchTask := func() (FetchResult, failure.ClassifiedError) {
		return h.performFetch(ctx, fetchParam.fetchUrl, fetchParam.userAgent)
	}

	result := retry.Retry(retryParam, fetchTask)
	if result.IsFailure() {
		return FetchResult{}, result.Err()
	}

	return result.Value(), nil
}

func (h *HtmlFetcher) performFetch(ctx context.Context, fetchUrl url.URL, userAgent string) (FetchResult, failure.ClassifiedError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchUrl.String(), nil)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to create request: %v", err),
			Retryable: false,
			Cause:     ErrCauseInvalidRequest,
		}
	}

	for key, value := range requestHeaders(userAgent) {
		req.Header.Set(key, value)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		cause := FetchErrorCause(ErrCauseNetworkFailure)
		if errors.Is(err, context.DeadlineExceeded) {
			cause = ErrCauseTimeout
		}
		// Network/transport errors are retryable
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: true,
			Cause:     cause,
		}
	}
	defer resp.Body.Close()

	finalURL := fetchUrl
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = *resp.Request.URL
	}

	responseHeaders := make(map[string]string)
	for key, values := range resp.Header {
		if len(values) > 0 {
			responseHeaders[key] = values[0]
		}
	}

	contentType := resp.Header.Get("Content-Type")

	// Content-type gate: anything the parser cannot consume is skipped
	// without reading the body.
	if !isTextContent(contentType) {
		return FetchResult{
			url:    finalURL,
			status: StatusSkipped,
			meta: ResponseMeta{
				statusCode:      resp.StatusCode,
				contentType:     contentType,
				responseHeaders: responseHeaders,
			},
			fetchedAt: time.Now(),
		}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to read response body: %v", err),
			Retryable: true,
			Cause:     ErrCauseReadResponseBodyError,
		}
	}

	return FetchResult{
		url:    finalURL,
		html:   decodeText(body),
		status: StatusCompleted,
		meta: ResponseMeta{
			statusCode:      resp.StatusCode,
			contentType:     contentType,
			responseHeaders: responseHeaders,
		},
		fetchedAt: time.Now(),
	}, nil
}

// isTextContent reports whether the crawler parses this content-type.
func isTextContent(contentType string) bool {
	contentType = strings.ToLower(contentType)
	return strings.Contains(contentType, "text/html") ||
		strings.Contains(contentType, "application/xhtml") ||
		strings.Contains(contentType, "text/plain")
}

// decodeText interprets body as UTF-8, replacing invalid sequences instead
// of failing on them.
func decodeText(body []byte) string {
	return strings.ToValidUTF8(string(body), "�")
}

func requestHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
		"Connection":      "keep-alive",
	}
}
