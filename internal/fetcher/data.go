package fetcher

import (
	"net/url"
	"time"
)

// HTTP boundary

// FetchStatus is the terminal disposition of one fetch.
type FetchStatus string

const (
	// The server answered with a readable text/html or text/plain body.
	// HTTP error statuses (4xx/5xx) are still completed fetches.
	StatusCompleted FetchStatus = "completed"
	// Every attempt failed at the transport level.
	StatusFailed FetchStatus = "failed"
	// The response carried a content-type this crawler does not parse.
	StatusSkipped FetchStatus = "skipped"
)

type FetchParam struct {
	fetchUrl  url.URL
	userAgent string
	depth     int
	parentURL string
}

func NewFetchParam(fetchUrl url.URL, userAgent string, depth int, parentURL string) FetchParam {
	return FetchParam{
		fetchUrl:  fetchUrl,
		userAgent: userAgent,
		depth:     depth,
		parentURL: parentURL,
	}
}

func (f *FetchParam) FetchURL() url.URL {
	return f.fetchUrl
}

func (f *FetchParam) UserAgent() string {
	return f.userAgent
}

func (f *FetchParam) Depth() int {
	return f.depth
}

func (f *FetchParam) ParentURL() string {
	return f.parentURL
}

type FetchResult struct {
	url          url.URL
	html         string
	status       FetchStatus
	errorMessage string
	meta         ResponseMeta
	depth        int
	parentURL    string
	elapsed      time.Duration
	fetchedAt    time.Time
}

// URL returns the final URL after redirects.
func (f *FetchResult) URL() url.URL {
	return f.url
}

func (f *FetchResult) HTML() string {
	return f.html
}

func (f *FetchResult) Status() FetchStatus {
	return f.status
}

func (f *FetchResult) ErrorMessage() string {
	return f.errorMessage
}

func (f *FetchResult) Code() int {
	return f.meta.statusCode
}

func (f *FetchResult) ContentType() string {
	return f.meta.contentType
}

func (f *FetchResult) SizeByte() uint64 {
	return uint64(len(f.html))
}

func (f *FetchResult) Headers() map[string]string {
	return f.meta.responseHeaders
}

func (f *FetchResult) Depth() int {
	return f.depth
}

func (f *FetchResult) ParentURL() string {
	return f.parentURL
}

func (f *FetchResult) Elapsed() time.Duration {
	return f.elapsed
}

func (f *FetchResult) FetchedAt() time.Time {
	return f.fetchedAt
}

type ResponseMeta struct {
	statusCode      int
	contentType     string
	responseHeaders map[string]string
}

// NewFetchResultForTest creates a FetchResult for testing purposes.
// This allows test packages to construct FetchResult values without
// accessing unexported fields directly.
func NewFetchResultForTest(
	url url.URL,
	html string,
	status FetchStatus,
	errorMessage string,
	statusCode int,
	contentType string,
	responseHeaders map[string]string,
	depth int,
	parentURL string,
	elapsed time.Duration,
	fetchedAt time.Time,
) FetchResult {
	return FetchResult{
		url:          url,
		html:         html,
		status:       status,
		errorMessage: errorMessage,
		depth:        depth,
		parentURL:    parentURL,
		elapsed:      elapsed,
		fetchedAt:    fetchedAt,
		meta: ResponseMeta{
			statusCode:      statusCode,
			contentType:     contentType,
			responseHeaders: responseHeaders,
		},
	}
}
