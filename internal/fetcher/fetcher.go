package fetcher

import (
	"context"

	"github.com/rohmanhakim/webcrawler/pkg/failure"
	"github.com/rohmanhakim/webcrawler/pkg/retry"
)

// Fetcher turns one admitted request into a FetchResult.
//
// Transport-level failure is not an error at this boundary: an exhausted
// retry budget produces a FetchResult with StatusFailed, and an unparseable
// content-type produces one with StatusSkipped. The returned ClassifiedError
// is reserved for conditions the caller cannot convert into a result, such
// as a cancelled context; a request that cannot be built also comes back
// as a StatusFailed result.
type Fetcher interface {
	Fetch(
		ctx context.Context,
		fetchParam FetchParam,
		retryParam retry.RetryParam,
	) (FetchResult, failure.ClassifiedError)
	Close() error
}
