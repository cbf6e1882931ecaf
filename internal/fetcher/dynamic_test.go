package fetcher_test

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/webcrawler/internal/fetcher"
)

// fakeRenderer is a deterministic stand-in for a headless-browser driver.
type fakeRenderer struct {
	html       string
	statusCode int
	renderErr  error
	settleSeen time.Duration
	closed     bool
}

func (r *fakeRenderer) Render(ctx context.Context, pageURL url.URL, settle time.Duration) (fetcher.RenderedPage, error) {
	r.settleSeen = settle
	if r.renderErr != nil {
		return fetcher.RenderedPage{}, r.renderErr
	}
	return fetcher.RenderedPage{
		HTML:       r.html,
		FinalURL:   pageURL,
		StatusCode: r.statusCode,
	}, nil
}

func (r *fakeRenderer) Close() error {
	r.closed = true
	return nil
}

func TestDynamicFetcher_RenderedPageIsCompleted(t *testing.T) {
	renderer := &fakeRenderer{html: "<html><h1>SPA</h1></html>", statusCode: 200}
	sink := &fetcherTestSink{}
	d := fetcher.NewDynamicFetcher(sink, renderer, 2*time.Second)

	parsed, err := url.Parse("https://app.example.com/dashboard")
	require.NoError(t, err)
	param := fetcher.NewFetchParam(*parsed, "TestBot/1.0", 1, "https://app.example.com/")

	result, cerr := d.Fetch(context.Background(), param, retryParam(1, time.Millisecond))
	require.Nil(t, cerr)

	assert.Equal(t, fetcher.StatusCompleted, result.Status())
	assert.Equal(t, 200, result.Code())
	assert.Contains(t, result.HTML(), "SPA")
	assert.Equal(t, 1, result.Depth())
	assert.Equal(t, "https://app.example.com/", result.ParentURL())
	assert.Equal(t, 2*time.Second, renderer.settleSeen)
}

func TestDynamicFetcher_RenderFailureBecomesFailedResult(t *testing.T) {
	renderer := &fakeRenderer{renderErr: errors.New("browser crashed")}
	sink := &fetcherTestSink{}
	d := fetcher.NewDynamicFetcher(sink, renderer, time.Second)

	parsed, err := url.Parse("https://app.example.com/broken")
	require.NoError(t, err)
	param := fetcher.NewFetchParam(*parsed, "TestBot/1.0", 0, "")

	result, cerr := d.Fetch(context.Background(), param, retryParam(1, time.Millisecond))
	require.Nil(t, cerr)

	assert.Equal(t, fetcher.StatusFailed, result.Status())
	assert.Contains(t, result.ErrorMessage(), "browser crashed")
}

func TestDynamicFetcher_CloseReleasesRenderer(t *testing.T) {
	renderer := &fakeRenderer{}
	sink := &fetcherTestSink{}
	d := fetcher.NewDynamicFetcher(sink, renderer, time.Second)

	require.NoError(t, d.Close())
	assert.True(t, renderer.closed)
}

func TestMatchesDynamicPattern(t *testing.T) {
	tests := []struct {
		name     string
		rawURL   string
		patterns []string
		want     bool
	}{
		{
			name:     "no patterns",
			rawURL:   "https://example.com/app",
			patterns: nil,
			want:     false,
		},
		{
			name:     "substring match",
			rawURL:   "https://example.com/app/page",
			patterns: []string{"/app/"},
			want:     true,
		},
		{
			name:     "regex match",
			rawURL:   "https://example.com/spa/route",
			patterns: []string{`/spa/.*`},
			want:     true,
		},
		{
			name:     "no match",
			rawURL:   "https://example.com/docs",
			patterns: []string{"/app/", `/spa/.*`},
			want:     false,
		},
		{
			name:     "bad regex falls back to substring",
			rawURL:   "https://example.com/x[1/page",
			patterns: []string{"x[1"},
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fetcher.MatchesDynamicPattern(tt.rawURL, tt.patterns))
		})
	}
}
