package frontier

/*
 Frontier - manages crawl state & ordering
*/

// RenderHint tells the worker which fetcher family a request should use.
type RenderHint string

const (
	RenderStatic  RenderHint = "static"
	RenderDynamic RenderHint = "dynamic"
)

// Request is one pending unit of crawl work.
//
// Identity for deduplication is the normalized URL alone; priority and depth
// never affect identity. A Request is created as a seed or as a child of a
// popped request, and is destroyed when popped — its identity persists in
// the visited set.
type Request struct {
	url        string
	depth      int
	maxDepth   int
	parentURL  string
	priority   int
	renderHint RenderHint
}

// NewSeedRequest creates a depth-0 request. Seeds carry the highest priority
// of their crawl so they always drain before discovered work.
func NewSeedRequest(url string, maxDepth int) Request {
	return Request{
		url:        url,
		depth:      0,
		maxDepth:   maxDepth,
		priority:   maxDepth,
		renderHint: RenderStatic,
	}
}

// NewRequest creates a request with every field explicit.
func NewRequest(
	url string,
	depth int,
	maxDepth int,
	parentURL string,
	priority int,
	renderHint RenderHint,
) Request {
	return Request{
		url:        url,
		depth:      depth,
		maxDepth:   maxDepth,
		parentURL:  parentURL,
		priority:   priority,
		renderHint: renderHint,
	}
}

// Child derives the request for a link discovered on this request's page.
// Depth increases by one; priority decreases by one, so shallower work
// outruns deeper work and the crawl stays BFS-biased.
func (r Request) Child(childURL string) Request {
	childDepth := r.depth + 1
	return Request{
		url:        childURL,
		depth:      childDepth,
		maxDepth:   r.maxDepth,
		parentURL:  r.url,
		priority:   r.maxDepth - childDepth,
		renderHint: r.renderHint,
	}
}

func (r Request) URL() string {
	return r.url
}

func (r Request) Depth() int {
	return r.depth
}

func (r Request) MaxDepth() int {
	return r.maxDepth
}

func (r Request) ParentURL() string {
	return r.parentURL
}

func (r Request) Priority() int {
	return r.priority
}

func (r Request) RenderHint() RenderHint {
	return r.renderHint
}
