package frontier

import "sync"

// MemoryFrontier is the in-process Frontier. One mutex guards the queue and
// both sets; no operation performs I/O under it.
type MemoryFrontier struct {
	mu      sync.Mutex
	queue   *PriorityQueue
	visited Set[string]
	inQueue Set[string]
}

func NewMemoryFrontier() *MemoryFrontier {
	return &MemoryFrontier{
		queue:   NewPriorityQueue(),
		visited: NewSet[string](),
		inQueue: NewSet[string](),
	}
}

func (f *MemoryFrontier) Add(r Request) bool {
	if r.Depth() > r.MaxDepth() {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.visited.Contains(r.URL()) || f.inQueue.Contains(r.URL()) {
		return false
	}

	f.queue.Enqueue(r)
	f.inQueue.Add(r.URL())
	return true
}

func (f *MemoryFrontier) Get() (Request, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		request, ok := f.queue.Dequeue()
		if !ok {
			return Request{}, false
		}
		f.inQueue.Remove(request.URL())

		// A queued URL can become visited while it waits; drop it and
		// keep popping.
		if f.visited.Contains(request.URL()) {
			continue
		}
		return request, true
	}
}

func (f *MemoryFrontier) MarkVisited(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visited.Add(url)
}

func (f *MemoryFrontier) IsVisited(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visited.Contains(url)
}

func (f *MemoryFrontier) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queue.Size()
}

func (f *MemoryFrontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visited.Size()
}

func (f *MemoryFrontier) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue.Clear()
	f.visited.Clear()
	f.inQueue.Clear()
}

func (f *MemoryFrontier) Close() error {
	return nil
}
