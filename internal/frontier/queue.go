package frontier

import "container/heap"

// queueEntry pairs a request with its insertion sequence so equal
// priorities pop in FIFO order.
type queueEntry struct {
	request Request
	seq     uint64
}

// requestHeap is a max-heap on (priority, -seq).
type requestHeap []queueEntry

func (h requestHeap) Len() int { return len(h) }

func (h requestHeap) Less(i, j int) bool {
	if h[i].request.Priority() != h[j].request.Priority() {
		return h[i].request.Priority() > h[j].request.Priority()
	}
	return h[i].seq < h[j].seq
}

func (h requestHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *requestHeap) Push(x any) {
	*h = append(*h, x.(queueEntry))
}

func (h *requestHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[:n-1]
	return entry
}

// PriorityQueue orders requests by descending priority with FIFO ties.
// It is not synchronized; the owning frontier provides the lock.
type PriorityQueue struct {
	entries requestHeap
	nextSeq uint64
}

func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{}
}

func (q *PriorityQueue) Enqueue(r Request) {
	heap.Push(&q.entries, queueEntry{request: r, seq: q.nextSeq})
	q.nextSeq++
}

// Dequeue returns false when the queue is empty.
func (q *PriorityQueue) Dequeue() (Request, bool) {
	if len(q.entries) == 0 {
		return Request{}, false
	}
	entry := heap.Pop(&q.entries).(queueEntry)
	return entry.request, true
}

func (q *PriorityQueue) Size() int {
	return len(q.entries)
}

func (q *PriorityQueue) Clear() {
	q.entries = nil
}
