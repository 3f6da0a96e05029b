package tracefilter

import "sync"

// Queue is the shared queue between hop filters converging matches and the
// aggregation filter. It is an unbounded FIFO safe for concurrent use.
//
// Hop filters of many in-flight requests enqueue concurrently; a single
// aggregation filter drains it. The signal channel lets the drain loop
// wait with a context.
type Queue struct {
	name    string
	mu      sync.Mutex
	matches []Accumulator
	closed  bool
	signal  chan struct{} // buffered, size 1
}

// NewQueue creates an empty queue.
func NewQueue(name string) *Queue {
	return &Queue{
		name:    name,
		matches: make([]Accumulator, 0, 64),
		signal:  make(chan struct{}, 1),
	}
}

// Name is the queue name shared by the filters of one deployment.
func (q *Queue) Name() string { return q.name }

// Enqueue adds matches to the back of the queue.
// Returns false if the queue is closed.
func (q *Queue) Enqueue(matches ...Accumulator) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.matches = append(q.matches, matches...)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes and returns the front match without blocking.
func (q *Queue) TryDequeue() (Accumulator, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.matches) == 0 {
		return Accumulator{}, false
	}
	m := q.matches[0]
	// Release the slot so the bindings can be collected.
	q.matches[0] = Accumulator{}
	if len(q.matches) == 1 {
		q.matches = q.matches[:0]
	} else {
		q.matches = q.matches[1:]
	}
	return m, true
}

// Wait returns a channel that signals when matches may be available. It
// is closed by Close.
func (q *Queue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.matches)
}

// Closed reports whether Close was called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more matches will be enqueued.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

var (
	sharedMu sync.Mutex
	shared   = make(map[string]*Queue)
)

// SharedQueue returns the process-wide queue with the given name, creating
// it on first use. Filters built into one proxy library meet on it.
func SharedQueue(name string) *Queue {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	q, ok := shared[name]
	if !ok {
		q = NewQueue(name)
		shared[name] = q
	}
	return q
}
