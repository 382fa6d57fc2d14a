package meeting

import "sync"

// EventQueue holds events in priority buckets; lower numbers are served
// first and each bucket is FIFO.
type EventQueue struct {
	mu      sync.Mutex
	buckets [][]Event
	size    int
}

// NewEventQueue returns an empty queue.
func NewEventQueue() *EventQueue {
	return &EventQueue{}
}

// Push appends e to the bucket for its priority.
func (q *EventQueue) Push(e Event) {
	p := e.Priority()
	if p < 0 {
		p = 0
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.buckets) <= p {
		q.buckets = append(q.buckets, nil)
	}
	q.buckets[p] = append(q.buckets[p], e)
	q.size++
}

// Pop removes the head of the highest priority non-empty bucket.
func (q *EventQueue) Pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for p, bucket := range q.buckets {
		if len(bucket) == 0 {
			continue
		}
		e := bucket[0]
		bucket[0] = nil
		q.buckets[p] = bucket[1:]
		q.size--
		return e, true
	}
	return nil, false
}

// Len returns the number of queued events.
func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}
