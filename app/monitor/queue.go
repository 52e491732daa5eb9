package monitor

import (
	"sync"

	"github.com/lysyi3m/rss-monitor/app/database"
	"github.com/lysyi3m/rss-monitor/app/observability"
)

// submission is one queued feed check. feed is nil when only the id was
// queued (resubmission path); the worker resolves it from the store.
type submission struct {
	feedID int64
	feed   *database.Feed
}

// submissionQueue is an unbounded FIFO. The producer never blocks; the
// consumer blocks until an item arrives or the queue is closed. Unbounded is
// safe here: the periodic driver is the only producer and is rate-limited by
// its tick cadence and the defer logic.
type submissionQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []submission
	closed bool
}

func newSubmissionQueue() *submissionQueue {
	q := &submissionQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *submissionQueue) push(item submission) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.items = append(q.items, item)
	observability.QueueDepth.Set(float64(len(q.items)))
	q.cond.Signal()
}

func (q *submissionQueue) pop() (submission, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return submission{}, false
	}

	item := q.items[0]
	q.items = q.items[1:]
	observability.QueueDepth.Set(float64(len(q.items)))
	return item, true
}

func (q *submissionQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

func (q *submissionQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
