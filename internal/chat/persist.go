package chat

import "sync"

// persistQueue runs store writes one at a time in submission order, so a
// seen update never overtakes the insert of its message. push never blocks
// the coordinator loop.
type persistQueue struct {
	mu     sync.Mutex
	jobs   []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newPersistQueue() *persistQueue {
	return &persistQueue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (q *persistQueue) push(job func()) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()
	q.signal()
}

func (q *persistQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// close stops accepting jobs. Already queued jobs still run.
func (q *persistQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// run drains the queue until it is closed and empty.
func (q *persistQueue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		jobs, closed := q.jobs, q.closed
		q.jobs = nil
		q.mu.Unlock()

		for _, job := range jobs {
			job()
		}
		if len(jobs) > 0 {
			continue
		}
		if closed {
			return
		}
		<-q.wake
	}
}
