package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/uastack/uacore/pkg/ua"
	"golang.org/x/time/rate"
)

// AsyncOp is one in-flight asynchronous service operation (e.g. a Call
// to a method that itself completes later, or a historian read whose
// result arrives off the EventLoop). Grounded on the teacher's
// memorystore buffer chain (internal/memorystore/buffer.go): a
// fixed-capacity slice that grows by linking a fresh block instead of
// reallocating, so the queue never copies already-queued entries.
type AsyncOp struct {
	RequestID uint32
	Done      chan struct{}
	Result    []ua.Variant
	Status    ua.StatusCode

	enqueuedAt time.Time
}

// block is one fixed-capacity link in the queue's chain.
type block struct {
	ops  []*AsyncOp
	next *block
}

const blockCap = 64

// AsyncQueue holds operations that are dispatched but not yet complete,
// keyed by RequestID for completion lookup (spec §4.G: long-running
// service calls don't block the SecureChannel's receive loop).
type AsyncQueue struct {
	mu      sync.Mutex
	byID    map[uint32]*AsyncOp
	head    *block
	tail    *block
	limiter *rate.Limiter
}

func NewAsyncQueue() *AsyncQueue {
	b := &block{ops: make([]*AsyncOp, 0, blockCap)}
	return &AsyncQueue{byID: make(map[uint32]*AsyncOp), head: b, tail: b}
}

// SetDispatchRateLimit bounds how fast Enqueue accepts new operations,
// so a client flooding asynchronous Call/HistoryRead requests cannot
// grow the queue without limit. A nil limiter (the default) disables
// throttling.
func (q *AsyncQueue) SetDispatchRateLimit(r rate.Limit, burst int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.limiter = rate.NewLimiter(r, burst)
}

// Enqueue registers a new in-flight operation. It reports an error
// instead of enqueueing once the dispatch rate limit (if set) is
// exceeded.
func (q *AsyncQueue) Enqueue(op *AsyncOp) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.limiter != nil && !q.limiter.Allow() {
		return fmt.Errorf("async queue: dispatch rate limit exceeded")
	}
	op.enqueuedAt = time.Now()
	q.byID[op.RequestID] = op
	if len(q.tail.ops) == cap(q.tail.ops) {
		nb := &block{ops: make([]*AsyncOp, 0, blockCap)}
		q.tail.next = nb
		q.tail = nb
	}
	q.tail.ops = append(q.tail.ops, op)
	return nil
}

// Complete marks requestID's operation done and removes it from the
// lookup table; the caller is expected to have already sent on
// op.Done or closed it.
func (q *AsyncQueue) Complete(requestID uint32) (*AsyncOp, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	op, ok := q.byID[requestID]
	if ok {
		delete(q.byID, requestID)
	}
	return op, ok
}

// Pending reports how many operations are still in flight.
func (q *AsyncQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byID)
}

// ExpireOlderThan completes, with BadTimeout, every still-pending
// operation enqueued more than timeout ago, and returns them. A
// housekeeping sweep calls this so a caller blocked on op.Done is
// eventually released even if the handler that would otherwise call
// Complete never runs (spec §4.G async-operation-timeout).
func (q *AsyncQueue) ExpireOlderThan(now time.Time, timeout time.Duration) []*AsyncOp {
	q.mu.Lock()
	defer q.mu.Unlock()
	var expired []*AsyncOp
	for id, op := range q.byID {
		if now.Sub(op.enqueuedAt) <= timeout {
			continue
		}
		op.Status = ua.BadTimeout
		delete(q.byID, id)
		close(op.Done)
		expired = append(expired, op)
	}
	return expired
}
