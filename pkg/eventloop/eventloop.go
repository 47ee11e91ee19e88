// Package eventloop implements the cooperative, single-threaded scheduler
// described in spec §4.C: timed callbacks, cyclic callbacks with two
// cycle-miss policies, a next-cycle delayed queue, and pluggable I/O
// polling via ConnectionManager/event-source attachments.
//
// This core is hand-rolled against container/heap + time.Time rather than
// a generic scheduler library (go-co-op/gocron/v2) because the spec
// requires exact phase-preserving/reset semantics per callback
// (CycleMissWithBaseTime vs CycleMissWithCurrentTime, §8 property 8) that
// a cron-style scheduler does not expose per-callback; gocron is instead
// used one layer up, for the server's periodic maintenance jobs that do
// not need that precision (see internal/housekeeping, built on top of
// this package).
package eventloop

import (
	"container/heap"
	"sync"
	"time"
)

// CycleMissPolicy controls rescheduling when a cyclic callback's cycle
// could not fire on time (spec §4.C, §8 property 8).
type CycleMissPolicy int

const (
	// CycleMissWithCurrentTime reschedules the next fire at now+interval,
	// discarding phase relative to the original base time.
	CycleMissWithCurrentTime CycleMissPolicy = iota
	// CycleMissWithBaseTime preserves the phase relative to the original
	// base time: the k-th cycle fires at baseTime + k*interval or is
	// skipped outright (no catch-up).
	CycleMissWithBaseTime
)

// CallbackID identifies a scheduled timed or cyclic callback for removal
// or modification.
type CallbackID uint64

// Callback is invoked by the loop; it receives the time the loop believed
// "now" to be when it decided to run this cycle.
type Callback func(now time.Time)

type timedEntry struct {
	id       CallbackID
	deadline time.Time
	cb       Callback

	cyclic   bool
	interval time.Duration
	baseTime time.Time
	policy   CycleMissPolicy
	cycle    int64 // count of cycles fired so far, for CycleMissWithBaseTime
}

// timedHeap is a min-heap over deadline, the concrete structure backing
// "add_timed"/"add_cyclic" (spec §4.C item 1).
type timedHeap []*timedEntry

func (h timedHeap) Len() int            { return len(h) }
func (h timedHeap) Less(i, j int) bool  { return h[i].deadline.Before(h[j].deadline) }
func (h timedHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timedHeap) Push(x any)         { *h = append(*h, x.(*timedEntry)) }
func (h *timedHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// EventLoop is the cooperative scheduler owning timed, cyclic and delayed
// callbacks plus the attached event sources (spec §4.C).
type EventLoop struct {
	mu      sync.Mutex
	heap    timedHeap
	byID    map[CallbackID]*timedEntry
	nextID  CallbackID
	delayed []Callback

	sources []EventSource

	// pollFunc is invoked once per Run with the remaining time budget; it
	// models "polls for I/O with the remaining budget" (spec §4.C).
	pollFunc func(budget time.Duration)

	nowFunc func() time.Time
}

// New creates an empty EventLoop. nowFunc defaults to time.Now; tests may
// override it to drive deterministic cycle-miss scenarios.
func New() *EventLoop {
	return &EventLoop{
		byID:    make(map[CallbackID]*timedEntry),
		nowFunc: time.Now,
	}
}

// SetPollFunc installs the I/O polling hook run at the end of each Run
// call with whatever time budget remains.
func (el *EventLoop) SetPollFunc(f func(budget time.Duration)) { el.pollFunc = f }

// SetNowFunc overrides the loop's time source, for deterministic tests.
func (el *EventLoop) SetNowFunc(f func() time.Time) { el.nowFunc = f }

func (el *EventLoop) now() time.Time { return el.nowFunc() }

// AddTimed schedules cb to run once at deadline.
func (el *EventLoop) AddTimed(cb Callback, deadline time.Time) CallbackID {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.nextID++
	e := &timedEntry{id: el.nextID, deadline: deadline, cb: cb}
	el.byID[e.id] = e
	heap.Push(&el.heap, e)
	return e.id
}

// AddCyclic schedules cb to run every interval, anchored at baseTime (or
// now, if baseTime is zero) with the given cycle-miss policy.
func (el *EventLoop) AddCyclic(cb Callback, interval time.Duration, baseTime time.Time, policy CycleMissPolicy) CallbackID {
	el.mu.Lock()
	defer el.mu.Unlock()
	if baseTime.IsZero() {
		baseTime = el.now()
	}
	el.nextID++
	e := &timedEntry{
		id:       el.nextID,
		deadline: baseTime.Add(interval),
		cb:       cb,
		cyclic:   true,
		interval: interval,
		baseTime: baseTime,
		policy:   policy,
		cycle:    1,
	}
	el.byID[e.id] = e
	heap.Push(&el.heap, e)
	return e.id
}

// Remove cancels a timed or cyclic callback. A no-op if id is unknown
// (already fired, or never existed) — removal is one of the two
// documented cancellation mechanisms (spec §4.C).
func (el *EventLoop) Remove(id CallbackID) {
	el.mu.Lock()
	defer el.mu.Unlock()
	e, ok := el.byID[id]
	if !ok {
		return
	}
	delete(el.byID, id)
	for i, h := range el.heap {
		if h == e {
			heap.Remove(&el.heap, i)
			break
		}
	}
}

// ModifyInterval changes a cyclic callback's interval, taking effect on
// its next reschedule.
func (el *EventLoop) ModifyInterval(id CallbackID, interval time.Duration) {
	el.mu.Lock()
	defer el.mu.Unlock()
	if e, ok := el.byID[id]; ok {
		e.interval = interval
	}
}

// AddDelayed enqueues cb to run exactly once, in the next loop cycle,
// between timed callbacks and I/O polling (spec §4.C item 2). Ownership
// of any closed-over memory is the caller's; the loop never frees it.
func (el *EventLoop) AddDelayed(cb Callback) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.delayed = append(el.delayed, cb)
}

// AttachSource registers an EventSource (connection manager or interrupt
// manager) with the loop.
func (el *EventLoop) AttachSource(s EventSource) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.sources = append(el.sources, s)
}

// Run processes timed callbacks due before now, then the delayed queue,
// then polls I/O with whatever budget remains out of timeoutMs (spec
// §4.C "Scheduling model").
func (el *EventLoop) Run(timeout time.Duration) {
	start := el.now()

	for {
		el.mu.Lock()
		if el.heap.Len() == 0 {
			el.mu.Unlock()
			break
		}
		next := el.heap[0]
		now := el.now()
		if next.deadline.After(now) {
			el.mu.Unlock()
			break
		}
		heap.Pop(&el.heap)
		delete(el.byID, next.id)
		el.mu.Unlock()

		next.cb(now)

		if next.cyclic {
			el.rescheduleCyclic(next)
		}
	}

	el.mu.Lock()
	pending := el.delayed
	el.delayed = nil
	el.mu.Unlock()
	for _, cb := range pending {
		cb(el.now())
	}

	elapsed := el.now().Sub(start)
	budget := timeout - elapsed
	if budget < 0 {
		budget = 0
	}
	if el.pollFunc != nil {
		el.pollFunc(budget)
	}
}

// rescheduleCyclic re-inserts a fired cyclic callback per its miss
// policy (spec §8 property 8).
func (el *EventLoop) rescheduleCyclic(e *timedEntry) {
	el.mu.Lock()
	defer el.mu.Unlock()

	switch e.policy {
	case CycleMissWithCurrentTime:
		e.deadline = el.now().Add(e.interval)
	case CycleMissWithBaseTime:
		e.cycle++
		target := e.baseTime.Add(time.Duration(e.cycle) * e.interval)
		now := el.now()
		// No catch-up: if the k-th slot has already passed, skip
		// straight to the next future slot instead of firing repeatedly.
		for !target.After(now) {
			e.cycle++
			target = e.baseTime.Add(time.Duration(e.cycle) * e.interval)
		}
		e.deadline = target
	}
	el.byID[e.id] = e
	heap.Push(&el.heap, e)
}

// Pending reports the number of still-scheduled timed/cyclic callbacks,
// for tests and diagnostics.
func (el *EventLoop) Pending() int {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.heap.Len()
}
