// Package historian is the optional HistoryRead collaborator named but
// not fully re-specified in spec.md §1: VariableNode value changes are
// appended, as InfluxDB line-protocol points received over the NATS
// broker transport, to a ring buffer adapted from the teacher's
// memorystore/buffer.go buffer-chain design.
package historian

import (
	"errors"
	"sync"

	"github.com/uastack/uacore/pkg/ua"
)

// sampleCap bounds how many samples one buffer block holds before a new
// block is linked in, matching the teacher's BufferCap sizing.
const sampleCap = 512

var ErrNoData = errors.New("historian: no data for this node")

// sample is one historized value.
type sample struct {
	timeNanos int64
	value     ua.DataValue
}

// block is one fixed-capacity link in a node's sample chain; once full,
// writes continue into a freshly linked block rather than reallocating
// or copying already-written samples, exactly as the teacher's buffer
// grows.
type block struct {
	prev, next *block
	samples    []sample
}

var blockPool = sync.Pool{
	New: func() any { return &block{samples: make([]sample, 0, sampleCap)} },
}

func newBlock() *block {
	b := blockPool.Get().(*block)
	b.prev, b.next = nil, nil
	b.samples = b.samples[:0]
	return b
}

// nodeHistory is the buffer chain for one NodeId: head is the oldest
// block, tail is the block currently being appended to.
type nodeHistory struct {
	mu   sync.Mutex
	head *block
	tail *block
}

func newNodeHistory() *nodeHistory {
	b := newBlock()
	return &nodeHistory{head: b, tail: b}
}

func (h *nodeHistory) append(s sample) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.tail.samples) == cap(h.tail.samples) {
		nb := newBlock()
		nb.prev = h.tail
		h.tail.next = nb
		h.tail = nb
	}
	h.tail.samples = append(h.tail.samples, s)
}

// readRange returns every sample with timeNanos in [from, to], oldest
// first, walking the chain from head.
func (h *nodeHistory) readRange(from, to int64) []ua.DataValue {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []ua.DataValue
	for b := h.head; b != nil; b = b.next {
		for _, s := range b.samples {
			if s.timeNanos >= from && s.timeNanos <= to {
				out = append(out, s.value)
			}
		}
	}
	return out
}

// free drops blocks whose samples are entirely older than beforeNanos,
// returning them to the pool, mirroring the teacher's buffer.free
// retention sweep. The tail block is never evicted, even if stale,
// since it is still being appended to.
func (h *nodeHistory) free(beforeNanos int64) (freed int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for h.head.next != nil {
		last := h.head.samples[len(h.head.samples)-1]
		if last.timeNanos >= beforeNanos {
			break
		}
		old := h.head
		h.head = h.head.next
		h.head.prev = nil
		if cap(old.samples) == sampleCap {
			blockPool.Put(old)
		}
		freed++
	}
	return freed
}

// Store historizes VariableNode value changes keyed by NodeId string
// (spec's NodeId.String() form) and answers bounded-range reads for the
// HistoryRead collaborator.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]*nodeHistory
}

func NewStore() *Store {
	return &Store{nodes: make(map[string]*nodeHistory)}
}

// Append records one value sample for nodeId at timeNanos (Unix nanos).
func (s *Store) Append(nodeId string, timeNanos int64, v ua.DataValue) {
	s.mu.Lock()
	h, ok := s.nodes[nodeId]
	if !ok {
		h = newNodeHistory()
		s.nodes[nodeId] = h
	}
	s.mu.Unlock()
	h.append(sample{timeNanos: timeNanos, value: v})
}

// Read returns every historized value for nodeId with timestamp in
// [fromNanos, toNanos], oldest first.
func (s *Store) Read(nodeId string, fromNanos, toNanos int64) ([]ua.DataValue, error) {
	s.mu.RLock()
	h, ok := s.nodes[nodeId]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNoData
	}
	return h.readRange(fromNanos, toNanos), nil
}

// Prune evicts samples older than beforeNanos across every node,
// bounding memory growth (spec's retention is deployment-configured;
// this is the mechanism, not a policy).
func (s *Store) Prune(beforeNanos int64) (freed int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range s.nodes {
		freed += h.free(beforeNanos)
	}
	return freed
}
