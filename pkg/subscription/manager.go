package subscription

import (
	"sync"
	"time"

	"github.com/uastack/uacore/pkg/ua"
)

// ReadFunc resolves one (NodeId, AttributeId) to its current value.
// Wired by the server to services.Server.Read so this package never
// imports pkg/services — sampling only needs one attribute read at a
// time, not the full batched Read service contract.
type ReadFunc func(nodeId ua.NodeId, attr ua.AttributeId) ua.DataValue

// Manager owns every live Subscription and drives their MonitoredItems'
// sampling on a single tick, independent of each Subscription's own
// PublishingInterval (which only governs when PublishCycle hands
// queued samples to a client, not how often the server re-reads the
// underlying value). Grounded on open62541's Subscription manager,
// which likewise decouples the sampling interval per item from the
// publishing interval per subscription.
type Manager struct {
	mu     sync.Mutex
	subs   map[uint32]*Subscription
	nextID uint32
}

func NewManager() *Manager {
	return &Manager{subs: make(map[uint32]*Subscription)}
}

// CreateSubscription allocates and registers a new Subscription.
func (m *Manager) CreateSubscription(publishingInterval time.Duration, maxKeepAlive, lifetime uint32) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	sub := NewSubscription(m.nextID, publishingInterval, maxKeepAlive, lifetime)
	m.subs[sub.ID] = sub
	return sub
}

// DeleteSubscription removes a Subscription by ID, reporting whether it existed.
func (m *Manager) DeleteSubscription(id uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[id]; !ok {
		return false
	}
	delete(m.subs, id)
	return true
}

// Get returns a Subscription by ID.
func (m *Manager) Get(id uint32) (*Subscription, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[id]
	return s, ok
}

// Subscriptions returns every currently registered Subscription.
func (m *Manager) Subscriptions() []*Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Subscription, 0, len(m.subs))
	for _, s := range m.subs {
		out = append(out, s)
	}
	return out
}

// SweepStale deletes every Subscription whose owning client has stopped
// sending Publish requests entirely (Subscription.Stale), returning the
// deleted IDs. Intended as a housekeeping job run well below publishing
// cadence, not as a replacement for the per-cycle keep-alive/lifetime
// counters PublishCycle already maintains.
func (m *Manager) SweepStale(now time.Time) []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted []uint32
	for id, sub := range m.subs {
		if sub.Stale(now) {
			delete(m.subs, id)
			deleted = append(deleted, id)
		}
	}
	return deleted
}

// SampleAll reads every MonitoredItem's current value through read and
// feeds it to the item's change-detection queue; intended as an
// EventLoop cyclic callback run at the server's finest configured
// sampling interval.
func (m *Manager) SampleAll(read ReadFunc) {
	for _, sub := range m.Subscriptions() {
		for _, item := range sub.Items() {
			item.Sample(read(item.NodeId, item.AttributeId))
		}
	}
}
