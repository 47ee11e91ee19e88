package subscription

import (
	"sync"
	"time"

	"github.com/uastack/uacore/pkg/ua"
)

// MonitoringMode controls whether a MonitoredItem's samples are
// queued for notification, sampled but discarded, or not sampled at
// all (spec §4.H).
type MonitoringMode int

const (
	ModeDisabled MonitoringMode = iota
	ModeSampling
	ModeReporting
)

// MonitoredItem samples one (NodeId, AttributeId) pair on a sampling
// interval and queues a notification when the sampled value differs
// from the last reported one (deadband/filter application point).
type MonitoredItem struct {
	ID                uint32
	NodeId            ua.NodeId
	AttributeId       ua.AttributeId
	Mode              MonitoringMode
	SamplingInterval  time.Duration
	QueueSize         uint32
	DiscardOldest     bool
	Filter            *CompiledFilter // non-nil only for event-notifier items

	mu       sync.Mutex
	queue    []ua.DataValue
	lastSent *ua.DataValue
}

// Sample is invoked by the Subscription's publishing cycle with a
// freshly read value; it queues a notification if the value changed
// (spec §4.H: "reports only on change" is the default, no deadband
// configured here beyond strict inequality of the Variant).
func (m *MonitoredItem) Sample(v ua.DataValue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Mode == ModeDisabled {
		return
	}
	if m.lastSent != nil && valuesEqual(m.lastSent.Value, v.Value) {
		return
	}
	if m.Mode != ModeReporting {
		cp := v
		m.lastSent = &cp
		return
	}
	if uint32(len(m.queue)) >= m.QueueSize && m.QueueSize > 0 {
		if m.DiscardOldest {
			m.queue = m.queue[1:]
		} else {
			return
		}
	}
	m.queue = append(m.queue, v)
	cp := v
	m.lastSent = &cp
}

// Drain empties and returns the queued notifications.
func (m *MonitoredItem) Drain() []ua.DataValue {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.queue
	m.queue = nil
	return out
}

func valuesEqual(a, b ua.Variant) bool {
	return a.Type == b.Type && a.Scalar == b.Scalar
}

// Subscription owns a set of MonitoredItems and the keep-alive/publish
// cadence the server uses to batch their notifications.
type Subscription struct {
	ID                    uint32
	PublishingInterval    time.Duration
	MaxKeepAliveCount     uint32
	LifetimeCount         uint32

	mu                sync.Mutex
	items             map[uint32]*MonitoredItem
	keepAliveCounter  uint32
	lifetimeCounter   uint32
	nextItemID        uint32
	lastPublish       time.Time
}

func NewSubscription(id uint32, publishingInterval time.Duration, maxKeepAlive, lifetime uint32) *Subscription {
	return &Subscription{
		ID:                 id,
		PublishingInterval:  publishingInterval,
		MaxKeepAliveCount:   maxKeepAlive,
		LifetimeCount:       lifetime,
		items:               make(map[uint32]*MonitoredItem),
		lastPublish:         time.Now(),
	}
}

// CreateMonitoredItem allocates and registers a new item under this
// subscription.
func (s *Subscription) CreateMonitoredItem(nodeId ua.NodeId, attr ua.AttributeId, interval time.Duration, queueSize uint32, discardOldest bool) *MonitoredItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextItemID++
	mi := &MonitoredItem{
		ID:               s.nextItemID,
		NodeId:           nodeId,
		AttributeId:      attr,
		Mode:             ModeReporting,
		SamplingInterval: interval,
		QueueSize:        queueSize,
		DiscardOldest:    discardOldest,
	}
	s.items[mi.ID] = mi
	return mi
}

func (s *Subscription) DeleteMonitoredItem(id uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	return true
}

func (s *Subscription) Items() []*MonitoredItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*MonitoredItem, 0, len(s.items))
	for _, mi := range s.items {
		out = append(out, mi)
	}
	return out
}

// Notification is one publish cycle's aggregated output for one item.
type Notification struct {
	MonitoredItemID uint32
	Values          []ua.DataValue
}

// PublishCycle drains every item's queue and returns the notifications;
// if nothing was queued it increments the keep-alive counter and, once
// MaxKeepAliveCount is reached, returns a single empty notification set
// signaling a keep-alive message should be sent (spec §4.H). Returns
// (notifications, sendKeepAlive, expired).
func (s *Subscription) PublishCycle() (notifications []Notification, sendKeepAlive bool, expired bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastPublish = time.Now()
	gotData := false
	for _, mi := range s.items {
		if vals := mi.Drain(); len(vals) > 0 {
			notifications = append(notifications, Notification{MonitoredItemID: mi.ID, Values: vals})
			gotData = true
		}
	}

	if gotData {
		s.keepAliveCounter = 0
		s.lifetimeCounter = 0
		return notifications, false, false
	}

	s.keepAliveCounter++
	s.lifetimeCounter++
	if s.lifetimeCounter >= s.LifetimeCount {
		return nil, false, true
	}
	if s.keepAliveCounter >= s.MaxKeepAliveCount {
		s.keepAliveCounter = 0
		return nil, true, false
	}
	return nil, false, false
}

// ResetLifetime is called whenever any service call arrives on the
// session owning this subscription (a Publish request counts), per the
// spec's subscription lifetime-counter reset rule.
func (s *Subscription) ResetLifetime() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lifetimeCounter = 0
	s.lastPublish = time.Now()
}

// Stale reports whether this Subscription has gone longer than
// PublishingInterval*LifetimeCount without a genuine PublishCycle/
// ResetLifetime call, meaning the owning client has stopped sending
// Publish requests entirely. This is independent of the in-cycle
// keep-alive/lifetime counters above, which only advance while
// PublishCycle is actually being driven by a client's publish cadence;
// a client that vanishes mid-cycle would otherwise never trip them.
func (s *Subscription) Stale(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	maxAge := s.PublishingInterval * time.Duration(s.LifetimeCount)
	if maxAge <= 0 {
		return false
	}
	return now.Sub(s.lastPublish) > maxAge
}
