package pubsub

import (
	"fmt"
	"sync"
	"time"

	"github.com/uastack/uacore/pkg/connection"
	"github.com/uastack/uacore/pkg/eventloop"
)

// TransportProfileUri selects a ConnectionManager implementation for a
// PubSubConnection (spec §4.I names UDP/Ethernet/MQTT/AMQP; this stack's
// retrieved corpus supplies a NATS client, generalized here to the one
// broker-style profile — see DESIGN.md).
type TransportProfileUri string

const (
	ProfileUDP    TransportProfileUri = "http://opcfoundation.org/UA-Profile/Transport/pubsub-udp-uadp"
	ProfileBroker TransportProfileUri = "http://opcfoundation.org/UA-Profile/Transport/pubsub-broker"
)

// Transport is what a PubSubConnection sends NetworkMessages through.
// udpTransport (NewUDPTransport) adapts a connection.Manager to it for
// UDP; BrokerTransport (nats.go)
// satisfies it for the broker profile.
type Transport interface {
	eventloop.EventSource
	Publish(topic string, data []byte) error
	Subscribe(topic string, onMessage func(data []byte)) error
}

// udpTransport adapts a connection.Manager (TCP/UDP ConnectionManager)
// to the Transport interface for datagram-style PubSub delivery: every
// "topic" is a fixed peer address dialed once and reused.
type udpTransport struct {
	mgr  connection.Manager
	mu   sync.Mutex
	conn connection.ConnectionID
	dial string
}

func NewUDPTransport(mgr connection.Manager, dial string) Transport {
	return &udpTransport{mgr: mgr, dial: dial}
}

func (t *udpTransport) Name() string                 { return t.mgr.Name() }
func (t *udpTransport) State() eventloop.SourceState { return t.mgr.State() }
func (t *udpTransport) Start() error                 { return t.mgr.Start() }
func (t *udpTransport) Stop()                        { t.mgr.Stop() }

func (t *udpTransport) ensureConn() (connection.ConnectionID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != 0 {
		return t.conn, nil
	}
	id, err := t.mgr.Connect(contextBackground(), t.dial)
	if err != nil {
		return 0, err
	}
	t.conn = id
	return id, nil
}

func (t *udpTransport) Publish(_ string, data []byte) error {
	id, err := t.ensureConn()
	if err != nil {
		return err
	}
	return t.mgr.Send(id, data)
}

func (t *udpTransport) Subscribe(_ string, onMessage func(data []byte)) error {
	return t.mgr.Listen(t.dial, func(_ connection.ConnectionID, data []byte, err error) {
		if err == nil {
			onMessage(data)
		}
	})
}

// PubSubConnection owns a Transport and a set of WriterGroups/
// ReaderGroups, all sharing one TransportProfileUri (spec §4.I).
type PubSubConnection struct {
	Name      string
	Profile   TransportProfileUri
	Transport Transport

	mu      sync.Mutex
	state   State
	writers []*WriterGroup
	readers []*ReaderGroup
}

func NewPubSubConnection(name string, profile TransportProfileUri, t Transport) *PubSubConnection {
	return &PubSubConnection{Name: name, Profile: profile, Transport: t, state: StateDisabled}
}

func (c *PubSubConnection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *PubSubConnection) transition(to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !canTransition(c.state, to) {
		return fmt.Errorf("pubsub: connection %q cannot move %s -> %s", c.Name, c.state, to)
	}
	c.state = to
	return nil
}

// Open starts the transport and enters PreOperational; the connection
// stays there until Established (called on the first confirmed send or
// receive) advances it to Operational (spec §4.I).
func (c *PubSubConnection) Open() error {
	if err := c.transition(StatePreOperational); err != nil {
		return err
	}
	if err := c.Transport.Start(); err != nil {
		_ = c.transition(StateError)
		return fmt.Errorf("pubsub: open connection %q: %w", c.Name, err)
	}
	return nil
}

// Established confirms the underlying transport (first send succeeded,
// or a reader's Subscribe callback fired), moving PreOperational ->
// Operational.
func (c *PubSubConnection) Established() error {
	return c.transition(StateOperational)
}

func (c *PubSubConnection) Pause() error  { return c.transition(StatePaused) }
func (c *PubSubConnection) Resume() error { return c.transition(StateOperational) }

func (c *PubSubConnection) Close() {
	c.mu.Lock()
	c.state = StateDisabled
	c.mu.Unlock()
	c.Transport.Stop()
}

func (c *PubSubConnection) AddWriterGroup(wg *WriterGroup) {
	c.mu.Lock()
	defer c.mu.Unlock()
	wg.conn = c
	c.writers = append(c.writers, wg)
}

func (c *PubSubConnection) AddReaderGroup(rg *ReaderGroup) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rg.conn = c
	c.readers = append(c.readers, rg)
}

func (c *PubSubConnection) WriterGroups() []*WriterGroup {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*WriterGroup(nil), c.writers...)
}

func (c *PubSubConnection) ReaderGroups() []*ReaderGroup {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*ReaderGroup(nil), c.readers...)
}

// WriterGroup batches one or more DataSetWriters under a single
// publishing interval and wire encoding.
type WriterGroup struct {
	ID                 uint16
	PublishingInterval time.Duration
	Encoding           Encoding
	Topic              string

	conn    *PubSubConnection
	mu      sync.Mutex
	state   State
	writers []*DataSetWriter
}

func NewWriterGroup(id uint16, interval time.Duration, enc Encoding, topic string) *WriterGroup {
	return &WriterGroup{ID: id, PublishingInterval: interval, Encoding: enc, Topic: topic, state: StateDisabled}
}

func (g *WriterGroup) AddDataSetWriter(w *DataSetWriter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	w.group = g
	g.writers = append(g.writers, w)
}

func (g *WriterGroup) State() State { g.mu.Lock(); defer g.mu.Unlock(); return g.state }

func (g *WriterGroup) setState(s State) { g.mu.Lock(); g.state = s; g.mu.Unlock() }

// PublishCycle runs once per PublishingInterval: every DataSetWriter
// snapshots its PublishedDataSet, builds a NetworkMessage, and sends it
// over the connection's Transport. The first successful send flips the
// group (and its connection) Operational.
func (g *WriterGroup) PublishCycle() error {
	g.mu.Lock()
	writers := append([]*DataSetWriter(nil), g.writers...)
	g.mu.Unlock()

	var firstErr error
	sentAny := false
	for _, w := range writers {
		if err := w.publish(g); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		sentAny = true
	}
	if sentAny {
		g.setState(StateOperational)
		if g.conn != nil {
			_ = g.conn.Established()
		}
	} else if firstErr != nil {
		g.setState(StateError)
	}
	return firstErr
}

// DataSetWriter maps a PublishedDataSet onto one NetworkMessage slot
// within a WriterGroup.
type DataSetWriter struct {
	ID       uint16
	DataSet  *PublishedDataSet
	Realtime bool // rtLevel = FixedSize (spec §4.I)

	group           *WriterGroup
	offsetsBuilt    bool
	realtimeOffsets []int
	templateBuf     []byte
}

func NewDataSetWriter(id uint16, ds *PublishedDataSet, realtime bool) *DataSetWriter {
	return &DataSetWriter{ID: id, DataSet: ds, Realtime: realtime}
}

func (w *DataSetWriter) publish(g *WriterGroup) error {
	if w.Realtime {
		return w.publishRealtime(g)
	}
	msg := NetworkMessage{WriterGroupID: g.ID, DataSetWriterID: w.ID, Fields: w.DataSet.Snapshot()}
	data, err := Encode(msg, g.Encoding)
	if err != nil {
		return fmt.Errorf("pubsub: encode dataset %q: %w", w.DataSet.Name, err)
	}
	return g.conn.Transport.Publish(g.Topic, data)
}

// publishRealtime implements the fixed-offset path: offsets are
// computed once (on the first cycle) by encoding a template message,
// then every later cycle only rewrites the payload bytes at those
// offsets directly from each field's External ValueSource cell, with
// no further encode pass (spec §4.I).
func (w *DataSetWriter) publishRealtime(g *WriterGroup) error {
	if err := w.DataSet.validateRealtime(); err != nil {
		return err
	}
	if !w.offsetsBuilt {
		msg := NetworkMessage{WriterGroupID: g.ID, DataSetWriterID: w.ID, Fields: w.DataSet.Snapshot()}
		template, err := Encode(msg, EncodingUADP)
		if err != nil {
			return fmt.Errorf("pubsub: build realtime template: %w", err)
		}
		w.templateBuf = template
		w.realtimeOffsets = fieldOffsets(template, len(w.DataSet.Fields))
		w.offsetsBuilt = true
	}
	buf := append([]byte(nil), w.templateBuf...)
	for i, f := range w.DataSet.Fields {
		v := f.Resolve()
		overwriteScalarAt(buf, w.realtimeOffsets[i], v.Value)
	}
	return g.conn.Transport.Publish(g.Topic, buf)
}
