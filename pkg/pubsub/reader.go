package pubsub

import (
	"fmt"
	"sync"

	"github.com/uastack/uacore/pkg/ua"
)

// TargetVariable is where a DataSetReader writes one decoded field.
type TargetVariable func(v ua.DataValue)

// DataSetReader decodes the fields of one matching incoming
// NetworkMessage (matched on WriterGroupID/DataSetWriterID) and fans
// them out to per-field TargetVariable callbacks.
type DataSetReader struct {
	WriterGroupID   uint16
	DataSetWriterID uint16
	Targets         []TargetVariable
}

func (r *DataSetReader) matches(m NetworkMessage) bool {
	return m.WriterGroupID == r.WriterGroupID && m.DataSetWriterID == r.DataSetWriterID
}

func (r *DataSetReader) deliver(m NetworkMessage) {
	for i, t := range r.Targets {
		if i >= len(m.Fields) {
			return
		}
		t(m.Fields[i])
	}
}

// ReaderGroup subscribes to a topic on the connection's Transport and
// dispatches every decoded NetworkMessage to its DataSetReaders.
type ReaderGroup struct {
	ID       uint16
	Encoding Encoding
	Topic    string

	conn  *PubSubConnection
	mu    sync.Mutex
	state State
	readers []*DataSetReader
}

func NewReaderGroup(id uint16, enc Encoding, topic string) *ReaderGroup {
	return &ReaderGroup{ID: id, Encoding: enc, Topic: topic, state: StateDisabled}
}

func (g *ReaderGroup) AddDataSetReader(r *DataSetReader) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.readers = append(g.readers, r)
}

func (g *ReaderGroup) State() State { g.mu.Lock(); defer g.mu.Unlock(); return g.state }

// Start subscribes to the group's topic; decoded messages are dispatched
// to every matching DataSetReader. The first delivered message moves
// the group (and its connection) Operational.
func (g *ReaderGroup) Start() error {
	if g.conn == nil {
		return fmt.Errorf("pubsub: reader group %d not attached to a connection", g.ID)
	}
	g.mu.Lock()
	g.state = StatePreOperational
	g.mu.Unlock()

	return g.conn.Transport.Subscribe(g.Topic, func(data []byte) {
		m, err := Decode(data, g.Encoding)
		if err != nil {
			g.mu.Lock()
			g.state = StateError
			g.mu.Unlock()
			return
		}
		g.mu.Lock()
		g.state = StateOperational
		readers := append([]*DataSetReader(nil), g.readers...)
		g.mu.Unlock()
		_ = g.conn.Established()

		for _, r := range readers {
			if r.matches(m) {
				r.deliver(m)
			}
		}
	})
}
